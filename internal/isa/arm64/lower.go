package arm64

import (
	"fmt"

	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/ir"
	"github.com/insinfo/asmjit-sub003/internal/xjiterr"
)

// Lower appends one Inst node for id with the given operands after the
// cursor, validating the operand count against the table's InstForm. This
// is the full extent of this package's responsibility: it hands back a
// fully-shaped IR node for the (elided) final encoder to consume later, the
// same contract internal/isa/amd64's Encoder reads from but one stage
// earlier in the pipeline.
func Lower(c *ir.Cursor, id ir.InstID, operands []ir.Operand) (ir.NodeID, error) {
	if int(id) >= len(Table) {
		return 0, xjiterr.New(xjiterr.KindEncoding, fmt.Sprintf("arm64: unknown instruction id %d", id))
	}
	entry := Table[id]
	wantArity, ok := arityFor(entry.Form)
	if ok && len(operands) != wantArity {
		return 0, xjiterr.New(xjiterr.KindOperandMismatch,
			fmt.Sprintf("arm64: %s expects %d operands, got %d", entry.Mnemonic, wantArity, len(operands)))
	}
	return c.AppendInst(id, operands), nil
}

func arityFor(f InstForm) (int, bool) {
	switch f {
	case FormRRR:
		return 3, true
	case FormRRRR:
		return 4, true
	case FormRRI:
		return 2, true
	case FormRM, FormMR:
		return 2, true
	case FormRR:
		return 2, true
	case FormNoOperand:
		return 0, true
	case FormBranch:
		return 1, true
	case FormCond:
		return 2, true
	default:
		return 0, false
	}
}

// AddRRR appends a three-register ALU instruction (rd = rn <op> rm).
func AddRRR(c *ir.Cursor, id ir.InstID, rd, rn, rm asm.Register) (ir.NodeID, error) {
	return Lower(c, id, []ir.Operand{ir.RegOperand(rd), ir.RegOperand(rn), ir.RegOperand(rm)})
}

// FMLA appends the fused multiply-accumulate form Vd = Vn*Vm + Vd, matching
// spec's FMAddOpBehavior=fmaStoreToAccumulator policy: the caller is
// responsible for having moved the accumulator operand into rd beforehand
// (see unicompiler's FMA lowering), since AArch64's FMLA always accumulates
// into its destination register in place.
func FMLA(c *ir.Cursor, rd, rn, rm asm.Register) (ir.NodeID, error) {
	return Lower(c, FMLA4S, []ir.Operand{ir.RegOperand(rd), ir.RegOperand(rn), ir.RegOperand(rm)})
}

// Ret appends a no-operand return instruction.
func Ret(c *ir.Cursor) ir.NodeID {
	id, _ := Lower(c, RET, nil)
	return id
}

// HasFeature reports whether required is satisfied by available, the same
// bitmask-subset test amd64's selection lattice uses.
func HasFeature(available, required Feature) bool {
	return available&required == required
}
