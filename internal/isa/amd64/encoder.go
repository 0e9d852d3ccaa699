package amd64

import (
	"fmt"

	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/ir"
	"github.com/insinfo/asmjit-sub003/internal/xjiterr"
)

// Encoder walks a finished (register-allocated) Builder list and emits
// x86-64 machine code into buf, recording relocations against labels with
// labels. It performs no scheduling or allocation of its own: by the time
// Encode runs, every virtual-register Operand must already have been
// rewritten to a physical Register by the allocator's writeback.
type Encoder struct {
	buf    *asm.CodeBuffer
	labels *asm.LabelManager
}

// NewEncoder returns an Encoder writing into buf and resolving labels
// through labels.
func NewEncoder(buf *asm.CodeBuffer, labels *asm.LabelManager) *Encoder {
	return &Encoder{buf: buf, labels: labels}
}

// Encode emits every Inst/Label/EmbedData node in b, in list order.
func (e *Encoder) Encode(b *ir.Builder) error {
	var outerErr error
	b.ForEach(func(id ir.NodeID, n *ir.Node) {
		if outerErr != nil {
			return
		}
		switch n.Kind {
		case ir.NodeLabel:
			if err := e.labels.Bind(n.LabelID, uint32(e.buf.Len())); err != nil {
				outerErr = err
			}
		case ir.NodeInst:
			n.OffsetInBinary = uint32(e.buf.Len())
			if err := e.encodeInst(n); err != nil {
				outerErr = err
				return
			}
			n.Emitted = true
		case ir.NodeSectionAlign:
			e.buf.AlignWithNOPs(n.AlignBytes)
		case ir.NodeEmbedData:
			e.buf.EmitBytes(n.Data)
		}
	})
	return outerErr
}

func (e *Encoder) encodeInst(n *ir.Node) error {
	if int(n.InstID) >= len(Table) {
		return xjiterr.New(xjiterr.KindEncoding, fmt.Sprintf("unknown instruction id %d", n.InstID))
	}
	entry := Table[n.InstID]
	switch entry.Form {
	case FormNoOperand:
		e.buf.Emit8(byte(entry.Opcode))
		return nil
	case FormO:
		return e.encodeO(entry, n.Operands)
	case FormMI:
		return e.encodeMI(entry, n.Operands)
	case FormMR:
		return e.encodeLegacyModRM(entry, n.Operands, false)
	case FormRM:
		return e.encodeLegacyModRM(entry, n.Operands, true)
	case FormJump:
		return e.encodeJump(entry, n)
	case FormVexRVM:
		return e.encodeVexRVM(entry, n.Operands)
	case FormVexRM:
		return e.encodeVexRM(entry, n.Operands)
	default:
		return xjiterr.New(xjiterr.KindEncoding, fmt.Sprintf("unsupported form for %s", entry.Mnemonic))
	}
}

// encodeO handles the opcode+rd forms: mov r64/r32, imm.
func (e *Encoder) encodeO(entry Entry, ops []ir.Operand) error {
	if ops[0].Kind != asm.OperandReg {
		return xjiterr.New(xjiterr.KindEncoding, fmt.Sprintf("%s: operand 0 requires a register, got %s", entry.Mnemonic, ops[0].Kind))
	}
	dst := ops[0].Reg
	imm := ops[1].Imm
	enc := dst.Encoding()
	rex := RexInfo{W: entry.W, B: bitFromReg(enc)}
	if rex.Needed(false) {
		e.buf.Emit8(rex.Encode())
	}
	e.buf.Emit8(byte(entry.Opcode) + loReg(enc))
	if entry.W {
		e.buf.Emit64(uint64(imm))
	} else {
		e.buf.Emit32(uint32(imm))
	}
	return nil
}

// encodeMI handles the MI-form instructions: a direct register or memory
// rm operand, a /digit opcode extension in ModR/M.reg, and a trailing
// immediate (always 32-bit for the forms this table carries).
func (e *Encoder) encodeMI(entry Entry, ops []ir.Operand) error {
	rmOp, immOp := ops[0], ops[1]

	var enc EncodedModRM
	if rmOp.Kind == asm.OperandMem {
		enc = EncodeDigit(entry.Digit, asm.NoRegister, rmOp.Mem, true)
	} else {
		enc = EncodeDigit(entry.Digit, rmOp.Reg, asm.Memory{}, false)
	}
	enc.Rex.W = entry.W

	e.emitMandatoryPrefix(entry.Prefix)
	if enc.Rex.Needed(false) {
		e.buf.Emit8(enc.Rex.Encode())
	}
	e.emitLegacyOpcodeMap(entry.Map)
	e.buf.Emit8(byte(entry.Opcode))
	e.buf.Emit8(enc.ModRM)
	if enc.HasSIB {
		e.buf.Emit8(enc.SIB)
	}
	if err := e.emitDispOrRIP(enc, 4); err != nil {
		return err
	}
	e.buf.Emit32(uint32(int32(immOp.Imm)))
	return nil
}

// encodeLegacyModRM handles the legacy (non-VEX) reg/rm instruction forms.
// regIsDst selects RM-direction (ops[0] supplies ModR/M.reg, ops[1] is the
// ModR/M.rm operand) vs MR-direction (ops[0] is the ModR/M.rm operand,
// ops[1] supplies ModR/M.reg).
func (e *Encoder) encodeLegacyModRM(entry Entry, ops []ir.Operand, regIsDst bool) error {
	// MR-direction (dst, src): ops[0] is the addressed/rm operand (dst),
	// ops[1] supplies ModR/M.reg (src). RM-direction (dst, src): ops[0]
	// supplies ModR/M.reg (dst), ops[1] is the addressed/rm operand (src).
	var regOp, rmOp ir.Operand
	if regIsDst {
		regOp, rmOp = ops[0], ops[1]
	} else {
		rmOp, regOp = ops[0], ops[1]
	}

	var enc EncodedModRM
	if rmOp.Kind == asm.OperandMem {
		enc = EncodeRegMem(regOp.Reg, rmOp.Mem)
	} else {
		enc = EncodeRegReg(regOp.Reg, rmOp.Reg)
	}
	enc.Rex.W = entry.W

	e.emitMandatoryPrefix(entry.Prefix)
	if enc.Rex.Needed(false) {
		e.buf.Emit8(enc.Rex.Encode())
	}
	e.emitLegacyOpcodeMap(entry.Map)
	e.buf.Emit8(byte(entry.Opcode))
	e.buf.Emit8(enc.ModRM)
	if enc.HasSIB {
		e.buf.Emit8(enc.SIB)
	}
	return e.emitDispOrRIP(enc, 0)
}

// emitMandatoryPrefix emits the single mandatory SSE prefix byte (66/F3/F2),
// or nothing for PrefixNone. Shared by every legacy (non-VEX) ModR/M form;
// VEX forms fold the same field into vvvv/pp instead (see vex.go).
func (e *Encoder) emitMandatoryPrefix(p Prefix) {
	switch p {
	case Prefix66:
		e.buf.Emit8(0x66)
	case PrefixF3:
		e.buf.Emit8(0xf3)
	case PrefixF2:
		e.buf.Emit8(0xf2)
	}
}

// emitLegacyOpcodeMap emits the 0F escape (and, for 0F38/0F3A, its second
// escape byte) preceding a legacy-encoded opcode.
func (e *Encoder) emitLegacyOpcodeMap(m OpcodeMap) {
	switch m {
	case Map0F:
		e.buf.Emit8(0x0f)
	case Map0F38:
		e.buf.Emit8(0x0f)
		e.buf.Emit8(0x38)
	case Map0F3A:
		e.buf.Emit8(0x0f)
		e.buf.Emit8(0x3a)
	}
}

// emitDispOrRIP emits the displacement (or RIP-relative rel32 placeholder) of
// enc; trailing is the number of instruction bytes the caller emits after it
// (4 for the MI form's imm32, 0 otherwise).
func (e *Encoder) emitDispOrRIP(enc EncodedModRM, trailing int32) error {
	if enc.IsRIPLabel {
		dispOffset := uint32(e.buf.Len())
		e.buf.Emit32(0)
		// rel32 is resolved relative to the end of this field; RIP points at
		// the end of the instruction, so the trailing bytes are subtracted.
		e.labels.RecordRelocation(asm.RelocRel32, dispOffset, enc.RIPLabel, -trailing)
		return nil
	}
	switch enc.DispBytes {
	case 1:
		e.buf.Emit8(byte(int8(enc.Disp)))
	case 4:
		e.buf.Emit32(uint32(enc.Disp))
	}
	return nil
}

// encodeJump handles unconditional/conditional near jumps and calls, always
// choosing the rel32 form (short rel8 jumps are a peephole the caller can
// apply separately once final layout is known; this encoder favors
// correctness over size).
func (e *Encoder) encodeJump(entry Entry, n *ir.Node) error {
	lbl := n.Operands[0].Lbl
	if entry.Opcode == 0x80 { // Jcc: 0F 8x rel32, condition code taken from n.Operands[1].Imm (0 if absent) and ORed into the 0x80 opcode byte
		cc := byte(0)
		if len(n.Operands) > 1 && n.Operands[1].Kind == asm.OperandImm {
			cc = byte(n.Operands[1].Imm)
		}
		e.buf.Emit8(0x0f)
		e.buf.Emit8(0x80 | cc)
	} else {
		e.buf.Emit8(byte(entry.Opcode))
	}
	dispOffset := uint32(e.buf.Len())
	e.buf.Emit32(0)
	e.labels.RecordRelocation(asm.RelocRel32, dispOffset, lbl, 0)
	return nil
}

// encodeVexRVM handles the VEX.RVM forms (dst, src1 via vvvv, src2 via
// ModR/M.rm).
func (e *Encoder) encodeVexRVM(entry Entry, ops []ir.Operand) error {
	if ops[0].Kind != asm.OperandReg || ops[1].Kind != asm.OperandReg || ops[2].Kind != asm.OperandReg {
		return xjiterr.New(xjiterr.KindEncoding, fmt.Sprintf("%s: VEX.RVM form does not support a memory operand", entry.Mnemonic))
	}
	dst, src1, src2 := ops[0].Reg, ops[1].Reg, ops[2].Reg
	modrm := EncodeRegReg(dst, src2)

	vi := vexInfo{
		R: modrm.Rex.R, X: modrm.Rex.X, B: modrm.Rex.B,
		Map: entry.Map, W: entry.W, Vvvv: src1.Encoding(), L: entry.L, Prefix: entry.Prefix,
	}

	if vi.needsThreeByte() {
		e.buf.Emit8(0xc4)
		b1, b2 := vi.Encode3Byte()
		e.buf.Emit8(b1)
		e.buf.Emit8(b2)
	} else {
		e.buf.Emit8(0xc5)
		e.buf.Emit8(vi.Encode2Byte())
	}
	e.buf.Emit8(byte(entry.Opcode))
	e.buf.Emit8(modrm.ModRM)
	return nil
}

// encodeVexRM handles the VEX.RM forms (dst, src via ModR/M.rm; vvvv
// unused), e.g. VPBROADCASTQ/VMOVDQA.
func (e *Encoder) encodeVexRM(entry Entry, ops []ir.Operand) error {
	if ops[0].Kind != asm.OperandReg || ops[1].Kind != asm.OperandReg {
		return xjiterr.New(xjiterr.KindEncoding, fmt.Sprintf("%s: VEX.RM form does not support a memory operand", entry.Mnemonic))
	}
	dst, src := ops[0].Reg, ops[1].Reg
	modrm := EncodeRegReg(dst, src)

	vi := vexInfo{
		R: modrm.Rex.R, X: modrm.Rex.X, B: modrm.Rex.B,
		Map: entry.Map, W: entry.W, Vvvv: 0, L: entry.L, Prefix: entry.Prefix, // Vvvv=0 packs to the "unused" 1111b field
	}

	if vi.needsThreeByte() {
		e.buf.Emit8(0xc4)
		b1, b2 := vi.Encode3Byte()
		e.buf.Emit8(b1)
		e.buf.Emit8(b2)
	} else {
		e.buf.Emit8(0xc5)
		e.buf.Emit8(vi.Encode2Byte())
	}
	e.buf.Emit8(byte(entry.Opcode))
	e.buf.Emit8(modrm.ModRM)
	return nil
}
