// Package arm64 implements the AArch64 instruction-ID table and IR-level
// lowering only, per spec's scope note: the final A64 byte encoder is
// analogous to the x86-64 encoder in internal/isa/amd64 and is intentionally
// elided here — this package produces a fully resolved ir.Node stream that a
// binary encoder would consume, but does not itself emit bytes.
package arm64

import "github.com/insinfo/asmjit-sub003/internal/ir"

// Feature is a bit position into AArch64's consumed feature bitfield. The
// core only distinguishes the handful of extensions UniOp lowering branches
// on; unlisted capabilities (SVE, etc.) are out of scope per spec §1.
type Feature uint32

const (
	FeatureNEON Feature = 1 << iota
	FeatureFP
	FeatureFMA  // fused multiply-add (FMADD/FMLA) always present on AAPCS64 baseline, kept for parity with the amd64 Feature bitmask shape
	FeatureCRC
)

// Entry is one instruction-ID table row. Unlike the x86-64 table, there is
// no opcode/prefix/map packing here: AArch64 instructions are fixed 32-bit
// words whose final bit layout is produced by the (elided) encoder, so the
// IR-level table only needs to carry the mnemonic and the operand arity the
// lowering pass uses to validate operand shape.
type Entry struct {
	Mnemonic string
	Form     InstForm
	Features Feature // 0 means baseline AAPCS64/NEON-less integer form
}

// InstForm tags the operand arity/layout for the lowering pass's dispatch,
// mirroring amd64's InstForm without the x86-specific ModR/M direction bits
// AArch64 instructions don't have (AArch64 is uniformly dst, src1, src2...).
type InstForm byte

const (
	FormRRR   InstForm = iota // rd, rn, rm: ADD/SUB/AND-style three-register ALU ops
	FormRRRR                  // rd, rn, rm, ra: FMADD-style fused four-register forms
	FormRRI                   // rd, rn, imm: ADD/SUB-immediate
	FormRM                    // rt, [rn,#imm]: LDR-style load
	FormMR                    // [rn,#imm], rt: STR-style store
	FormRR                    // rd, rn: MOV/FMOV/CVT-style two-register forms
	FormNoOperand
	FormBranch
	FormCond
)

const (
	NONE ir.InstID = iota
	ADDW
	ADDX
	SUBW
	SUBX
	ANDW
	ORRW
	EORW
	CMPW
	MOVZX // movz xd, #imm
	MOVN  // mov xd, xn (alias of ORR xd, xzr, xn)
	RET
	B
	BCOND
	BL
	NOP
	LDRW
	LDRX
	STRW
	STRX
	LDRQ // ldr qt, [rn,#imm]: 128-bit NEON load, used to reload a spilled vector work-reg
	STRQ // str qt, [rn,#imm]: 128-bit NEON store, used to spill a vector work-reg to its stack slot
	FADD2S // ADD Vd.4S, Vn.4S, Vm.4S (NEON integer add, despite the name mirrors UniOp addU32)
	FMLA4S // fused multiply-accumulate, Vd.4S = Vn.4S*Vm.4S + Vd.4S (d preloaded with the accumulator per spec's FMA policy)
	FMOVD
	instIDCount
)

// Table is the dense InstID-indexed instruction database, analogous to
// amd64.Table but without encoding metadata (see package doc).
var Table = [instIDCount]Entry{
	ADDW:   {Mnemonic: "add", Form: FormRRR},
	ADDX:   {Mnemonic: "add", Form: FormRRR},
	SUBW:   {Mnemonic: "sub", Form: FormRRR},
	SUBX:   {Mnemonic: "sub", Form: FormRRR},
	ANDW:   {Mnemonic: "and", Form: FormRRR},
	ORRW:   {Mnemonic: "orr", Form: FormRRR},
	EORW:   {Mnemonic: "eor", Form: FormRRR},
	CMPW:   {Mnemonic: "cmp", Form: FormRRR},
	MOVZX:  {Mnemonic: "movz", Form: FormRRI},
	MOVN:   {Mnemonic: "mov", Form: FormRR},
	RET:    {Mnemonic: "ret", Form: FormNoOperand},
	B:      {Mnemonic: "b", Form: FormBranch},
	BCOND:  {Mnemonic: "b.cond", Form: FormCond},
	BL:     {Mnemonic: "bl", Form: FormBranch},
	NOP:    {Mnemonic: "nop", Form: FormNoOperand},
	LDRW:   {Mnemonic: "ldr", Form: FormRM},
	LDRX:   {Mnemonic: "ldr", Form: FormRM},
	STRW:   {Mnemonic: "str", Form: FormMR},
	STRX:   {Mnemonic: "str", Form: FormMR},
	LDRQ:   {Mnemonic: "ldr", Form: FormRM, Features: FeatureNEON},
	STRQ:   {Mnemonic: "str", Form: FormMR, Features: FeatureNEON},
	FADD2S: {Mnemonic: "add", Form: FormRRR, Features: FeatureNEON},
	FMLA4S: {Mnemonic: "fmla", Form: FormRRRR, Features: FeatureNEON | FeatureFMA},
	FMOVD:  {Mnemonic: "fmov", Form: FormRR, Features: FeatureFP},
}
