package unicompiler

import (
	"fmt"

	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/ir"
	"github.com/insinfo/asmjit-sub003/internal/isa/amd64"
	"github.com/insinfo/asmjit-sub003/internal/xjiterr"
)

// amd64SelEntry is one rung of a feature-guarded selection lattice, per §9's
// design note: "a per-arch selection table mapping (verb, width,
// element_kind) to a list of (required_features, encoding_strategy)
// entries; pick the first whose features are satisfied."
type amd64SelEntry struct {
	Features amd64.Feature // 0 means "always available" (SSE2 baseline)
	InstID   ir.InstID
	ThreeOp  bool // true: VEX RVM (dst,src1,src2 all distinct); false: legacy 2-operand, needs a MOV when dst != src1
}

// amd64Select walks table in order (callers list AVX-512 -> ... -> SSE2) and
// returns the first entry whose Features are a subset of available. Fails
// with KindUnsupportedOp if no rung matches, per §4.5's failure semantics.
func amd64Select(table []amd64SelEntry, available amd64.Feature, verb string) (amd64SelEntry, error) {
	for _, e := range table {
		if available&e.Features == e.Features {
			return e, nil
		}
	}
	return amd64SelEntry{}, xjiterr.New(xjiterr.KindUnsupportedOp, fmt.Sprintf("amd64: no lowering for %s with available features %#x", verb, available))
}

var amd64AddU32Table128 = []amd64SelEntry{
	{Features: amd64.FeatureAVX, InstID: amd64.VPADDD, ThreeOp: true},
	{Features: 0, InstID: amd64.PADDD},
}

var amd64AddU32Table256 = []amd64SelEntry{
	{Features: amd64.FeatureAVX2, InstID: amd64.VPADDDY, ThreeOp: true},
}

var amd64CmpEqU8Table128 = []amd64SelEntry{
	{Features: amd64.FeatureAVX, InstID: amd64.VPCMPEQB, ThreeOp: true},
	{Features: 0, InstID: amd64.PCMPEQB},
}

var amd64CmpEqU8Table256 = []amd64SelEntry{
	{Features: amd64.FeatureAVX2, InstID: amd64.VPCMPEQBY, ThreeOp: true},
}

var amd64BroadcastU64Table128 = []amd64SelEntry{
	{Features: amd64.FeatureAVX2, InstID: amd64.VPBROADCASTQ},
}

var amd64BroadcastU64Table256 = []amd64SelEntry{
	{Features: amd64.FeatureAVX2, InstID: amd64.VPBROADCASTQY},
}

var amd64FMAddF32Table128 = []amd64SelEntry{
	{Features: amd64.FeatureAVX | amd64.FeatureFMA, InstID: amd64.VFMADD213PS, ThreeOp: true},
}

var amd64FMAddF32Table256 = []amd64SelEntry{
	{Features: amd64.FeatureAVX2 | amd64.FeatureFMA, InstID: amd64.VFMADD213PSY, ThreeOp: true},
}

func amd64TableForWidth(t128, t256 []amd64SelEntry, width asm.RegWidth) []amd64SelEntry {
	if width == asm.Width256 {
		return t256
	}
	return t128
}

// emitThreeOp appends a VEX RVM-form Inst node: dst, src1 (vvvv), src2 (rm).
func emitThreeOp(c *ir.Cursor, id ir.InstID, dst, src1, src2 asm.Register) {
	c.AppendInst(id, []ir.Operand{ir.RegOperand(dst), ir.RegOperand(src1), ir.RegOperand(src2)})
}

// emitTwoOpLegacy appends a legacy SSE 2-operand instruction (dst, dst,
// src2) — inserting a MOV first when dst != src1, per §4.4's peephole note:
// "Two-operand SSE forms insert a MOV when dst ≠ src1". id's table entry
// must be one of the FormMR-direction entries (PADDD, PCMPEQB, MULPS,
// ADDPS), whose ModR/M.reg field is the true destination despite the "MR"
// label — see FormMR in instdb.go — so the Inst node's operand order
// is [src2 (rm), dst (reg)].
func emitTwoOpLegacy(c *ir.Cursor, id ir.InstID, dst, src1, src2 asm.Register) {
	if dst != src1 {
		c.AppendInst(amd64.MOVAPSRR, []ir.Operand{ir.RegOperand(dst), ir.RegOperand(src1)})
	}
	c.AppendInst(id, []ir.Operand{ir.RegOperand(src2), ir.RegOperand(dst)})
}

func (u *UniCompiler) lowerAddU32AMD64(dst, src1, src2 asm.Register, width asm.RegWidth) error {
	table := amd64TableForWidth(amd64AddU32Table128, amd64AddU32Table256, width)
	e, err := amd64Select(table, u.cfg.AMD64Features, "addU32")
	if err != nil {
		return u.poison(err)
	}
	if e.ThreeOp {
		emitThreeOp(&u.cursor, e.InstID, dst, src1, src2)
	} else {
		emitTwoOpLegacy(&u.cursor, e.InstID, dst, src1, src2)
	}
	return nil
}

func (u *UniCompiler) lowerCmpEqU8AMD64(dst, src1, src2 asm.Register, width asm.RegWidth) error {
	table := amd64TableForWidth(amd64CmpEqU8Table128, amd64CmpEqU8Table256, width)
	e, err := amd64Select(table, u.cfg.AMD64Features, "cmpEqU8")
	if err != nil {
		return u.poison(err)
	}
	if e.ThreeOp {
		emitThreeOp(&u.cursor, e.InstID, dst, src1, src2)
	} else {
		emitTwoOpLegacy(&u.cursor, e.InstID, dst, src1, src2)
	}
	return nil
}

func (u *UniCompiler) lowerBroadcastU64AMD64(dst, src asm.Register, width asm.RegWidth) error {
	table := amd64TableForWidth(amd64BroadcastU64Table128, amd64BroadcastU64Table256, width)
	e, err := amd64Select(table, u.cfg.AMD64Features, "broadcastU64")
	if err != nil {
		return u.poison(err)
	}
	u.cursor.AppendInst(e.InstID, []ir.Operand{ir.RegOperand(dst), ir.RegOperand(src)})
	return nil
}

func (u *UniCompiler) lowerCvtTruncF32ToI32AMD64(dst, src asm.Register) error {
	// Single baseline rung: CVTTSS2SI is always available on x86-64
	// (guaranteed SSE2), so there is nothing to select over.
	u.cursor.AppendInst(amd64.CVTTSS2SI, []ir.Operand{ir.RegOperand(dst), ir.RegOperand(src)})
	return nil
}

func (u *UniCompiler) lowerLoad64F64AMD64(dst asm.Register, mem asm.Memory) error {
	u.cursor.AppendInst(amd64.MOVSDRM, []ir.Operand{ir.RegOperand(dst), ir.MemOperand(mem)})
	return nil
}

// lowerMAddF32AMD64 implements the FMA policy of §4.5: d = a*b + c.
// fmaStoreToAny lowers to vfmadd213ps (dst=a, src1=b via vvvv, src2=c via
// rm — 213 notation means "d = src1*dst + src2", so a MOV seeds dst=a
// first); noFMA falls back to mulps;addps.
func (u *UniCompiler) lowerMAddF32AMD64(dst, a, b, c asm.Register, width asm.RegWidth) error {
	if dst == b && dst != a {
		// a*b commutes: swap so dst aliases a and no MOV clobbers b.
		a, b = b, a
	}
	switch u.cfg.FMAddBehavior {
	case FMAStoreToAny, FMAStoreToAccumulator:
		table := amd64TableForWidth(amd64FMAddF32Table128, amd64FMAddF32Table256, width)
		e, err := amd64Select(table, u.cfg.AMD64Features, "mAddF32")
		if err != nil {
			return u.poison(err)
		}
		if dst != a {
			u.cursor.AppendInst(amd64.MOVAPSRR, []ir.Operand{ir.RegOperand(dst), ir.RegOperand(a)})
		}
		emitThreeOp(&u.cursor, e.InstID, dst, b, c)
		return nil
	default: // NoFMA
		if dst != a {
			u.cursor.AppendInst(amd64.MOVAPSRR, []ir.Operand{ir.RegOperand(dst), ir.RegOperand(a)})
		}
		u.cursor.AppendInst(amd64.MULPS, []ir.Operand{ir.RegOperand(b), ir.RegOperand(dst)})
		u.cursor.AppendInst(amd64.ADDPS, []ir.Operand{ir.RegOperand(c), ir.RegOperand(dst)})
		return nil
	}
}
