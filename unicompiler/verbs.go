package unicompiler

import (
	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/xjiterr"
)

// mismatchErr builds a KindOperandMismatch error for a verb's operand-shape
// checks, per §4.5's failure semantics for mismatched register groups.
func mismatchErr(msg string) error {
	return xjiterr.New(xjiterr.KindOperandMismatch, msg)
}

// This file is the public surface for §4.5's "abstract verbs": one method
// per verb the compiler currently lowers, each dispatching to the
// concrete per-architecture lowering in select_amd64.go/select_arm64.go.
// Every method validates operand shape up front (OperandMismatch) before
// touching the node list, and checks the poisoned flag first, matching
// §7's propagation policy.

// AddU32 lowers the UniOpVVV verb "addU32": dst = src1 + src2, 32-bit lanes.
// width selects the vector width (128/256 bit) the caller wants; zero
// value defaults to 128.
func (u *UniCompiler) AddU32(dst, src1, src2 asm.Register, width asm.RegWidth) error {
	if err := u.checkPoisoned(); err != nil {
		return err
	}
	if err := u.requireVec3(dst, src1, src2); err != nil {
		return u.poison(err)
	}
	width = defaultVecWidth(width)
	if u.cfg.Arch == ArchARM64 {
		return u.lowerAddU32ARM64(dst, src1, src2)
	}
	return u.lowerAddU32AMD64(dst, src1, src2, width)
}

// CmpEqU8 lowers the UniOpVVV verb "cmpEqU8": dst = (src1 == src2) ? -1 : 0,
// per byte lane.
func (u *UniCompiler) CmpEqU8(dst, src1, src2 asm.Register, width asm.RegWidth) error {
	if err := u.checkPoisoned(); err != nil {
		return err
	}
	if err := u.requireVec3(dst, src1, src2); err != nil {
		return u.poison(err)
	}
	width = defaultVecWidth(width)
	if u.cfg.Arch == ArchARM64 {
		return u.lowerCmpEqU8ARM64(dst, src1, src2)
	}
	return u.lowerCmpEqU8AMD64(dst, src1, src2, width)
}

// BroadcastU64 lowers the UniOpVV verb "broadcastU64": dst = {src[0]} x N.
func (u *UniCompiler) BroadcastU64(dst, src asm.Register, width asm.RegWidth) error {
	if err := u.checkPoisoned(); err != nil {
		return err
	}
	if err := u.requireVec2(dst, src); err != nil {
		return u.poison(err)
	}
	width = defaultVecWidth(width)
	if u.cfg.Arch == ArchARM64 {
		return u.lowerBroadcastU64ARM64(dst, src)
	}
	return u.lowerBroadcastU64AMD64(dst, src, width)
}

// CvtTruncF32ToI32 lowers the UniOpVV verb "cvtTruncF32ToI32": dst (GP) =
// int32(truncate(src (vec, scalar f32))).
func (u *UniCompiler) CvtTruncF32ToI32(dst, src asm.Register) error {
	if err := u.checkPoisoned(); err != nil {
		return err
	}
	if dst.Type() != asm.RegTypeGP {
		return u.poison(mismatchErr("cvtTruncF32ToI32: dst must be a GP register"))
	}
	if src.Type() != asm.RegTypeVec {
		return u.poison(mismatchErr("cvtTruncF32ToI32: src must be a vector register"))
	}
	if u.cfg.Arch == ArchARM64 {
		return u.lowerCvtTruncF32ToI32ARM64(dst, src)
	}
	return u.lowerCvtTruncF32ToI32AMD64(dst, src)
}

// Load64F64 lowers the UniOpRM verb "load64F64": dst (vec, scalar f64) =
// *mem.
func (u *UniCompiler) Load64F64(dst asm.Register, mem asm.Memory) error {
	if err := u.checkPoisoned(); err != nil {
		return err
	}
	if dst.Type() != asm.RegTypeVec {
		return u.poison(mismatchErr("load64F64: dst must be a vector register"))
	}
	if u.cfg.Arch == ArchARM64 {
		return u.lowerLoad64F64ARM64(dst, mem)
	}
	return u.lowerLoad64F64AMD64(dst, mem)
}

// MAddF32 lowers the UniOpVVVV verb "mAddF32": dst = a*b + c, per the
// configured FMAddOpBehavior.
func (u *UniCompiler) MAddF32(dst, a, b, c asm.Register, width asm.RegWidth) error {
	if err := u.checkPoisoned(); err != nil {
		return err
	}
	if err := u.requireVec3(dst, a, b); err != nil {
		return u.poison(err)
	}
	if c.Type() != asm.RegTypeVec {
		return u.poison(mismatchErr("mAddF32: c must be a vector register"))
	}
	width = defaultVecWidth(width)
	if u.cfg.Arch == ArchARM64 {
		return u.lowerMAddF32ARM64(dst, a, b, c)
	}
	return u.lowerMAddF32AMD64(dst, a, b, c, width)
}

func (u *UniCompiler) requireVec2(a, b asm.Register) error {
	if a.Type() != asm.RegTypeVec || b.Type() != asm.RegTypeVec {
		return mismatchErr("expected vector operands")
	}
	return nil
}

func (u *UniCompiler) requireVec3(a, b, c asm.Register) error {
	if a.Type() != asm.RegTypeVec || b.Type() != asm.RegTypeVec || c.Type() != asm.RegTypeVec {
		return mismatchErr("expected vector operands")
	}
	return nil
}

func defaultVecWidth(w asm.RegWidth) asm.RegWidth {
	if w == 0 {
		return asm.Width128
	}
	return w
}
