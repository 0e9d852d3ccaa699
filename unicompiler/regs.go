package unicompiler

import (
	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/ir"
)

// StackVar is the handle minted by NewStack: the size and alignment of a
// block of storage the lowering layer addresses via a base-register VirtReg
// it also owns (no frame space is reserved for it in this package), distinct from a spill StackSlot (which belongs to the
// allocator and is never user-visible).
type StackVar struct {
	Base  *ir.VirtReg
	Size  int32
	Align int32
}

// NewGP32 mints a 32-bit general-purpose virtual register.
func (u *UniCompiler) NewGP32(name string) *ir.VirtReg {
	return u.vregs.New(asm.RegTypeGP, asm.Width32, name)
}

// NewGP64 mints a 64-bit general-purpose virtual register.
func (u *UniCompiler) NewGP64(name string) *ir.VirtReg {
	return u.vregs.New(asm.RegTypeGP, asm.Width64, name)
}

// NewXMM mints a 128-bit vector virtual register.
func (u *UniCompiler) NewXMM(name string) *ir.VirtReg {
	return u.vregs.New(asm.RegTypeVec, asm.Width128, name)
}

// NewYMM mints a 256-bit vector virtual register. Only meaningful on
// ArchAMD64 with AVX/AVX2 available; on ArchARM64 it aliases to the same
// 128-bit NEON register space the selection tables consult.
func (u *UniCompiler) NewYMM(name string) *ir.VirtReg {
	return u.vregs.New(asm.RegTypeVec, asm.Width256, name)
}

// NewZMM mints a 512-bit vector virtual register (AVX-512 only).
func (u *UniCompiler) NewZMM(name string) *ir.VirtReg {
	return u.vregs.New(asm.RegTypeVec, asm.Width512, name)
}

// NewVecWithWidth mints a vector virtual register of an explicit width,
// for callers building width-polymorphic code.
func (u *UniCompiler) NewVecWithWidth(width asm.RegWidth, name string) *ir.VirtReg {
	return u.vregs.New(asm.RegTypeVec, width, name)
}

// NewKMask mints a mask-register virtual register (AVX-512 k0..k7).
func (u *UniCompiler) NewKMask(name string) *ir.VirtReg {
	return u.vregs.New(asm.RegTypeMask, asm.Width64, name)
}

// NewStack mints a GP virtual register the lowering layer treats as the
// base address of a size-byte, align-aligned block and returns it with size
// and align recorded in a StackVar. It reserves no frame space and applies
// no alignment itself.
func (u *UniCompiler) NewStack(size, align int32) StackVar {
	base := u.vregs.New(asm.RegTypeGP, asm.Width64, "stackvar")
	return StackVar{Base: base, Size: size, Align: align}
}
