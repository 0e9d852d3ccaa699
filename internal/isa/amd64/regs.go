// Package amd64 implements the x86-64 instruction-ID table and machine
// encoder: REX/VEX prefix synthesis, ModR/M+SIB+displacement encoding,
// and label-relative fixups.
package amd64

import "github.com/insinfo/asmjit-sub003/internal/asm"

// GP physical encodings, matching the Intel SDM's register numbering.
const (
	RAX byte = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// XMM/YMM/ZMM share the same 0..31 encoding space; the width is carried by
// the OperandSignature, not the register identity.
const (
	XMM0 byte = iota
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
)

// NeedsRexFor8Bit flags the "always needs REX" registers (SPL, BPL, SIL,
// DIL) because their low-encoding (4..7) collides with AH/CH/DH/BH in 8-bit
// addressing without a REX prefix.
var NeedsRexFor8Bit = map[byte]bool{4: true, 5: true, 6: true, 7: true}

// GP returns a physical GP Register for the given encoding.
func GP(enc byte) asm.Register { return asm.NewPhysical(asm.RegTypeGP, enc) }

// Vec returns a physical vector Register (XMM/YMM/ZMM alias) for the given
// encoding.
func Vec(enc byte) asm.Register { return asm.NewPhysical(asm.RegTypeVec, enc) }

// Mask returns a physical mask (k0..k7) Register for the given encoding.
func Mask(enc byte) asm.Register { return asm.NewPhysical(asm.RegTypeMask, enc) }

// AllocatableGP lists the GP registers available to the allocator in
// smallest-index-first preference order, RSP/RBP excluded (frame pointer
// and stack pointer are reserved).
var AllocatableGP = []byte{RAX, RCX, RDX, RBX, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15}

// AllocatableVec lists XMM0..XMM15.
var AllocatableVec = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

// CalleeSavedGPSysV is the sysv_amd64 callee-saved GP subset (RBX and the R12-15
// range; RBP/RSP are handled by the prologue/epilogue directly).
var CalleeSavedGPSysV = []byte{RBX, R12, R13, R14, R15}

// CalleeSavedVecWin64 is the win64 callee-saved vector subset (XMM6-15).
var CalleeSavedVecWin64 = []byte{6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
