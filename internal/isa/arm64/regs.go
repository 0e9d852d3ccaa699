package arm64

import "github.com/insinfo/asmjit-sub003/internal/asm"

// GP physical encodings X0..X30, plus the zero register XZR aliased onto 31
// (never allocatable) and SP handled separately by the prologue/epilogue.
const (
	X0 byte = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16
	X17
	X18
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	X29 // frame pointer (FP)
	X30 // link register (LR)
	XZR
)

// V0..V31 share the same 0..31 encoding space as NEON/FP vector registers.
const (
	V0 byte = iota
	V1
	V2
	V3
	V4
	V5
	V6
	V7
)

// GP returns a physical GP Register for the given encoding.
func GP(enc byte) asm.Register { return asm.NewPhysical(asm.RegTypeGP, enc) }

// Vec returns a physical NEON/FP vector Register for the given encoding.
func Vec(enc byte) asm.Register { return asm.NewPhysical(asm.RegTypeVec, enc) }

// AllocatableGP lists X0..X28 in smallest-index-first preference order;
// X29 (FP), X30 (LR), and XZR are reserved and excluded, matching AAPCS64.
var AllocatableGP = []byte{X0, X1, X2, X3, X4, X5, X6, X7, X8, X9, X10, X11, X12, X13, X14, X15, X16, X17, X18, X19, X20, X21, X22, X23, X24, X25, X26, X27, X28}

// AllocatableVec lists V0..V31's allocatable range; V8-V15 are callee-saved
// (only the low 64 bits) and the rest caller-saved, per AAPCS64.
var AllocatableVec = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31}

// CalleeSavedGP is the AAPCS64 callee-saved GP subset X19-X28.
var CalleeSavedGP = []byte{X19, X20, X21, X22, X23, X24, X25, X26, X27, X28}

// CalleeSavedVec is the AAPCS64 callee-saved vector subset V8-V15 (low 64
// bits only; the lowering pass never relies on the upper bits surviving a
// call, matching the ABI's "only the bottom 64 bits of V8-V15" rule).
var CalleeSavedVec = []byte{8, 9, 10, 11, 12, 13, 14, 15}
