// Package unicompiler implements the cross-architecture façade (§4.5):
// UniCompiler lowers abstract vector/scalar verbs to target-specific
// instruction nodes, manages CPU-feature-driven instruction selection,
// vector constant materialisation, and function-prologue hooks. It is the
// only package client code is expected to import directly; internal/asm,
// internal/ir, internal/regalloc and internal/isa/* are its collaborators.
package unicompiler

import (
	"github.com/insinfo/asmjit-sub003/internal/ir"
	"github.com/insinfo/asmjit-sub003/internal/isa/amd64"
	"github.com/insinfo/asmjit-sub003/internal/isa/arm64"
)

// Arch selects the target instruction set a UniCompiler lowers to.
type Arch byte

const (
	ArchAMD64 Arch = iota
	ArchARM64
)

func (a Arch) String() string {
	if a == ArchARM64 {
		return "arm64"
	}
	return "amd64"
}

// FMAddOpBehavior dictates how mAddF32(d,a,b,c) compiles, per spec §4.5.
type FMAddOpBehavior byte

const (
	// NoFMA lowers to a separate multiply then add (mul;add).
	NoFMA FMAddOpBehavior = iota
	// FMAStoreToAny lowers to a single fused instruction that may write to
	// any of the three source registers (x86's vfmadd213ps: d can alias a
	// or b without an extra move).
	FMAStoreToAny
	// FMAStoreToAccumulator lowers to a fused instruction that always
	// accumulates into its destination register (AArch64's FMLA requires d
	// preloaded with the accumulator c before the instruction executes).
	FMAStoreToAccumulator
)

// ScalarOpBehavior selects whether a scalar vector op zeroes or preserves
// the untouched lanes of the destination register, a cross-architecture
// parity knob per spec §4.5.
type ScalarOpBehavior byte

const (
	// ScalarZerosRestOfDst matches x86's VEX-encoded scalar forms, which
	// zero the upper bits of the destination register.
	ScalarZerosRestOfDst ScalarOpBehavior = iota
	// ScalarPreservesRestOfDst matches legacy SSE scalar forms and
	// AArch64's FP/NEON scalar forms, which leave the rest of the
	// destination register untouched.
	ScalarPreservesRestOfDst
)

// Config is the target and capability configuration passed to
// New: target arch, calling convention, available CPU features,
// and the stack-check toggle, mirroring a compiler-config struct passed
// once at construction rather than threaded through every call.
type Config struct {
	Arch Arch
	CallConv ir.CallConv

	AMD64Features amd64.Feature
	ARM64Features arm64.Feature

	FMAddBehavior   FMAddOpBehavior
	ScalarBehavior  ScalarOpBehavior

	// StackCheckEnabled records whether the caller wants a prologue guard
	// comparing the stack pointer against a low-water mark. Nothing in this
	// module reads it: AddFunc emits no guard either way.
	StackCheckEnabled bool
}

// DefaultAMD64Config returns a Config targeting x86-64/SysV with every
// baseline-plus-AVX2/FMA feature enabled, a reasonable default for tests
// and the cmd/xjitdump inspector.
func DefaultAMD64Config() Config {
	return Config{
		Arch:     ArchAMD64,
		CallConv: ir.CConvSysV,
		AMD64Features: amd64.FeatureSSE2 | amd64.FeatureSSE3 | amd64.FeatureSSSE3 |
			amd64.FeatureSSE41 | amd64.FeatureSSE42 | amd64.FeatureAVX | amd64.FeatureAVX2 |
			amd64.FeatureFMA,
		FMAddBehavior:  FMAStoreToAny,
		ScalarBehavior: ScalarZerosRestOfDst,
	}
}

// DefaultARM64Config returns a Config targeting AAPCS64 with NEON/FP/FMA.
func DefaultARM64Config() Config {
	return Config{
		Arch:           ArchARM64,
		CallConv:       ir.CConvAAPCS64,
		ARM64Features:  arm64.FeatureNEON | arm64.FeatureFP | arm64.FeatureFMA,
		FMAddBehavior:  FMAStoreToAccumulator,
		ScalarBehavior: ScalarPreservesRestOfDst,
	}
}
