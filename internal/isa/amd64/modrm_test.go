package amd64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/isa/amd64"
)

func TestEncodeRegMemBaseOnlyZeroDisp(t *testing.T) {
	enc := amd64.EncodeRegMem(amd64.GP(amd64.RAX), asm.NewMemory(amd64.GP(amd64.RCX), 0))
	require.Equal(t, byte(0x00<<6|0<<3|1), enc.ModRM) // mod=00, reg=rax(0), rm=rcx(1)
	require.False(t, enc.HasSIB)
	require.Equal(t, 0, enc.DispBytes)
}

func TestEncodeRegMemRBPZeroDispForcesDisp8(t *testing.T) {
	// RBP/R13 as base with mod=00 means "no base, disp32" in the ISA, so a
	// genuine [rbp+0] access must use mod=01 (disp8) instead.
	enc := amd64.EncodeRegMem(amd64.GP(amd64.RAX), asm.NewMemory(amd64.GP(amd64.RBP), 0))
	require.Equal(t, byte(0x01<<6|0<<3|5), enc.ModRM)
	require.Equal(t, 1, enc.DispBytes)
	require.Equal(t, int32(0), enc.Disp)
}

func TestEncodeRegMemRSPForcesSIB(t *testing.T) {
	// RSP/R12 as a base always requires a SIB byte: rm=100 is reserved to
	// mean "SIB follows", so it cannot address RSP directly via ModR/M.rm.
	enc := amd64.EncodeRegMem(amd64.GP(amd64.RAX), asm.NewMemory(amd64.GP(amd64.RSP), 8))
	require.True(t, enc.HasSIB)
	require.Equal(t, byte(0x01<<6|0<<3|4), enc.ModRM)
	require.Equal(t, byte(0<<6|0x04<<3|4), enc.SIB) // no index, base=rsp
	require.Equal(t, 1, enc.DispBytes)
}

func TestEncodeRegMemWithScaledIndex(t *testing.T) {
	mem := asm.NewMemory(amd64.GP(amd64.RBX), 0x100).WithIndex(amd64.GP(amd64.RSI), 4)
	enc := amd64.EncodeRegMem(amd64.GP(amd64.RCX), mem)
	require.True(t, enc.HasSIB)
	require.Equal(t, byte(2<<6|loRegExported(amd64.RSI)<<3|loRegExported(amd64.RBX)), enc.SIB)
	require.Equal(t, 4, enc.DispBytes) // 0x100 doesn't fit in disp8
}

func TestEncodeRegMemAbsolute(t *testing.T) {
	enc := amd64.EncodeRegMem(amd64.GP(amd64.RDX), asm.Memory{Disp: 0x2000})
	require.True(t, enc.HasSIB)
	require.Equal(t, byte(0x00<<6|loRegExported(amd64.RDX)<<3|4), enc.ModRM)
	require.Equal(t, byte(0<<6|0x04<<3|5), enc.SIB)
	require.Equal(t, int32(0x2000), enc.Disp)
	require.Equal(t, 4, enc.DispBytes)
}

func TestEncodeRegRegExtendedSetsRex(t *testing.T) {
	enc := amd64.EncodeRegReg(amd64.GP(amd64.R8), amd64.GP(amd64.R15))
	require.True(t, enc.Rex.R)
	require.True(t, enc.Rex.B)
}

func loRegExported(enc byte) byte { return enc & 0x07 }
