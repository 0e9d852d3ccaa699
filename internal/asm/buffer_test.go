package asm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insinfo/asmjit-sub003/internal/asm"
)

func TestCodeBufferEmit(t *testing.T) {
	b := asm.NewCodeBuffer(0)
	b.Emit8(0x90)
	b.Emit16(0x1234)
	b.Emit32(0xdeadbeef)
	b.Emit64(0x0102030405060708)
	require.Equal(t, []byte{
		0x90,
		0x34, 0x12,
		0xef, 0xbe, 0xad, 0xde,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
	}, b.Bytes())
}

func TestCodeBufferSetAt(t *testing.T) {
	b := asm.NewCodeBuffer(0)
	b.Emit32(0)
	b.Set32At(0, 0xcafebabe)
	require.Equal(t, []byte{0xbe, 0xba, 0xfe, 0xca}, b.Bytes())
}

func TestCodeBufferAlignWithNOPs(t *testing.T) {
	for _, tc := range []struct {
		pre, align, want int
	}{
		{0, 16, 0},
		{1, 16, 15},
		{15, 16, 1},
		{16, 16, 0},
		{3, 4, 1},
	} {
		b := asm.NewCodeBuffer(0)
		for i := 0; i < tc.pre; i++ {
			b.Emit8(0xcc)
		}
		b.AlignWithNOPs(tc.align)
		require.Equal(t, tc.pre+tc.want, b.Len())
		require.Equal(t, 0, b.Len()%tc.align)
	}
}

func TestCodeBufferReset(t *testing.T) {
	b := asm.NewCodeBuffer(0)
	b.Emit32(1)
	b.Reset()
	require.Equal(t, 0, b.Len())
}
