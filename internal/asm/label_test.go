package asm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/xjiterr"
)

func TestLabelManagerBindAndResolve(t *testing.T) {
	m := asm.NewLabelManager()
	l := m.NewLabel("loop")

	_, bound := m.Resolve(l)
	require.False(t, bound)

	require.NoError(t, m.Bind(l, 42))
	off, bound := m.Resolve(l)
	require.True(t, bound)
	require.Equal(t, uint32(42), off)
}

func TestLabelManagerDoubleBindFails(t *testing.T) {
	m := asm.NewLabelManager()
	l := m.NewLabel("")
	require.NoError(t, m.Bind(l, 1))
	err := m.Bind(l, 2)
	require.Error(t, err)
	require.True(t, xjiterr.OfKind(err, xjiterr.KindAlreadyBound))
}

func TestLabelManagerResolveAllRel32(t *testing.T) {
	m := asm.NewLabelManager()
	target := m.NewLabel("target")

	buf := asm.NewCodeBuffer(0)
	// Simulate a call instruction whose rel32 immediate sits at offset 1.
	buf.Emit8(0xe8)
	relocOffset := uint32(buf.Len())
	buf.Emit32(0)

	m.RecordRelocation(asm.RelocRel32, relocOffset, target, 0)
	require.NoError(t, m.Bind(target, 100))
	require.NoError(t, m.ResolveAll(buf))

	got := int32(buf.Bytes()[1]) | int32(buf.Bytes()[2])<<8 | int32(buf.Bytes()[3])<<16 | int32(buf.Bytes()[4])<<24
	want := int32(100) - int32(relocOffset+4)
	require.Equal(t, want, got)
}

func TestLabelManagerResolveAllUnboundFails(t *testing.T) {
	m := asm.NewLabelManager()
	target := m.NewLabel("never")
	buf := asm.NewCodeBuffer(0)
	buf.Emit32(0)
	m.RecordRelocation(asm.RelocRel32, 0, target, 0)

	err := m.ResolveAll(buf)
	require.Error(t, err)
	require.True(t, xjiterr.OfKind(err, xjiterr.KindUnbound))
}

func TestLabelManagerAbs64(t *testing.T) {
	m := asm.NewLabelManager()
	target := m.NewLabel("")
	buf := asm.NewCodeBuffer(0)
	buf.Emit64(0)
	m.RecordRelocation(asm.RelocAbs64, 0, target, 5)
	require.NoError(t, m.Bind(target, 1000))
	require.NoError(t, m.ResolveAll(buf))

	var got uint64
	for i := 0; i < 8; i++ {
		got |= uint64(buf.Bytes()[i]) << (8 * i)
	}
	require.Equal(t, uint64(1005), got)
}
