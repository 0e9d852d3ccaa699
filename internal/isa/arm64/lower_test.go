package arm64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insinfo/asmjit-sub003/internal/ir"
	"github.com/insinfo/asmjit-sub003/internal/isa/arm64"
)

func TestAddRRRAppendsThreeOperandNode(t *testing.T) {
	b := ir.NewBuilder()
	c := b.NewCursor()
	rd, rn, rm := arm64.GP(arm64.X0), arm64.GP(arm64.X1), arm64.GP(arm64.X2)

	id, err := arm64.AddRRR(&c, arm64.ADDX, rd, rn, rm)
	require.NoError(t, err)

	n := b.Node(id)
	require.Equal(t, ir.NodeInst, n.Kind)
	require.Equal(t, arm64.ADDX, n.InstID)
	require.Len(t, n.Operands, 3)
	require.Equal(t, rd, n.Operands[0].Reg)
}

func TestLowerRejectsWrongArity(t *testing.T) {
	b := ir.NewBuilder()
	c := b.NewCursor()
	_, err := arm64.Lower(&c, arm64.RET, []ir.Operand{ir.RegOperand(arm64.GP(arm64.X0))})
	require.Error(t, err)
}

func TestHasFeatureIsSubsetTest(t *testing.T) {
	require.True(t, arm64.HasFeature(arm64.FeatureNEON|arm64.FeatureFMA, arm64.FeatureFMA))
	require.False(t, arm64.HasFeature(arm64.FeatureNEON, arm64.FeatureFMA))
}
