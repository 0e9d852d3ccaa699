package amd64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/ir"
	"github.com/insinfo/asmjit-sub003/internal/isa/amd64"
)

func TestPeepholeZeroMovBecomesXor(t *testing.T) {
	b := ir.NewBuilder()
	c := b.NewCursor()
	id := c.AppendInst(amd64.MOVQMI, []ir.Operand{
		ir.RegOperand(amd64.GP(amd64.RAX)),
		ir.ImmOperand(0),
	})
	amd64.Peephole(b, id)

	n := b.Node(id)
	require.Equal(t, amd64.XORQRR, n.InstID)
	require.Len(t, n.Operands, 2)
	require.Equal(t, n.Operands[0].Reg, n.Operands[1].Reg)
}

func TestPeepholeRedundantMovIsRemoved(t *testing.T) {
	b := ir.NewBuilder()
	c := b.NewCursor()
	rax := amd64.GP(amd64.RAX)
	id := c.AppendInst(amd64.MOVQRR, []ir.Operand{ir.RegOperand(rax), ir.RegOperand(rax)})
	amd64.Peephole(b, id)

	require.Equal(t, 0, b.Len())
}

func TestPeepholeLeavesDistinctMovAlone(t *testing.T) {
	b := ir.NewBuilder()
	c := b.NewCursor()
	id := c.AppendInst(amd64.MOVQRR, []ir.Operand{
		ir.RegOperand(amd64.GP(amd64.RAX)),
		ir.RegOperand(amd64.GP(amd64.RBX)),
	})
	amd64.Peephole(b, id)

	require.Equal(t, 1, b.Len())
	require.Equal(t, amd64.MOVQRR, b.Node(id).InstID)
	_ = asm.Width64
}
