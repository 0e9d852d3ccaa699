package amd64

import "github.com/insinfo/asmjit-sub003/internal/ir"

// Peephole rewrites a just-appended Inst node in place, applying the two
// substitutions named for this architecture: a zero-immediate load becomes
// a self-xor, and a no-op register move is dropped. It is invoked by the
// façade right after emission, never by the encoder itself.
func Peephole(b *ir.Builder, id ir.NodeID) {
	n := b.Node(id)
	if n.Kind != ir.NodeInst {
		return
	}
	switch n.InstID {
	case MOVLMI, MOVQMI:
		if len(n.Operands) == 2 && n.Operands[1].Imm == 0 {
			dst := n.Operands[0].Reg
			wide := n.InstID == MOVQMI
			n.InstID = XORLRR
			if wide {
				n.InstID = XORQRR
			}
			n.Operands = []ir.Operand{ir.RegOperand(dst), ir.RegOperand(dst)}
		}
	case MOVQRR:
		if len(n.Operands) == 2 && n.Operands[0].Reg == n.Operands[1].Reg {
			b.Remove(id)
		}
	}
}
