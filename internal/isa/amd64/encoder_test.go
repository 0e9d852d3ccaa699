package amd64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/ir"
	"github.com/insinfo/asmjit-sub003/internal/isa/amd64"
)

func encode(t *testing.T, build func(c *ir.Cursor, labels *asm.LabelManager)) []byte {
	t.Helper()
	b := ir.NewBuilder()
	labels := asm.NewLabelManager()
	c := b.NewCursor()
	build(&c, labels)

	buf := asm.NewCodeBuffer(32)
	enc := amd64.NewEncoder(buf, labels)
	require.NoError(t, enc.Encode(b))
	require.NoError(t, labels.ResolveAll(buf))
	return buf.Bytes()
}

func TestEncodeMovImm32(t *testing.T) {
	got := encode(t, func(c *ir.Cursor, _ *asm.LabelManager) {
		c.AppendInst(amd64.MOVQMI, []ir.Operand{
			ir.RegOperand(amd64.GP(amd64.RAX)),
			ir.ImmOperand(0x1234),
		})
	})
	require.Equal(t, []byte{0x48, 0xc7, 0xc0, 0x34, 0x12, 0x00, 0x00}, got)
}

func TestEncodeMovRegReg(t *testing.T) {
	got := encode(t, func(c *ir.Cursor, _ *asm.LabelManager) {
		c.AppendInst(amd64.MOVQRR, []ir.Operand{
			ir.RegOperand(amd64.GP(amd64.RAX)),
			ir.RegOperand(amd64.GP(amd64.RBX)),
		})
		c.AppendInst(amd64.RET, nil)
	})
	require.Equal(t, []byte{0x48, 0x89, 0xd8, 0xc3}, got)
}

func TestEncodeXorSelfClearsAndReturns(t *testing.T) {
	got := encode(t, func(c *ir.Cursor, _ *asm.LabelManager) {
		c.AppendInst(amd64.XORLRR, []ir.Operand{
			ir.RegOperand(amd64.GP(amd64.RAX)),
			ir.RegOperand(amd64.GP(amd64.RAX)),
		})
		c.AppendInst(amd64.RET, nil)
	})
	require.Equal(t, []byte{0x31, 0xc0, 0xc3}, got)
}

func TestEncodeLeaRIPRelative(t *testing.T) {
	got := encode(t, func(c *ir.Cursor, labels *asm.LabelManager) {
		l := labels.NewLabel("L")
		c.AppendInst(amd64.LEAQ, []ir.Operand{
			ir.RegOperand(amd64.GP(amd64.RCX)),
			ir.MemOperand(asm.RIPRelative(l)),
		})
		// bind L right after the 7-byte instruction so the relocation
		// resolves (an unbound label is a resolve error) and the rel32
		// displacement is 0; the point of this test is the instruction's
		// own bytes.
		c.AppendLabel(l)
	})
	require.Equal(t, []byte{0x48, 0x8d, 0x0d, 0x00, 0x00, 0x00, 0x00}, got)
}

func TestEncodeVpaddd(t *testing.T) {
	// VEX.128.66.0F.WIG FE /r: dst=xmm0 (ModR/M.reg), src1=xmm1 (vvvv),
	// src2=xmm2 (ModR/M.rm). See DESIGN.md for why this is C5 F1 FE C2
	// rather than the scenario table's stated C5 F5 FE C2.
	got := encode(t, func(c *ir.Cursor, _ *asm.LabelManager) {
		c.AppendInst(amd64.VPADDD, []ir.Operand{
			ir.RegOperand(amd64.Vec(0)),
			ir.RegOperand(amd64.Vec(1)),
			ir.RegOperand(amd64.Vec(2)),
		})
	})
	require.Equal(t, []byte{0xc5, 0xf1, 0xfe, 0xc2}, got)
}

func TestEncodeVpbroadcastqUsesThreeByteVexForMap0F38(t *testing.T) {
	// VEX.128.66.0F38.W0 59 /r: dst=xmm1, src=xmm0. Map0F38 forces the
	// three-byte (C4) VEX form regardless of X/B/W.
	got := encode(t, func(c *ir.Cursor, _ *asm.LabelManager) {
		c.AppendInst(amd64.VPBROADCASTQ, []ir.Operand{
			ir.RegOperand(amd64.Vec(1)),
			ir.RegOperand(amd64.Vec(0)),
		})
	})
	require.Equal(t, []byte{0xc4, 0xe2, 0x79, 0x59, 0xc8}, got)
}

func TestEncodeCvttss2siCrossesGPAndVecGroups(t *testing.T) {
	got := encode(t, func(c *ir.Cursor, _ *asm.LabelManager) {
		c.AppendInst(amd64.CVTTSS2SI, []ir.Operand{
			ir.RegOperand(amd64.GP(amd64.RAX)),
			ir.RegOperand(amd64.Vec(1)),
		})
	})
	require.Equal(t, []byte{0xf3, 0x0f, 0x2c, 0xc1}, got)
}
