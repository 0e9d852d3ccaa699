package unicompiler_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/ir"
	"github.com/insinfo/asmjit-sub003/internal/isa/amd64"
	"github.com/insinfo/asmjit-sub003/internal/xjiterr"
	"github.com/insinfo/asmjit-sub003/unicompiler"
)

func TestAddU32AVXScenarioSelectsVpaddd(t *testing.T) {
	// Mirrors the concrete end-to-end scenario: two xmm inputs, an AVX
	// target, addU32 should select the three-operand VEX form.
	u := unicompiler.New(unicompiler.DefaultAMD64Config())
	require.NoError(t, u.AddFunc(ir.FuncSignature{Name: "add", ArgVec: 2, RetVec: 1}))

	dst := u.NewXMM("dst").Register()
	a := u.NewXMM("a").Register()
	b := u.NewXMM("b").Register()
	require.NoError(t, u.AddU32(dst, a, b, asm.Width128))
	require.NoError(t, u.EndFunc())

	res, err := u.Finalize()
	require.NoError(t, err)
	require.NoError(t, u.WriteBack(res))

	var found bool
	u.Builder().ForEach(func(_ ir.NodeID, n *ir.Node) {
		if n.Kind == ir.NodeInst && n.InstID == amd64.VPADDD {
			found = true
			require.Len(t, n.Operands, 3)
			for _, op := range n.Operands {
				require.True(t, op.Reg.IsPhysical())
			}
		}
	})
	require.True(t, found, "expected a VPADDD node after writeback")
}

func TestAddU32FallsBackToLegacyPaddWithoutAVX(t *testing.T) {
	cfg := unicompiler.DefaultAMD64Config()
	cfg.AMD64Features = amd64.FeatureSSE2 // no AVX
	u := unicompiler.New(cfg)
	require.NoError(t, u.AddFunc(ir.FuncSignature{Name: "add", ArgVec: 2, RetVec: 1}))

	dst := u.NewXMM("dst").Register()
	a := u.NewXMM("a").Register()
	b := u.NewXMM("b").Register()
	require.NoError(t, u.AddU32(dst, a, b, asm.Width128))
	require.NoError(t, u.EndFunc())

	var sawPADDD bool
	u.Builder().ForEach(func(_ ir.NodeID, n *ir.Node) {
		if n.Kind == ir.NodeInst && n.InstID == amd64.PADDD {
			sawPADDD = true
		}
	})
	require.True(t, sawPADDD)
}

func TestBroadcastU64RequiresAVX2(t *testing.T) {
	cfg := unicompiler.DefaultAMD64Config()
	cfg.AMD64Features = amd64.FeatureSSE2
	u := unicompiler.New(cfg)
	require.NoError(t, u.AddFunc(ir.FuncSignature{Name: "bcast"}))

	dst := u.NewXMM("dst").Register()
	src := u.NewXMM("src").Register()
	err := u.BroadcastU64(dst, src, asm.Width128)
	require.Error(t, err)
	require.True(t, xjiterr.OfKind(err, xjiterr.KindUnsupportedOp))
}

func TestPoisonedCompilerRejectsFurtherCalls(t *testing.T) {
	cfg := unicompiler.DefaultAMD64Config()
	cfg.AMD64Features = 0 // nothing available: cmpEqU8's 256-bit table has no baseline rung
	u := unicompiler.New(cfg)
	require.NoError(t, u.AddFunc(ir.FuncSignature{Name: "f"}))

	dst := u.NewYMM("dst").Register()
	a := u.NewYMM("a").Register()
	b := u.NewYMM("b").Register()
	err := u.CmpEqU8(dst, a, b, asm.Width256)
	require.Error(t, err)
	require.True(t, xjiterr.OfKind(err, xjiterr.KindUnsupportedOp))

	// Any subsequent call must now report KindPoisoned instead of doing
	// partial work, per the compiler's poisoned-state propagation policy.
	_, err = u.NewLabel("x")
	require.Error(t, err)
	require.True(t, xjiterr.OfKind(err, xjiterr.KindPoisoned))

	err = u.EndFunc()
	require.Error(t, err)
	require.True(t, xjiterr.OfKind(err, xjiterr.KindPoisoned))
}

func TestMAddF32NoFMAFallsBackToMulAdd(t *testing.T) {
	cfg := unicompiler.DefaultAMD64Config()
	cfg.FMAddBehavior = unicompiler.NoFMA
	u := unicompiler.New(cfg)
	require.NoError(t, u.AddFunc(ir.FuncSignature{Name: "madd"}))

	dst := u.NewXMM("dst").Register()
	a := u.NewXMM("a").Register()
	b := u.NewXMM("b").Register()
	c := u.NewXMM("c").Register()
	require.NoError(t, u.MAddF32(dst, a, b, c, asm.Width128))

	var sawMul, sawAdd, sawFMA bool
	u.Builder().ForEach(func(_ ir.NodeID, n *ir.Node) {
		switch n.InstID {
		case amd64.MULPS:
			sawMul = true
		case amd64.ADDPS:
			sawAdd = true
		case amd64.VFMADD213PS, amd64.VFMADD213PSY:
			sawFMA = true
		}
	})
	require.True(t, sawMul)
	require.True(t, sawAdd)
	require.False(t, sawFMA)
}

func TestMAddF32StoreToAnyUsesFusedInstruction(t *testing.T) {
	u := unicompiler.New(unicompiler.DefaultAMD64Config()) // FMAStoreToAny by default
	require.NoError(t, u.AddFunc(ir.FuncSignature{Name: "madd"}))

	dst := u.NewXMM("dst").Register()
	a := u.NewXMM("a").Register()
	b := u.NewXMM("b").Register()
	c := u.NewXMM("c").Register()
	require.NoError(t, u.MAddF32(dst, a, b, c, asm.Width128))

	var sawFMA bool
	u.Builder().ForEach(func(_ ir.NodeID, n *ir.Node) {
		if n.InstID == amd64.VFMADD213PS {
			sawFMA = true
		}
	})
	require.True(t, sawFMA)
}

func TestCvtTruncF32ToI32RejectsSwappedOperandGroups(t *testing.T) {
	u := unicompiler.New(unicompiler.DefaultAMD64Config())
	require.NoError(t, u.AddFunc(ir.FuncSignature{Name: "cvt"}))

	gp := u.NewGP32("gp").Register()
	vec := u.NewXMM("vec").Register()
	err := u.CvtTruncF32ToI32(vec, gp) // swapped: dst must be GP, src must be vec
	require.Error(t, err)
	require.True(t, xjiterr.OfKind(err, xjiterr.KindOperandMismatch))
}

func TestWriteBackDrainsRealReloadAndStoreNodesForOverflowGPRegs(t *testing.T) {
	// More live GP work-regs than the AMD64 config's scratch-adjusted
	// allocatable pool can hold simultaneously forces at least one spill;
	// WriteBack must splice a real MOVQRM reload ahead of its use and a real
	// MOVQRR store after it, not resolve it to a bare memory operand.
	u := unicompiler.New(unicompiler.DefaultAMD64Config())

	// 14 allocatable GP registers minus the 2 reserved as spill scratch
	// leaves 12 available; one more than that, all live together, forces
	// exactly one of them to be evicted and spilled.
	const n = len(amd64.AllocatableGP) - 2 + 1
	vregs := make([]*ir.VirtReg, n)
	for i := 0; i < n; i++ {
		vregs[i] = u.NewGP64(fmt.Sprintf("v%d", i))
	}

	cursor := u.Builder().NewCursor()
	for _, vr := range vregs {
		cursor.AppendInst(0, []ir.Operand{ir.RegOperand(vr.Register())})
	}
	allOps := make([]ir.Operand, 0, n)
	for _, vr := range vregs {
		allOps = append(allOps, ir.RegOperand(vr.Register()))
	}
	cursor.AppendInst(0, allOps) // every work-reg alive together here

	res, err := u.Finalize()
	require.NoError(t, err)
	require.NoError(t, u.WriteBack(res))

	var reloads, stores int
	u.Builder().ForEach(func(_ ir.NodeID, node *ir.Node) {
		switch node.InstID {
		case amd64.MOVQRM:
			reloads++
		case amd64.MOVQRR:
			stores++
		}
	})
	require.Greater(t, reloads, 0)
	require.Equal(t, reloads, stores)

	// No virtual register Operand should survive writeback.
	u.Builder().ForEach(func(_ ir.NodeID, node *ir.Node) {
		for _, op := range node.Operands {
			if op.Kind == asm.OperandReg {
				require.False(t, op.Reg.IsVirtual())
			}
		}
	})
}

func TestWriteBackRejectsSpilledWiderThan128BitVector(t *testing.T) {
	// A spilled 256-bit vector work-reg has no reload/store lowering (see
	// spillInstAMD64): this must surface as a clear KindUnsupportedOp error
	// rather than silently reloading just its low 128 bits through MOVAPS.
	u := unicompiler.New(unicompiler.DefaultAMD64Config())

	// Same one-over-capacity shape as the GP overflow test above: 16
	// allocatable vector registers minus 2 reserved scratch leaves 14
	// available, so 15 live together forces exactly one spill.
	const n = len(amd64.AllocatableVec) - 2 + 1
	vregs := make([]*ir.VirtReg, n)
	for i := 0; i < n; i++ {
		vregs[i] = u.NewYMM(fmt.Sprintf("v%d", i))
	}

	cursor := u.Builder().NewCursor()
	for _, vr := range vregs {
		cursor.AppendInst(0, []ir.Operand{ir.RegOperand(vr.Register())})
	}
	allOps := make([]ir.Operand, 0, n)
	for _, vr := range vregs {
		allOps = append(allOps, ir.RegOperand(vr.Register()))
	}
	cursor.AppendInst(0, allOps)

	res, err := u.Finalize()
	require.NoError(t, err)

	err = u.WriteBack(res)
	require.Error(t, err)
	require.True(t, xjiterr.OfKind(err, xjiterr.KindUnsupportedOp))
}
