package regalloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/ir"
	"github.com/insinfo/asmjit-sub003/internal/regalloc"
)

func gpConstraints(n int) regalloc.Constraints {
	avail := make([]byte, n)
	for i := range avail {
		avail[i] = byte(i)
	}
	return regalloc.Constraints{
		Available: map[asm.RegType][]byte{asm.RegTypeGP: avail},
		SlotSize:  8,
	}
}

// buildUse appends an Inst node referencing vr as a register operand.
func buildUse(c *ir.Cursor, vr *ir.VirtReg) {
	c.AppendInst(0, []ir.Operand{ir.RegOperand(vr.Register())})
}

func TestAllocatorSpillsFurthestEndOnExhaustion(t *testing.T) {
	// Intervals v0=[0,10], v1=[2,12], v2=[4,6] with 2 GP regs. Per the
	// faithfully-implemented pass 5 ("the interval in active ∪ {I} with
	// the greatest end ... if the candidate is not I, evict it and
	// transfer its physical id to I"), v1 has the furthest end (12) when
	// v2 arrives, so v1 is evicted and v2 inherits its register; v0 is
	// untouched throughout. See DESIGN.md for why this differs from the
	// illustrative table in spec.md §8, which is internally inconsistent
	// with spec.md §4.3's own prose.
	b := ir.NewBuilder()
	pool := ir.NewVirtRegPool()
	v0 := pool.New(asm.RegTypeGP, asm.Width64, "v0")
	v1 := pool.New(asm.RegTypeGP, asm.Width64, "v1")
	v2 := pool.New(asm.RegTypeGP, asm.Width64, "v2")

	c := b.NewCursor()
	// positions: each Inst consumes (pos,pos+1), starting at 0.
	buildUse(&c, v0) // pos 0
	buildUse(&c, v1) // pos 2
	buildUse(&c, v2) // pos 4
	// pad so that v2's interval ends at 6, v0 ends at 10, v1 ends at 12
	c.AppendInst(0, []ir.Operand{ir.RegOperand(v2.Register())}) // pos 6
	c.AppendInst(0, nil)                                        // pos 8
	c.AppendInst(0, []ir.Operand{ir.RegOperand(v0.Register())}) // pos 10
	c.AppendInst(0, []ir.Operand{ir.RegOperand(v1.Register())}) // pos 12

	alloc := regalloc.New(gpConstraints(2))
	res, err := alloc.Allocate(b, pool)
	require.NoError(t, err)

	require.True(t, v0.HasPhysID)
	require.Equal(t, byte(0), v0.AssignedPhysID)
	require.True(t, v2.HasPhysID)
	require.Equal(t, byte(1), v2.AssignedPhysID)
	require.True(t, v1.Spilled)
	require.Len(t, res.Slots, 1)
	require.Equal(t, 0, res.Slots[0].Index)
}

func TestAllocatorExpiresAndReuses(t *testing.T) {
	b := ir.NewBuilder()
	pool := ir.NewVirtRegPool()
	v0 := pool.New(asm.RegTypeGP, asm.Width64, "v0")
	v1 := pool.New(asm.RegTypeGP, asm.Width64, "v1")

	c := b.NewCursor()
	buildUse(&c, v0) // pos 0, v0 range [0,0]
	c.AppendInst(0, nil)
	buildUse(&c, v1) // pos 4, v1 range [4,4] — starts after v0 expires

	alloc := regalloc.New(gpConstraints(1))
	_, err := alloc.Allocate(b, pool)
	require.NoError(t, err)

	require.True(t, v0.HasPhysID)
	require.True(t, v1.HasPhysID)
	require.Equal(t, byte(0), v0.AssignedPhysID)
	require.Equal(t, byte(0), v1.AssignedPhysID)
}

func TestAllocatorUnknownVirtRegFails(t *testing.T) {
	b := ir.NewBuilder()
	pool := ir.NewVirtRegPool()
	other := ir.NewVirtRegPool()
	stray := other.New(asm.RegTypeGP, asm.Width64, "stray")

	c := b.NewCursor()
	c.AppendInst(0, []ir.Operand{ir.RegOperand(stray.Register())})

	alloc := regalloc.New(gpConstraints(4))
	_, err := alloc.Allocate(b, pool)
	require.Error(t, err)
}

func gpConstraintsWithScratch(n, scratch int) regalloc.Constraints {
	c := gpConstraints(n)
	pool := make([]byte, scratch)
	for i := range pool {
		pool[i] = byte(n + i)
	}
	c.Scratch = map[asm.RegType][]byte{asm.RegTypeGP: pool}
	return c
}

func TestAllocatorPlansReloadAndStoreForEverySpilledUse(t *testing.T) {
	// Same interval shape as TestAllocatorSpillsFurthestEndOnExhaustion: v1
	// ends up Spilled. With a reserved Scratch pool configured, each of v1's
	// two recorded uses (pos 2 and pos 12) should produce its own
	// reload-before/store-after PlannedMove pair through the scratch
	// register, rather than v1 resolving to a bare memory operand wherever
	// it's referenced.
	b := ir.NewBuilder()
	pool := ir.NewVirtRegPool()
	v0 := pool.New(asm.RegTypeGP, asm.Width64, "v0")
	v1 := pool.New(asm.RegTypeGP, asm.Width64, "v1")
	v2 := pool.New(asm.RegTypeGP, asm.Width64, "v2")

	c := b.NewCursor()
	buildUse(&c, v0)                                             // pos 0
	buildUse(&c, v1)                                             // pos 2
	buildUse(&c, v2)                                              // pos 4
	c.AppendInst(0, []ir.Operand{ir.RegOperand(v2.Register())})   // pos 6
	c.AppendInst(0, nil)                                          // pos 8
	c.AppendInst(0, []ir.Operand{ir.RegOperand(v0.Register())})   // pos 10
	c.AppendInst(0, []ir.Operand{ir.RegOperand(v1.Register())})   // pos 12

	alloc := regalloc.New(gpConstraintsWithScratch(2, 1))
	res, err := alloc.Allocate(b, pool)
	require.NoError(t, err)
	require.True(t, v1.Spilled)

	require.Len(t, res.MovePlans, 1)
	moves := res.MovePlans[0].Moves
	require.Len(t, moves, 4)

	var reloadPositions, storePositions []uint32
	for _, mv := range moves {
		require.Equal(t, asm.VRegID(2), mv.WorkReg.VRegID)
		require.Equal(t, byte(2), func() byte {
			if mv.FromSlot {
				return mv.DstPhys
			}
			return mv.SrcPhys
		}())
		if mv.FromSlot {
			reloadPositions = append(reloadPositions, mv.AtPos)
		}
		if mv.ToSlot {
			storePositions = append(storePositions, mv.AtPos)
		}
	}
	require.ElementsMatch(t, []uint32{2, 12}, reloadPositions)
	require.ElementsMatch(t, []uint32{2, 12}, storePositions)
}

func TestAllocatorScratchExhaustedWhenTooManySpilledOperandsCollide(t *testing.T) {
	// Three work-regs, one physical register available: only one of them
	// can end up Allocated, so at least two are Spilled, and all three are
	// referenced together by the instruction at pos 6 — whichever two lose
	// out both need a reload at that exact position. With only one scratch
	// register reserved the pool can't hold two simultaneous reloads, so
	// allocation must fail with ScratchExhausted rather than silently
	// reusing one scratch register for both.
	b := ir.NewBuilder()
	pool := ir.NewVirtRegPool()
	v0 := pool.New(asm.RegTypeGP, asm.Width64, "v0")
	v1 := pool.New(asm.RegTypeGP, asm.Width64, "v1")
	v2 := pool.New(asm.RegTypeGP, asm.Width64, "v2")

	c := b.NewCursor()
	buildUse(&c, v0) // pos 0
	buildUse(&c, v1) // pos 2
	buildUse(&c, v2) // pos 4
	c.AppendInst(0, []ir.Operand{
		ir.RegOperand(v0.Register()), ir.RegOperand(v1.Register()), ir.RegOperand(v2.Register()),
	}) // pos 6: all three alive together

	alloc := regalloc.New(gpConstraintsWithScratch(1, 1))
	_, err := alloc.Allocate(b, pool)
	require.Error(t, err)
}

func TestAllocatorLoopExtendsLiveness(t *testing.T) {
	// v0 is defined before the loop and last referenced inside the loop
	// body, before the back-edge jump; without loop extension its LastUse
	// would sit before the jump and it would wrongly expire mid-loop.
	b := ir.NewBuilder()
	pool := ir.NewVirtRegPool()
	v0 := pool.New(asm.RegTypeGP, asm.Width64, "v0")
	v1 := pool.New(asm.RegTypeGP, asm.Width64, "v1")

	labels := asm.NewLabelManager()
	loopTop := labels.NewLabel("loop")

	c := b.NewCursor()
	buildUse(&c, v0)                 // pos 0: def of v0
	c.AppendLabel(loopTop)           // loop header, recorded at pos 2
	buildUse(&c, v0)                 // pos 2: v0's last reference, inside the loop body
	buildUse(&c, v1)                 // pos 4: body use
	c.AppendInst(0, []ir.Operand{ir.LabelOperand(loopTop)}) // pos 6: backward jump

	alloc := regalloc.New(gpConstraints(2))
	res, err := alloc.Allocate(b, pool)
	require.NoError(t, err)
	require.True(t, v0.HasPhysID)
	require.True(t, v1.HasPhysID)
	require.Equal(t, uint32(6), res.WorkRegs[v0.ID].LastUse)
}
