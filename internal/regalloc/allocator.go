package regalloc

import (
	"fmt"

	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/ir"
	"github.com/insinfo/asmjit-sub003/internal/xjiterr"
)

// Result is the outcome of a successful allocation pass: per-type free
// pools have been drained into VirtReg/RAWorkReg assignments, and the
// stack slots reserved for spills are available for frame-size
// computation.
type Result struct {
	WorkRegs  map[asm.VRegID]*RAWorkReg
	Slots     []*StackSlot
	MovePlans []MovePlan // one per group that has intervals (GP, vec, mask order), even if its Moves is empty
}

// Allocator runs the 6-pass linear scan described in spec §4.3 over a
// Builder's flat node list. It never retries: the first fatal condition
// (ScratchExhausted, InconsistentUse, UnknownVirtReg) aborts the pass.
type Allocator struct {
	constraints Constraints
}

// New returns an Allocator configured with the target's register
// constraints.
func New(c Constraints) *Allocator { return &Allocator{constraints: c} }

// Allocate performs passes 1 through 6 over b, using pool to resolve
// virtual register ids encountered in node operands.
func (a *Allocator) Allocate(b *ir.Builder, pool *ir.VirtRegPool) (*Result, error) {
	work := make(map[asm.VRegID]*RAWorkReg, pool.Len())
	for i := range pool.All() {
		v := &pool.All()[i]
		work[v.ID] = &RAWorkReg{VRegID: v.ID, RegType: v.RegType}
	}

	labelPos, err := a.numberAndRecordUses(b, work)
	if err != nil {
		return nil, err
	}

	if err := a.extendForLoops(b, work, labelPos); err != nil {
		return nil, err
	}

	intervals := a.buildIntervals(work)

	movePlans, slots, err := a.scan(intervals)
	if err != nil {
		return nil, err
	}

	// Write results back onto the VirtReg pool so downstream serialization
	// (the encoder) can resolve virtual operands to concrete registers.
	for i := range pool.All() {
		v := &pool.All()[i]
		wr := work[v.ID]
		v.AssignedPhysID = wr.Phys
		v.HasPhysID = wr.State == Allocated
		v.Spilled = wr.State == Spilled
		if wr.Slot != nil {
			v.SpillOffset = wr.Slot.Offset(a.constraints.SlotSize)
		}
	}

	return &Result{WorkRegs: work, Slots: slots, MovePlans: movePlans}, nil
}

// numberAndRecordUses implements passes 1 (numbering) and 2 (use
// recording) in one walk: each Inst/Invoke node gets the pair (pos, pos+1);
// labels record their pos (without consuming a position) for pass 3's loop
// detection; every virtual-register-referencing operand updates its
// work-reg's FirstUse/LastUse.
func (a *Allocator) numberAndRecordUses(b *ir.Builder, work map[asm.VRegID]*RAWorkReg) (map[asm.LabelID]uint32, error) {
	labelPos := make(map[asm.LabelID]uint32)
	pos := uint32(0)
	var outerErr error
	b.ForEach(func(id ir.NodeID, n *ir.Node) {
		if outerErr != nil {
			return
		}
		switch n.Kind {
		case ir.NodeLabel:
			labelPos[n.LabelID] = pos
			return
		case ir.NodeInst:
			n.Pos = pos
			for _, op := range n.Operands {
				if err := recordOperandUse(op, pos, work); err != nil {
					outerErr = err
					return
				}
			}
			pos += 2
		case ir.NodeInvoke:
			n.Pos = pos
			for _, op := range n.InvokeArgs {
				if err := recordOperandUse(op, pos, work); err != nil {
					outerErr = err
					return
				}
			}
			if err := recordInvokeRet(n.InvokeRet, pos, work); err != nil {
				outerErr = err
				return
			}
			pos += 2
		}
	})
	return labelPos, outerErr
}

// recordInvokeRet records the use of an Invoke node's return operand, which
// §4.3's Pass 2 singles out as the one place this allocator explicitly
// models a "definition" rather than a plain reference: a prior reference to
// the same work-reg (one already recorded at an earlier position) means a
// use was observed before its defining invoke, the fatal condition
// xjiterr.InconsistentUse names. Plain Inst destination operands are not
// distinguished from uses elsewhere in this pass (see DESIGN.md) — this
// check is deliberately scoped to Invoke returns, not a general def/use
// analysis.
func recordInvokeRet(op ir.Operand, pos uint32, work map[asm.VRegID]*RAWorkReg) error {
	if op.Kind != asm.OperandReg || !op.Reg.IsVirtual() {
		return nil
	}
	id := op.Reg.VirtID()
	wr, ok := work[id]
	if !ok {
		return xjiterr.NewAllocError(xjiterr.UnknownVirtReg, fmt.Sprintf("v%d", id))
	}
	if wr.HasUse && wr.FirstUse < pos {
		return xjiterr.NewAllocError(xjiterr.InconsistentUse, fmt.Sprintf("v%d referenced at pos %d precedes its defining invoke at pos %d", id, wr.FirstUse, pos))
	}
	return touch(work, id, pos)
}

func recordOperandUse(op ir.Operand, pos uint32, work map[asm.VRegID]*RAWorkReg) error {
	switch op.Kind {
	case asm.OperandReg:
		if op.Reg.IsVirtual() {
			return touch(work, op.Reg.VirtID(), pos)
		}
	case asm.OperandMem:
		if op.Mem.Base.IsValid() && op.Mem.Base.IsVirtual() {
			if err := touch(work, op.Mem.Base.VirtID(), pos); err != nil {
				return err
			}
		}
		if op.Mem.Index.IsValid() && op.Mem.Index.IsVirtual() {
			if err := touch(work, op.Mem.Index.VirtID(), pos); err != nil {
				return err
			}
		}
	}
	return nil
}

func touch(work map[asm.VRegID]*RAWorkReg, id asm.VRegID, pos uint32) error {
	wr, ok := work[id]
	if !ok {
		return xjiterr.NewAllocError(xjiterr.UnknownVirtReg, fmt.Sprintf("v%d", id))
	}
	if !wr.HasUse {
		wr.FirstUse, wr.LastUse, wr.HasUse = pos, pos, true
	} else {
		if pos < wr.FirstUse {
			wr.FirstUse = pos
		}
		if pos > wr.LastUse {
			wr.LastUse = pos
		}
	}
	if len(wr.Uses) == 0 || wr.Uses[len(wr.Uses)-1] != pos {
		wr.Uses = append(wr.Uses, pos)
	}
	return nil
}

// extendForLoops implements pass 3: a backward label-operand reference
// (a jump whose target label was bound at an earlier position) identifies
// a loop [loopStart,loopEnd]; any work-reg live across loopStart must
// survive the whole loop body.
func (a *Allocator) extendForLoops(b *ir.Builder, work map[asm.VRegID]*RAWorkReg, labelPos map[asm.LabelID]uint32) error {
	var outerErr error
	b.ForEach(func(id ir.NodeID, n *ir.Node) {
		if outerErr != nil || n.Kind != ir.NodeInst {
			return
		}
		for _, op := range n.Operands {
			if op.Kind != asm.OperandLabel {
				continue
			}
			loopStart, ok := labelPos[op.Lbl]
			if !ok || loopStart >= n.Pos {
				continue // forward reference, not a back-edge
			}
			loopEnd := n.Pos
			for _, wr := range work {
				if wr.HasUse && wr.FirstUse < loopStart && wr.LastUse >= loopStart {
					if loopEnd > wr.LastUse {
						wr.LastUse = loopEnd
					}
				}
			}
		}
	})
	return outerErr
}

// buildIntervals implements pass 4: a LiveInterval per work-reg with both
// endpoints set, sorted by Start ascending, ties by End ascending then
// VRegID ascending.
func (a *Allocator) buildIntervals(work map[asm.VRegID]*RAWorkReg) []LiveInterval {
	var intervals []LiveInterval
	for _, wr := range work {
		if !wr.HasUse {
			continue
		}
		iv := LiveInterval{WorkReg: wr, Start: wr.FirstUse, End: wr.LastUse}
		wr.interval = &iv
		intervals = append(intervals, iv)
	}
	sortIntervals(intervals)
	// interval pointers inside RAWorkReg were taken from slice elements
	// before sorting; rebind them to their post-sort location so later
	// lookups (scratch selection) see the canonical copy.
	for i := range intervals {
		intervals[i].WorkReg.interval = &intervals[i]
	}
	return intervals
}

// scan implements pass 5 (allocation) and pass 6 (move plan), one group
// (RegType) at a time.
func (a *Allocator) scan(intervals []LiveInterval) ([]MovePlan, []*StackSlot, error) {
	byGroup := make(map[asm.RegType][]LiveInterval)
	for _, iv := range intervals {
		byGroup[iv.WorkReg.RegType] = append(byGroup[iv.WorkReg.RegType], iv)
	}

	var slots []*StackSlot
	var plans []MovePlan
	nextSlotIndex := 0

	for _, rt := range []asm.RegType{asm.RegTypeGP, asm.RegTypeVec, asm.RegTypeMask} {
		group, groupOK := byGroup[rt]
		if !groupOK {
			continue
		}
		avail, ok := a.constraints.Available[rt]
		if !ok {
			return nil, nil, xjiterr.New(xjiterr.KindAllocError, fmt.Sprintf("no register constraints for group %s", rt))
		}
		freeRegs := newFreePool(avail)
		active := &activeList{}

		for _, iv := range group {
			expired := active.expireBefore(iv.Start)
			for _, e := range expired {
				freeRegs.release(e.WorkReg.Phys)
			}

			if phys, ok := freeRegs.take(); ok {
				wr := iv.WorkReg
				wr.Phys = phys
				wr.State = Allocated
				active.insert(iv)
				continue
			}

			// Pass 5 step 3: spill. Candidate is the interval in
			// active ∪ {iv} with the greatest End in this group,
			// ties broken toward the larger VRegID.
			idx, isIncoming := active.maxEndCandidate(iv)
			if isIncoming {
				// iv itself is the spill candidate: it never gets a
				// physical register.
				slot := &StackSlot{WorkReg: iv.WorkReg, Index: nextSlotIndex, Size: a.constraints.SlotSize}
				nextSlotIndex++
				iv.WorkReg.State = Spilled
				iv.WorkReg.Slot = slot
				slots = append(slots, slot)
				continue
			}
			evicted := active.removeAt(idx)
			slot := &StackSlot{WorkReg: evicted.WorkReg, Index: nextSlotIndex, Size: a.constraints.SlotSize}
			nextSlotIndex++
			freedPhys := evicted.WorkReg.Phys
			evicted.WorkReg.State = Spilled
			evicted.WorkReg.Slot = slot
			slots = append(slots, slot)

			wr := iv.WorkReg
			wr.Phys = freedPhys
			wr.State = Allocated
			active.insert(iv)
		}

		// This allocator builds exactly one LiveInterval per work-reg (pass
		// 4), so a work-reg's State here is its single, final verdict for
		// the whole function — nothing above ever observes a work-reg
		// transition Spilled back to Allocated mid-scan (that would need
		// interval splitting, which this allocator does not do). Reloading
		// a spilled value (see WorkRegState's doc comment) is instead
		// handled uniformly, after the
		// group's Allocated/Spilled verdicts are final, by
		// planSpillAccess: every occurrence of a Spilled work-reg gets its
		// own reload-before/store-after pair through a reserved scratch
		// register, rather than trying to keep it resident in a
		// pool-assigned register for a stretch of its lifetime.
		moves, err := a.planSpillAccess(group, rt)
		if err != nil {
			return nil, nil, err
		}

		plan := buildMovePlan(moves, rt)
		// Vector swaps require a scratch register drawn from the group's
		// free pool; GP swaps lower to xchg and need none. No move this
		// allocator ever plans is a plain register-to-register move (see
		// planSpillAccess), so plan.Swaps is always empty in practice;
		// buildMovePlan's coalescing logic is still real and covered
		// directly by its own unit test.
		if rt != asm.RegTypeGP {
			for range plan.Swaps {
				if _, ok := freeRegs.take(); !ok {
					return nil, nil, xjiterr.NewAllocError(xjiterr.ScratchExhausted, fmt.Sprintf("group %s", rt))
				}
			}
		}
		plans = append(plans, plan)
	}

	return plans, slots, nil
}

// planSpillAccess plans a reload-before/store-after PlannedMove pair, through
// one of the group's reserved Scratch registers, for every recorded use of
// every work-reg group finished the scan Spilled. A group with no Scratch
// configured returns no moves at all — the work-reg's spilled occurrences
// fall back to resolveVirtual's plain frame-relative Memory operand, the
// allocator's original behaviour.
//
// Distinct spilled work-regs referenced by the same instruction (same
// position) must not share a scratch register, so assignment is planned per
// position across the whole group at once rather than per work-reg; a
// position demanding more simultaneous spilled operands than the reserved
// pool size fails with ScratchExhausted — the only place that condition is
// reachable in this allocator.
func (a *Allocator) planSpillAccess(group []LiveInterval, rt asm.RegType) ([]PlannedMove, error) {
	scratch := a.constraints.Scratch[rt]
	if len(scratch) == 0 {
		return nil, nil
	}

	usesByPos := make(map[uint32][]*RAWorkReg)
	var positions []uint32
	for _, iv := range group {
		wr := iv.WorkReg
		if wr.State != Spilled {
			continue
		}
		for _, pos := range wr.Uses {
			if len(usesByPos[pos]) == 0 {
				positions = insertSortedUint32(positions, pos)
			}
			usesByPos[pos] = append(usesByPos[pos], wr)
		}
	}

	var moves []PlannedMove
	for _, pos := range positions {
		regs := usesByPos[pos]
		sortWorkRegsByVRegID(regs)
		if len(regs) > len(scratch) {
			return nil, xjiterr.NewAllocError(xjiterr.ScratchExhausted, fmt.Sprintf("group %s: %d spilled operands at pos %d exceed the %d reserved scratch registers", rt, len(regs), pos, len(scratch)))
		}
		for i, wr := range regs {
			s := scratch[i]
			moves = append(moves, PlannedMove{WorkReg: wr, DstPhys: s, FromSlot: true, AtPos: pos})
			moves = append(moves, PlannedMove{WorkReg: wr, SrcPhys: s, ToSlot: true, AtPos: pos})
		}
	}
	return moves, nil
}

// insertSortedUint32 inserts v into the ascending-sorted positions, matching
// the insertion-sort style used throughout this package for small batches.
func insertSortedUint32(positions []uint32, v uint32) []uint32 {
	i := len(positions)
	positions = append(positions, v)
	for i > 0 && positions[i] < positions[i-1] {
		positions[i], positions[i-1] = positions[i-1], positions[i]
		i--
	}
	return positions
}

// sortWorkRegsByVRegID orders regs ascending by VRegID, giving a
// deterministic scratch-register assignment order for work-regs that
// collide on the same position.
func sortWorkRegsByVRegID(regs []*RAWorkReg) {
	for i := 1; i < len(regs); i++ {
		j := i
		for j > 0 && regs[j].VRegID < regs[j-1].VRegID {
			regs[j], regs[j-1] = regs[j-1], regs[j]
			j--
		}
	}
}
