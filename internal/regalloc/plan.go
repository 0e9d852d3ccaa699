package regalloc

import "github.com/insinfo/asmjit-sub003/internal/asm"

// PlannedMove is one entry in the move plan produced by pass 5/6: either a
// work-reg returning from its spill slot to a physical register (FromSlot),
// a work-reg being written back out to its spill slot (ToSlot), or a plain
// register-to-register move (the scan itself plans only slot-facing moves,
// and with no reserved Scratch pool it plans none). FromSlot and ToSlot are
// mutually exclusive.
// Pass 6 rewrites pairs of plain moves that exchange two physical registers
// into a single Swap; slot-facing moves are never swap candidates.
type PlannedMove struct {
	WorkReg  *RAWorkReg
	SrcPhys  byte
	DstPhys  byte
	FromSlot bool // true if SrcPhys is meaningless because the source is a spill slot
	ToSlot   bool // true if DstPhys is meaningless because the destination is a spill slot
	AtPos    uint32
}

// PlannedSwap is the result of coalescing two PlannedMoves of the form
// (a->b),(b->a). GP swaps lower to a single xchg; vector swaps lower to
// three moves via a scratch register.
type PlannedSwap struct {
	RegType  asm.RegType
	A, B     byte
	WorkRegA *RAWorkReg
	WorkRegB *RAWorkReg
}

// MovePlan is the drain-ordered output of pass 6: swaps first, then the
// remaining (non-swap) moves, matching the spec's emission order.
type MovePlan struct {
	Swaps []PlannedSwap
	Moves []PlannedMove
}

// buildMovePlan coalesces move-pairs (a->b, b->a) of the same RegType into
// swaps, leaving every other move untouched. Coalescing is a single linear
// pass: a move is eligible to pair with at most one other move.
func buildMovePlan(raw []PlannedMove, regType asm.RegType) MovePlan {
	used := make([]bool, len(raw))
	var plan MovePlan
	for i := range raw {
		if used[i] || raw[i].FromSlot || raw[i].ToSlot {
			continue
		}
		for j := i + 1; j < len(raw); j++ {
			if used[j] || raw[j].FromSlot || raw[j].ToSlot {
				continue
			}
			if raw[i].SrcPhys == raw[j].DstPhys && raw[i].DstPhys == raw[j].SrcPhys {
				used[i], used[j] = true, true
				plan.Swaps = append(plan.Swaps, PlannedSwap{
					RegType: regType, A: raw[i].SrcPhys, B: raw[i].DstPhys,
					WorkRegA: raw[i].WorkReg, WorkRegB: raw[j].WorkReg,
				})
				break
			}
		}
	}
	for i := range raw {
		if !used[i] {
			plan.Moves = append(plan.Moves, raw[i])
		}
	}
	return plan
}
