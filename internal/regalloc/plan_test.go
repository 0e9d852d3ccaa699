package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insinfo/asmjit-sub003/internal/asm"
)

// TestBuildMovePlanCoalescesSwapPairs exercises buildMovePlan directly with
// synthetic plain register-to-register moves (never produced by this
// allocator's actual scan — see planSpillAccess's doc comment — but the
// coalescing logic itself is real and deserves direct coverage).
func TestBuildMovePlanCoalescesSwapPairs(t *testing.T) {
	wrA := &RAWorkReg{VRegID: 1, RegType: asm.RegTypeGP}
	wrB := &RAWorkReg{VRegID: 2, RegType: asm.RegTypeGP}

	raw := []PlannedMove{
		{WorkReg: wrA, SrcPhys: 0, DstPhys: 1, AtPos: 4},
		{WorkReg: wrB, SrcPhys: 1, DstPhys: 0, AtPos: 4},
	}
	plan := buildMovePlan(raw, asm.RegTypeGP)

	require.Len(t, plan.Swaps, 1)
	require.Empty(t, plan.Moves)
	require.Equal(t, byte(0), plan.Swaps[0].A)
	require.Equal(t, byte(1), plan.Swaps[0].B)
}

// TestBuildMovePlanNeverCoalescesSlotFacingMoves confirms FromSlot/ToSlot
// entries are never treated as swap candidates even when their physical
// encodings would otherwise look like a swap pair — SrcPhys/DstPhys is
// meaningless on the slot side of such a move, so pairing them would be
// nonsense.
func TestBuildMovePlanNeverCoalescesSlotFacingMoves(t *testing.T) {
	wrA := &RAWorkReg{VRegID: 1, RegType: asm.RegTypeGP}
	wrB := &RAWorkReg{VRegID: 2, RegType: asm.RegTypeGP}

	raw := []PlannedMove{
		{WorkReg: wrA, DstPhys: 2, FromSlot: true, AtPos: 4},
		{WorkReg: wrA, SrcPhys: 2, ToSlot: true, AtPos: 4},
		{WorkReg: wrB, DstPhys: 2, FromSlot: true, AtPos: 8},
	}
	plan := buildMovePlan(raw, asm.RegTypeGP)

	require.Empty(t, plan.Swaps)
	require.Len(t, plan.Moves, 3)
}

// TestBuildMovePlanLeavesUnpairedMoveAlone confirms a move with no matching
// reverse counterpart stays a plain move rather than being forced into a
// swap.
func TestBuildMovePlanLeavesUnpairedMoveAlone(t *testing.T) {
	wrA := &RAWorkReg{VRegID: 1, RegType: asm.RegTypeGP}

	raw := []PlannedMove{
		{WorkReg: wrA, SrcPhys: 0, DstPhys: 1, AtPos: 4},
	}
	plan := buildMovePlan(raw, asm.RegTypeGP)

	require.Empty(t, plan.Swaps)
	require.Len(t, plan.Moves, 1)
}
