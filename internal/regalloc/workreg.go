// Package regalloc implements the linear-scan register allocator: liveness
// numbering over the flat Builder node list, interval construction with
// loop extension, the scan itself (expire/assign/spill), and move/swap
// planning for values that cross a spill/reload boundary.
package regalloc

import "github.com/insinfo/asmjit-sub003/internal/asm"

// RAWorkReg is the allocator's shadow of an ir.VirtReg: it carries the
// mutable allocation state for one pass, while the VirtReg itself stays the
// compiler's stable, cross-pass identity. There is exactly one RAWorkReg
// per VirtReg within a single allocation pass.
type RAWorkReg struct {
	VRegID  asm.VRegID
	RegType asm.RegType

	FirstUse uint32
	LastUse  uint32
	HasUse   bool

	// Uses records every position (ascending, since numbering walks the
	// node list in increasing order) at which this work-reg was
	// referenced — a superset of [FirstUse,LastUse]'s endpoints, needed to
	// plan a reload/store pair at each individual occurrence of a work-reg
	// that ends up Spilled (see planSpillAccess).
	Uses []uint32

	State WorkRegState
	Phys  byte // valid when State == Allocated
	Slot  *StackSlot

	// tie-relationships: the interval this work-reg belongs to, set once
	// intervals are constructed in pass 4.
	interval *LiveInterval
}

// WorkRegState enumerates the states and transitions the scan makes for a
// work-reg, identical for GP and vector groups:
//
//	Unassigned --(assign phys)--> Allocated(phys)
//	Unassigned --(spilled on arrival)--> Spilled(slot)
//	Allocated(phys) --(evict)--> Spilled(slot)
//
// A work-reg has a single interval, so its state is the verdict for the
// whole function. When the interval expires the physical register returns
// to the free pool but State stays Allocated (Phys is still read by
// writeback). A Spilled work-reg never returns to Allocated: each of its
// uses is reloaded and stored through a reserved scratch register instead.
type WorkRegState byte

const (
	Unassigned WorkRegState = iota
	Allocated
	Spilled
)

// StackSlot is a reservation on the caller's outgoing frame for an evicted
// value. Offset is computed as Index * slotSize, and the allocator never
// reuses a slot after its owner's interval expires: slots are append-only,
// matching the upstream behaviour noted as possibly-unintentional in
// DESIGN.md's open-question ledger.
type StackSlot struct {
	WorkReg *RAWorkReg
	Index   int
	Size    int32
}

// Offset returns this slot's byte offset within the spill area, given the
// uniform slot size used by the allocator that owns it.
func (s *StackSlot) Offset(slotSize int32) int32 {
	return int32(s.Index) * slotSize
}
