package regalloc

// LiveInterval is a half-inclusive [Start,End] range on the synthetic
// linear timeline assigned to the node sequence by pass 1 (numbering).
// Two intervals intersect iff !(a.End < b.Start || b.End < a.Start).
type LiveInterval struct {
	WorkReg *RAWorkReg
	Start   uint32
	End     uint32
}

// Intersects reports whether a and b, both half-inclusive [Start,End]
// ranges, overlap at any position.
func (a LiveInterval) Intersects(b LiveInterval) bool {
	return !(a.End < b.Start || b.End < a.Start)
}

// sortIntervals orders intervals ascending by Start; ties are broken by End
// ascending, then by the owning VirtReg's id ascending — pass 4's required
// deterministic order.
func sortIntervals(intervals []LiveInterval) {
	// insertion sort: allocation batches are small (bounded by live ranges
	// per function), and a stable, dependency-free sort keeps this package
	// free of any indirection in the hot path.
	for i := 1; i < len(intervals); i++ {
		j := i
		for j > 0 && lessInterval(intervals[j], intervals[j-1]) {
			intervals[j], intervals[j-1] = intervals[j-1], intervals[j]
			j--
		}
	}
}

func lessInterval(a, b LiveInterval) bool {
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	if a.End != b.End {
		return a.End < b.End
	}
	return a.WorkReg.VRegID < b.WorkReg.VRegID
}

// activeList keeps the currently live intervals sorted by End ascending,
// as required by pass 5's expire/spill-candidate steps.
type activeList struct {
	items []LiveInterval
}

func (a *activeList) insert(iv LiveInterval) {
	i := len(a.items)
	a.items = append(a.items, iv)
	for i > 0 && a.items[i].End < a.items[i-1].End {
		a.items[i], a.items[i-1] = a.items[i-1], a.items[i]
		i--
	}
}

// expireBefore removes and returns every active interval whose End is
// strictly less than start, releasing them to the caller for return to the
// free pool.
func (a *activeList) expireBefore(start uint32) []LiveInterval {
	i := 0
	for i < len(a.items) && a.items[i].End < start {
		i++
	}
	expired := append([]LiveInterval(nil), a.items[:i]...)
	a.items = a.items[i:]
	return expired
}

// maxEndCandidate returns the index, within a.items plus the incoming
// interval I appended virtually at the end, of the entry with the greatest
// End — ties broken toward the larger VRegID, per the tie-break rule.
// isIncoming is true (with idx -1) whenever I itself wins, including when
// a.items is empty; otherwise idx is the winning entry's index in a.items.
func (a *activeList) maxEndCandidate(i LiveInterval) (idx int, isIncoming bool) {
	best := i
	bestIdx := -1
	for k, cand := range a.items {
		if cand.End > best.End || (cand.End == best.End && cand.WorkReg.VRegID > best.WorkReg.VRegID) {
			best = cand
			bestIdx = k
		}
	}
	return bestIdx, bestIdx == -1
}

func (a *activeList) removeAt(idx int) LiveInterval {
	iv := a.items[idx]
	a.items = append(a.items[:idx], a.items[idx+1:]...)
	return iv
}
