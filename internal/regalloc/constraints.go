package regalloc

import "github.com/insinfo/asmjit-sub003/internal/asm"

// Constraints describes the target's per-group physical-register mask and
// preservation policy, the allocator's only input besides the node stream.
type Constraints struct {
	// Available lists, for each RegType, the physical encodings the
	// allocator is free to assign. List order does not affect assignment:
	// the free pool keeps the encodings sorted ascending and always hands
	// out the lowest free encoding first.
	Available map[asm.RegType][]byte

	// CalleeSaved lists, for each RegType, the subset of Available that the
	// callee must preserve — informational for prologue/epilogue
	// generation; the scan itself treats every available register
	// uniformly.
	CalleeSaved map[asm.RegType][]byte

	// SlotSize is the uniform stack-slot size in bytes used for spills,
	// 16-byte-aligned per VirtReg's frame reservation as specified.
	SlotSize int32

	// Scratch lists, for each RegType, a small pool of physical encodings
	// held back from Available and reserved exclusively for reloading a
	// spilled work-reg at the point of use (and spilling it back out
	// afterward). A group with no entry here falls back to resolving a
	// Spilled work-reg straight to a frame-relative Memory operand at every
	// occurrence, matching the allocator's original writeback behaviour;
	// callers that want the reload/store pair emitted as real instructions
	// (every real architecture in this module does, see
	// unicompiler.constraintsForArch) must reserve at least as many
	// registers here as the most simultaneously-spilled operands any single
	// instruction can carry, or allocation fails with ScratchExhausted.
	Scratch map[asm.RegType][]byte
}

// freePool is a per-group pool of available physical register encodings,
// smallest-index-first.
type freePool struct {
	free []byte // sorted ascending; free[0] is picked first
}

func newFreePool(available []byte) *freePool {
	p := &freePool{free: append([]byte(nil), available...)}
	// insertion sort ascending (Available is expected already sorted, but
	// don't assume it).
	for i := 1; i < len(p.free); i++ {
		j := i
		for j > 0 && p.free[j] < p.free[j-1] {
			p.free[j], p.free[j-1] = p.free[j-1], p.free[j]
			j--
		}
	}
	return p
}

func (p *freePool) take() (byte, bool) {
	if len(p.free) == 0 {
		return 0, false
	}
	r := p.free[0]
	p.free = p.free[1:]
	return r, true
}

func (p *freePool) release(r byte) {
	i := len(p.free)
	p.free = append(p.free, r)
	for i > 0 && p.free[i] < p.free[i-1] {
		p.free[i], p.free[i-1] = p.free[i-1], p.free[i]
		i--
	}
}
