package ir

import "github.com/insinfo/asmjit-sub003/internal/asm"

// VirtReg is a value placeholder owned by the compiler. It is created only
// by the compiler (never directly by client code beyond named helpers like
// NewGP32), carries a monotonic id, and is used exclusively through operand
// references until the allocator fills in AssignedPhysID or SpillOffset.
type VirtReg struct {
	ID       asm.VRegID
	RegType  asm.RegType
	Width    asm.RegWidth
	Name     string // user-provided name hint, for debug output only

	// filled in by the allocator; both zero/absent until a pass runs.
	AssignedPhysID byte
	HasPhysID      bool
	SpillOffset    int32
	Spilled        bool
}

// Register returns the asm.Register operand referencing this VirtReg.
func (v *VirtReg) Register() asm.Register {
	return asm.NewVirtual(v.RegType, v.ID)
}

// VirtRegPool mints and owns every VirtReg for one compiler instance. IDs
// are monotonic and never interned across compilers/pools.
type VirtRegPool struct {
	regs []VirtReg
	next asm.VRegID
}

// NewVirtRegPool returns an empty pool. ID 0 (asm.InvalidVRegID) is
// reserved and never issued.
func NewVirtRegPool() *VirtRegPool {
	return &VirtRegPool{next: 1}
}

// New mints a fresh VirtReg of the given type/width/name and returns a
// pointer into the pool's backing storage. The pointer remains valid for
// the pool's lifetime (the backing slice is pre-grown in New, not shared
// across pools).
func (p *VirtRegPool) New(t asm.RegType, width asm.RegWidth, name string) *VirtReg {
	id := p.next
	p.next++
	p.regs = append(p.regs, VirtReg{ID: id, RegType: t, Width: width, Name: name})
	return &p.regs[len(p.regs)-1]
}

// Get looks up a VirtReg by id. It returns false if id is unknown to this
// pool; the allocator surfaces that as xjiterr.UnknownVirtReg, see
// internal/regalloc.
func (p *VirtRegPool) Get(id asm.VRegID) (*VirtReg, bool) {
	idx := int(id) - 1
	if idx < 0 || idx >= len(p.regs) {
		return nil, false
	}
	return &p.regs[idx], true
}

// Len returns the number of virtual registers minted so far.
func (p *VirtRegPool) Len() int { return len(p.regs) }

// All returns every VirtReg in creation order. The slice is invalidated by
// the next call to New.
func (p *VirtRegPool) All() []VirtReg { return p.regs }
