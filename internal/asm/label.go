package asm

import (
	"fmt"

	"github.com/insinfo/asmjit-sub003/internal/xjiterr"
)

// Label is owned exclusively by the LabelManager that created it.
// BoundOffset is set exactly once, by Bind.
type Label struct {
	ID          LabelID
	Name        string
	BoundOffset uint32
	Bound       bool
	Relocations []Relocation
}

// LabelManager issues label ids, tracks binding offsets, and records
// relocations until the final resolve pass.
type LabelManager struct {
	labels []Label
}

// NewLabelManager returns an empty LabelManager.
func NewLabelManager() *LabelManager {
	// index 0 reserved for InvalidLabelID.
	return &LabelManager{labels: make([]Label, 1, 16)}
}

// NewLabel allocates and returns a fresh LabelID, optionally named for
// debugging.
func (m *LabelManager) NewLabel(name string) LabelID {
	id := LabelID(len(m.labels))
	m.labels = append(m.labels, Label{ID: id, Name: name})
	return id
}

// Bind records the byte offset at which id's target instruction begins.
// It fails with KindAlreadyBound if id was already bound.
func (m *LabelManager) Bind(id LabelID, offset uint32) error {
	l := m.at(id)
	if l.Bound {
		return xjiterr.New(xjiterr.KindAlreadyBound, fmt.Sprintf("label %d already bound at %d", id, l.BoundOffset))
	}
	l.Bound = true
	l.BoundOffset = offset
	return nil
}

// Resolve returns the bound offset and true if id has been bound.
func (m *LabelManager) Resolve(id LabelID) (uint32, bool) {
	l := m.at(id)
	return l.BoundOffset, l.Bound
}

// RecordRelocation stores a relocation to be patched by ResolveAll once the
// final layout is known.
func (m *LabelManager) RecordRelocation(kind RelocKind, bufferOffset uint32, target LabelID, addend int32) {
	l := m.at(target)
	l.Relocations = append(l.Relocations, Relocation{
		Kind: kind, BufferOffset: bufferOffset, Target: target, Addend: addend,
	})
}

// ResolveAll walks every recorded relocation and patches buf. It fails with
// KindUnbound at the first relocation whose target label was never bound.
func (m *LabelManager) ResolveAll(buf *CodeBuffer) error {
	for i := 1; i < len(m.labels); i++ {
		l := &m.labels[i]
		for _, r := range l.Relocations {
			if !l.Bound {
				return xjiterr.New(xjiterr.KindUnbound, fmt.Sprintf("relocation at %d targets unbound label %d (%q)", r.BufferOffset, l.ID, l.Name))
			}
			switch r.Kind {
			case RelocRel32:
				v := int32(l.BoundOffset) - int32(r.BufferOffset+4) + r.Addend
				buf.Set32At(r.BufferOffset, uint32(v))
			case RelocAbs64:
				v := uint64(int64(l.BoundOffset) + int64(r.Addend))
				buf.Set64At(r.BufferOffset, v)
			case RelocAbsPtr:
				v := uint64(int64(l.BoundOffset) + int64(r.Addend))
				buf.Set64At(r.BufferOffset, v)
			default:
				panic(fmt.Sprintf("asm: unknown relocation kind %d", r.Kind))
			}
		}
	}
	return nil
}

// Name returns the label's debug name, or an empty string if unnamed.
func (m *LabelManager) Name(id LabelID) string { return m.at(id).Name }

func (m *LabelManager) at(id LabelID) *Label {
	if id == InvalidLabelID || int(id) >= len(m.labels) {
		panic(fmt.Sprintf("asm: unknown label id %d", id))
	}
	return &m.labels[id]
}
