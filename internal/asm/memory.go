package asm

import "fmt"

// LabelID identifies a Label owned by a LabelManager.
type LabelID uint32

// InvalidLabelID marks the absence of a label reference.
const InvalidLabelID LabelID = 0

// Memory is a memory operand: base(+index*scale)+disp, or a RIP-relative
// reference to a label, or (with neither base, index, nor label) an
// absolute address.
type Memory struct {
	Base    Register // zero value (NoRegister) if absent
	Index   Register // zero value (NoRegister) if absent
	Scale   byte     // one of 1, 2, 4, 8; meaningless if Index is absent
	Disp    int32
	Size    RegWidth  // 0 if the access width is implied by the instruction
	LabelID LabelID   // InvalidLabelID if this is not RIP-relative
}

// NewMemory constructs a base+disp memory operand.
func NewMemory(base Register, disp int32) Memory {
	return Memory{Base: base, Disp: disp}
}

// WithIndex returns a copy of m with a scaled index added. scale must be a
// power of two no greater than 8.
func (m Memory) WithIndex(index Register, scale byte) Memory {
	if scale != 1 && scale != 2 && scale != 4 && scale != 8 {
		panic(fmt.Sprintf("asm: memory scale must be 1/2/4/8, got %d", scale))
	}
	m.Index = index
	m.Scale = scale
	return m
}

// RIPRelative constructs a memory operand relative to an as-yet-unresolved
// label. base/index/disp are not meaningful for this form.
func RIPRelative(id LabelID) Memory {
	return Memory{LabelID: id}
}

// IsRIPRelative reports whether m references a label rather than base/index
// registers.
func (m Memory) IsRIPRelative() bool { return m.LabelID != InvalidLabelID }

// IsAbsolute reports whether m has neither base, index, nor label — an
// absolute address carried entirely in Disp (used as a 32-bit displacement
// against a zero base in the x86 SIB-only addressing form).
func (m Memory) IsAbsolute() bool {
	return !m.IsRIPRelative() && !m.Base.IsValid() && !m.Index.IsValid()
}

func (m Memory) String() string {
	if m.IsRIPRelative() {
		return fmt.Sprintf("[rip+L%d]", m.LabelID)
	}
	switch {
	case m.Base.IsValid() && m.Index.IsValid():
		return fmt.Sprintf("[%s+%s*%d+%#x]", m.Base, m.Index, m.Scale, m.Disp)
	case m.Base.IsValid():
		return fmt.Sprintf("[%s+%#x]", m.Base, m.Disp)
	default:
		return fmt.Sprintf("[%#x]", m.Disp)
	}
}

// Immediate is a 64-bit signed constant. The encoder, not the operand
// model, decides whether an 8/32/64-bit form fits a given instruction.
type Immediate int64

// RelocKind enumerates the deferred-patch styles recorded by the label
// manager.
type RelocKind byte

const (
	// RelocRel32 patches a 32-bit PC-relative displacement.
	RelocRel32 RelocKind = iota + 1
	// RelocAbs64 patches a 64-bit absolute, image-based address.
	RelocAbs64
	// RelocAbsPtr patches a pointer-width absolute address.
	RelocAbsPtr
)

func (k RelocKind) String() string {
	switch k {
	case RelocRel32:
		return "rel32"
	case RelocAbs64:
		return "abs64"
	case RelocAbsPtr:
		return "absptr"
	default:
		return "unknown"
	}
}

// Relocation is a deferred patch recorded when an instruction references a
// not-yet-bound label.
type Relocation struct {
	Kind         RelocKind
	BufferOffset uint32
	Target       LabelID
	Addend       int32
}
