package asm

import "encoding/binary"

// CodeBuffer is an append-only byte sink. It is the final destination for
// every encoded instruction; callers never truncate it except via Reset,
// and no emit method performs a range check on the value passed in — callers
// must pass values that already fit the requested width.
//
// CodeBuffer intentionally does not manage executable memory: mapping the
// finished bytes into an executable page is the platform allocator's job,
// which this module treats as an external collaborator.
type CodeBuffer struct {
	buf []byte
}

// NewCodeBuffer returns an empty CodeBuffer with capacity hint preallocated.
func NewCodeBuffer(capHint int) *CodeBuffer {
	return &CodeBuffer{buf: make([]byte, 0, capHint)}
}

// Len returns the number of bytes written so far.
func (b *CodeBuffer) Len() int { return len(b.buf) }

// Bytes returns the buffer's contents. The slice is invalidated by the next
// Emit call that grows the backing array.
func (b *CodeBuffer) Bytes() []byte { return b.buf }

// Emit8 appends a single byte.
func (b *CodeBuffer) Emit8(v uint8) { b.buf = append(b.buf, v) }

// Emit16 appends v little-endian.
func (b *CodeBuffer) Emit16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// Emit32 appends v little-endian.
func (b *CodeBuffer) Emit32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// Emit64 appends v little-endian.
func (b *CodeBuffer) Emit64(v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

// EmitBytes appends raw bytes verbatim.
func (b *CodeBuffer) EmitBytes(p []byte) { b.buf = append(b.buf, p...) }

// SetAt overwrites a single already-written byte at offset, used by the
// relocation patcher.
func (b *CodeBuffer) SetAt(offset uint32, v byte) { b.buf[offset] = v }

// Set32At overwrites 4 already-written bytes at offset with v little-endian,
// used by the rel32 relocation patcher.
func (b *CodeBuffer) Set32At(offset uint32, v uint32) {
	binary.LittleEndian.PutUint32(b.buf[offset:offset+4], v)
}

// Set64At overwrites 8 already-written bytes at offset with v little-endian,
// used by the abs64 relocation patcher.
func (b *CodeBuffer) Set64At(offset uint32, v uint64) {
	binary.LittleEndian.PutUint64(b.buf[offset:offset+8], v)
}

// x86NOPs holds the architecturally-equivalent multi-byte NOP encodings for
// lengths 1 through 9, per the Intel SDM's recommended filler sequences.
var x86NOPs = [][]byte{
	1: {0x90},
	2: {0x66, 0x90},
	3: {0x0f, 0x1f, 0x00},
	4: {0x0f, 0x1f, 0x40, 0x00},
	5: {0x0f, 0x1f, 0x44, 0x00, 0x00},
	6: {0x66, 0x0f, 0x1f, 0x44, 0x00, 0x00},
	7: {0x0f, 0x1f, 0x80, 0x00, 0x00, 0x00, 0x00},
	8: {0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
	9: {0x66, 0x0f, 0x1f, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
}

// AlignWithNOPs pads the buffer with x86 NOP sequences until Len() is a
// multiple of align. align must be a power of two.
func (b *CodeBuffer) AlignWithNOPs(align int) {
	pad := (align - (len(b.buf) % align)) % align
	for pad > 0 {
		n := pad
		if n > 9 {
			n = 9
		}
		b.buf = append(b.buf, x86NOPs[n]...)
		pad -= n
	}
}

// Reset clears the buffer, retaining its backing array.
func (b *CodeBuffer) Reset() { b.buf = b.buf[:0] }
