package amd64

// vexInfo carries the fields of a VEX-encoded instruction before they're
// packed into either the 2-byte (C5) or 3-byte (C4) form.
type vexInfo struct {
	R, X, B bool // inverted (1 = not extended) when packed, same source as RexInfo
	Map     OpcodeMap
	W       bool
	Vvvv    byte // the "second source" register, inverted when packed; 0 packs to 1111b, the "unused" value
	L       VecLen
	Prefix  Prefix
}

// needsThreeByte reports whether the 2-byte VEX form is insufficient: the
// 3-byte form is required whenever X or B is set, the opcode map is not
// 0F, or W is set.
func (v vexInfo) needsThreeByte() bool {
	return v.X || v.B || v.Map != Map0F || v.W
}

func packPP(p Prefix) byte {
	switch p {
	case Prefix66:
		return 0x01
	case PrefixF3:
		return 0x02
	case PrefixF2:
		return 0x03
	default:
		return 0x00
	}
}

func packMMMMM(m OpcodeMap) byte {
	switch m {
	case Map0F38:
		return 0x02
	case Map0F3A:
		return 0x03
	default:
		return 0x01 // Map0F, and MapLegacy never reaches VEX encoding
	}
}

func packL(l VecLen) byte {
	if l == Len256 {
		return 1
	}
	return 0
}

// Encode2Byte returns the single byte following the 0xC5 escape: a packed
// byte of ~R, ~vvvv, L, pp.
func (v vexInfo) Encode2Byte() byte {
	b := packPP(v.Prefix)
	b |= packL(v.L) << 2
	b |= (uint8inv(v.Vvvv) & 0x0F) << 3
	if !v.R {
		b |= 0x80
	}
	return b
}

// Encode3Byte returns the two bytes following the 0xC4 escape.
func (v vexInfo) Encode3Byte() (byte1, byte2 byte) {
	byte1 = packMMMMM(v.Map)
	if !v.R {
		byte1 |= 0x80
	}
	if !v.X {
		byte1 |= 0x40
	}
	if !v.B {
		byte1 |= 0x20
	}

	byte2 = packPP(v.Prefix)
	byte2 |= packL(v.L) << 2
	byte2 |= (uint8inv(v.Vvvv) & 0x0F) << 3
	if v.W {
		byte2 |= 0x80
	}
	return byte1, byte2
}

// uint8inv bitwise-inverts the low 4 bits, implementing VEX's "stored
// one's complement" convention for vvvv (and for R/X/B above, handled
// inline since they're single bits).
func uint8inv(v byte) byte { return ^v & 0x0F }
