package amd64

import "github.com/insinfo/asmjit-sub003/internal/asm"

// modrmMod enumerates the ModR/M.mod field.
const (
	modIndirect       = 0x00 // [rm], or disp32-only with rm=101 (no base)
	modIndirectDisp8  = 0x01
	modIndirectDisp32 = 0x02
	modDirect         = 0x03 // rm is itself a register
)

const ripRelRM = 0x05  // rm=101, mod=00 means [rip+disp32]
const sibPresentRM = 0x04 // rm=100, mod!=11 means a SIB byte follows

// EncodedModRM is the byte sequence a reg-operand/rm-operand pair expands
// to: the ModR/M byte itself, an optional SIB byte, and an optional
// displacement (0, 1, or 4 bytes), plus the REX R/X/B bits each operand
// contributed.
type EncodedModRM struct {
	ModRM     byte
	HasSIB    bool
	SIB       byte
	Disp      int32
	DispBytes int // 0, 1, or 4
	Rex       RexInfo
	// RIPLabel is set when the memory operand is RIP-relative; the caller
	// must record a RelocRel32 fixup at the displacement's buffer offset
	// once the instruction's total length is known (the addend is minus the
	// distance from the disp field's end to the instruction's end).
	RIPLabel    asm.LabelID
	IsRIPLabel  bool
}

// EncodeRegReg builds the direct (mod=11) ModR/M form for a register-to-
// register instruction: reg is the ModR/M.reg field, rm is ModR/M.rm.
func EncodeRegReg(reg, rm asm.Register) EncodedModRM {
	regEnc, rmEnc := reg.Encoding(), rm.Encoding()
	return EncodedModRM{
		ModRM: modDirect<<6 | loReg(regEnc)<<3 | loReg(rmEnc),
		Rex:   RexInfo{R: bitFromReg(regEnc), B: bitFromReg(rmEnc)},
	}
}

// EncodeDigit builds the ModR/M form for a FormMI instruction, where the
// ModR/M.reg field carries a fixed opcode-extension digit rather than a
// register reference. rm may be a direct register or a memory operand.
func EncodeDigit(digit byte, rmReg asm.Register, rmMem asm.Memory, rmIsMem bool) EncodedModRM {
	if !rmIsMem {
		rmEnc := rmReg.Encoding()
		return EncodedModRM{
			ModRM: modDirect<<6 | loReg(digit)<<3 | loReg(rmEnc),
			Rex:   RexInfo{B: bitFromReg(rmEnc)},
		}
	}
	// Reuse EncodeRegMem's addressing logic by passing a synthetic
	// "reg" whose low 3 bits are the digit; its REX.R bit is never set
	// since digit is always < 8.
	enc := EncodeRegMem(asm.NewPhysical(asm.RegTypeGP, digit), rmMem)
	enc.Rex.R = false
	return enc
}

// EncodeRegMem builds the ModR/M(+SIB)(+disp) form for a register/memory
// operand pair, where reg supplies the ModR/M.reg field and mem is the
// addressed operand.
func EncodeRegMem(reg asm.Register, mem asm.Memory) EncodedModRM {
	regEnc := reg.Encoding()
	rex := RexInfo{R: bitFromReg(regEnc)}

	if mem.IsRIPRelative() {
		return EncodedModRM{
			ModRM:      modIndirect<<6 | loReg(regEnc)<<3 | ripRelRM,
			Disp:       0,
			DispBytes:  4,
			Rex:        rex,
			RIPLabel:   mem.LabelID,
			IsRIPLabel: true,
		}
	}

	if mem.IsAbsolute() {
		// disp32, no base: SIB-only form (rm=100) with SIB.base=101,
		// SIB.index=100 (none), encoding a 32-bit absolute displacement.
		return EncodedModRM{
			ModRM:     modIndirect<<6 | loReg(regEnc)<<3 | sibPresentRM,
			HasSIB:    true,
			SIB:       0<<6 | 0x04<<3 | 0x05,
			Disp:      mem.Disp,
			DispBytes: 4,
			Rex:       rex,
		}
	}

	baseEnc := mem.Base.Encoding()
	rex.B = bitFromReg(baseEnc)

	useSIB := mem.Index.IsValid() || loReg(baseEnc) == sibPresentRM
	needsDisp32ForRBP := loReg(baseEnc) == 0x05 // RBP/R13 with mod=00 means "no base"; force disp8=0 instead

	mod, dispBytes := modFor(mem.Disp, needsDisp32ForRBP)

	if !useSIB {
		return EncodedModRM{
			ModRM:     mod<<6 | loReg(regEnc)<<3 | loReg(baseEnc),
			Disp:      mem.Disp,
			DispBytes: dispBytes,
			Rex:       rex,
		}
	}

	var sib byte
	if mem.Index.IsValid() {
		idxEnc := mem.Index.Encoding()
		rex.X = bitFromReg(idxEnc)
		sib = scaleBits(mem.Scale)<<6 | loReg(idxEnc)<<3 | loReg(baseEnc)
	} else {
		// SIB present only because base is RSP/R12 (rm field collides with
		// sibPresentRM); index=100 signals "no index".
		sib = 0<<6 | 0x04<<3 | loReg(baseEnc)
	}

	return EncodedModRM{
		ModRM:     mod<<6 | loReg(regEnc)<<3 | sibPresentRM,
		HasSIB:    true,
		SIB:       sib,
		Disp:      mem.Disp,
		DispBytes: dispBytes,
		Rex:       rex,
	}
}

// modFor picks the mod bits and displacement width for a base+disp
// addressing form. forceDisp covers the RBP/R13 quirk: mod=00 with those
// bases means "no base, disp32", so a zero displacement must still be
// emitted as disp8=0 to keep the base register addressable.
func modFor(disp int32, forceDisp bool) (mod byte, dispBytes int) {
	switch {
	case disp == 0 && !forceDisp:
		return modIndirect, 0
	case disp >= -128 && disp <= 127:
		return modIndirectDisp8, 1
	default:
		return modIndirectDisp32, 4
	}
}

func scaleBits(scale byte) byte {
	switch scale {
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		return 0
	}
}
