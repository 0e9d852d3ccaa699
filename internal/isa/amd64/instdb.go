package amd64

import "github.com/insinfo/asmjit-sub003/internal/ir"

// Prefix enumerates the mandatory SSE/VEX prefix byte, or its absence.
type Prefix byte

const (
	PrefixNone Prefix = iota
	Prefix66
	PrefixF3
	PrefixF2
)

// OpcodeMap enumerates the opcode map selector used by VEX/EVEX and by the
// legacy two/three-byte 0F-prefixed forms.
type OpcodeMap byte

const (
	MapLegacy OpcodeMap = iota
	Map0F
	Map0F38
	Map0F3A
)

// VecLen enumerates the vector length encoded in VEX.L / EVEX.L'L.
type VecLen byte

const (
	Len128 VecLen = iota
	Len256
	Len512
)

// Feature is a bit position into a CPU-feature bitmask, matching §6's flat
// bitfield of recognised features.
type Feature uint32

const (
	FeatureSSE2 Feature = 1 << iota
	FeatureSSE3
	FeatureSSSE3
	FeatureSSE41
	FeatureSSE42
	FeatureAVX
	FeatureAVX2
	FeatureAVX512F
	FeatureAVX512VL
	FeatureBMI1
	FeatureBMI2
	FeatureADX
	FeatureLZCNT
	FeaturePOPCNT
	FeatureFMA
	FeatureF16C
	FeatureVPCLMULQDQ
	FeatureGFNI
	FeaturePCLMULQDQ
)

// Entry is one instruction-ID table row: opcode/encoding metadata dense-
// indexed by InstID.
type Entry struct {
	Mnemonic string
	Opcode   uint16
	Prefix   Prefix
	Map      OpcodeMap
	W        bool
	L        VecLen
	Features Feature // 0 means "always available" (baseline x86-64/SSE2)

	// Form distinguishes encodings that need operand-shape-specific logic
	// beyond the opcode/prefix/map bits (e.g. whether a GP instruction
	// takes an 8-bit immediate form).
	Form InstForm

	// Digit is the ModR/M.reg opcode-extension value for FormMI
	// instructions, where the reg field selects an operation rather than
	// a register (the "/digit" notation in the SDM).
	Digit byte
}

// InstForm tags the ModR/M direction and operand arity for the encoder's
// dispatch, grounded on the "Note: naming convention is exactly the same as
// Go assembler" style comment in the teacher's consts.go.
type InstForm byte

const (
	FormRM     InstForm = iota // ops[0] goes in ModR/M.reg, ops[1] in ModR/M.rm (register or memory)
	FormMR                     // ops[0] goes in ModR/M.rm (register or memory), ops[1] in ModR/M.reg
	FormMI                     // rm (direct register or memory) + a /digit opcode extension + immediate
	FormVexRVM                 // VEX: dst, src1 (vvvv), src2 (rm)
	FormVexRM                  // VEX: dst (reg), src (rm); vvvv unused (1111b)
	FormNoOperand
	FormJump
	FormO // opcode +rd (register baked into low 3 bits), e.g. mov r64, imm64
)

const (
	NONE ir.InstID = iota
	MOVQRR
	MOVLRR  // mov r/m32, r32 (reg-reg/store form, MR, 0x89 /r); 32-bit counterpart of MOVQRR
	MOVQRM  // mov r64, r/m64 (load form, RM, REX.W + 0x8b /r); spill-reload opcode for 64-bit GP work-regs
	MOVLRM  // mov r32, r/m32 (load form, RM, 0x8b /r); spill-reload opcode for 32-bit GP work-regs
	MOVQMI  // mov r/m64, imm32 sign-extended (MI-form, REX.W + C7 /0 id)
	MOVLMI  // mov r/m32, imm32 (MI-form, C7 /0 id)
	MOVABSQ // mov r64, imm64 (O-form, REX.W + B8+rd io)
	XORLRR
	XORQRR
	ADDLRR
	ADDQRR
	ADDLRM
	SUBLRR
	ANDLRR
	ORLRR
	CMPLRR
	LEAQ // lea r64, [mem] (also used for RIP-relative label loads)
	RET
	JMP
	JCC
	CALL
	NOP
	VPADDD // AVX vpaddd xmm,xmm,xmm (VEX.128.66.0F.WIG FE /r)
	VPADDDY
	PADDD // legacy SSE2 paddd xmm,xmm (66 0F FE /r)

	VPCMPEQB // AVX vpcmpeqb xmm,xmm,xmm (VEX.128.66.0F.WIG 74 /r)
	VPCMPEQBY
	PCMPEQB // legacy SSE2 pcmpeqb xmm,xmm (66 0F 74 /r)

	CVTTSS2SI // cvttss2si r32, xmm/m32 (F3 0F 2C /r), always available (SSE2 baseline)
	MOVSDRM   // movsd xmm, xmm/m64 load form (F2 0F 10 /r), SSE2 baseline

	VPBROADCASTQ  // VEX.128.66.0F38.W0 59 /r
	VPBROADCASTQY // VEX.256.66.0F38.W0 59 /r

	VFMADD213PS // VEX.DDS.128.66.0F38.W0 A8 /r
	VFMADD213PSY

	MULPS // legacy SSE mulps xmm,xmm/m128 (0F 59 /r)
	ADDPS // legacy SSE addps xmm,xmm/m128 (0F 58 /r)

	MOVAPSRR // legacy SSE movaps xmm1, xmm2/m128 (0F 28 /r); vector reg-reg move

	MOVDQARM // legacy SSE2 movdqa xmm1, xmm2/m128 (66 0F 6F /r); used to load a constant-pool entry via a RIP-relative label operand
	MOVAPSMR // legacy SSE movaps xmm2/m128, xmm1 (0F 29 /r); store form, used to spill a 128-bit vector work-reg to its stack slot
	instIDCount
)

// Table is the dense InstID-indexed instruction database.
var Table = [instIDCount]Entry{
	MOVQRR:  {Mnemonic: "mov", Opcode: 0x89, W: true, Form: FormMR},
	MOVLRR:  {Mnemonic: "mov", Opcode: 0x89, Form: FormMR},
	MOVQRM:  {Mnemonic: "mov", Opcode: 0x8b, W: true, Form: FormRM},
	MOVLRM:  {Mnemonic: "mov", Opcode: 0x8b, Form: FormRM},
	MOVQMI:  {Mnemonic: "mov", Opcode: 0xc7, W: true, Form: FormMI, Digit: 0},
	MOVLMI:  {Mnemonic: "mov", Opcode: 0xc7, Form: FormMI, Digit: 0},
	MOVABSQ: {Mnemonic: "movabs", Opcode: 0xb8, W: true, Form: FormO},
	XORLRR:  {Mnemonic: "xor", Opcode: 0x31, Form: FormMR},
	XORQRR: {Mnemonic: "xor", Opcode: 0x31, W: true, Form: FormMR},
	ADDLRR: {Mnemonic: "add", Opcode: 0x01, Form: FormMR},
	ADDQRR: {Mnemonic: "add", Opcode: 0x01, W: true, Form: FormMR},
	ADDLRM: {Mnemonic: "add", Opcode: 0x03, Form: FormRM},
	SUBLRR: {Mnemonic: "sub", Opcode: 0x29, Form: FormMR},
	ANDLRR: {Mnemonic: "and", Opcode: 0x21, Form: FormMR},
	ORLRR:  {Mnemonic: "or", Opcode: 0x09, Form: FormMR},
	CMPLRR: {Mnemonic: "cmp", Opcode: 0x39, Form: FormMR},
	LEAQ:   {Mnemonic: "lea", Opcode: 0x8d, W: true, Form: FormRM},
	RET:    {Mnemonic: "ret", Opcode: 0xc3, Form: FormNoOperand},
	JMP:    {Mnemonic: "jmp", Opcode: 0xe9, Form: FormJump},
	JCC:    {Mnemonic: "jcc", Opcode: 0x80, Form: FormJump}, // low nibble is the condition code, or'd in by the encoder
	CALL:   {Mnemonic: "call", Opcode: 0xe8, Form: FormJump},
	NOP:    {Mnemonic: "nop", Opcode: 0x90, Form: FormNoOperand},

	VPADDD:  {Mnemonic: "vpaddd", Opcode: 0xfe, Prefix: Prefix66, Map: Map0F, L: Len128, Features: FeatureAVX, Form: FormVexRVM},
	VPADDDY: {Mnemonic: "vpaddd", Opcode: 0xfe, Prefix: Prefix66, Map: Map0F, L: Len256, Features: FeatureAVX2, Form: FormVexRVM},
	PADDD:   {Mnemonic: "paddd", Opcode: 0xfe, Prefix: Prefix66, Map: Map0F, Features: FeatureSSE2, Form: FormMR},

	VPCMPEQB:  {Mnemonic: "vpcmpeqb", Opcode: 0x74, Prefix: Prefix66, Map: Map0F, L: Len128, Features: FeatureAVX, Form: FormVexRVM},
	VPCMPEQBY: {Mnemonic: "vpcmpeqb", Opcode: 0x74, Prefix: Prefix66, Map: Map0F, L: Len256, Features: FeatureAVX2, Form: FormVexRVM},
	PCMPEQB:   {Mnemonic: "pcmpeqb", Opcode: 0x74, Prefix: Prefix66, Map: Map0F, Form: FormMR},

	CVTTSS2SI: {Mnemonic: "cvttss2si", Opcode: 0x2c, Prefix: PrefixF3, Map: Map0F, Form: FormRM},
	MOVSDRM:   {Mnemonic: "movsd", Opcode: 0x10, Prefix: PrefixF2, Map: Map0F, Form: FormRM},

	VPBROADCASTQ:  {Mnemonic: "vpbroadcastq", Opcode: 0x59, Prefix: Prefix66, Map: Map0F38, L: Len128, Features: FeatureAVX2, Form: FormVexRM},
	VPBROADCASTQY: {Mnemonic: "vpbroadcastq", Opcode: 0x59, Prefix: Prefix66, Map: Map0F38, L: Len256, Features: FeatureAVX2, Form: FormVexRM},

	VFMADD213PS:  {Mnemonic: "vfmadd213ps", Opcode: 0xa8, Prefix: Prefix66, Map: Map0F38, L: Len128, Features: FeatureAVX | FeatureFMA, Form: FormVexRVM},
	VFMADD213PSY: {Mnemonic: "vfmadd213ps", Opcode: 0xa8, Prefix: Prefix66, Map: Map0F38, L: Len256, Features: FeatureAVX2 | FeatureFMA, Form: FormVexRVM},

	MULPS: {Mnemonic: "mulps", Opcode: 0x59, Map: Map0F, Features: FeatureSSE2, Form: FormMR},
	ADDPS: {Mnemonic: "addps", Opcode: 0x58, Map: Map0F, Features: FeatureSSE2, Form: FormMR},

	MOVAPSRR: {Mnemonic: "movaps", Opcode: 0x28, Map: Map0F, Form: FormRM},

	MOVDQARM: {Mnemonic: "movdqa", Opcode: 0x6f, Prefix: Prefix66, Map: Map0F, Features: FeatureSSE2, Form: FormRM},
	MOVAPSMR: {Mnemonic: "movaps", Opcode: 0x29, Map: Map0F, Form: FormMR},
}
