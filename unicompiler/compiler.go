package unicompiler

import (
	"fmt"
	"sort"

	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/ir"
	"github.com/insinfo/asmjit-sub003/internal/isa/amd64"
	"github.com/insinfo/asmjit-sub003/internal/isa/arm64"
	"github.com/insinfo/asmjit-sub003/internal/regalloc"
	"github.com/insinfo/asmjit-sub003/internal/xjiterr"
)

// UniCompiler is a single compilation unit: it owns the VirtReg pool, the
// Builder's node arena, the LabelManager and the constant pool. It is
// single-threaded (§5) — concurrent mutation from multiple goroutines is
// forbidden, and every exported method assumes exclusive access for its
// duration.
type UniCompiler struct {
	cfg Config

	builder *ir.Builder
	vregs   *ir.VirtRegPool
	labels  *asm.LabelManager
	cursor  ir.Cursor

	constants *ConstTable

	// currentFunc tracks the most recently opened Func node so EndFunc can
	// close it and VecConst knows where to hoist materialisation.
	currentFunc ir.NodeID
	hasFunc     bool

	// poisoned mirrors §7's propagation policy: the first fatal error
	// leaves the compiler poisoned, and every subsequent call either
	// returns KindPoisoned or is a documented no-op.
	poisoned  bool
	poisonErr error
}

// New returns a fresh UniCompiler targeting cfg.Arch. Panics if cfg.Arch is
// not one of ArchAMD64/ArchARM64 — an invalid Config is a programmer error,
// not a runtime condition callers recover from, matching §7's split between
// invariant panics and errors reported as *xjiterr.Error.
func New(cfg Config) *UniCompiler {
	if cfg.Arch != ArchAMD64 && cfg.Arch != ArchARM64 {
		panic(fmt.Sprintf("unicompiler: invalid Arch %d", cfg.Arch))
	}
	b := ir.NewBuilder()
	return &UniCompiler{
		cfg:       cfg,
		builder:   b,
		vregs:     ir.NewVirtRegPool(),
		labels:    asm.NewLabelManager(),
		cursor:    b.NewCursor(),
		constants: newConstTable(),
	}
}

// Arch returns the compiler's target architecture.
func (u *UniCompiler) Arch() Arch { return u.cfg.Arch }

// Builder exposes the underlying node arena for callers that need direct
// access (tests, cmd/xjitdump's dump path). Not part of the lowering API.
func (u *UniCompiler) Builder() *ir.Builder { return u.builder }

// Labels returns the LabelManager backing this compiler's label operands.
func (u *UniCompiler) Labels() *asm.LabelManager { return u.labels }

// VirtRegs returns the VirtReg pool backing this compiler's virtual
// registers.
func (u *UniCompiler) VirtRegs() *ir.VirtRegPool { return u.vregs }

// poison records err as the compiler's terminal failure and returns err
// unchanged; later calls get it wrapped as KindPoisoned by checkPoisoned,
// matching §7: "the first error aborts
// the pass and leaves the compiler in a poisoned state".
func (u *UniCompiler) poison(err error) error {
	if !u.poisoned {
		u.poisoned = true
		u.poisonErr = err
	}
	return err
}

// checkPoisoned returns the poisoning error (wrapped as KindPoisoned) if a
// prior call already failed, nil otherwise. Every exported mutating method
// calls this first.
func (u *UniCompiler) checkPoisoned() error {
	if u.poisoned {
		return xjiterr.Wrap(xjiterr.KindPoisoned, "unicompiler: compiler is poisoned by a prior failure", u.poisonErr)
	}
	return nil
}

// NewLabel allocates a fresh label, delegating to the LabelManager.
func (u *UniCompiler) NewLabel(name string) (asm.LabelID, error) {
	if err := u.checkPoisoned(); err != nil {
		return asm.InvalidLabelID, err
	}
	return u.labels.NewLabel(name), nil
}

// BindLabel binds id at the cursor's current position by inserting a Label
// node. Binding to a byte offset happens later, when the encoder walks the
// finished node stream (see internal/isa/amd64.Encoder.Encode).
func (u *UniCompiler) BindLabel(id asm.LabelID) error {
	if err := u.checkPoisoned(); err != nil {
		return err
	}
	u.cursor.AppendLabel(id)
	return nil
}

// AddFunc appends a Func node and opens a new compilation scope: it records
// the prologue hook (the position right after the Func header) so
// VecConst can hoist constant materialisation there regardless of
// how far the cursor has since advanced into the function body.
func (u *UniCompiler) AddFunc(sig ir.FuncSignature) error {
	if err := u.checkPoisoned(); err != nil {
		return err
	}
	sig.CConv = u.cfg.CallConv
	id := u.cursor.AppendFunc(sig)
	u.currentFunc = id
	u.hasFunc = true
	return nil
}

// EndFunc emits the embedded constant table following the function body,
// 16-byte aligned, and closes the scope. Matches §4.5: "end_func emits the
// embedded constant table following the function body, aligned to 16."
func (u *UniCompiler) EndFunc() error {
	if err := u.checkPoisoned(); err != nil {
		return err
	}
	if !u.hasFunc {
		return u.poison(xjiterr.New(xjiterr.KindEncoding, "unicompiler: EndFunc without a matching AddFunc"))
	}
	u.cursor.AppendSectionAlign(16)
	for _, c := range u.constants.entries {
		u.cursor.AppendLabel(c.Label)
		u.cursor.AppendEmbedData(c.Data)
	}
	u.hasFunc = false
	return nil
}

// Finalize runs the register allocator (internal/regalloc) over the
// finished node stream, using constraints derived from cfg.Arch, and
// returns the allocation result the caller's encoder consumes. This is the
// top-level boundary §7 names: a failure here poisons the compiler and
// surfaces the typed error to the caller, with no partial result returned.
func (u *UniCompiler) Finalize() (*regalloc.Result, error) {
	if err := u.checkPoisoned(); err != nil {
		return nil, err
	}
	alloc := regalloc.New(u.constraintsForArch())
	res, err := alloc.Allocate(u.builder, u.vregs)
	if err != nil {
		return nil, u.poison(err)
	}
	return res, nil
}

// WriteBack rewrites every virtual-register Operand left in the node list
// by a successful Finalize into its assigned physical Register — or, for a
// spilled work-reg occurrence the allocator planned a scratch reload for,
// into that scratch Register, with a real load/store instruction spliced in
// immediately around the node — so the architecture's Encoder can walk the
// list without ever seeing a virtual reference, or a spilled value
// materialising as a raw Memory operand where the encoding form can't carry
// one. This is the step the Encoder's package doc calls "the allocator's
// writeback"; it lives here rather than in internal/regalloc because the
// frame-base register and the reload/store opcodes are an architecture
// convention, not an allocator concern.
func (u *UniCompiler) WriteBack(res *regalloc.Result) error {
	if err := u.checkPoisoned(); err != nil {
		return err
	}
	base := u.frameBaseReg()
	scratchAt := scratchByPos(res)
	posToNode := make(map[uint32]ir.NodeID)

	var outerErr error
	u.builder.ForEach(func(id ir.NodeID, n *ir.Node) {
		if outerErr != nil {
			return
		}
		if n.Kind != ir.NodeInst && n.Kind != ir.NodeInvoke {
			return
		}
		posToNode[n.Pos] = id
		ops := n.Operands
		if n.Kind == ir.NodeInvoke {
			ops = n.InvokeArgs
		}
		for i := range ops {
			if err := u.writeBackOperand(&ops[i], n.Pos, res, base, scratchAt); err != nil {
				outerErr = err
				return
			}
		}
		if n.Kind == ir.NodeInvoke {
			if err := u.writeBackOperand(&n.InvokeRet, n.Pos, res, base, scratchAt); err != nil {
				outerErr = err
			}
		}
	})
	if outerErr != nil {
		return u.poison(outerErr)
	}

	if err := u.drainSpillMoves(res, posToNode); err != nil {
		return u.poison(err)
	}
	return nil
}

// scratchByPos flattens every FromSlot PlannedMove across res.MovePlans into
// a (VRegID, position) -> scratch-physical-encoding lookup, so writeBackOperand
// can tell whether a given occurrence of a Spilled work-reg was planned a
// scratch reload (in which case it resolves like any other register
// reference) rather than falling back to a bare Memory operand.
func scratchByPos(res *regalloc.Result) map[asm.VRegID]map[uint32]byte {
	out := make(map[asm.VRegID]map[uint32]byte)
	for _, plan := range res.MovePlans {
		for _, mv := range plan.Moves {
			if !mv.FromSlot {
				continue
			}
			id := mv.WorkReg.VRegID
			if out[id] == nil {
				out[id] = make(map[uint32]byte)
			}
			out[id][mv.AtPos] = mv.DstPhys
		}
	}
	return out
}

func (u *UniCompiler) writeBackOperand(op *ir.Operand, pos uint32, res *regalloc.Result, base asm.Register, scratchAt map[asm.VRegID]map[uint32]byte) error {
	switch op.Kind {
	case asm.OperandReg:
		if !op.Reg.IsVirtual() {
			return nil
		}
		resolved, err := u.resolveVirtual(op.Reg, pos, res, base, scratchAt)
		if err != nil {
			return err
		}
		*op = resolved
		return nil
	case asm.OperandMem:
		if op.Mem.Base.IsValid() && op.Mem.Base.IsVirtual() {
			if err := writeBackAddressReg(&op.Mem.Base, pos, res, scratchAt); err != nil {
				return err
			}
		}
		if op.Mem.Index.IsValid() && op.Mem.Index.IsVirtual() {
			if err := writeBackAddressReg(&op.Mem.Index, pos, res, scratchAt); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

// resolveVirtual returns the Operand r's virtual register should become: a
// physical-register Operand if the allocator kept it in a register, the
// reserved scratch register if this exact occurrence was planned a reload,
// or (only when the group has no Scratch pool configured at all — see
// regalloc.Constraints.Scratch) a frame-relative Memory Operand.
func (u *UniCompiler) resolveVirtual(r asm.Register, pos uint32, res *regalloc.Result, base asm.Register, scratchAt map[asm.VRegID]map[uint32]byte) (ir.Operand, error) {
	wr, ok := res.WorkRegs[r.VirtID()]
	if !ok {
		return ir.Operand{}, xjiterr.NewAllocError(xjiterr.UnknownVirtReg, fmt.Sprintf("unicompiler: writeback found no allocation for v%d", r.VirtID()))
	}
	switch wr.State {
	case regalloc.Allocated:
		return ir.RegOperand(r.WithPhysical(wr.Phys)), nil
	case regalloc.Spilled:
		if scratch, ok := scratchAt[r.VirtID()][pos]; ok {
			return ir.RegOperand(r.WithPhysical(scratch)), nil
		}
		return ir.MemOperand(asm.NewMemory(base, -wr.Slot.Offset(spillSlotSize)-spillSlotSize)), nil
	default:
		return ir.Operand{}, xjiterr.New(xjiterr.KindEncoding, fmt.Sprintf("unicompiler: v%d left unassigned by allocator", r.VirtID()))
	}
}

// writeBackAddressReg resolves a virtual register used as a Memory
// base/index in place, the same way resolveVirtual does for a plain
// register operand: a spilled base/index reloads into its planned scratch
// register. A spilled base/index with no planned reload (only possible when
// Scratch is unconfigured for this group) has no single physical encoding
// to substitute — addressing memory through a memory operand is not a case
// this façade lowers — so it is reported as ScratchExhausted.
func writeBackAddressReg(r *asm.Register, pos uint32, res *regalloc.Result, scratchAt map[asm.VRegID]map[uint32]byte) error {
	wr, ok := res.WorkRegs[r.VirtID()]
	if !ok {
		return xjiterr.NewAllocError(xjiterr.UnknownVirtReg, fmt.Sprintf("unicompiler: writeback found no allocation for v%d", r.VirtID()))
	}
	if wr.State == regalloc.Allocated {
		*r = r.WithPhysical(wr.Phys)
		return nil
	}
	if scratch, ok := scratchAt[r.VirtID()][pos]; ok {
		*r = r.WithPhysical(scratch)
		return nil
	}
	return xjiterr.NewAllocError(xjiterr.ScratchExhausted, fmt.Sprintf("unicompiler: v%d used as a memory base/index was spilled with no scratch reload planned for it", r.VirtID()))
}

// frameBaseReg returns the architecture's conventional frame-pointer
// register for spill-slot addressing.
func (u *UniCompiler) frameBaseReg() asm.Register {
	if u.cfg.Arch == ArchARM64 {
		return arm64.GP(arm64.X29)
	}
	return amd64.GP(amd64.RBP)
}

// spillSlotSize is the uniform stack-slot size used by every Constraints
// value this package constructs, and therefore the stride WriteBack uses to
// turn a StackSlot index into a frame displacement.
const spillSlotSize = 16

// drainSpillMoves turns every FromSlot/ToSlot PlannedMove across res.MovePlans
// into a real reload/store Inst node, spliced immediately around the node at
// the move's AtPos. Reloads are inserted right before their target (in call
// order, since repeatedly recomputing CursorAt(target.Prev) naturally stacks
// successive insertions ahead of a fixed target); stores are inserted right
// after, threading a single advancing Cursor across same-position stores so
// multiple stores at one position keep their relative order instead of
// reversing it.
//
// PlannedSwap is never populated by this compiler's allocator usage (see
// regalloc.PlannedMove's doc comment and DESIGN.md): every move this design plans is
// either a reload or a spill-store, never a plain register-to-register move,
// so there is nothing here to lower a swap/xchg from.
func (u *UniCompiler) drainSpillMoves(res *regalloc.Result, posToNode map[uint32]ir.NodeID) error {
	type grouped struct {
		reloads []regalloc.PlannedMove
		stores  []regalloc.PlannedMove
	}
	byPos := make(map[uint32]*grouped)
	var positions []uint32
	for _, plan := range res.MovePlans {
		for _, mv := range plan.Moves {
			g, ok := byPos[mv.AtPos]
			if !ok {
				g = &grouped{}
				byPos[mv.AtPos] = g
				positions = append(positions, mv.AtPos)
			}
			switch {
			case mv.FromSlot:
				g.reloads = append(g.reloads, mv)
			case mv.ToSlot:
				g.stores = append(g.stores, mv)
			}
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	for _, pos := range positions {
		target, ok := posToNode[pos]
		if !ok {
			return xjiterr.New(xjiterr.KindEncoding, fmt.Sprintf("unicompiler: move plan references position %d with no corresponding node", pos))
		}
		g := byPos[pos]
		for _, mv := range g.reloads {
			inst, ops, err := u.spillInst(mv.WorkReg, mv.DstPhys, true)
			if err != nil {
				return err
			}
			before := u.builder.CursorAt(u.builder.Node(target).Prev)
			before.AppendInst(inst, ops)
		}
		if len(g.stores) > 0 {
			after := u.builder.CursorAt(target)
			for _, mv := range g.stores {
				inst, ops, err := u.spillInst(mv.WorkReg, mv.SrcPhys, false)
				if err != nil {
					return err
				}
				after.AppendInst(inst, ops)
			}
		}
	}
	return nil
}

// spillInst selects the reload (isLoad) or store instruction and operand
// order for one work-reg's spill slot, dispatching on the target
// architecture and the VirtReg's declared width.
func (u *UniCompiler) spillInst(wr *regalloc.RAWorkReg, phys byte, isLoad bool) (ir.InstID, []ir.Operand, error) {
	vr, ok := u.vregs.Get(wr.VRegID)
	if !ok {
		return 0, nil, xjiterr.NewAllocError(xjiterr.UnknownVirtReg, fmt.Sprintf("v%d", wr.VRegID))
	}
	if wr.Slot == nil {
		return 0, nil, xjiterr.New(xjiterr.KindEncoding, fmt.Sprintf("unicompiler: v%d has a planned spill move but no reserved stack slot", wr.VRegID))
	}
	mem := asm.NewMemory(u.frameBaseReg(), -wr.Slot.Offset(spillSlotSize)-spillSlotSize)
	reg := ir.RegOperand(asm.NewPhysical(wr.RegType, phys))

	if u.cfg.Arch == ArchARM64 {
		return spillInstARM64(wr.RegType, vr.Width, isLoad, reg, ir.MemOperand(mem))
	}
	return spillInstAMD64(wr.RegType, vr.Width, isLoad, reg, ir.MemOperand(mem))
}

// spillInstAMD64 picks the legacy GP mov or SSE movaps opcode that matches
// width/direction. Vector spill is only implemented for 128-bit work-regs —
// a wider vector width fails clearly here rather than silently reloading
// just its low 128 bits through MOVAPS.
func spillInstAMD64(rt asm.RegType, width asm.RegWidth, isLoad bool, reg, mem ir.Operand) (ir.InstID, []ir.Operand, error) {
	switch rt {
	case asm.RegTypeGP:
		if width == asm.Width64 {
			if isLoad {
				return amd64.MOVQRM, []ir.Operand{reg, mem}, nil
			}
			return amd64.MOVQRR, []ir.Operand{mem, reg}, nil
		}
		if isLoad {
			return amd64.MOVLRM, []ir.Operand{reg, mem}, nil
		}
		return amd64.MOVLRR, []ir.Operand{mem, reg}, nil
	case asm.RegTypeVec:
		if width != asm.Width128 {
			return 0, nil, xjiterr.New(xjiterr.KindUnsupportedOp, fmt.Sprintf("unicompiler: spill reload/store is only implemented for 128-bit vector work-regs, got width %d", width))
		}
		if isLoad {
			return amd64.MOVAPSRR, []ir.Operand{reg, mem}, nil
		}
		return amd64.MOVAPSMR, []ir.Operand{mem, reg}, nil
	default:
		return 0, nil, xjiterr.New(xjiterr.KindUnsupportedOp, fmt.Sprintf("unicompiler: no spill reload/store lowering for register group %s", rt))
	}
}

// spillInstARM64 mirrors spillInstAMD64 for the AArch64 IR-only backend:
// LDRW/STRW and LDRX/STRX cover the GP widths, LDRQ/STRQ the 128-bit NEON
// vector case. Wider vector widths are out of scope for the same reason as
// the amd64 side.
func spillInstARM64(rt asm.RegType, width asm.RegWidth, isLoad bool, reg, mem ir.Operand) (ir.InstID, []ir.Operand, error) {
	switch rt {
	case asm.RegTypeGP:
		if width == asm.Width64 {
			if isLoad {
				return arm64.LDRX, []ir.Operand{reg, mem}, nil
			}
			return arm64.STRX, []ir.Operand{mem, reg}, nil
		}
		if isLoad {
			return arm64.LDRW, []ir.Operand{reg, mem}, nil
		}
		return arm64.STRW, []ir.Operand{mem, reg}, nil
	case asm.RegTypeVec:
		if width != asm.Width128 {
			return 0, nil, xjiterr.New(xjiterr.KindUnsupportedOp, fmt.Sprintf("unicompiler: spill reload/store is only implemented for 128-bit vector work-regs, got width %d", width))
		}
		if isLoad {
			return arm64.LDRQ, []ir.Operand{reg, mem}, nil
		}
		return arm64.STRQ, []ir.Operand{mem, reg}, nil
	default:
		return 0, nil, xjiterr.New(xjiterr.KindUnsupportedOp, fmt.Sprintf("unicompiler: no spill reload/store lowering for register group %s", rt))
	}
}

// numScratchRegs is the size of the reserved-scratch pool carved out of each
// group's allocatable set. It does not cover every instruction the verb set
// emits: the three-register vector forms (VPADDD, VPCMPEQB, VFMADD213PS and
// their arm64 counterparts) reference up to three distinct vector
// work-regs, so one with all three spilled needs more than two. Exceeding
// it at a given instruction surfaces as xjiterr.ScratchExhausted rather
// than silently clobbering one spilled operand's reload with another's.
const numScratchRegs = 2

// splitScratch peels the last n entries off avail (in allocator preference
// order, so the registers given up are the least-preferred ones) and
// returns the remaining allocatable set alongside the reserved scratch pool.
func splitScratch(avail []byte, n int) (rest, scratch []byte) {
	if n >= len(avail) {
		return nil, append([]byte(nil), avail...)
	}
	cut := len(avail) - n
	return append([]byte(nil), avail[:cut]...), append([]byte(nil), avail[cut:]...)
}

// withoutScratch returns calleeSaved filtered down to the registers still
// present in available, so prologue/epilogue generation never names a
// register this compiler reserved for spill scratch instead of allocating.
func withoutScratch(calleeSaved, available []byte) []byte {
	keep := make(map[byte]bool, len(available))
	for _, r := range available {
		keep[r] = true
	}
	var out []byte
	for _, r := range calleeSaved {
		if keep[r] {
			out = append(out, r)
		}
	}
	return out
}

func (u *UniCompiler) constraintsForArch() regalloc.Constraints {
	switch u.cfg.Arch {
	case ArchARM64:
		gpAvail, gpScratch := splitScratch(arm64.AllocatableGP, numScratchRegs)
		vecAvail, vecScratch := splitScratch(arm64.AllocatableVec, numScratchRegs)
		return regalloc.Constraints{
			Available: map[asm.RegType][]byte{
				asm.RegTypeGP:  gpAvail,
				asm.RegTypeVec: vecAvail,
			},
			CalleeSaved: map[asm.RegType][]byte{
				asm.RegTypeGP:  withoutScratch(arm64.CalleeSavedGP, gpAvail),
				asm.RegTypeVec: withoutScratch(arm64.CalleeSavedVec, vecAvail),
			},
			Scratch: map[asm.RegType][]byte{
				asm.RegTypeGP:  gpScratch,
				asm.RegTypeVec: vecScratch,
			},
			SlotSize: spillSlotSize,
		}
	default:
		gpAvail, gpScratch := splitScratch(amd64.AllocatableGP, numScratchRegs)
		vecAvail, vecScratch := splitScratch(amd64.AllocatableVec, numScratchRegs)
		return regalloc.Constraints{
			Available: map[asm.RegType][]byte{
				asm.RegTypeGP:  gpAvail,
				asm.RegTypeVec: vecAvail,
			},
			CalleeSaved: map[asm.RegType][]byte{
				asm.RegTypeGP: withoutScratch(amd64.CalleeSavedGPSysV, gpAvail),
			},
			Scratch: map[asm.RegType][]byte{
				asm.RegTypeGP:  gpScratch,
				asm.RegTypeVec: vecScratch,
			},
			SlotSize: spillSlotSize,
		}
	}
}
