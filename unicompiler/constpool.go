package unicompiler

import (
	"fmt"

	"github.com/insinfo/asmjit-sub003/internal/asm"
	"github.com/insinfo/asmjit-sub003/internal/ir"
	"github.com/insinfo/asmjit-sub003/internal/isa/amd64"
	"github.com/insinfo/asmjit-sub003/internal/isa/arm64"
	"github.com/insinfo/asmjit-sub003/internal/xjiterr"
)

// constEntry is one deduplicated row of the constant pool: the byte pattern
// plus the label EndFunc binds once it emits the pool's EmbedData nodes.
type constEntry struct {
	Label asm.LabelID
	Data  []byte
	Align int
}

// ConstTable is the VecConstTable of §4.5: a per-compiler pool of
// vector/mask constants, deduplicated by exact byte pattern so two calls
// materialising the same mask or broadcast pattern share one label and one
// copy of the data in the final binary.
type ConstTable struct {
	entries []constEntry
	byKey   map[string]asm.LabelID
}

func newConstTable() *ConstTable {
	return &ConstTable{byKey: make(map[string]asm.LabelID)}
}

// intern returns the label for data, minting a fresh one (and a backing
// entries row) on first sight.
func (t *ConstTable) intern(labels *asm.LabelManager, data []byte, align int) asm.LabelID {
	key := fmt.Sprintf("%d:%x", align, data)
	if id, ok := t.byKey[key]; ok {
		return id
	}
	id := labels.NewLabel(fmt.Sprintf("const%d", len(t.entries)))
	t.entries = append(t.entries, constEntry{Label: id, Data: append([]byte(nil), data...), Align: align})
	t.byKey[key] = id
	return id
}

// VecConst materialises a vector constant: it interns data into the
// function's constant pool (emitted by EndFunc, 16-byte aligned) and, at the
// function's prologue hook — not at the cursor's current position — emits
// the load that brings it into a freshly minted virtual register. This is
// the "hoist to prologue" pattern §4.5 calls out: a constant referenced deep
// inside a loop body still loads exactly once, at function entry.
//
// data's length must match width in bytes; widths other than 128-bit are
// rejected on amd64, where only MOVDQA's 128-bit legacy form is wired (see
// internal/isa/amd64's MOVDQARM comment).
func (u *UniCompiler) VecConst(data []byte, width asm.RegWidth) (asm.Register, error) {
	if err := u.checkPoisoned(); err != nil {
		return asm.NoRegister, err
	}
	if !u.hasFunc {
		return asm.NoRegister, u.poison(xjiterr.New(xjiterr.KindEncoding, "unicompiler: VecConst requires an open function"))
	}
	if int(width) != len(data) {
		return asm.NoRegister, u.poison(xjiterr.New(xjiterr.KindOperandMismatch, fmt.Sprintf("unicompiler: VecConst data length %d does not match width %d", len(data), width)))
	}
	if u.cfg.Arch == ArchAMD64 && width != asm.Width128 {
		return asm.NoRegister, u.poison(xjiterr.New(xjiterr.KindUnsupportedOp, fmt.Sprintf("unicompiler: VecConst width %d is not supported on amd64", width)))
	}

	label := u.constants.intern(u.labels, data, int(width))
	vreg := u.NewVecWithWidth(width, "vconst")
	dst := vreg.Register()

	// The Func node's PrologueHook always points at the Func node itself
	// (see ir.Cursor.AppendFunc), so every VecConst call in this function
	// inserts right after it — each new load prepends ahead of the last,
	// which is harmless since all of them still run before the body.
	hook := u.builder.Node(u.currentFunc).PrologueHook
	u.builder.WithCursorAt(hook, func(c *ir.Cursor) {
		switch u.cfg.Arch {
		case ArchARM64:
			// FMOVD doubles as the placeholder immediate-materialisation
			// form here; internal/isa/arm64 elides the byte encoder, so the
			// node only needs the right operand shape (dst, RIP-style mem).
			c.AppendInst(arm64.FMOVD, []ir.Operand{ir.RegOperand(dst), ir.MemOperand(asm.RIPRelative(label))})
		default:
			c.AppendInst(amd64.MOVDQARM, []ir.Operand{ir.RegOperand(dst), ir.MemOperand(asm.RIPRelative(label))})
		}
	})

	return dst, nil
}
