// Package ir implements the Builder IR: a doubly-linked sequence of
// instruction, label, invoke, and function-boundary nodes, addressed by
// arena index rather than pointer so the intrinsic next/prev cycle between
// neighbours never becomes an ownership cycle. A Cursor is just a NodeID
// plus a before/after marker.
package ir

import (
	"fmt"

	"github.com/insinfo/asmjit-sub003/internal/asm"
)

// NodeID indexes into a Builder's arena. The zero value identifies the
// sentinel head node, which never holds a payload.
type NodeID uint32

// InvalidNodeID marks the absence of a node reference.
const InvalidNodeID NodeID = ^NodeID(0)

// NodeKind discriminates the Node tagged union.
type NodeKind byte

const (
	NodeSentinel NodeKind = iota
	NodeLabel
	NodeInst
	NodeInvoke
	NodeFunc
	NodeSectionAlign
	NodeEmbedData
)

// InstID identifies an instruction within an architecture's InstructionDB.
// It is architecture-specific; the IR only stores it opaquely.
type InstID uint16

// Operand is a tagged-union operand embedded in an Inst/Invoke node. It
// holds only lightweight references (register id/signature) — never an
// owning reference to heap-allocated register storage.
type Operand struct {
	Kind asm.OperandKind
	Reg  asm.Register
	Mem  asm.Memory
	Imm  asm.Immediate
	Lbl  asm.LabelID
}

// RegOperand returns an Operand wrapping a register reference.
func RegOperand(r asm.Register) Operand { return Operand{Kind: asm.OperandReg, Reg: r} }

// MemOperand returns an Operand wrapping a memory reference.
func MemOperand(m asm.Memory) Operand { return Operand{Kind: asm.OperandMem, Mem: m} }

// ImmOperand returns an Operand wrapping an immediate value.
func ImmOperand(v asm.Immediate) Operand { return Operand{Kind: asm.OperandImm, Imm: v} }

// LabelOperand returns an Operand wrapping a label reference.
func LabelOperand(id asm.LabelID) Operand { return Operand{Kind: asm.OperandLabel, Lbl: id} }

// FuncSignature describes a function node's calling convention for the
// purposes of prologue/epilogue generation.
type FuncSignature struct {
	Name    string
	ArgGP   int
	ArgVec  int
	RetGP   int
	RetVec  int
	CConv   CallConv
}

// CallConv enumerates the calling conventions recognised at function
// creation.
type CallConv byte

const (
	CConvSysV CallConv = iota
	CConvWin64
	CConvAAPCS64
)

// Node is one element of the doubly-linked instruction sequence. Only the
// fields relevant to Kind are meaningful.
type Node struct {
	Kind NodeKind
	Prev NodeID
	Next NodeID

	// NodeLabel
	LabelID asm.LabelID

	// NodeInst / NodeInvoke
	InstID   InstID
	Operands []Operand

	// NodeInvoke
	InvokeTarget asm.LabelID
	InvokeArgs   []Operand
	InvokeRet    Operand

	// NodeFunc
	Signature      FuncSignature
	PrologueHook   NodeID // the node right after which prologue code is injected

	// NodeSectionAlign
	AlignBytes int

	// NodeEmbedData
	Data []byte

	// set once the allocator/serializer has numbered this node (see
	// internal/regalloc); 0 for nodes that do not consume positions.
	Pos uint32

	// set once this node's first byte has been emitted.
	OffsetInBinary uint32
	Emitted        bool
}

// Builder owns the node arena for one compilation unit. Node 0 is a
// sentinel head: it is never removed and never carries a payload.
//
// Invariants: exactly one sentinel head; no node appears twice in the
// list (each NodeID is linked at most once); a label node's id is bound
// to its byte offset only once it has been emitted.
type Builder struct {
	nodes []Node
}

// NewBuilder returns a Builder with only the sentinel head node.
func NewBuilder() *Builder {
	b := &Builder{nodes: make([]Node, 1, 64)}
	b.nodes[0] = Node{Kind: NodeSentinel, Prev: 0, Next: 0}
	return b
}

// Head returns the sentinel head NodeID. Head.Next is the first real node,
// if any.
func (b *Builder) Head() NodeID { return 0 }

// Node returns a pointer into the arena for id. The pointer is invalidated
// by any call that grows the arena (Append*); callers must not retain it
// across such calls.
func (b *Builder) Node(id NodeID) *Node {
	if int(id) >= len(b.nodes) {
		panic(fmt.Sprintf("ir: node id %d out of range", id))
	}
	return &b.nodes[id]
}

// alloc appends n to the arena (not yet linked) and returns its id.
func (b *Builder) alloc(n Node) NodeID {
	id := NodeID(len(b.nodes))
	b.nodes = append(b.nodes, n)
	return id
}

// insertAfter links a freshly allocated node n right after "after" in the
// list and returns its id. This is the single linkage primitive; every
// Append/Cursor helper is built on it.
//
// The sentinel's Prev field doubles as the list's tail pointer (0 when the
// list is empty, i.e. the tail is the sentinel itself), giving O(1) append.
func (b *Builder) insertAfter(after NodeID, n Node) NodeID {
	id := b.alloc(n) // may grow the arena; only index afterwards, never hold *Node across this call
	afterNext := b.nodes[after].Next
	b.nodes[id].Prev = after
	b.nodes[id].Next = afterNext
	b.nodes[after].Next = id
	if afterNext != 0 {
		b.nodes[afterNext].Prev = id
	}
	if b.nodes[0].Prev == after {
		b.nodes[0].Prev = id
	}
	return id
}

// Remove unlinks id from the list. The sentinel head cannot be removed.
func (b *Builder) Remove(id NodeID) {
	if id == 0 {
		panic("ir: cannot remove the sentinel head")
	}
	prev, next := b.nodes[id].Prev, b.nodes[id].Next
	b.nodes[prev].Next = next
	if next != 0 {
		b.nodes[next].Prev = prev
	}
	if b.nodes[0].Prev == id {
		b.nodes[0].Prev = prev
	}
}

// Cursor is a position in the node list: a NodeID plus an implicit "insert
// after this node" semantics, matching the scoped prologue-injection
// pattern (rewind, inject, restore).
type Cursor struct {
	b  *Builder
	at NodeID
}

// NewCursor returns a Cursor positioned at the list's tail (the sentinel's
// Prev, which is 0 — the sentinel itself — when the list is empty), i.e.
// appends go to the end.
func (b *Builder) NewCursor() Cursor {
	return Cursor{b: b, at: b.nodes[0].Prev}
}

// CursorAt returns a Cursor positioned right after id.
func (b *Builder) CursorAt(id NodeID) Cursor { return Cursor{b: b, at: id} }

// Pos returns the NodeID this cursor is currently positioned after.
func (c Cursor) Pos() NodeID { return c.at }

// AppendLabel inserts a Label node after the cursor and advances it.
func (c *Cursor) AppendLabel(id asm.LabelID) NodeID {
	nid := c.b.insertAfter(c.at, Node{Kind: NodeLabel, LabelID: id})
	c.at = nid
	return nid
}

// AppendInst inserts an Inst node after the cursor and advances it.
func (c *Cursor) AppendInst(inst InstID, operands []Operand) NodeID {
	nid := c.b.insertAfter(c.at, Node{Kind: NodeInst, InstID: inst, Operands: operands})
	c.at = nid
	return nid
}

// AppendInvoke inserts an Invoke node after the cursor and advances it.
func (c *Cursor) AppendInvoke(target asm.LabelID, args []Operand, ret Operand) NodeID {
	nid := c.b.insertAfter(c.at, Node{Kind: NodeInvoke, InvokeTarget: target, InvokeArgs: args, InvokeRet: ret})
	c.at = nid
	return nid
}

// AppendFunc inserts a Func node after the cursor, advances it, and records
// the current position (right after the Func node) as the prologue hook.
func (c *Cursor) AppendFunc(sig FuncSignature) NodeID {
	nid := c.b.insertAfter(c.at, Node{Kind: NodeFunc, Signature: sig})
	c.b.Node(nid).PrologueHook = nid
	c.at = nid
	return nid
}

// AppendSectionAlign inserts a SectionAlign node after the cursor.
func (c *Cursor) AppendSectionAlign(align int) NodeID {
	nid := c.b.insertAfter(c.at, Node{Kind: NodeSectionAlign, AlignBytes: align})
	c.at = nid
	return nid
}

// AppendEmbedData inserts an EmbedData node after the cursor.
func (c *Cursor) AppendEmbedData(data []byte) NodeID {
	nid := c.b.insertAfter(c.at, Node{Kind: NodeEmbedData, Data: data})
	c.at = nid
	return nid
}

// WithCursorAt runs fn against a fresh Cursor positioned right after hook,
// so fn's appends are inserted there regardless of where the caller's own
// cursor currently sits. Because Cursor is a value type, the caller's
// cursor is never mutated by this call — even if fn panics — which is what
// gives the "hoist to function prologue" pattern its restoration-on-every-
// exit guarantee: materialising a vector constant or k-mask constant at the
// prologue hook never disturbs the cursor used to keep appending the
// function body.
func (b *Builder) WithCursorAt(hook NodeID, fn func(c *Cursor)) {
	scoped := b.CursorAt(hook)
	fn(&scoped)
}

// ForEach walks the list from the sentinel head's first real node to the
// end, calling fn(id, node) for each node other than the sentinel.
func (b *Builder) ForEach(fn func(id NodeID, n *Node)) {
	for id := b.Node(0).Next; id != 0; id = b.Node(id).Next {
		fn(id, b.Node(id))
	}
}

// Len returns the number of non-sentinel nodes currently linked.
func (b *Builder) Len() int {
	n := 0
	b.ForEach(func(NodeID, *Node) { n++ })
	return n
}
