package sequence

import (
	"errors"

	"github.com/textcrdt/core/internal/ids"
)

// ErrOutOfRange is returned when a UTF-16 offset falls outside [0, len]
// or does not land on an atom boundary.
var ErrOutOfRange = errors.New("sequence: offset out of range")

// node is one atom slotted into the balanced tree. The tree is an
// implicit treap: node order is defined purely by tree shape (no
// comparison keys), balanced by a per-node random priority the way
// _examples/aggregat4-go-crdtnotes/crdt/rope.go balances its rope by
// splitting/merging leaves; here the same "augmented per-node counts,
// recomputed bottom-up" technique carries three aggregates instead of
// one (live count, live UTF-16 width, live newline count), mirroring
// _examples/phroun-garland/node.go's byteCount/runeCount/lineCount
// per-node aggregation.
type node struct {
	atom     Atom
	priority uint64
	left     *node
	right    *node
	parent   *node

	// Aggregates over the subtree rooted at this node, including itself.
	liveCount int // number of live atoms
	liveUnits int // sum of UTF-16 widths of live atoms
	newlines  int // number of live atoms whose Rune == '\n'
}

func ownCount(n *node) int {
	if n.atom.Tombstone {
		return 0
	}
	return 1
}

func ownUnits(n *node) int {
	if n.atom.Tombstone {
		return 0
	}
	return utf16Width(n.atom.Rune)
}

func ownNewline(n *node) int {
	if n.atom.Tombstone || n.atom.Rune != '\n' {
		return 0
	}
	return 1
}

func pull(n *node) {
	if n == nil {
		return
	}
	n.liveCount = ownCount(n)
	n.liveUnits = ownUnits(n)
	n.newlines = ownNewline(n)
	if n.left != nil {
		n.liveCount += n.left.liveCount
		n.liveUnits += n.left.liveUnits
		n.newlines += n.left.newlines
	}
	if n.right != nil {
		n.liveCount += n.right.liveCount
		n.liveUnits += n.right.liveUnits
		n.newlines += n.right.newlines
	}
}

// Tree is the balanced order-statistics tree holding every atom the
// document has ever seen (tombstoned or not, spec I3), plus the side
// index from OpID to tree position required for O(log n) anchor
// resolution (spec §4.1 "Indexing").
type Tree struct {
	root  *node
	byID  map[ids.OpID]*node
	rng   uint64 // xorshift state for treap priorities; deterministic per-process, irrelevant to CRDT semantics
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{byID: make(map[ids.OpID]*node), rng: 0x9e3779b97f4a7c15}
}

func (t *Tree) nextPriority() uint64 {
	// xorshift64: cheap, deterministic-per-instance. Tree balance is an
	// implementation detail; it never affects the logical atom order two
	// replicas converge on, only how fast local operations run.
	x := t.rng
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	t.rng = x
	return x
}

// Clone returns a deep copy of t: an independent tree sharing no nodes
// with the original, used by Document.Import to stage a remote batch
// against scratch state and discard it wholesale on failure rather than
// undoing partial mutations node by node (spec §5 "Cancellation").
func (t *Tree) Clone() *Tree {
	byID := make(map[ids.OpID]*node, len(t.byID))
	var cloneNode func(n, parent *node) *node
	cloneNode = func(n, parent *node) *node {
		if n == nil {
			return nil
		}
		c := &node{atom: n.atom, priority: n.priority, parent: parent}
		c.left = cloneNode(n.left, c)
		c.right = cloneNode(n.right, c)
		pull(c)
		byID[c.atom.ID] = c
		return c
	}
	return &Tree{root: cloneNode(t.root, nil), byID: byID, rng: t.rng}
}

// Len returns the number of live UTF-16 units in the document.
func (t *Tree) Len() int {
	if t.root == nil {
		return 0
	}
	return t.root.liveUnits
}

// LiveCount returns the number of live atoms in the document.
func (t *Tree) LiveCount() int {
	if t.root == nil {
		return 0
	}
	return t.root.liveCount
}

// Lookup resolves an OpID to its atom, if known.
func (t *Tree) Lookup(id ids.OpID) (Atom, bool) {
	n, ok := t.byID[id]
	if !ok {
		return Atom{}, false
	}
	return n.atom, true
}

// Has reports whether id has been integrated into the tree already.
func (t *Tree) Has(id ids.OpID) bool {
	_, ok := t.byID[id]
	return ok
}

func (t *Tree) rotateLeft(p *node) {
	r := p.right
	p.right = r.left
	if r.left != nil {
		r.left.parent = p
	}
	r.parent = p.parent
	if p.parent == nil {
		t.root = r
	} else if p.parent.left == p {
		p.parent.left = r
	} else {
		p.parent.right = r
	}
	r.left = p
	p.parent = r
	pull(p)
	pull(r)
}

func (t *Tree) rotateRight(p *node) {
	l := p.left
	p.left = l.right
	if l.right != nil {
		l.right.parent = p
	}
	l.parent = p.parent
	if p.parent == nil {
		t.root = l
	} else if p.parent.left == p {
		p.parent.left = l
	} else {
		p.parent.right = l
	}
	l.right = p
	p.parent = l
	pull(p)
	pull(l)
}

func (t *Tree) bubbleUp(x *node) {
	for x.parent != nil && x.priority > x.parent.priority {
		if x.parent.left == x {
			t.rotateRight(x.parent)
		} else {
			t.rotateLeft(x.parent)
		}
	}
	for p := x.parent; p != nil; p = p.parent {
		pull(p)
	}
}

// leftmost / rightmost return the extreme node of the subtree rooted at n.
func leftmost(n *node) *node {
	for n.left != nil {
		n = n.left
	}
	return n
}

func rightmost(n *node) *node {
	for n.right != nil {
		n = n.right
	}
	return n
}

// next returns the in-order successor of n, or the first node in the
// tree if n is nil.
func (t *Tree) next(n *node) *node {
	if n == nil {
		if t.root == nil {
			return nil
		}
		return leftmost(t.root)
	}
	if n.right != nil {
		return leftmost(n.right)
	}
	cur := n
	for cur.parent != nil && cur.parent.right == cur {
		cur = cur.parent
	}
	return cur.parent
}

func (t *Tree) attachLeaf(n *node, x *node) *node {
	// n is the node whose right subtree we descend to find the leftmost
	// empty left-child slot (this places x immediately after n).
	if n.right == nil {
		n.right = x
		x.parent = n
	} else {
		p := leftmost(n.right)
		p.left = x
		x.parent = p
	}
	pull(x)
	t.bubbleUp(x)
	return x
}

// insertAfter attaches x immediately after at in tree order (at == nil
// means "before everything", i.e. the new node becomes the very first).
func (t *Tree) insertAfter(at *node, x *node) {
	if at == nil {
		if t.root == nil {
			pull(x)
			t.root = x
			t.byID[x.atom.ID] = x
			return
		}
		p := leftmost(t.root)
		p.left = x
		x.parent = p
		pull(x)
		t.bubbleUp(x)
		t.byID[x.atom.ID] = x
		return
	}
	t.attachLeaf(at, x)
	t.byID[x.atom.ID] = x
}

// insertBefore attaches x immediately before at (at == nil means "after
// everything", i.e. append at the tail).
func (t *Tree) insertBefore(at *node, x *node) {
	if at == nil {
		if t.root == nil {
			pull(x)
			t.root = x
			t.byID[x.atom.ID] = x
			return
		}
		p := rightmost(t.root)
		p.right = x
		x.parent = p
		pull(x)
		t.bubbleUp(x)
		t.byID[x.atom.ID] = x
		return
	}
	if at.left == nil {
		at.left = x
		x.parent = at
	} else {
		p := rightmost(at.left)
		p.right = x
		x.parent = p
	}
	pull(x)
	t.bubbleUp(x)
	t.byID[x.atom.ID] = x
}

func (t *Tree) markTombstone(n *node) {
	if n.atom.Tombstone {
		return
	}
	n.atom.Tombstone = true
	for cur := n; cur != nil; cur = cur.parent {
		pull(cur)
	}
}

// nthLive returns the rank-th (0-indexed) live atom's node, or nil if
// rank is out of range.
func (t *Tree) nthLive(rank int) *node {
	n := t.root
	for n != nil {
		leftCount := 0
		if n.left != nil {
			leftCount = n.left.liveCount
		}
		if rank < leftCount {
			n = n.left
			continue
		}
		rank -= leftCount
		if ownCount(n) == 1 {
			if rank == 0 {
				return n
			}
			rank--
		}
		n = n.right
	}
	return nil
}

// nthNewline returns the rank-th (0-indexed) live newline atom's node.
func (t *Tree) nthNewline(rank int) *node {
	n := t.root
	for n != nil {
		leftNL := 0
		if n.left != nil {
			leftNL = n.left.newlines
		}
		if rank < leftNL {
			n = n.left
			continue
		}
		rank -= leftNL
		if ownNewline(n) == 1 {
			if rank == 0 {
				return n
			}
			rank--
		}
		n = n.right
	}
	return nil
}

// atomBoundary maps a UTF-16 offset to the number of live atoms strictly
// before it. Returns ErrOutOfRange if the offset splits a wide (astral)
// atom or falls outside [0, Len()].
func (t *Tree) atomBoundary(offsetUnits int) (int, error) {
	if offsetUnits < 0 {
		return 0, ErrOutOfRange
	}
	n := t.root
	consumedUnits, consumedCount := 0, 0
	for n != nil {
		leftUnits, leftCount := 0, 0
		if n.left != nil {
			leftUnits, leftCount = n.left.liveUnits, n.left.liveCount
		}
		if offsetUnits < consumedUnits+leftUnits {
			n = n.left
			continue
		}
		if offsetUnits == consumedUnits+leftUnits {
			return consumedCount + leftCount, nil
		}
		consumedUnits += leftUnits
		consumedCount += leftCount
		w, c := ownUnits(n), ownCount(n)
		if offsetUnits < consumedUnits+w {
			return 0, ErrOutOfRange
		}
		consumedUnits += w
		consumedCount += c
		n = n.right
	}
	if offsetUnits == consumedUnits {
		return consumedCount, nil
	}
	return 0, ErrOutOfRange
}

// nodeContainingOffset returns the live atom whose UTF-16 span covers
// offsetUnits (offsetUnits must be < Len()).
func (t *Tree) nodeContainingOffset(offsetUnits int) (*node, error) {
	if offsetUnits < 0 {
		return nil, ErrOutOfRange
	}
	n := t.root
	consumed := 0
	for n != nil {
		leftUnits := 0
		if n.left != nil {
			leftUnits = n.left.liveUnits
		}
		if offsetUnits < consumed+leftUnits {
			n = n.left
			continue
		}
		consumed += leftUnits
		w := ownUnits(n)
		if w > 0 && offsetUnits < consumed+w {
			return n, nil
		}
		consumed += w
		n = n.right
	}
	return nil, ErrOutOfRange
}

// unitOffsetAfter returns the number of live UTF-16 units up to and
// including node n.
func (t *Tree) unitOffsetAfter(n *node) int {
	total := 0
	if n.left != nil {
		total += n.left.liveUnits
	}
	total += ownUnits(n)
	for n.parent != nil {
		if n.parent.right == n {
			if n.parent.left != nil {
				total += n.parent.left.liveUnits
			}
			total += ownUnits(n.parent)
		}
		n = n.parent
	}
	return total
}

// liveSuccessor returns the next live node after n in tree order (n may
// itself be tombstoned or nil for "before everything").
func (t *Tree) liveSuccessor(n *node) *node {
	cur := t.next(n)
	for cur != nil && cur.atom.Tombstone {
		cur = t.next(cur)
	}
	return cur
}
