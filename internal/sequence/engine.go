package sequence

import (
	"strings"

	"github.com/textcrdt/core/internal/ids"
)

// ToString materializes the full live text of the document.
func (t *Tree) ToString() string {
	var sb strings.Builder
	sb.Grow(t.Len())
	var walk func(n *node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		walk(n.left)
		if !n.atom.Tombstone {
			sb.WriteRune(n.atom.Rune)
		}
		walk(n.right)
	}
	walk(t.root)
	return sb.String()
}

// CharAt returns the scalar value occupying UTF-16 offset i.
func (t *Tree) CharAt(offsetUnits int) (rune, error) {
	if offsetUnits < 0 || offsetUnits >= t.Len() {
		return 0, ErrOutOfRange
	}
	n, err := t.nodeContainingOffset(offsetUnits)
	if err != nil {
		return 0, err
	}
	return n.atom.Rune, nil
}

// Slice returns the live text in the UTF-16 range [start, end).
func (t *Tree) Slice(startUnits, endUnits int) (string, error) {
	if startUnits < 0 || endUnits < startUnits || endUnits > t.Len() {
		return "", ErrOutOfRange
	}
	startRank, err := t.atomBoundary(startUnits)
	if err != nil {
		return "", err
	}
	endRank, err := t.atomBoundary(endUnits)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	n := t.nthLive(startRank)
	for i := startRank; i < endRank; i++ {
		sb.WriteRune(n.atom.Rune)
		n = t.liveSuccessor(n)
	}
	return sb.String(), nil
}

// BoundaryRank converts a UTF-16 offset into a live-atom rank (the
// number of live atoms strictly before that offset). It is the
// translation step spec §4.1 requires between the editor's UTF-16
// offsets and the tree's atom-indexed positions.
func (t *Tree) BoundaryRank(offsetUnits int) (int, error) {
	return t.atomBoundary(offsetUnits)
}

// LiveAtomID returns the OpID of the rank-th (0-indexed) live atom, or
// ids.Nil with ok=false if rank is out of [0, LiveCount()).
func (t *Tree) LiveAtomID(rank int) (ids.OpID, bool) {
	n := t.nthLive(rank)
	if n == nil {
		return ids.Nil, false
	}
	return n.atom.ID, true
}

// Delete tombstones the length UTF-16 units of live content starting at
// offset. Returns the OpIDs of every atom tombstoned, run-length
// encoding being the wire codec's concern rather than the tree's.
func (t *Tree) Delete(offsetUnits, lengthUnits int) ([]ids.OpID, error) {
	if lengthUnits < 0 {
		return nil, ErrOutOfRange
	}
	startRank, err := t.atomBoundary(offsetUnits)
	if err != nil {
		return nil, err
	}
	if lengthUnits == 0 {
		return nil, nil
	}
	var deleted []ids.OpID
	consumed := 0
	rank := startRank
	for consumed < lengthUnits {
		n := t.nthLive(rank)
		if n == nil {
			return nil, ErrOutOfRange
		}
		w := utf16Width(n.atom.Rune)
		if consumed+w > lengthUnits {
			return nil, ErrOutOfRange
		}
		consumed += w
		deleted = append(deleted, n.atom.ID)
		rank++
	}
	for _, id := range deleted {
		t.Tombstone(id)
	}
	return deleted, nil
}

// TombstoneRange tombstones count consecutive live atoms in tree order,
// starting at and including id (spec §4.4: a Delete op names its first
// victim plus a run length rather than one op per atom). Returns the
// OpIDs tombstoned, in tree order.
func (t *Tree) TombstoneRange(id ids.OpID, count int) ([]ids.OpID, error) {
	if count == 0 {
		return nil, nil
	}
	n, ok := t.byID[id]
	if !ok || n.atom.Tombstone {
		return nil, ErrOutOfRange
	}
	out := make([]ids.OpID, 0, count)
	cur := n
	for i := 0; i < count; i++ {
		if cur == nil || cur.atom.Tombstone {
			return nil, ErrOutOfRange
		}
		out = append(out, cur.atom.ID)
		t.markTombstone(cur)
		cur = t.liveSuccessor(cur)
	}
	return out, nil
}

// LineBounds returns the UTF-16 [start, end) range of the k-th line
// (0-indexed), inclusive of its trailing newline (spec §4.1
// "Line queries"). ok is false for an out-of-range line.
func (t *Tree) LineBounds(k int) (start, end int, ok bool) {
	total := 0
	if t.root != nil {
		total = t.root.newlines
	}
	if k < 0 || k > total {
		return 0, 0, false
	}
	if k == 0 {
		start = 0
	} else {
		start = t.unitOffsetAfter(t.nthNewline(k - 1))
	}
	if k == total {
		end = t.Len()
	} else {
		end = t.unitOffsetAfter(t.nthNewline(k))
	}
	return start, end, true
}

// liveRankBefore returns the number of live atoms strictly before node n
// in tree order.
func (t *Tree) liveRankBefore(n *node) int {
	total := 0
	if n.left != nil {
		total += n.left.liveCount
	}
	cur := n
	for cur.parent != nil {
		if cur.parent.right == cur {
			if cur.parent.left != nil {
				total += cur.parent.left.liveCount
			}
			total += ownCount(cur.parent)
		}
		cur = cur.parent
	}
	return total
}

// LiveIter walks live atoms in sequence order, skipping tombstones. It is
// used by the annotation store's span projection to pair rank ranges
// back up with actual character content without repeated O(log n)
// nthLive lookups.
type LiveIter struct {
	n *node
}

// FirstLive returns an iterator positioned at the first live atom, or
// nil if the document has no live content.
func (t *Tree) FirstLive() *LiveIter {
	n := t.liveSuccessor(nil)
	if n == nil {
		return nil
	}
	return &LiveIter{n: n}
}

// NextLive advances it, or returns nil past the last live atom.
func (t *Tree) NextLive(it *LiveIter) *LiveIter {
	if it == nil {
		return nil
	}
	n := t.liveSuccessor(it.n)
	if n == nil {
		return nil
	}
	return &LiveIter{n: n}
}

// Rune returns the scalar value at the iterator's current position.
func (it *LiveIter) Rune() rune {
	return it.n.atom.Rune
}

// ID returns the OpID at the iterator's current position.
func (it *LiveIter) ID() ids.OpID {
	return it.n.atom.ID
}

// AnchorRank resolves an Anchor to a live-atom rank in [0, LiveCount()],
// pinned to its referent's current position: a Before anchor sits just
// before it, an After anchor just past it. Neither side reaches out to
// claim newly inserted neighbors on its own — that growth policy is a
// per-annotation-name decision (spec §4.2's expand/shrink catalog), not
// a property of the sequence itself; see ExpandRank for the "reach
// forward" variant an expanding annotation boundary uses.
//
// A tombstoned referent collapses both sides to the same rank, since it
// contributes zero live atoms either side of itself — this is precisely
// spec I5's "anchor slides to the nearest live neighbor" rule, an
// emergent property of ranking by live count rather than a case needing
// separate handling.
func (t *Tree) AnchorRank(a ids.Anchor) (int, error) {
	if a.Ref.IsNil() {
		if a.Side == ids.Before {
			return 0, nil
		}
		return t.LiveCount(), nil
	}
	n, ok := t.byID[a.Ref]
	if !ok {
		return 0, ErrOutOfRange
	}
	if a.Side == ids.Before || n.atom.Tombstone {
		return t.liveRankBefore(n), nil
	}
	return t.liveRankBefore(n) + 1, nil
}

// ExpandRank resolves an After-side anchor the way an expanding
// annotation boundary (spec §4.2's "expand for bold-like") wants: the
// far edge of content typed immediately after the referent since the
// annotation was created, not just the referent's own position. sinceLamport
// is the annotation's own Lamport stamp (spec §3): only atoms whose
// LeftOrigin chains back into the referent's run *and* whose own
// Lamport is strictly greater than sinceLamport are absorbed. The
// Lamport bound is required because LeftOrigin chaining alone cannot
// tell "typed after the annotation existed" apart from "already part of
// the referent's own original multi-character Insert run" — both
// produce the identical chain (spec §4.1 "subsequent atoms of the run
// chain left_origin = previous.OpID"), so without it every annotation
// whose end anchor lands mid-run would wrongly swallow the rest of that
// run.
func (t *Tree) ExpandRank(a ids.Anchor, sinceLamport uint64) (int, error) {
	if a.Ref.IsNil() {
		return t.LiveCount(), nil
	}
	n, ok := t.byID[a.Ref]
	if !ok {
		return 0, ErrOutOfRange
	}
	if n.atom.Tombstone {
		return t.liveRankBefore(n), nil
	}
	tip := n
	cur := t.next(n)
	for cur != nil && cur.atom.LeftOrigin == tip.atom.ID && cur.atom.Lamport > sinceLamport {
		tip = cur
		cur = t.next(cur)
	}
	if tip.atom.Tombstone {
		return t.liveRankBefore(tip), nil
	}
	return t.liveRankBefore(tip) + 1, nil
}
