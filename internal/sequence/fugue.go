package sequence

import "github.com/textcrdt/core/internal/ids"

// integrate places a freshly-arrived atom into the tree per its
// (LeftOrigin, RightOrigin) pair, following the Fugue no-interleaving
// placement rule (spec §4.1 "Integration (Fugue)", invariant I2).
//
// The literal spec text describes scanning "candidates" between the
// resolved left and right origins and stopping at the first one that is
// either a non-root descendant of the gap or a root with a higher client
// id. Read strictly left-to-right that under-specifies what happens once
// the scan runs past content that belongs to a *different*, already
// resolved gap (e.g. a concurrent root's own insert run that has since
// been chained onto by later, unrelated content) — stopping only at the
// first mismatch, rather than skipping consumed roots-and-their-chains
// in one step, reintroduces exactly the interleaving spec §8's P
// (no-interleaving) rules out. This implementation resolves that reading
// in favor of the property spec §8 makes testable: matching roots
// (LeftOrigin == L) with a client id no greater than the new atom's are
// skipped as a whole run — root plus every atom chained onto it via
// LeftOrigin — before the scan continues; the scan stops (inserting
// before the current candidate) at the first root with a strictly
// greater client id, or at the first candidate that is not part of this
// gap at all.
func (t *Tree) integrate(x *node) {
	L, R := x.atom.LeftOrigin, x.atom.RightOrigin

	var leftBound, rightBound *node
	if !L.IsNil() {
		leftBound = t.byID[L]
	}
	if !R.IsNil() {
		rightBound = t.byID[R]
	}

	isRoot := func(c *node) bool {
		return c.atom.LeftOrigin == L
	}

	cur := t.next(leftBound)
	var stopBefore *node // nil means "insert at rightBound / tail of gap"
	for cur != nil && cur != rightBound {
		if !isRoot(cur) {
			stopBefore = cur
			break
		}
		if cur.atom.ID.Client > x.atom.ID.Client {
			stopBefore = cur
			break
		}
		// cur is a root this atom yields to (client no greater than the
		// new atom's): skip cur and every atom directly chained onto it
		// (LeftOrigin == previous atom's ID), since chained continuations
		// of an accepted root belong wholly to that root's run.
		prev := cur
		nxt := t.next(prev)
		for nxt != nil && nxt != rightBound && nxt.atom.LeftOrigin == prev.atom.ID {
			prev = nxt
			nxt = t.next(prev)
		}
		cur = nxt
	}
	if stopBefore == nil {
		stopBefore = rightBound
	}
	t.insertBefore(stopBefore, x)
}

// Insert produces one atom per rune of text and integrates it at the
// position immediately following offsetRank live atoms (offsetRank is a
// live-atom rank, already translated from a UTF-16 offset by the
// caller). alloc mints one fresh OpID per rune. lamport is stamped onto
// every produced atom as the document's clock value at the time of this
// call (see Atom.Lamport). Returns the produced atoms in order.
func (t *Tree) Insert(offsetRank int, text []rune, lamport uint64, alloc func() ids.OpID) []Atom {
	if len(text) == 0 {
		return nil
	}
	var leftNode, rightNode *node
	if offsetRank > 0 {
		leftNode = t.nthLive(offsetRank - 1)
	}
	rightNode = t.nthLive(offsetRank)

	L := ids.Nil
	if leftNode != nil {
		L = leftNode.atom.ID
	}
	R := ids.Nil
	if rightNode != nil {
		R = rightNode.atom.ID
	}

	out := make([]Atom, 0, len(text))
	for _, r := range text {
		id := alloc()
		a := Atom{ID: id, Rune: r, LeftOrigin: L, RightOrigin: R, Lamport: lamport}
		n := &node{atom: a, priority: t.nextPriority()}
		t.integrate(n)
		out = append(out, a)
		L = id
	}
	return out
}

// IntegrateRemote places an already-identified atom (typically decoded
// from an imported operation) into the tree. It is idempotent: applying
// the same OpID twice is a no-op.
func (t *Tree) IntegrateRemote(a Atom) {
	if t.Has(a.ID) {
		return
	}
	n := &node{atom: a, priority: t.nextPriority()}
	t.integrate(n)
}

// Tombstone marks id as deleted. Idempotent; returns false if id is
// unknown.
func (t *Tree) Tombstone(id ids.OpID) bool {
	n, ok := t.byID[id]
	if !ok {
		return false
	}
	t.markTombstone(n)
	return true
}
