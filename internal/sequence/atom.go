// Package sequence implements the Fugue list-CRDT: an ordered sequence of
// atoms (one per Unicode scalar value) backed by a balanced,
// order-statistics-augmented tree, indexed jointly by live UTF-16 offset
// and by operation identity. See spec §3, §4.1.
package sequence

import "github.com/textcrdt/core/internal/ids"

// Atom is the indivisible unit of the sequence CRDT (spec §3).
type Atom struct {
	ID          ids.OpID
	Rune        rune
	Tombstone   bool
	LeftOrigin  ids.OpID
	RightOrigin ids.OpID

	// Lamport is the document's scalar clock value at the moment this
	// atom was inserted, the same clock spec §3's annotation ordering
	// uses. ExpandRank needs it to tell apart an atom that was already
	// chained onto its left neighbor before an annotation existed from
	// one typed immediately after the annotation was created — both
	// look identical by LeftOrigin alone.
	Lamport uint64
}

// utf16Width returns the number of UTF-16 code units Rune occupies: 1 for
// the BMP, 2 for astral-plane scalar values reached through a surrogate
// pair.
func utf16Width(r rune) int {
	if r > 0xFFFF {
		return 2
	}
	return 1
}
