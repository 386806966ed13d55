// Package ids defines replica identifiers and operation identifiers shared
// by every layer of the document: the sequence engine, the annotation
// store, the wire codec and the delta differ.
package ids

import "fmt"

// ClientID is an opaque replica identifier chosen by the host. It must be
// unique across every replica that will ever merge with this one.
type ClientID uint64

// Counter is a per-replica monotonic operation counter, starting at 0.
type Counter uint32

// OpID identifies a single atomic operation: the pair (client, counter).
// OpIDs are totally ordered per client; concurrency between clients is
// resolved by comparing client IDs (Fugue tie-break) or by version-vector
// membership, depending on context.
type OpID struct {
	Client  ClientID
	Counter Counter
}

// Nil is the sentinel OpID denoting "no atom" (the document head or tail).
// Its Counter is the maximum Counter value rather than zero, the way the
// teacher's own rdx.BadId reserves a Seq pattern no real id assigns
// (id.go's BadId = ID(uint64(0xfff)<<SeqOffBits)) instead of the zero ID:
// VersionVector.NextID hands out {Client, Counter: 0} for the very first
// op of any client, including client 0, so a zero-valued sentinel would
// collide with a real, addressable atom.
var Nil = OpID{Counter: ^Counter(0)}

// IsNil reports whether id is the sentinel ⊥ referenced by anchors at the
// document head/tail and by the first atom of a document.
func (id OpID) IsNil() bool {
	return id == Nil
}

// Next returns the OpID immediately following id on the same client.
func (id OpID) Next() OpID {
	return OpID{Client: id.Client, Counter: id.Counter + 1}
}

// Less gives OpID a total order: by client first, then by counter. It is
// a stable-ordering helper only; CRDT placement decisions never use it
// and compare client ids directly per spec.
func (id OpID) Less(other OpID) bool {
	if id.Client != other.Client {
		return id.Client < other.Client
	}
	return id.Counter < other.Counter
}

func (id OpID) String() string {
	if id.IsNil() {
		return "⊥"
	}
	return fmt.Sprintf("%d@%d", id.Counter, id.Client)
}

// Side is the bias of an Anchor: whether it clings to the left or right of
// its referent atom across concurrent inserts at that position.
type Side byte

const (
	// Before keeps the anchor to the left of subsequent concurrent
	// inserts at its referent (a "shrink" boundary for ranges).
	Before Side = iota
	// After keeps the anchor to the right of subsequent concurrent
	// inserts at its referent (an "expand" boundary for ranges).
	After
)

func (s Side) String() string {
	if s == After {
		return "after"
	}
	return "before"
}
