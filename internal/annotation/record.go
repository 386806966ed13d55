package annotation

import "github.com/textcrdt/core/internal/ids"

// Record is one annotate or eraseAnn operation (spec §3 "Annotation").
// An eraseAnn produces a Record with Erased set instead of removing
// anything — erasure is itself a CRDT write that participates in merge
// (spec §3 "Lifecycles").
//
// Lamport is a scalar Lamport clock stamped by the document at creation
// time (spec §3 "Single: latest OpID by Lamport order wins" — the OpID
// alone, being only (client, counter), does not give a causal order
// between concurrent clients, so a Lamport counter is carried
// alongside it exactly the way _examples/drpcorg-chotki/lww.go's
// LWWtlv carries a (time, src) pair rather than relying on src alone).
type Record struct {
	Creator ids.OpID
	Lamport uint64
	Name    string
	Value   any
	Erased  bool
	Start   ids.Anchor
	End     ids.Anchor
}

// wins reports whether r should be preferred over other under a
// (Lamport, then creator client id) comparison — spec §9 Q3: "the spec
// stipulates higher client id wins" as the tiebreak for concurrent
// same-Lamport records.
func (r *Record) wins(other *Record) bool {
	if r.Lamport != other.Lamport {
		return r.Lamport > other.Lamport
	}
	return r.Creator.Client > other.Creator.Client
}

// winsByOpID orders purely by the raw (client, counter) OpID pair, the
// cheaper comparison spec §3 names for Link-like ("last-writer-wins by
// OpID order") as distinct from Single's Lamport-based order.
func (r *Record) winsByOpID(other *Record) bool {
	if r.Creator.Counter != other.Creator.Counter {
		return r.Creator.Counter > other.Creator.Counter
	}
	return r.Creator.Client > other.Creator.Client
}
