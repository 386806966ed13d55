// Package wire implements the operation-log encoding (spec §4.3): a
// columnar, struct-of-arrays layout for the CRDT's operation log, framed
// with the same ToyTLV records _examples/drpcorg-chotki uses for its own
// packet format (id.go, vv.go).
package wire

import "github.com/textcrdt/core/internal/ids"

// Kind tags what an Op represents in the log.
type Kind byte

const (
	Insert Kind = iota
	Delete
	Annotate
	EraseAnn
)

// Op is one entry in the operation log (spec §4.3 "Op log entry").
// Only the fields relevant to Kind are meaningful; the rest are zero.
type Op struct {
	ID ids.OpID

	Kind Kind

	// Insert. Lamport is the document clock value stamped on the
	// produced atom (see sequence.Atom.Lamport), needed downstream by
	// ExpandRank to bound how far an expanding annotation boundary may
	// absorb newly typed content.
	Rune        rune
	LeftOrigin  ids.OpID
	RightOrigin ids.OpID

	// Delete: Count consecutive live atoms, in tree order starting at
	// Target, are tombstoned by this one op (spec §4.4: "one [op] per
	// delete range", not one per character).
	Target ids.OpID
	Count  uint32

	// Annotate / EraseAnn / Insert (see above)
	Name    string
	Value   any
	Lamport uint64
	Start   ids.Anchor
	End     ids.Anchor
}

func (o Op) String() string {
	switch o.Kind {
	case Insert:
		return "ins(" + o.ID.String() + ")"
	case Delete:
		return "del(" + o.Target.String() + ")"
	case Annotate:
		return "ann(" + o.Name + "@" + o.ID.String() + ")"
	case EraseAnn:
		return "erase(" + o.Name + "@" + o.ID.String() + ")"
	default:
		return "op(?)"
	}
}
