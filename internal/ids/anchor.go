package ids

// Anchor is a reference to a sequence position: an OpID plus a Side. An
// Anchor referencing Nil denotes the document head (Before) or tail
// (After). Anchors are resolved against the live sequence by the engine
// that owns the tree; this package only carries the value.
type Anchor struct {
	Ref  OpID
	Side Side
}

// Head is the anchor before the very first atom of any document.
var Head = Anchor{Ref: Nil, Side: Before}

// Tail is the anchor after the very last atom of any document.
var Tail = Anchor{Ref: Nil, Side: After}

func (a Anchor) String() string {
	return a.Ref.String() + "/" + a.Side.String()
}
