// Package delta turns two visible-text snapshots (rune sequence plus
// active annotation attributes, as produced by internal/annotation) into
// an editor-style retain/insert/delete script — the shape a rich-text
// UI's own change events already speak, generalizing
// _examples/drpcorg-chotki/string.go's whole-value LWW Diff into a
// positional one.
package delta

// Kind selects what a Op does to the cursor position in the
// pre-change document.
type Kind byte

const (
	// Retain skips Length runes of unchanged content, optionally
	// re-stamping their attributes (a formatting-only change).
	Retain Kind = iota
	// Insert introduces Text with Attributes at the cursor.
	Insert
	// Delete removes Length runes at the cursor.
	Delete
)

// Op is a single step of a delta script.
type Op struct {
	Kind       Kind
	Text       string
	Length     int
	Attributes map[string]any
}

// Event is what a Document hands to an observer after a mutation (spec
// §6 "Observe"): the delta script plus whether the change originated
// locally or via Import.
type Event struct {
	IsLocal bool
	Ops     []Op
}
