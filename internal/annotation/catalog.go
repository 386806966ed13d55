// Package annotation implements the Peritext-style range-annotation
// store: named ranges (bold, italic, link, …) layered over the sequence
// engine's live atoms, merged deterministically across concurrent edits
// (spec §3, §4.2).
package annotation

// MergeRule selects how concurrent annotation records for a given name
// combine into the value active at a position (spec §3).
type MergeRule byte

const (
	// Single: per name, latest record by Lamport order wins.
	Single MergeRule = iota
	// Multi: concurrent values coexist as a set.
	Multi
	// BoldLike: values coalesce via boolean OR; a causally later
	// erasure wins over assertion.
	BoldLike
	// LinkLike: last-writer-wins by raw OpID order.
	LinkLike
)

// CatalogEntry is the fixed per-name behavior spec §6 calls "the default
// catalog".
//
// Every record's Start anchor names the range's first live atom
// (Before) and its End anchor names the range's last live atom (After)
// — see engine.go's AnchorRank. Neither anchor grows on its own; a
// range's start never reaches backward to claim text typed just before
// it, matching every name spec §4.2 defines. Growth at the end is the
// per-name ExpandEnd flag below, resolved via ExpandRank instead of
// AnchorRank: it walks forward through the atoms chained onto the end
// atom that were inserted after the annotation itself, rather than
// stopping at the atom, so text typed immediately after the range keeps
// extending it (spec §4.2 "expand for bold-like").
type CatalogEntry struct {
	Rule MergeRule
	// ExpandEnd marks a name whose end boundary reaches forward to claim
	// text typed immediately after the range, rather than leaving such
	// text unannotated.
	ExpandEnd bool
}

// DefaultCatalog implements spec §6: bold/italic/underline/strike are
// BoldLike and expand, link is LinkLike and shrinks, header is Single
// (value = level 1..6) and shrinks, comment is Multi and shrinks.
var DefaultCatalog = map[string]CatalogEntry{
	"bold":      {Rule: BoldLike, ExpandEnd: true},
	"italic":    {Rule: BoldLike, ExpandEnd: true},
	"underline": {Rule: BoldLike, ExpandEnd: true},
	"strike":    {Rule: BoldLike, ExpandEnd: true},
	"link":      {Rule: LinkLike},
	"header":    {Rule: Single},
	"comment":   {Rule: Multi},
}

// UnknownDefault is applied to any name absent from DefaultCatalog
// (spec §6: "Unknown names default to Single with shrink-both anchors").
var UnknownDefault = CatalogEntry{Rule: Single}

// Lookup resolves name's catalog entry, falling back to UnknownDefault.
func Lookup(name string) CatalogEntry {
	if e, ok := DefaultCatalog[name]; ok {
		return e
	}
	return UnknownDefault
}
