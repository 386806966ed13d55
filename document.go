// Package core is the external interface of the collaborative rich-text
// CRDT (spec §6): a single in-memory Document combining the sequence
// engine, the annotation store and the operation log, playing the same
// role _examples/drpcorg-chotki/chotki.go's Chotki struct plays for its
// object store.
package core

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/textcrdt/core/internal/annotation"
	"github.com/textcrdt/core/internal/delta"
	"github.com/textcrdt/core/internal/ids"
	"github.com/textcrdt/core/internal/metrics"
	"github.com/textcrdt/core/internal/sequence"
	"github.com/textcrdt/core/internal/wire"
)

// Observer receives every visible change to a Document, local or
// remote (spec §5 "Observer callbacks are invoked synchronously").
type Observer func(delta.Event)

// Document is a single replica of the CRDT (spec §6). It is not safe
// for concurrent use: every public method must be serialized by the
// caller (spec §5).
type Document struct {
	client ids.ClientID

	tree  *sequence.Tree
	store *annotation.Store
	log   *wire.Log

	lamport uint64

	// hlock guards the observer slice and the re-entrancy flag, the way
	// _examples/drpcorg-chotki/chotki.go/objlstn.go guards their own
	// hook map with hlock sync.Mutex: mutation itself is single-threaded
	// by contract, but observer registration/removal is common enough
	// from within a callback that it still needs a lock.
	hlock      sync.Mutex
	observers  []Observer
	delivering bool

	prev delta.Snapshot
}

// New creates an empty document owned by client. client must be unique
// among every replica this document will ever merge with (spec §6
// "new(client)").
func New(client uint64) *Document {
	tree := sequence.NewTree()
	d := &Document{
		client: ids.ClientID(client),
		tree:   tree,
		store:  annotation.NewStore(tree),
		log:    wire.NewLog(),
	}
	d.prev = d.snapshot()
	return d
}

// ID returns the document's client id (spec §6 "id()").
func (d *Document) ID() uint64 {
	return uint64(d.client)
}

// Collector returns a prometheus.Collector reporting this document's
// size (ambient observability; opt-in, never required for correctness).
func (d *Document) Collector() *metrics.Collector {
	return metrics.New(d)
}

// AtomCount implements metrics.Source: every atom integrated, live or
// tombstoned. Each atom enters the tree through exactly one Insert op in
// the log.
func (d *Document) AtomCount() int {
	n := 0
	for _, op := range d.log.All() {
		if op.Kind == wire.Insert {
			n++
		}
	}
	return n
}

// TombstoneCount implements metrics.Source.
func (d *Document) TombstoneCount() int { return d.AtomCount() - d.tree.LiveCount() }

// AnnotationCount implements metrics.Source.
func (d *Document) AnnotationCount() int { return len(d.store.All()) }

// OpLogBytes implements metrics.Source.
func (d *Document) OpLogBytes() int { return len(wire.Encode(d.log.All())) }

// ToString materializes the document's current visible text (spec §6
// "to_string()").
func (d *Document) ToString() string {
	return d.tree.ToString()
}

// CharAt returns the scalar value at UTF-16 offset i (spec §6
// "char_at(i)").
func (d *Document) CharAt(i int) (rune, error) {
	r, err := d.tree.CharAt(i)
	if err != nil {
		return 0, errors.Wrapf(ErrRangeOutOfBounds, "char_at(%d)", i)
	}
	return r, nil
}

// SliceString returns the live text in UTF-16 range [start, end) (spec
// §6 "slice_string(s,e)").
func (d *Document) SliceString(start, end int) (string, error) {
	s, err := d.tree.Slice(start, end)
	if err != nil {
		return "", errors.Wrapf(ErrRangeOutOfBounds, "slice_string(%d,%d)", start, end)
	}
	return s, nil
}

// Version returns the document's current version vector (spec §6
// "version()").
func (d *Document) Version() ids.VersionVector {
	return d.log.Version()
}

// VersionDebugMap returns the version vector as a plain
// client→next-counter map for diagnostics (spec §4.3
// "versionDebugMap()", carried in from original_source per
// SPEC_FULL.md's supplemented features).
func (d *Document) VersionDebugMap() map[uint64]uint32 {
	return d.log.Version().DebugMap()
}

// GetAnnSpans returns the current span decomposition of the document
// (spec §6 "get_ann_spans()").
func (d *Document) GetAnnSpans() []annotation.Span {
	return d.store.Spans()
}

// GetLine returns the spans covering line k, 0-indexed, inclusive of
// its trailing newline (spec §6 "get_line(k)"). ok is false past the
// last line.
func (d *Document) GetLine(k int) ([]annotation.Span, bool) {
	start, end, ok := d.tree.LineBounds(k)
	if !ok {
		return nil, false
	}
	return sliceSpans(d.store.Spans(), d.tree, start, end), true
}

// sliceSpans trims full-document spans down to the UTF-16 [start, end)
// window get_line needs, splitting a span that straddles a boundary.
func sliceSpans(spans []annotation.Span, tree *sequence.Tree, startUnits, endUnits int) []annotation.Span {
	var out []annotation.Span
	pos := 0
	for _, sp := range spans {
		spLen := utf16Len(sp.Text)
		spStart, spEnd := pos, pos+spLen
		pos = spEnd
		if spEnd <= startUnits || spStart >= endUnits {
			continue
		}
		lo, hi := spStart, spEnd
		if lo < startUnits {
			lo = startUnits
		}
		if hi > endUnits {
			hi = endUnits
		}
		out = append(out, annotation.Span{
			Text:       sliceByUTF16(sp.Text, lo-spStart, hi-spStart),
			Attributes: sp.Attributes,
		})
	}
	return out
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// sliceByUTF16 returns the substring of s spanning UTF-16 units
// [lo, hi), s itself being short enough (one span's worth of text) that
// a linear scan is cheap.
func sliceByUTF16(s string, lo, hi int) string {
	var out []rune
	unit := 0
	for _, r := range s {
		w := 1
		if r > 0xFFFF {
			w = 2
		}
		if unit >= lo && unit < hi {
			out = append(out, r)
		}
		unit += w
	}
	return string(out)
}

// Observe registers an observer, invoked synchronously after every
// visible local or remote change (spec §6 "observe(callback)", §5
// "Observer callbacks are invoked synchronously").
func (d *Document) Observe(obs Observer) {
	d.hlock.Lock()
	defer d.hlock.Unlock()
	d.observers = append(d.observers, obs)
}

// snapshot captures the current visible state for the next delta
// computation.
func (d *Document) snapshot() delta.Snapshot {
	spans := d.store.Spans()
	it := d.tree.FirstLive()
	var snap delta.Snapshot
	for _, sp := range spans {
		for _, r := range sp.Text {
			if it == nil {
				break
			}
			snap.IDs = append(snap.IDs, it.ID())
			snap.Runes = append(snap.Runes, r)
			snap.Attrs = append(snap.Attrs, sp.Attributes)
			it = d.tree.NextLive(it)
		}
	}
	return snap
}

// checkReentrant rejects a mutation attempted from within an observer
// callback (spec §9 "Observer registration": "re-entrant mutation from
// an observer is forbidden — implementations should detect and fail
// with InternalInvariant"), the same failure mode
// _examples/drpcorg-chotki/objlstn.go's hlock guards its own hook
// dispatch against.
func (d *Document) checkReentrant() error {
	d.hlock.Lock()
	delivering := d.delivering
	d.hlock.Unlock()
	if delivering {
		return invariantViolation("mutation called from within an observer callback")
	}
	return nil
}

// emit computes the delta between d.prev and the current state and
// delivers it to every observer, then advances d.prev.
func (d *Document) emit(isLocal bool) {
	now := d.snapshot()
	ops := delta.Diff(d.prev, now)
	d.prev = now
	if len(ops) == 0 {
		return
	}
	event := delta.Event{IsLocal: isLocal, Ops: ops}

	d.hlock.Lock()
	d.delivering = true
	obs := append([]Observer(nil), d.observers...)
	d.hlock.Unlock()

	for _, o := range obs {
		o(event)
	}

	d.hlock.Lock()
	d.delivering = false
	d.hlock.Unlock()
}

// anchorAt builds the Anchor referencing the atom at live rank, biased
// toward the given side, falling back to the document head/tail
// sentinel past either edge (spec §4.2 "If s = 0 the start anchor
// resolves to (⊥, before); if e = len() the end anchor resolves to
// (⊥, after)").
func anchorAt(tree *sequence.Tree, rank int, side ids.Side) ids.Anchor {
	if side == ids.Before {
		if rank <= 0 {
			return ids.Head
		}
		if id, ok := tree.LiveAtomID(rank); ok {
			return ids.Anchor{Ref: id, Side: ids.Before}
		}
		return ids.Tail
	}
	if rank >= tree.LiveCount() {
		return ids.Tail
	}
	if id, ok := tree.LiveAtomID(rank); ok {
		return ids.Anchor{Ref: id, Side: ids.After}
	}
	return ids.Head
}

// anchorsForRange resolves a UTF-16 [start, end) range to a pair of
// Anchors (spec §4.2 "Anchor derivation"): the start anchor names the
// range's first live atom (Before), the end anchor its last live atom
// (After); a zero-length range collapses both anchors to the same
// point.
func (d *Document) anchorsForRange(startUnits, endUnits int) (start, end ids.Anchor, err error) {
	n := d.tree.Len()
	if endUnits < startUnits {
		return ids.Anchor{}, ids.Anchor{}, errors.Wrapf(ErrMalformedInput, "range [%d,%d) is inverted", startUnits, endUnits)
	}
	if startUnits < 0 || endUnits < startUnits || endUnits > n {
		return ids.Anchor{}, ids.Anchor{}, errors.Wrapf(ErrRangeOutOfBounds, "range [%d,%d) exceeds length %d", startUnits, endUnits, n)
	}
	startRank, e1 := d.tree.BoundaryRank(startUnits)
	if e1 != nil {
		return ids.Anchor{}, ids.Anchor{}, errors.Wrap(ErrRangeOutOfBounds, e1.Error())
	}
	start = anchorAt(d.tree, startRank, ids.Before)
	if startUnits == endUnits {
		return start, start, nil
	}
	if endUnits == n {
		// spec §4.2 "if e = len() the end anchor resolves to (⊥, after)":
		// the range is pinned to the document's current tail rather than
		// to whatever atom happens to sit at the last position, so it
		// always tracks further appends regardless of the name's
		// ExpandEnd setting.
		return start, ids.Tail, nil
	}
	endRank, e2 := d.tree.BoundaryRank(endUnits)
	if e2 != nil {
		return ids.Anchor{}, ids.Anchor{}, errors.Wrap(ErrRangeOutOfBounds, e2.Error())
	}
	end = anchorAt(d.tree, endRank-1, ids.After)
	return start, end, nil
}

// nextLamport advances and returns the document's scalar Lamport clock
// (spec §3 "Single: latest OpID by Lamport order wins").
func (d *Document) nextLamport() uint64 {
	d.lamport++
	return d.lamport
}
