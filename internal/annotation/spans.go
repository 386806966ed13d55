package annotation

import (
	"reflect"
	"sort"
	"strings"

	"github.com/textcrdt/core/internal/ids"
)

// Span is a maximal run of live atoms with a constant active-annotation
// set (spec §3 "Span").
type Span struct {
	Text       string
	Attributes map[string]any
}

type interval struct {
	rec        *Record
	start, end int
}

// Spans projects the current annotation set onto the live sequence
// (spec §4.2 "Projection to spans"). It is cached by content digest
// (spec §4.2 "Complexity": "the annotation store keeps... so that scans
// can be resumed without a full walk" — realized here as a whole-result
// LRU cache rather than a per-leaf partial one; see DESIGN.md).
func (s *Store) Spans() []Span {
	key := s.digest()
	if cached, ok := s.spanCache.Get(key); ok {
		return cached
	}
	out := s.computeSpans()
	s.spanCache.Add(key, out)
	return out
}

func (s *Store) computeSpans() []Span {
	liveCount := s.tree.LiveCount()
	if liveCount == 0 {
		return nil
	}

	var intervals []interval
	for _, rec := range s.records {
		start, err1 := s.tree.AnchorRank(rec.Start)
		var end int
		var err2 error
		if Lookup(rec.Name).ExpandEnd && rec.End.Side == ids.After {
			end, err2 = s.tree.ExpandRank(rec.End, rec.Lamport)
		} else {
			end, err2 = s.tree.AnchorRank(rec.End)
		}
		if err1 != nil || err2 != nil || end <= start {
			// I4 violation, or a zero-length/inverted range (spec
			// §4.2: zero-length anchors collapse to a point and cover
			// no live atom).
			continue
		}
		intervals = append(intervals, interval{rec: rec, start: start, end: end})
	}

	breakSet := map[int]struct{}{0: {}, liveCount: {}}
	for _, iv := range intervals {
		breakSet[iv.start] = struct{}{}
		breakSet[iv.end] = struct{}{}
	}
	breaks := make([]int, 0, len(breakSet))
	for b := range breakSet {
		if b >= 0 && b <= liveCount {
			breaks = append(breaks, b)
		}
	}
	sort.Ints(breaks)

	var spans []Span
	var curText strings.Builder
	var curAttrs map[string]any
	haveCur := false

	flush := func() {
		if !haveCur {
			return
		}
		spans = append(spans, Span{Text: curText.String(), Attributes: curAttrs})
		curText.Reset()
	}

	it := s.tree.FirstLive()
	for i := 0; i+1 < len(breaks); i++ {
		segStart, segEnd := breaks[i], breaks[i+1]
		if segStart >= segEnd {
			continue
		}
		byName := map[string][]*Record{}
		for _, iv := range intervals {
			if iv.start <= segStart && segEnd <= iv.end {
				byName[iv.rec.Name] = append(byName[iv.rec.Name], iv.rec)
			}
		}
		attrs := map[string]any{}
		for name, recs := range byName {
			if v, ok := resolve(name, recs); ok {
				attrs[name] = v
			}
		}
		var attrsOrNil map[string]any
		if len(attrs) > 0 {
			attrsOrNil = attrs
		}
		for r := segStart; r < segEnd; r++ {
			if it == nil {
				break
			}
			if !haveCur || !attrsEqual(attrsOrNil, curAttrs) {
				flush()
				curAttrs = attrsOrNil
				haveCur = true
			}
			curText.WriteRune(it.Rune())
			it = s.tree.NextLive(it)
		}
	}
	flush()
	return spans
}

func attrsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}
