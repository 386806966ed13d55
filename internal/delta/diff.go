package delta

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/textcrdt/core/internal/ids"
)

// Snapshot is one side of a diff: the live atoms visible at a point in
// time, each with the OpID that created it and its resolved annotation
// attributes.
type Snapshot struct {
	IDs   []ids.OpID
	Runes []rune
	Attrs []map[string]any
}

// Diff computes the retain/insert/delete script that turns old into new
// (spec §4.3 "Local delta diffing"). It relies on the sequence engine's
// invariant that the relative order of any two atoms present in both
// snapshots never changes once both have been integrated — insertion and
// tombstoning only ever add to or subtract from that order, never
// reorder it — so a single linear merge over the two atom-ID sequences
// suffices; no generic (and quadratic) longest-common-subsequence search
// is needed.
func Diff(old, new Snapshot) []Op {
	inNew := make(map[ids.OpID]struct{}, len(new.IDs))
	for _, id := range new.IDs {
		inNew[id] = struct{}{}
	}
	inOld := make(map[ids.OpID]struct{}, len(old.IDs))
	for _, id := range old.IDs {
		inOld[id] = struct{}{}
	}

	var b builder
	i, j := 0, 0
	for i < len(old.IDs) && j < len(new.IDs) {
		switch {
		case old.IDs[i] == new.IDs[j]:
			b.retain(old.Attrs[i], new.Attrs[j])
			i++
			j++
		case !isPresent(old.IDs[i], inNew):
			b.delete()
			i++
		case !isPresent(new.IDs[j], inOld):
			b.insert(new.Runes[j], new.Attrs[j])
			j++
		default:
			// Both atoms are known to both snapshots but appear out of
			// relative order — cannot happen under the sequence
			// engine's ordering invariant; delete and retry rather
			// than looping forever.
			b.delete()
			i++
		}
	}
	for ; i < len(old.IDs); i++ {
		b.delete()
	}
	for ; j < len(new.IDs); j++ {
		b.insert(new.Runes[j], new.Attrs[j])
	}
	return b.ops
}

func isPresent(id ids.OpID, set map[ids.OpID]struct{}) bool {
	_, ok := set[id]
	return ok
}

// builder run-length-encodes consecutive ops of the same kind (and, for
// retains, the same target attributes) into a single Op, the way an
// editor's own change-event stream expects.
type builder struct {
	ops []Op
}

func (b *builder) delete() {
	if n := len(b.ops); n > 0 && b.ops[n-1].Kind == Delete {
		b.ops[n-1].Length++
		return
	}
	b.ops = append(b.ops, Op{Kind: Delete, Length: 1})
}

func (b *builder) insert(r rune, attrs map[string]any) {
	if n := len(b.ops); n > 0 && b.ops[n-1].Kind == Insert && attrsEqual(b.ops[n-1].Attributes, attrs) {
		b.ops[n-1].Text += string(r)
		return
	}
	b.ops = append(b.ops, Op{Kind: Insert, Text: string(r), Attributes: attrs})
}

func (b *builder) retain(oldAttrs, newAttrs map[string]any) {
	var stamped map[string]any
	if !attrsEqual(oldAttrs, newAttrs) {
		stamped = newAttrs
	}
	if n := len(b.ops); n > 0 && b.ops[n-1].Kind == Retain && attrsEqual(b.ops[n-1].Attributes, stamped) {
		b.ops[n-1].Length++
		return
	}
	b.ops = append(b.ops, Op{Kind: Retain, Length: 1, Attributes: stamped})
}

func attrsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// String renders ops in a Quill-delta-like debug form, useful for tests
// and diagnostics.
func String(ops []Op) string {
	var sb strings.Builder
	for i, op := range ops {
		if i > 0 {
			sb.WriteString(" ")
		}
		switch op.Kind {
		case Retain:
			sb.WriteString("retain(")
			sb.WriteString(strconv.Itoa(op.Length))
			sb.WriteString(")")
		case Insert:
			sb.WriteString("insert(")
			sb.WriteString(op.Text)
			sb.WriteString(")")
		case Delete:
			sb.WriteString("delete(")
			sb.WriteString(strconv.Itoa(op.Length))
			sb.WriteString(")")
		}
	}
	return sb.String()
}
