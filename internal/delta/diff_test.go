package delta

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/textcrdt/core/internal/ids"
)

func snap(clientStart ids.Counter, text string, attrsPerRune ...map[string]any) Snapshot {
	runes := []rune(text)
	s := Snapshot{IDs: make([]ids.OpID, len(runes)), Runes: runes, Attrs: make([]map[string]any, len(runes))}
	for i := range runes {
		s.IDs[i] = ids.OpID{Client: 1, Counter: clientStart + ids.Counter(i)}
		if i < len(attrsPerRune) {
			s.Attrs[i] = attrsPerRune[i]
		}
	}
	return s
}

func TestDiffPureInsert(t *testing.T) {
	old := snap(0, "ac")
	new := Snapshot{
		IDs:   []ids.OpID{{Client: 1, Counter: 0}, {Client: 1, Counter: 5}, {Client: 1, Counter: 1}},
		Runes: []rune("abc"),
		Attrs: make([]map[string]any, 3),
	}
	ops := Diff(old, new)
	assert.Equal(t, "retain(1) insert(b) retain(1)", String(ops))
}

func TestDiffPureDelete(t *testing.T) {
	old := snap(0, "abc")
	new := Snapshot{
		IDs:   []ids.OpID{{Client: 1, Counter: 0}, {Client: 1, Counter: 2}},
		Runes: []rune("ac"),
		Attrs: make([]map[string]any, 2),
	}
	ops := Diff(old, new)
	assert.Equal(t, "retain(1) delete(1) retain(1)", String(ops))
}

func TestDiffAppendAndTrim(t *testing.T) {
	old := snap(0, "ab")
	new := Snapshot{
		IDs:   []ids.OpID{{Client: 1, Counter: 1}, {Client: 1, Counter: 9}},
		Runes: []rune("bc"),
		Attrs: make([]map[string]any, 2),
	}
	ops := Diff(old, new)
	assert.Equal(t, "delete(1) retain(1) insert(c)", String(ops))
}

func TestDiffFormatOnlyChangeEmitsAttributedRetain(t *testing.T) {
	old := snap(0, "ab")
	newAttrs := map[string]any{"bold": nil}
	new := Snapshot{
		IDs:   []ids.OpID{{Client: 1, Counter: 0}, {Client: 1, Counter: 1}},
		Runes: []rune("ab"),
		Attrs: []map[string]any{newAttrs, newAttrs},
	}
	ops := Diff(old, new)
	assertRetainWithAttrs(t, ops, newAttrs)
}

func assertRetainWithAttrs(t *testing.T, ops []Op, attrs map[string]any) {
	t.Helper()
	if !assertLen(t, ops, 1) {
		return
	}
	assert.Equal(t, Retain, ops[0].Kind)
	assert.Equal(t, 2, ops[0].Length)
	assert.Equal(t, attrs, ops[0].Attributes)
}

func assertLen(t *testing.T, ops []Op, n int) bool {
	t.Helper()
	return assert.Len(t, ops, n)
}

func TestDiffNoChangeProducesSingleRetain(t *testing.T) {
	s := snap(0, "same")
	ops := Diff(s, s)
	assert.Equal(t, "retain(4)", String(ops))
}
