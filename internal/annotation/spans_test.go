package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textcrdt/core/internal/ids"
	"github.com/textcrdt/core/internal/sequence"
)

func alloc(client ids.ClientID, start ids.Counter) func() ids.OpID {
	c := start
	return func() ids.OpID {
		id := ids.OpID{Client: client, Counter: c}
		c++
		return id
	}
}

func anchorFor(t *sequence.Tree, offsetUnits int, side ids.Side) ids.Anchor {
	if offsetUnits == 0 && side == ids.Before {
		return ids.Head
	}
	rank, err := t.BoundaryRank(offsetUnits)
	if err != nil {
		panic(err)
	}
	if rank == t.LiveCount() && side == ids.After {
		return ids.Tail
	}
	// side determines which neighboring atom the anchor names.
	if side == ids.Before {
		id, ok := t.LiveAtomID(rank)
		if !ok {
			return ids.Tail
		}
		return ids.Anchor{Ref: id, Side: ids.Before}
	}
	id, ok := t.LiveAtomID(rank - 1)
	if !ok {
		return ids.Head
	}
	return ids.Anchor{Ref: id, Side: ids.After}
}

func TestBoldSpanS2(t *testing.T) {
	tr := sequence.NewTree()
	next := alloc(2, 0)
	tr.Insert(0, []rune("123"), 0, next)
	store := NewStore(tr)

	start := anchorFor(tr, 0, ids.Before)
	end := anchorFor(tr, 1, ids.After)
	store.Put(Record{Creator: ids.OpID{Client: 2, Counter: 100}, Lamport: 1, Name: "bold", Value: nil, Start: start, End: end})

	spans := store.Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, "1", spans[0].Text)
	assert.Equal(t, map[string]any{"bold": nil}, spans[0].Attributes)
	assert.Equal(t, "23", spans[1].Text)
	assert.Nil(t, spans[1].Attributes)

	// spec §8 S2: typing immediately after the bold "1" extends the
	// bold run rather than falling just outside it. "k" is stamped with
	// a Lamport value after the annotation's own (1), unlike "2" and "3"
	// which predate it despite sharing the same LeftOrigin chain shape.
	tr.Insert(1, []rune("k"), 2, next)
	store.Invalidate()

	spans = store.Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, "1k", spans[0].Text)
	assert.Equal(t, map[string]any{"bold": nil}, spans[0].Attributes)
	assert.Equal(t, "23", spans[1].Text)
	assert.Nil(t, spans[1].Attributes)
}

func TestLinkSpanDoesNotExpandAtEnd(t *testing.T) {
	tr := sequence.NewTree()
	next := alloc(3, 0)
	tr.Insert(0, []rune("123"), 0, next)
	store := NewStore(tr)

	start := anchorFor(tr, 0, ids.Before)
	end := anchorFor(tr, 1, ids.After)
	store.Put(Record{Creator: ids.OpID{Client: 3, Counter: 100}, Lamport: 1, Name: "link", Value: "http://x", Start: start, End: end})

	// unlike bold, a link's end boundary shrinks: text typed right after
	// the linked "1" falls outside the link.
	tr.Insert(1, []rune("k"), 2, next)
	store.Invalidate()

	spans := store.Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, "1", spans[0].Text)
	assert.Equal(t, map[string]any{"link": "http://x"}, spans[0].Attributes)
	assert.Equal(t, "k23", spans[1].Text)
	assert.Nil(t, spans[1].Attributes)
}

func TestEraseAnnClearsSpanS3(t *testing.T) {
	tr := sequence.NewTree()
	tr.Insert(0, []rune("123"), 0, alloc(2, 0))
	store := NewStore(tr)

	start := anchorFor(tr, 0, ids.Before)
	end := anchorFor(tr, 2, ids.After)
	store.Put(Record{Creator: ids.OpID{Client: 2, Counter: 100}, Lamport: 1, Name: "bold", Value: nil, Start: start, End: end})
	store.Invalidate()

	require.Len(t, store.Spans(), 2)

	// erase over the same [0,2) range using a fresh erasure record (spec
	// §3: eraseAnn is itself a new record, not a mutation of the old one).
	store.Put(Record{Creator: ids.OpID{Client: 2, Counter: 300}, Lamport: 2, Name: "bold", Erased: true, Start: start, End: end})
	store.Invalidate()

	spans := store.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, "123", spans[0].Text)
	assert.Nil(t, spans[0].Attributes)
}

func TestMultiRuleKeepsConcurrentValues(t *testing.T) {
	tr := sequence.NewTree()
	tr.Insert(0, []rune("abc"), 0, alloc(1, 0))
	store := NewStore(tr)
	start := anchorFor(tr, 0, ids.Before)
	end := anchorFor(tr, 3, ids.After)
	store.Put(Record{Creator: ids.OpID{Client: 1, Counter: 50}, Lamport: 1, Name: "comment", Value: "hi", Start: start, End: end})
	store.Put(Record{Creator: ids.OpID{Client: 2, Counter: 50}, Lamport: 1, Name: "comment", Value: "there", Start: start, End: end})

	spans := store.Spans()
	require.Len(t, spans, 1)
	vals, ok := spans[0].Attributes["comment"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"hi", "there"}, vals)
}

func TestMultiRuleEraseDominatesEarlierValues(t *testing.T) {
	tr := sequence.NewTree()
	tr.Insert(0, []rune("abc"), 0, alloc(1, 0))
	store := NewStore(tr)
	start := anchorFor(tr, 0, ids.Before)
	end := anchorFor(tr, 3, ids.After)
	store.Put(Record{Creator: ids.OpID{Client: 1, Counter: 50}, Lamport: 1, Name: "comment", Value: "hi", Start: start, End: end})
	store.Put(Record{Creator: ids.OpID{Client: 2, Counter: 50}, Lamport: 1, Name: "comment", Value: "there", Start: start, End: end})
	store.Invalidate()
	require.Len(t, store.Spans(), 1)

	// eraseAnn(range, "comment") carries no id naming which of the two
	// concurrent values it means to retract (spec §6's fixed contract),
	// so a causally-later erase dominates every assertion it postdates
	// rather than retracting just one.
	store.Put(Record{Creator: ids.OpID{Client: 3, Counter: 1}, Lamport: 2, Name: "comment", Erased: true, Start: start, End: end})
	store.Invalidate()

	spans := store.Spans()
	require.Len(t, spans, 1)
	assert.Nil(t, spans[0].Attributes)

	// an assertion made after the erase (higher Lamport) is unaffected.
	store.Put(Record{Creator: ids.OpID{Client: 4, Counter: 1}, Lamport: 3, Name: "comment", Value: "later", Start: start, End: end})
	store.Invalidate()

	spans = store.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, map[string]any{"comment": []any{"later"}}, spans[0].Attributes)
}

func TestBoldLikeErasureWinsIfLater(t *testing.T) {
	assertRec := &Record{Lamport: 1, Erased: false, Value: nil}
	eraseRec := &Record{Lamport: 2, Erased: true}
	v, ok := resolveBoldLike([]*Record{assertRec, eraseRec})
	assert.False(t, ok)
	assert.Nil(t, v)

	// an earlier erasure does not win over a later assertion.
	assertRec2 := &Record{Lamport: 5, Erased: false, Value: nil}
	eraseRec2 := &Record{Lamport: 2, Erased: true}
	v2, ok2 := resolveBoldLike([]*Record{assertRec2, eraseRec2})
	assert.True(t, ok2)
	assert.Nil(t, v2)
}

func TestSingleRuleHigherClientWinsOnTie(t *testing.T) {
	low := &Record{Creator: ids.OpID{Client: 1}, Lamport: 4, Value: "a"}
	high := &Record{Creator: ids.OpID{Client: 9}, Lamport: 4, Value: "b"}
	v, ok := resolveSingle([]*Record{low, high})
	require.True(t, ok)
	assert.Equal(t, "b", v)
}
