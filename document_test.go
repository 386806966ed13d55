package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textcrdt/core/internal/delta"
	"github.com/textcrdt/core/internal/ids"
	"github.com/textcrdt/core/internal/wire"
)

// S1: a fresh replica importing another's full export converges.
func TestScenarioS1CrossReplicaImport(t *testing.T) {
	tDoc := New(1)
	require.NoError(t, tDoc.Insert(0, "123"))

	uDoc := New(2)
	require.NoError(t, uDoc.Import(tDoc.Export(ids.New())))

	assert.Equal(t, "123", uDoc.ToString())
}

// S2: typing immediately after a bold run extends the bold span.
func TestScenarioS2BoldExpands(t *testing.T) {
	doc := New(2)
	require.NoError(t, doc.Insert(0, "123"))
	require.NoError(t, doc.Annotate(0, 1, "bold", nil))
	require.NoError(t, doc.Insert(1, "k"))

	spans := doc.GetAnnSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "1k", spans[0].Text)
	assert.Equal(t, map[string]any{"bold": nil}, spans[0].Attributes)
	assert.Equal(t, "23", spans[1].Text)
	assert.Nil(t, spans[1].Attributes)
}

// S3: erasing over an expanded bold range collapses back to one plain span.
func TestScenarioS3EraseAnnAfterExpand(t *testing.T) {
	doc := New(2)
	require.NoError(t, doc.Insert(0, "123"))
	require.NoError(t, doc.Annotate(0, 1, "bold", nil))
	require.NoError(t, doc.Insert(1, "k"))
	require.NoError(t, doc.EraseAnn(0, 2, "bold"))

	spans := doc.GetAnnSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "1k23", spans[0].Text)
	assert.Nil(t, spans[0].Attributes)
}

// S4: UTF-16 offsets and astral-adjacent inserts land correctly, and an
// annotation drawn over an inserted run covers exactly that run.
func TestScenarioS4UTF16Offsets(t *testing.T) {
	doc := New(1)
	require.NoError(t, doc.Insert(0, "你好，世界！"))
	require.NoError(t, doc.Insert(2, "呀"))
	assert.Equal(t, "你好呀，世界！", doc.ToString())

	require.NoError(t, doc.Annotate(0, 3, "bold", nil))
	spans := doc.GetAnnSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "你好呀", spans[0].Text)
	assert.Equal(t, map[string]any{"bold": nil}, spans[0].Attributes)
	assert.Equal(t, "，世界！", spans[1].Text)
}

// S5: get_line splits the document at newlines.
func TestScenarioS5GetLine(t *testing.T) {
	doc := New(1)
	require.NoError(t, doc.Insert(0, "你好，\n世界！"))

	line0, ok := doc.GetLine(0)
	require.True(t, ok)
	require.Len(t, line0, 1)
	assert.Equal(t, "你好，\n", line0[0].Text)

	line1, ok := doc.GetLine(1)
	require.True(t, ok)
	require.Len(t, line1, 1)
	assert.Equal(t, "世界！", line1[0].Text)

	_, ok = doc.GetLine(2)
	assert.False(t, ok)
}

// S6: replaying every observed delta script against a plain string
// reconstructs to_string() after every mutation, local and remote.
func TestScenarioS6ObserverScriptReconstructsText(t *testing.T) {
	doc := New(1)
	replica := []rune{}

	doc.Observe(func(ev delta.Event) {
		replica = applyOpsToRunes(t, replica, ev.Ops)
	})

	require.NoError(t, doc.Insert(0, "hello"))
	assert.Equal(t, doc.ToString(), string(replica))

	require.NoError(t, doc.Annotate(0, 5, "bold", nil))
	assert.Equal(t, doc.ToString(), string(replica))

	require.NoError(t, doc.Delete(1, 2))
	assert.Equal(t, doc.ToString(), string(replica))

	other := New(2)
	require.NoError(t, other.Insert(0, "zz"))
	require.NoError(t, doc.Import(other.Export(ids.New())))
	assert.Equal(t, doc.ToString(), string(replica))
}

func applyOpsToRunes(t *testing.T, buf []rune, ops []delta.Op) []rune {
	t.Helper()
	var out []rune
	i := 0
	for _, op := range ops {
		switch op.Kind {
		case delta.Retain:
			require.LessOrEqual(t, i+op.Length, len(buf))
			out = append(out, buf[i:i+op.Length]...)
			i += op.Length
		case delta.Insert:
			out = append(out, []rune(op.Text)...)
		case delta.Delete:
			require.LessOrEqual(t, i+op.Length, len(buf))
			i += op.Length
		}
	}
	out = append(out, buf[i:]...)
	return out
}

// A Delete op whose Target atom this replica has never seen fails
// integration partway through a batch; the whole import must leave the
// document exactly as it was rather than applying the ops ahead of it
// (spec §5 "Cancellation: all-or-nothing").
func TestImportLeavesDocumentUntouchedOnMidBatchFailure(t *testing.T) {
	doc := New(1)
	require.NoError(t, doc.Insert(0, "ab"))
	before := doc.ToString()
	beforeVersion := doc.Version().DebugMap()
	beforeLogLen := len(doc.log.All())

	badBatch := []wire.Op{
		{ID: ids.OpID{Client: 9, Counter: 0}, Kind: wire.Insert, Rune: 'x', LeftOrigin: ids.Nil, RightOrigin: ids.Nil, Lamport: 1},
		{ID: ids.OpID{Client: 9, Counter: 1}, Kind: wire.Delete, Target: ids.OpID{Client: 42, Counter: 7}, Count: 1},
	}
	err := doc.Import(wire.Encode(badBatch))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInternalInvariant)

	assert.Equal(t, before, doc.ToString())
	assert.Equal(t, beforeVersion, doc.Version().DebugMap())
	assert.Equal(t, beforeLogLen, len(doc.log.All()))
}

// P3: import(export(V)) is a no-op against a replica already at V.
func TestPropertyP3ImportOwnExportIsNoop(t *testing.T) {
	doc := New(1)
	require.NoError(t, doc.Insert(0, "abc"))
	before := doc.ToString()

	blob := doc.Export(doc.Version())
	require.NoError(t, doc.Import(blob))

	assert.Equal(t, before, doc.ToString())
}

// P4: slicing back the just-inserted range returns exactly what was
// inserted.
func TestPropertyP4SliceMatchesInsert(t *testing.T) {
	doc := New(1)
	require.NoError(t, doc.Insert(0, "hello world"))
	s, err := doc.SliceString(0, 11)
	require.NoError(t, err)
	assert.Equal(t, "hello world", s)
}

// P5: annotate immediately followed by eraseAnn over the same range
// leaves the name absent everywhere in that range.
func TestPropertyP5AnnotateThenErase(t *testing.T) {
	doc := New(1)
	require.NoError(t, doc.Insert(0, "abcdef"))
	require.NoError(t, doc.Annotate(0, 3, "bold", nil))
	require.NoError(t, doc.EraseAnn(0, 3, "bold"))

	for _, sp := range doc.GetAnnSpans() {
		_, has := sp.Attributes["bold"]
		assert.False(t, has)
	}
}

// No-interleaving: two replicas independently appending at the tail of
// the same empty document, with neither having seen the other's op
// before inserting, never interleave once merged.
func TestNoInterleavingConcurrentTailAppends(t *testing.T) {
	a := New(1)
	require.NoError(t, a.Insert(0, "abc"))
	b := New(2)
	require.NoError(t, b.Insert(0, "xyz"))

	merged := New(1)
	require.NoError(t, merged.Import(a.Export(ids.New())))
	require.NoError(t, merged.Import(b.Export(ids.New())))
	got := merged.ToString()
	assert.True(t, got == "abcxyz" || got == "xyzabc", "unexpected interleaving: %q", got)

	// merging in the opposite order converges to the same string (strong
	// eventual consistency, spec §5).
	mergedOther := New(2)
	require.NoError(t, mergedOther.Import(b.Export(ids.New())))
	require.NoError(t, mergedOther.Import(a.Export(ids.New())))
	assert.Equal(t, got, mergedOther.ToString())
}

func TestReentrantMutationFromObserverFails(t *testing.T) {
	doc := New(1)
	var innerErr error
	doc.Observe(func(delta.Event) {
		innerErr = doc.Insert(0, "x")
	})
	require.NoError(t, doc.Insert(0, "a"))
	require.Error(t, innerErr)
	assert.ErrorIs(t, innerErr, ErrInternalInvariant)
}

func TestDeleteEmitsSingleOpWithCount(t *testing.T) {
	doc := New(1)
	require.NoError(t, doc.Insert(0, "hello"))
	before := len(doc.log.All())
	require.NoError(t, doc.Delete(1, 3))

	all := doc.log.All()
	require.Len(t, all, before+1)
	last := all[len(all)-1]
	assert.EqualValues(t, 3, last.Count)
}

func TestApplyDeltaBulkEditAbortsAtomically(t *testing.T) {
	doc := New(1)
	require.NoError(t, doc.Insert(0, "hello world"))

	err := doc.ApplyDelta([]delta.Op{
		{Kind: delta.Retain, Length: 5},
		{Kind: delta.Delete, Length: 100}, // runs off the end
	})
	require.Error(t, err)
	assert.Equal(t, "hello world", doc.ToString())

	// "link" shrinks at its end boundary (unlike bold), so the retained
	// run keeps its annotation without absorbing the appended "there".
	require.NoError(t, doc.ApplyDelta([]delta.Op{
		{Kind: delta.Retain, Length: 6, Attributes: map[string]any{"link": "http://x"}},
		{Kind: delta.Delete, Length: 5},
		{Kind: delta.Insert, Text: "there"},
	}))
	assert.Equal(t, "hello there", doc.ToString())
	spans := doc.GetAnnSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "hello ", spans[0].Text)
	assert.Equal(t, map[string]any{"link": "http://x"}, spans[0].Attributes)
}
