package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textcrdt/core/internal/ids"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ops := []Op{
		{
			ID:          ids.OpID{Client: 1, Counter: 0},
			Kind:        Insert,
			Rune:        'h',
			LeftOrigin:  ids.Nil,
			RightOrigin: ids.Nil,
		},
		{
			ID:          ids.OpID{Client: 1, Counter: 1},
			Kind:        Insert,
			Rune:        'i',
			LeftOrigin:  ids.OpID{Client: 1, Counter: 0},
			RightOrigin: ids.Nil,
		},
		{
			ID:     ids.OpID{Client: 1, Counter: 2},
			Kind:   Delete,
			Target: ids.OpID{Client: 1, Counter: 0},
			Count:  2,
		},
		{
			ID:      ids.OpID{Client: 2, Counter: 0},
			Kind:    Annotate,
			Name:    "bold",
			Value:   nil,
			Lamport: 3,
			Start:   ids.Anchor{Ref: ids.OpID{Client: 1, Counter: 1}, Side: ids.Before},
			End:     ids.Tail,
		},
		{
			ID:      ids.OpID{Client: 2, Counter: 1},
			Kind:    Annotate,
			Name:    "header",
			Value:   2,
			Lamport: 4,
			Start:   ids.Head,
			End:     ids.Anchor{Ref: ids.OpID{Client: 1, Counter: 1}, Side: ids.After},
		},
		{
			ID:      ids.OpID{Client: 2, Counter: 2},
			Kind:    EraseAnn,
			Name:    "bold",
			Lamport: 5,
			Start:   ids.Anchor{Ref: ids.OpID{Client: 1, Counter: 1}, Side: ids.Before},
			End:     ids.Tail,
		},
	}

	blob := Encode(ops)
	require.NotEmpty(t, blob)

	decoded, err := Decode(blob)
	require.NoError(t, err)
	require.Len(t, decoded, len(ops))

	for i := range ops {
		assert.Equal(t, ops[i].ID, decoded[i].ID)
		assert.Equal(t, ops[i].Kind, decoded[i].Kind)
		switch ops[i].Kind {
		case Insert:
			assert.Equal(t, ops[i].Rune, decoded[i].Rune)
			assert.Equal(t, ops[i].LeftOrigin, decoded[i].LeftOrigin)
			assert.Equal(t, ops[i].RightOrigin, decoded[i].RightOrigin)
		case Delete:
			assert.Equal(t, ops[i].Target, decoded[i].Target)
			assert.Equal(t, ops[i].Count, decoded[i].Count)
		case Annotate, EraseAnn:
			assert.Equal(t, ops[i].Name, decoded[i].Name)
			assert.Equal(t, ops[i].Lamport, decoded[i].Lamport)
			assert.Equal(t, ops[i].Start, decoded[i].Start)
			assert.Equal(t, ops[i].End, decoded[i].End)
			if ops[i].Kind == Annotate {
				assert.Equal(t, ops[i].Value, decoded[i].Value)
			}
		}
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	_, err := Decode([]byte{0xff, 0, 0, 0})
	assert.ErrorIs(t, err, ErrDecodeError)
}

func TestZipPairRoundTrip(t *testing.T) {
	cases := [][2]uint64{{0, 0}, {1, 0}, {0, 1}, {255, 65535}, {1 << 40, 7}}
	for _, c := range cases {
		buf := zipPair(c[0], c[1])
		big, lil := unzipPair(buf)
		assert.Equal(t, c[0], big)
		assert.Equal(t, c[1], lil)
		assert.Equal(t, len(buf), zipPairLen(buf))
	}
}

func TestLogExportImportRoundTrip(t *testing.T) {
	src := NewLog()
	src.Append(Op{ID: ids.OpID{Client: 1, Counter: 0}, Kind: Insert, Rune: 'a'})
	src.Append(Op{ID: ids.OpID{Client: 1, Counter: 1}, Kind: Insert, Rune: 'b'})

	dst := NewLog()
	var applied []Op
	err := dst.Import(src.Export(dst.Version()), func(op Op) error {
		applied = append(applied, op)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, applied, 2)
	assert.True(t, dst.Version().Covers(src.Version()))

	// re-importing the same delta is a no-op.
	applied = nil
	err = dst.Import(src.Export(ids.New()), func(op Op) error {
		applied = append(applied, op)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestLogImportRejectsCausalGap(t *testing.T) {
	dst := NewLog()
	gappy := []Op{{ID: ids.OpID{Client: 9, Counter: 5}, Kind: Insert, Rune: 'z'}}
	err := dst.Import(gappy, func(Op) error { return nil })
	assert.ErrorIs(t, err, ErrCausalGap)
}

func TestInternerStableIDs(t *testing.T) {
	in := NewInterner()
	a := in.Intern("bold")
	b := in.Intern("italic")
	a2 := in.Intern("bold")
	assert.Equal(t, a, a2)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "bold", in.Name(a))
	assert.Equal(t, "italic", in.Name(b))
}
