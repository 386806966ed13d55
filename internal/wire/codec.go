package wire

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"encoding/gob"
	"io"

	"github.com/pkg/errors"
	"github.com/learn-decentralized-systems/toytlv"
	"github.com/learn-decentralized-systems/toyqueue"

	"github.com/textcrdt/core/internal/ids"
)

// FormatVersion is the first byte of every encoded blob. Decode skips
// unknown columns of a *higher* minor version forward-compatibly (spec
// §4.3 "additive, forward-compatible") but refuses a blob whose leading
// version byte it does not recognize at all.
const FormatVersion byte = 1

var (
	ErrDecodeError = errors.New("wire: malformed operation log blob")
	ErrCausalGap   = errors.New("wire: import has a causal gap")
)

const (
	litTable    = 'S'
	litName     = 'N'
	litBody     = 'B'
	litIDs      = 'I'
	litKind     = 'K'
	litRune     = 'R'
	litLeft     = 'L'
	litRight    = 'G'
	litTarget   = 'T'
	litNameIdx  = 'X'
	litValue    = 'V'
	litLamport  = 'M'
	litAnchor   = 'A'
	litAnchor2  = 'E'
	litCount    = 'C'
)

// Encode serializes ops into a self-contained, columnar, deflate-compressed
// blob (spec §4.3 "Delta encoding"). ops need not be causally complete;
// Encode makes no ordering assumptions beyond what's already in the
// slice.
func Encode(ops []Op) []byte {
	interner := NewInterner()
	for _, op := range ops {
		if op.Kind == Annotate || op.Kind == EraseAnn {
			interner.Intern(op.Name)
		}
	}

	body := encodeColumns(ops, interner)

	var compressed bytes.Buffer
	zw, _ := flate.NewWriter(&compressed, flate.BestSpeed)
	_, _ = zw.Write(body)
	_ = zw.Close()

	var out []byte
	out = append(out, FormatVersion)
	out = toytlv.AppendHeader(out, litTable, tableLen(interner.Table()))
	out = appendTable(out, interner.Table())

	uvarint := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(uvarint, uint64(len(body)))
	blobBody := append(uvarint[:n], compressed.Bytes()...)
	out = toytlv.AppendHeader(out, litBody, len(blobBody))
	out = append(out, blobBody...)
	return out
}

func tableLen(names []string) int {
	n := 0
	for _, name := range names {
		n += len(toytlv.AppendHeader(nil, litName, len(name))) + len(name)
	}
	return n
}

func appendTable(out []byte, names []string) []byte {
	for _, name := range names {
		out = toytlv.AppendHeader(out, litName, len(name))
		out = append(out, name...)
	}
	return out
}

// Decode parses a blob produced by Encode.
func Decode(blob []byte) ([]Op, error) {
	if len(blob) == 0 || blob[0] != FormatVersion {
		return nil, errors.Wrap(ErrDecodeError, "unrecognized format version")
	}
	rest := blob[1:]

	tableBytes, rest := toytlv.Take(litTable, rest)
	if tableBytes == nil {
		return nil, errors.Wrap(ErrDecodeError, "missing string table")
	}
	var names []string
	for len(tableBytes) > 0 {
		var body []byte
		body, tableBytes = toytlv.Take(litName, tableBytes)
		if body == nil {
			return nil, errors.Wrap(ErrDecodeError, "malformed string table")
		}
		names = append(names, string(body))
	}
	interner := LoadTable(names)

	blobBody, _ := toytlv.Take(litBody, rest)
	if blobBody == nil {
		return nil, errors.Wrap(ErrDecodeError, "missing body")
	}
	uncompLen, n := binary.Uvarint(blobBody)
	if n <= 0 {
		return nil, errors.Wrap(ErrDecodeError, "bad body length prefix")
	}
	zr := flate.NewReader(bytes.NewReader(blobBody[n:]))
	defer zr.Close()
	body := make([]byte, uncompLen)
	if _, err := io.ReadFull(zr, body); err != nil {
		return nil, errors.Wrap(ErrDecodeError, "flate decompression failed")
	}

	return decodeColumns(body, interner)
}

func encodeColumns(ops []Op, in *Interner) []byte {
	var idsCol, kindCol, runeCol, leftCol, rightCol, targetCol, countCol, nameCol, valueCol, lamportCol, startCol, endCol []byte

	for _, op := range ops {
		idsCol = append(idsCol, zipPair(uint64(op.ID.Client), uint64(op.ID.Counter))...)
		kindCol = append(kindCol, byte(op.Kind))

		switch op.Kind {
		case Insert:
			runeCol = appendUvarint(runeCol, uint64(op.Rune))
			leftCol = append(leftCol, zipPair(uint64(op.LeftOrigin.Client), uint64(op.LeftOrigin.Counter))...)
			rightCol = append(rightCol, zipPair(uint64(op.RightOrigin.Client), uint64(op.RightOrigin.Counter))...)
			lamportCol = appendUvarint(lamportCol, op.Lamport)
		case Delete:
			targetCol = append(targetCol, zipPair(uint64(op.Target.Client), uint64(op.Target.Counter))...)
			countCol = appendUvarint(countCol, uint64(op.Count))
		case Annotate, EraseAnn:
			nameCol = appendUvarint(nameCol, uint64(in.Intern(op.Name)))
			lamportCol = appendUvarint(lamportCol, op.Lamport)
			startCol = appendAnchor(startCol, op.Start)
			endCol = appendAnchor(endCol, op.End)
			if op.Kind == Annotate {
				var buf bytes.Buffer
				_ = gob.NewEncoder(&buf).Encode(&op.Value)
				valueCol = appendUvarint(valueCol, uint64(buf.Len()))
				valueCol = append(valueCol, buf.Bytes()...)
			}
		}
	}

	// Each column is framed as its own TLV record and the records are
	// carried as a toyqueue.Records batch before being joined into the
	// final flat body — the same Records shape
	// _examples/drpcorg-chotki/toytlv/reader.go's Feed/Drain pair moves
	// between the wire and the object store, reused here purely as an
	// in-memory column batch since this module carries no network
	// transport of its own (see DESIGN.md).
	recs := toyqueue.Records{
		frameCol(litIDs, idsCol),
		frameCol(litKind, kindCol),
		frameCol(litRune, runeCol),
		frameCol(litLeft, leftCol),
		frameCol(litRight, rightCol),
		frameCol(litTarget, targetCol),
		frameCol(litCount, countCol),
		frameCol(litNameIdx, nameCol),
		frameCol(litValue, valueCol),
		frameCol(litLamport, lamportCol),
		frameCol(litAnchor, startCol),
		frameCol(litAnchor2, endCol),
	}
	return bytes.Join(recs, nil)
}

func frameCol(lit byte, col []byte) []byte {
	return append(toytlv.AppendHeader(nil, lit, len(col)), col...)
}

func appendUvarint(dst []byte, v uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(dst, buf[:n]...)
}

func appendAnchor(dst []byte, a ids.Anchor) []byte {
	dst = append(dst, byte(a.Side))
	dst = append(dst, zipPair(uint64(a.Ref.Client), uint64(a.Ref.Counter))...)
	return dst
}

func decodeColumns(body []byte, in *Interner) ([]Op, error) {
	cols := map[byte][]byte{}
	rest := body
	for len(rest) > 0 {
		lit, b, r := toytlv.TakeAny(rest)
		if lit == 0 {
			return nil, errors.Wrap(ErrDecodeError, "malformed column stream")
		}
		cols[lit] = b
		rest = r
	}

	idsCol := cols[litIDs]
	kindCol := cols[litKind]
	n := len(kindCol)

	runeCol := cols[litRune]
	leftCol := cols[litLeft]
	rightCol := cols[litRight]
	targetCol := cols[litTarget]
	countCol := cols[litCount]
	nameCol := cols[litNameIdx]
	valueCol := cols[litValue]
	lamportCol := cols[litLamport]
	startCol := cols[litAnchor]
	endCol := cols[litAnchor2]

	ops := make([]Op, 0, n)
	for i := 0; i < n; i++ {
		var op Op
		c, ctr := unzipPair(idsCol)
		idsCol = idsCol[zipPairLen(idsCol):]
		op.ID = ids.OpID{Client: ids.ClientID(c), Counter: ids.Counter(ctr)}
		op.Kind = Kind(kindCol[i])

		switch op.Kind {
		case Insert:
			r, m := binary.Uvarint(runeCol)
			if m <= 0 {
				return nil, errors.Wrap(ErrDecodeError, "bad rune column")
			}
			runeCol = runeCol[m:]
			op.Rune = rune(r)

			lc, lctr := unzipPair(leftCol)
			leftCol = leftCol[zipPairLen(leftCol):]
			op.LeftOrigin = ids.OpID{Client: ids.ClientID(lc), Counter: ids.Counter(lctr)}

			rc, rctr := unzipPair(rightCol)
			rightCol = rightCol[zipPairLen(rightCol):]
			op.RightOrigin = ids.OpID{Client: ids.ClientID(rc), Counter: ids.Counter(rctr)}

			lamport, lm := binary.Uvarint(lamportCol)
			if lm <= 0 {
				return nil, errors.Wrap(ErrDecodeError, "bad lamport column")
			}
			lamportCol = lamportCol[lm:]
			op.Lamport = lamport

		case Delete:
			tc, tctr := unzipPair(targetCol)
			targetCol = targetCol[zipPairLen(targetCol):]
			op.Target = ids.OpID{Client: ids.ClientID(tc), Counter: ids.Counter(tctr)}

			count, m := binary.Uvarint(countCol)
			if m <= 0 {
				return nil, errors.Wrap(ErrDecodeError, "bad count column")
			}
			countCol = countCol[m:]
			op.Count = uint32(count)

		case Annotate, EraseAnn:
			nameID, m := binary.Uvarint(nameCol)
			if m <= 0 {
				return nil, errors.Wrap(ErrDecodeError, "bad name column")
			}
			nameCol = nameCol[m:]
			op.Name = in.Name(uint32(nameID))

			lamport, m2 := binary.Uvarint(lamportCol)
			if m2 <= 0 {
				return nil, errors.Wrap(ErrDecodeError, "bad lamport column")
			}
			lamportCol = lamportCol[m2:]
			op.Lamport = lamport

			var err error
			op.Start, startCol, err = takeAnchor(startCol)
			if err != nil {
				return nil, err
			}
			op.End, endCol, err = takeAnchor(endCol)
			if err != nil {
				return nil, err
			}

			if op.Kind == Annotate {
				vlen, m3 := binary.Uvarint(valueCol)
				if m3 <= 0 {
					return nil, errors.Wrap(ErrDecodeError, "bad value column")
				}
				valueCol = valueCol[m3:]
				if uint64(len(valueCol)) < vlen {
					return nil, errors.Wrap(ErrDecodeError, "truncated value column")
				}
				var v any
				if err := gob.NewDecoder(bytes.NewReader(valueCol[:vlen])).Decode(&v); err != nil {
					return nil, errors.Wrap(ErrDecodeError, "bad value payload")
				}
				op.Value = v
				valueCol = valueCol[vlen:]
			}
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func takeAnchor(col []byte) (ids.Anchor, []byte, error) {
	if len(col) < 1 {
		return ids.Anchor{}, col, errors.Wrap(ErrDecodeError, "truncated anchor column")
	}
	side := ids.Side(col[0])
	col = col[1:]
	c, ctr := unzipPair(col)
	col = col[zipPairLen(col):]
	return ids.Anchor{Ref: ids.OpID{Client: ids.ClientID(c), Counter: ids.Counter(ctr)}, Side: side}, col, nil
}
