package wire

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/textcrdt/core/internal/ids"
)

// Log is the append-only operation log a Document keeps for export/import
// (spec §4.3). It tracks a version vector so Export can compute a causal
// delta and Import can detect gaps (spec I6).
type Log struct {
	ops []Op
	vv  ids.VersionVector
}

// NewLog returns an empty operation log.
func NewLog() *Log {
	return &Log{vv: ids.New()}
}

// Append records a locally-generated op and advances the log's version
// vector. Callers must append ops for a given client in counter order.
func (l *Log) Append(op Op) {
	l.ops = append(l.ops, op)
	l.vv.Advance(op.ID)
}

// Version returns a copy of the log's current version vector.
func (l *Log) Version() ids.VersionVector {
	return l.vv.Clone()
}

// Clone returns an independent copy of l, sharing no backing storage
// with the original. Used to stage an Import batch against scratch
// state (spec §5 "Cancellation"; see Document.Import).
func (l *Log) Clone() *Log {
	ops := make([]Op, len(l.ops))
	copy(ops, l.ops)
	return &Log{ops: ops, vv: l.vv.Clone()}
}

// NextID allocates a fresh local OpID for client (spec §4.4 "every
// public mutation allocates OpIDs from the replica's counter"). The
// caller is expected to Append an op carrying this ID shortly after;
// NextID itself only reserves the counter value.
func (l *Log) NextID(client ids.ClientID) ids.OpID {
	return l.vv.NextID(client)
}

// All returns every op ever appended, in append order.
func (l *Log) All() []Op {
	return l.ops
}

// Export returns the ops not covered by since, i.e. the causal delta a
// peer holding since needs to catch up (spec §4.3 "Export").
func (l *Log) Export(since ids.VersionVector) []Op {
	var out []Op
	for _, op := range l.ops {
		if since.Has(op.ID) {
			continue
		}
		out = append(out, op)
	}
	return out
}

// Import merges a batch of remote ops into the log. The causal-gap check
// runs over the whole batch first: if any op is not causally ready,
// nothing is applied and ErrCausalGap is returned (spec §4.3 "Import").
// apply is invoked, in causal (per-client counter) order, for each op not
// already seen; it should perform the actual CRDT-side integration. If
// apply returns an error, Import stops and returns it, with the ops
// applied before it already recorded in l.
func (l *Log) Import(ops []Op, apply func(Op) error) error {
	byClient := map[ids.ClientID][]Op{}
	for _, op := range ops {
		byClient[op.ID.Client] = append(byClient[op.ID.Client], op)
	}
	for c, batch := range byClient {
		sort.Slice(batch, func(i, j int) bool { return batch[i].ID.Counter < batch[j].ID.Counter })
		next := l.vv.Get(c)
		for _, op := range batch {
			if op.ID.Counter < next {
				continue // already seen
			}
			if op.ID.Counter > next {
				return errors.Wrapf(ErrCausalGap, "client %d: have up to %d, got %d", c, next-1, op.ID.Counter)
			}
			next++
		}
	}

	// Every client's batch is contiguous from the log's current
	// frontier; safe to apply in per-client counter order.
	for c, batch := range byClient {
		next := l.vv.Get(c)
		for _, op := range batch {
			if op.ID.Counter < next {
				continue
			}
			if err := apply(op); err != nil {
				return err
			}
			l.ops = append(l.ops, op)
			l.vv.Advance(op.ID)
		}
	}
	return nil
}
