package core

import (
	"github.com/pkg/errors"

	"github.com/textcrdt/core/internal/annotation"
	"github.com/textcrdt/core/internal/ids"
	"github.com/textcrdt/core/internal/sequence"
	"github.com/textcrdt/core/internal/wire"
)

// sequenceAtom converts a decoded Insert op back into the sequence
// engine's own Atom representation.
func sequenceAtom(op wire.Op) sequence.Atom {
	return sequence.Atom{ID: op.ID, Rune: op.Rune, LeftOrigin: op.LeftOrigin, RightOrigin: op.RightOrigin, Lamport: op.Lamport}
}

// Insert splices text into the document at UTF-16 offset offsetUnits
// (spec §6 "insert(offset, text)"). Each rune of text becomes one atom,
// chained onto the previous rune's OpID as its left origin (spec §4.1
// "Insert semantics").
func (d *Document) Insert(offsetUnits int, text string) error {
	if err := d.checkReentrant(); err != nil {
		return err
	}
	if offsetUnits < 0 || offsetUnits > d.tree.Len() {
		return errors.Wrapf(ErrRangeOutOfBounds, "insert(%d)", offsetUnits)
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	rank, err := d.tree.BoundaryRank(offsetUnits)
	if err != nil {
		return errors.Wrap(ErrRangeOutOfBounds, err.Error())
	}
	lamport := d.nextLamport()
	atoms := d.tree.Insert(rank, runes, lamport, func() ids.OpID { return d.log.NextID(d.client) })
	for _, a := range atoms {
		d.log.Append(wire.Op{ID: a.ID, Kind: wire.Insert, Rune: a.Rune, LeftOrigin: a.LeftOrigin, RightOrigin: a.RightOrigin, Lamport: a.Lamport})
	}
	d.store.Invalidate()
	d.emit(true)
	return nil
}

// Delete removes lengthUnits UTF-16 units of live content starting at
// offsetUnits (spec §6 "delete(offset, length)"). Every atom tombstoned
// by the call is recorded as a single wire.Op carrying a Count, not one
// op per atom (spec §4.4 "one [op] per delete range").
func (d *Document) Delete(offsetUnits, lengthUnits int) error {
	if err := d.checkReentrant(); err != nil {
		return err
	}
	if offsetUnits < 0 || lengthUnits < 0 || offsetUnits+lengthUnits > d.tree.Len() {
		return errors.Wrapf(ErrRangeOutOfBounds, "delete(%d,%d)", offsetUnits, lengthUnits)
	}
	if lengthUnits == 0 {
		return nil
	}
	deleted, err := d.tree.Delete(offsetUnits, lengthUnits)
	if err != nil {
		return errors.Wrap(ErrRangeOutOfBounds, err.Error())
	}
	if len(deleted) == 0 {
		return nil
	}
	id := d.log.NextID(d.client)
	d.log.Append(wire.Op{ID: id, Kind: wire.Delete, Target: deleted[0], Count: uint32(len(deleted))})
	d.store.Invalidate()
	d.emit(true)
	return nil
}

// Annotate asserts name=value over the UTF-16 range [startUnits,
// endUnits) (spec §6 "annotate(start, end, name, value)"). Anchors are
// derived per spec §4.2's "Anchor derivation" rule via anchorsForRange.
func (d *Document) Annotate(startUnits, endUnits int, name string, value any) error {
	if err := d.checkReentrant(); err != nil {
		return err
	}
	start, end, err := d.anchorsForRange(startUnits, endUnits)
	if err != nil {
		return err
	}
	id := d.log.NextID(d.client)
	lamport := d.nextLamport()
	rec := annotation.Record{Creator: id, Lamport: lamport, Name: name, Value: value, Start: start, End: end}
	d.store.Put(rec)
	d.log.Append(wire.Op{ID: id, Kind: wire.Annotate, Name: name, Value: value, Lamport: lamport, Start: start, End: end})
	d.store.Invalidate()
	d.emit(true)
	return nil
}

// EraseAnn retracts a previously-asserted annotation over [startUnits,
// endUnits) (spec §6 "eraseAnn(start, end, name)"). Erasure is itself a
// CRDT write, not a deletion of the original record (spec §3
// "Lifecycles").
func (d *Document) EraseAnn(startUnits, endUnits int, name string) error {
	if err := d.checkReentrant(); err != nil {
		return err
	}
	start, end, err := d.anchorsForRange(startUnits, endUnits)
	if err != nil {
		return err
	}
	id := d.log.NextID(d.client)
	lamport := d.nextLamport()
	rec := annotation.Record{Creator: id, Lamport: lamport, Name: name, Erased: true, Start: start, End: end}
	d.store.Put(rec)
	d.log.Append(wire.Op{ID: id, Kind: wire.EraseAnn, Name: name, Lamport: lamport, Start: start, End: end})
	d.store.Invalidate()
	d.emit(true)
	return nil
}

// Export returns the ops the caller — known to be at remoteVersion —
// hasn't seen yet, encoded as a self-contained blob (spec §6
// "export(remoteVersion)").
func (d *Document) Export(remoteVersion ids.VersionVector) []byte {
	return wire.Encode(d.log.Export(remoteVersion))
}

// Import merges a blob produced by another replica's Export (spec §6
// "import(blob)"). The whole batch is staged against scratch copies of
// the tree, annotation store and op log and only swapped into d once
// every op has integrated cleanly; a decode failure, a causal gap, or a
// mid-batch integration failure (e.g. a Delete whose target the sender
// thought existed but this replica has never seen) all leave d exactly
// as it was before the call, per spec §5 "Cancellation: all-or-nothing".
func (d *Document) Import(blob []byte) error {
	if err := d.checkReentrant(); err != nil {
		return err
	}
	ops, err := wire.Decode(blob)
	if err != nil {
		return errors.Wrap(ErrDecodeError, err.Error())
	}

	treeCopy := d.tree.Clone()
	storeCopy := d.store.Clone(treeCopy)
	logCopy := d.log.Clone()
	lamport := d.lamport

	err = logCopy.Import(ops, func(op wire.Op) error {
		return applyRemoteTo(treeCopy, storeCopy, &lamport, op)
	})
	if err != nil {
		if errors.Is(err, wire.ErrCausalGap) {
			return errors.Wrap(ErrCausalGap, err.Error())
		}
		return err
	}

	d.tree, d.store, d.log, d.lamport = treeCopy, storeCopy, logCopy, lamport
	d.store.Invalidate()
	d.emit(false)
	return nil
}

// applyRemoteTo integrates a single decoded op into tree/store, folding
// any Lamport timestamp it carries into *lamport (the standard
// Lamport-clock merge rule: keep the local clock ahead of everything it
// has seen). Document.Import drives this against scratch copies so a
// failure partway through a batch never touches the live document;
// nothing else calls it directly against d's own live state, since a
// single already-imported op cannot itself fail causally.
func applyRemoteTo(tree *sequence.Tree, store *annotation.Store, lamport *uint64, op wire.Op) error {
	switch op.Kind {
	case wire.Insert:
		if op.Lamport > *lamport {
			*lamport = op.Lamport
		}
		tree.IntegrateRemote(sequenceAtom(op))
	case wire.Delete:
		if _, err := tree.TombstoneRange(op.Target, int(op.Count)); err != nil {
			return invariantViolation("delete range at %s/%d: %v", op.Target, op.Count, err)
		}
	case wire.Annotate:
		if op.Lamport > *lamport {
			*lamport = op.Lamport
		}
		store.Put(annotation.Record{Creator: op.ID, Lamport: op.Lamport, Name: op.Name, Value: op.Value, Start: op.Start, End: op.End})
	case wire.EraseAnn:
		if op.Lamport > *lamport {
			*lamport = op.Lamport
		}
		store.Put(annotation.Record{Creator: op.ID, Lamport: op.Lamport, Name: op.Name, Erased: true, Start: op.Start, End: op.End})
	default:
		return invariantViolation("unknown op kind %d", op.Kind)
	}
	return nil
}
