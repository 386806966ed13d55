package core

import (
	"github.com/pkg/errors"

	"github.com/textcrdt/core/internal/delta"
)

// ApplyDelta replays an editor-style retain/insert/delete script against
// the document (spec §6 "apply_delta(ops)"). Bounds are checked against
// the document's current length before any sub-step runs, so a script
// that would run off the end aborts without touching the document (spec
// §6 "any sub-step error aborts").
func (d *Document) ApplyDelta(ops []delta.Op) error {
	if err := d.checkReentrant(); err != nil {
		return err
	}
	consumed := 0
	for _, op := range ops {
		switch op.Kind {
		case delta.Retain, delta.Delete:
			if op.Length < 0 {
				return errors.Wrap(ErrMalformedInput, "apply_delta: negative length")
			}
			consumed += op.Length
		}
	}
	if consumed > d.tree.Len() {
		return errors.Wrap(ErrRangeOutOfBounds, "apply_delta: script consumes more than the document holds")
	}

	cursor := 0
	for _, op := range ops {
		switch op.Kind {
		case delta.Retain:
			if len(op.Attributes) > 0 {
				if err := d.restampRange(cursor, cursor+op.Length, op.Attributes); err != nil {
					return err
				}
			}
			cursor += op.Length
		case delta.Insert:
			width := utf16Len(op.Text)
			if err := d.Insert(cursor, op.Text); err != nil {
				return err
			}
			for name, value := range op.Attributes {
				if err := d.Annotate(cursor, cursor+width, name, value); err != nil {
					return err
				}
			}
			cursor += width
		case delta.Delete:
			if err := d.Delete(cursor, op.Length); err != nil {
				return err
			}
		}
	}
	return nil
}

// restampRange makes the active annotation set over [start, end) match
// target exactly: names present in target are (re-)asserted, names
// currently active but absent from target are erased.
func (d *Document) restampRange(start, end int, target map[string]any) error {
	active := map[string]struct{}{}
	for _, sp := range sliceSpans(d.store.Spans(), d.tree, start, end) {
		for name := range sp.Attributes {
			active[name] = struct{}{}
		}
	}
	for name := range active {
		if _, keep := target[name]; !keep {
			if err := d.EraseAnn(start, end, name); err != nil {
				return err
			}
		}
	}
	for name, value := range target {
		if err := d.Annotate(start, end, name, value); err != nil {
			return err
		}
	}
	return nil
}
