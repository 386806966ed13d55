package annotation

import "github.com/textcrdt/core/internal/ids"

// resolve applies name's merge rule to the set of records currently
// covering a position, returning the active value (or ok=false if the
// name is absent there). Generalizes
// _examples/drpcorg-chotki/lww.go's LWWmerge (latest-by-time-then-bytes)
// to the four rules spec §3 names.
func resolve(name string, recs []*Record) (any, bool) {
	if len(recs) == 0 {
		return nil, false
	}
	switch Lookup(name).Rule {
	case Multi:
		return resolveMulti(recs)
	case BoldLike:
		return resolveBoldLike(recs)
	case LinkLike:
		return resolveLinkLike(recs)
	default:
		return resolveSingle(recs)
	}
}

func resolveSingle(recs []*Record) (any, bool) {
	winner := recs[0]
	for _, r := range recs[1:] {
		if r.wins(winner) {
			winner = r
		}
	}
	if winner.Erased {
		return nil, false
	}
	return winner.Value, true
}

func resolveLinkLike(recs []*Record) (any, bool) {
	winner := recs[0]
	for _, r := range recs[1:] {
		if r.winsByOpID(winner) {
			winner = r
		}
	}
	if winner.Erased {
		return nil, false
	}
	return winner.Value, true
}

// resolveMulti collects every distinct annotation's surviving value into
// a set (spec §3 "Multi: multiple concurrent values coexist as a set").
// Re-delivery of the identical op is deduped by grouping assertions by
// the full Creator OpID rather than by client, the way
// _examples/original_source/src/rich_text/ann.rs's calc_styles groups
// AllowMultiple annotations by (type_, Some(ann.id)), never by author
// alone — two different Annotate calls from the same client are two
// distinct concurrent values and must both survive; only the exact same
// op seen twice collapses.
//
// spec §6 fixes eraseAnn's contract at eraseAnn(range, name): it carries
// no id naming which of several concurrent Multi values it means to
// retract, unlike the target_id parameter
// _examples/original_source/src/legacy/mod.rs's delete_annotation takes.
// An eraseAnn record therefore can't be matched back to one assertion's
// Creator; instead it acts as a Lamport floor over the whole range, the
// same "later erasure beats every earlier assertion" rule
// resolveBoldLike applies to its single value (spec §3 "erasure wins
// over assertion if causally later"), generalized here to dominate each
// value in the set independently. A concurrent assertion whose own
// Lamport exceeds the erase's still survives.
func resolveMulti(recs []*Record) (any, bool) {
	latestByOp := map[ids.OpID]*Record{}
	for _, r := range recs {
		if cur, ok := latestByOp[r.Creator]; !ok || r.wins(cur) {
			latestByOp[r.Creator] = r
		}
	}
	var maxErase uint64
	haveErase := false
	for _, r := range latestByOp {
		if r.Erased && (!haveErase || r.Lamport > maxErase) {
			maxErase = r.Lamport
			haveErase = true
		}
	}
	var values []any
	for _, r := range latestByOp {
		if r.Erased || (haveErase && maxErase > r.Lamport) {
			continue
		}
		values = append(values, r.Value)
	}
	if len(values) == 0 {
		return nil, false
	}
	return values, true
}

// resolveBoldLike ORs concurrent assertions together (any live assertion
// makes the name active, surfacing the highest-Lamport assertion's
// value), unless a strictly later erasure supersedes every assertion
// (spec §3 "erasure wins over assertion if causally later").
func resolveBoldLike(recs []*Record) (any, bool) {
	var winner *Record
	var maxErase uint64
	haveErase := false
	for _, r := range recs {
		if r.Erased {
			if !haveErase || r.Lamport > maxErase {
				maxErase = r.Lamport
			}
			haveErase = true
			continue
		}
		if winner == nil || r.wins(winner) {
			winner = r
		}
	}
	if winner == nil {
		return nil, false
	}
	if haveErase && maxErase > winner.Lamport {
		return nil, false
	}
	return winner.Value, true
}
