package ids

import "sort"

// VersionVector maps a client to the next counter value expected from
// it: V[c] = 1 + max applied counter from c, or 0 if no op from c has
// been applied (spec §3 I6).
type VersionVector map[ClientID]Counter

// New returns an empty version vector.
func New() VersionVector {
	return make(VersionVector)
}

// Get returns the next-expected counter for client, or 0 if unknown.
func (vv VersionVector) Get(client ClientID) Counter {
	return vv[client]
}

// Has reports whether id has already been applied under vv.
func (vv VersionVector) Has(id OpID) bool {
	return vv[id.Client] > id.Counter
}

// Advance records that id has been applied, bumping the client's
// next-expected counter if needed. It never moves the counter backwards.
func (vv VersionVector) Advance(id OpID) {
	if next := id.Counter + 1; next > vv[id.Client] {
		vv[id.Client] = next
	}
}

// NextID allocates a fresh OpID for client and advances vv past it. It is
// the single allocation point used by every local mutation (spec §4.4).
func (vv VersionVector) NextID(client ClientID) OpID {
	id := OpID{Client: client, Counter: vv[client]}
	vv.Advance(id)
	return id
}

// Covers reports whether vv dominates other: every client known to other
// has been applied at least as far in vv.
func (vv VersionVector) Covers(other VersionVector) bool {
	for c, ctr := range other {
		if vv[c] < ctr {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of vv.
func (vv VersionVector) Clone() VersionVector {
	out := make(VersionVector, len(vv))
	for c, ctr := range vv {
		out[c] = ctr
	}
	return out
}

// Pairs returns vv as a slice of (client, counter) sorted by client id,
// the canonical serialization order for export (spec §4.3).
type Pair struct {
	Client  ClientID
	Counter Counter
}

func (vv VersionVector) Pairs() []Pair {
	out := make([]Pair, 0, len(vv))
	for c, ctr := range vv {
		out = append(out, Pair{Client: c, Counter: ctr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Client < out[j].Client })
	return out
}

// DebugMap returns the vector as a plain map for human-readable
// diagnostics (spec §4.3 versionDebugMap).
func (vv VersionVector) DebugMap() map[uint64]uint32 {
	out := make(map[uint64]uint32, len(vv))
	for c, ctr := range vv {
		out[uint64(c)] = uint32(ctr)
	}
	return out
}
