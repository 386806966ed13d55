package wire

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Interner assigns small dense ids to the annotation names appearing in
// an operation log, so the "name" column can be encoded as a run of
// varint indices instead of repeating "bold"/"italic"/... on every
// record. It fronts the id lookup with an xxhash-keyed LRU the way
// _examples/drpcorg-chotki/index_manager.go fronts its object lookups,
// on the theory that a handful of annotation names dominate most
// documents and deserve a hot path.
type Interner struct {
	byName map[string]uint32
	names  []string
	cache  *lru.Cache[uint64, uint32]
}

// NewInterner returns an empty interner.
func NewInterner() *Interner {
	cache, _ := lru.New[uint64, uint32](256)
	return &Interner{
		byName: make(map[string]uint32),
		cache:  cache,
	}
}

// Intern returns name's id, assigning a new one if this is the first
// time it has been seen.
func (in *Interner) Intern(name string) uint32 {
	h := xxhash.Sum64String(name)
	if id, ok := in.cache.Get(h); ok && in.names[id] == name {
		return id
	}
	if id, ok := in.byName[name]; ok {
		in.cache.Add(h, id)
		return id
	}
	id := uint32(len(in.names))
	in.names = append(in.names, name)
	in.byName[name] = id
	in.cache.Add(h, id)
	return id
}

// Name resolves id back to its string, or "" if never interned.
func (in *Interner) Name(id uint32) string {
	if int(id) >= len(in.names) {
		return ""
	}
	return in.names[id]
}

// Table returns the id-ordered slice of every interned name, for
// serialization.
func (in *Interner) Table() []string {
	return in.names
}

// LoadTable rebuilds an interner from a previously serialized table, as
// done on decode.
func LoadTable(names []string) *Interner {
	in := NewInterner()
	for _, n := range names {
		in.Intern(n)
	}
	return in
}
