package annotation

import (
	"encoding/binary"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/cespare/xxhash/v2"

	"github.com/textcrdt/core/internal/ids"
	"github.com/textcrdt/core/internal/sequence"
)

// Store is the range-annotation index kept in parallel with the
// sequence tree (spec §4.2). It owns every annotate/eraseAnn record ever
// seen and projects them into spans on demand.
type Store struct {
	tree    *sequence.Tree
	records map[ids.OpID]*Record
	version uint64

	// spanCache fronts the (usually expensive) full span projection the
	// way _examples/drpcorg-chotki/index_manager.go fronts its own
	// recomputation with an xxhash-keyed LRU cache; here the key is an
	// xxhash digest of the store's version counter and the tree's live
	// counts (see digest) rather than a content hash of a single leaf,
	// since spans are recomputed wholesale rather than leaf-by-leaf (see
	// DESIGN.md).
	spanCache *lru.Cache[uint64, []Span]
}

// NewStore returns an annotation store bound to tree.
func NewStore(tree *sequence.Tree) *Store {
	cache, _ := lru.New[uint64, []Span](64)
	return &Store{
		tree:      tree,
		records:   make(map[ids.OpID]*Record),
		spanCache: cache,
	}
}

// Clone returns an independent copy of s bound to tree, sharing no
// mutable state with the original. Document.Import stages a remote
// batch against a cloned tree/store/log and only swaps them in once
// the whole batch has integrated cleanly (spec §5 "Cancellation").
func (s *Store) Clone(tree *sequence.Tree) *Store {
	records := make(map[ids.OpID]*Record, len(s.records))
	for id, r := range s.records {
		cp := *r
		records[id] = &cp
	}
	cache, _ := lru.New[uint64, []Span](64)
	return &Store{tree: tree, records: records, version: s.version, spanCache: cache}
}

func (s *Store) bump() {
	s.version++
}

// Put installs rec (an annotate or eraseAnn record, local or remote).
// Idempotent on rec.Creator.
func (s *Store) Put(rec Record) {
	if _, ok := s.records[rec.Creator]; ok {
		return
	}
	cp := rec
	s.records[rec.Creator] = &cp
	s.bump()
}

// Get returns the record created by id, if any.
func (s *Store) Get(id ids.OpID) (Record, bool) {
	r, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Has reports whether id has already been recorded.
func (s *Store) Has(id ids.OpID) bool {
	_, ok := s.records[id]
	return ok
}

// All returns every record, for export.
func (s *Store) All() []Record {
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	return out
}

// digest folds the store's version and the sequence tree's shape into a
// cache key, so a span-cache hit is only reused when nothing that could
// affect projection has changed.
func (s *Store) digest() uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], s.version)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(s.tree.LiveCount()))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(s.tree.Len()))
	return xxhash.Sum64(buf[:])
}

// invalidate must be called whenever the sequence tree changes shape
// (insert/delete), since anchor resolution depends on live-atom ranks.
func (s *Store) Invalidate() {
	s.bump()
}
