package mr

import (
	"sync"

	"github.com/zeebo/xxh3"
)

// Inserter receives normalized words from a worker. The word slice is reused
// by the caller after Insert returns.
type Inserter interface {
	Insert(word []byte)
}

// WordSet is a set of distinct words. It is not safe for concurrent use.
type WordSet map[string]struct{}

func (s WordSet) Insert(word []byte) {
	// the lookup does not allocate; only words seen for the first time do
	if _, ok := s[string(word)]; !ok {
		s[string(word)] = struct{}{}
	}
}

func (s WordSet) Len() int { return len(s) }

// Union adds every word of other to s.
func (s WordSet) Union(other WordSet) {
	for w := range other {
		s[w] = struct{}{}
	}
}

// union merges the smaller set into the larger one and returns the larger.
func union(a, b WordSet) WordSet {
	if len(a) < len(b) {
		a, b = b, a
	}
	a.Union(b)
	return a
}

// LockedSet is a WordSet guarded by a single mutex.
type LockedSet struct {
	mu    sync.Mutex
	words WordSet
}

func NewLockedSet() *LockedSet {
	return &LockedSet{words: make(WordSet)}
}

func (s *LockedSet) Insert(word []byte) {
	s.mu.Lock()
	s.words.Insert(word)
	s.mu.Unlock()
}

func (s *LockedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.words)
}

// ShardedSet spreads words over independently locked shards by hash, so
// concurrent inserters only contend when they hit the same shard.
type ShardedSet struct {
	shards []LockedSet
}

// DefaultShards is used when a non-positive shard count is requested.
const DefaultShards = 64

func NewShardedSet(shards int) *ShardedSet {
	if shards <= 0 {
		shards = DefaultShards
	}
	s := &ShardedSet{shards: make([]LockedSet, shards)}
	for i := range s.shards {
		s.shards[i].words = make(WordSet)
	}
	return s
}

func (s *ShardedSet) Insert(word []byte) {
	s.shards[xxh3.Hash(word)%uint64(len(s.shards))].Insert(word)
}

// Len sums the shard sizes. Shards are disjoint, so this is the number of
// distinct words.
func (s *ShardedSet) Len() int {
	n := 0
	for i := range s.shards {
		n += s.shards[i].Len()
	}
	return n
}
