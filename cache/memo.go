// Package cache provides a generic sharded memo table.
//
// A Memo computes each key at most once and keeps the result for the
// life of the process. It backs the pipeline cache, where entries are
// compiled shader artifacts: bounded by the number of distinct shaders
// an application defines, never by traffic, so nothing is evicted.
package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// ShardCount is the number of shards for reduced lock contention.
// Must be a power of 2 for fast modulo via bitwise AND.
const ShardCount = 16

// shardMask is used for fast shard selection (ShardCount - 1).
const shardMask = ShardCount - 1

// Hasher is a function that computes a hash for a key.
// Used by Memo for shard selection.
type Hasher[K any] func(K) uint64

// StringHasher computes FNV-1a hash of a string key.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// IntHasher computes a hash of an int key using FNV-1a.
func IntHasher(i int) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 8)
	buf[0] = byte(i)
	buf[1] = byte(i >> 8)
	buf[2] = byte(i >> 16)
	buf[3] = byte(i >> 24)
	buf[4] = byte(i >> 32)
	buf[5] = byte(i >> 40)
	buf[6] = byte(i >> 48)
	buf[7] = byte(i >> 56)
	_, _ = h.Write(buf)
	return h.Sum64()
}

// Uint64Hasher returns the key itself as the hash (identity hash).
func Uint64Hasher(u uint64) uint64 {
	return u
}

// Memo is a thread-safe, sharded memo table.
//
// Features:
//   - 16 shards for reduced lock contention
//   - At most one successful create per key
//   - No eviction; entries live until the process exits
//   - Atomic statistics for monitoring
type Memo[K comparable, V any] struct {
	shards [ShardCount]*memoShard[K, V]
	hasher Hasher[K]

	// Statistics (atomic for zero-allocation reads)
	hits   atomic.Uint64
	misses atomic.Uint64
}

// memoShard is a single shard of the table.
// Each shard has its own mutex for reduced contention.
type memoShard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// NewMemo creates a memo table. The hasher selects shards; use
// StringHasher, IntHasher, or Uint64Hasher for common key types.
func NewMemo[K comparable, V any](hasher Hasher[K]) *Memo[K, V] {
	m := &Memo[K, V]{hasher: hasher}
	for i := range m.shards {
		m.shards[i] = &memoShard[K, V]{entries: make(map[K]V)}
	}
	return m
}

// getShard returns the shard for a given key.
// Uses bitwise AND for fast modulo (only works with power-of-2 shard count).
func (m *Memo[K, V]) getShard(key K) *memoShard[K, V] {
	hash := m.hasher(key)
	return m.shards[hash&shardMask]
}

// Get retrieves a stored value by key without computing anything.
// Returns (value, true) if present, (zero, false) otherwise.
func (m *Memo[K, V]) Get(key K) (V, bool) {
	shard := m.getShard(key)

	shard.mu.RLock()
	value, ok := shard.entries[key]
	shard.mu.RUnlock()

	if !ok {
		m.misses.Add(1)
		var zero V
		return zero, false
	}
	m.hits.Add(1)
	return value, true
}

// GetOrCreate returns the stored value for key, computing it with
// create on first use. create runs with the shard lock held, so at
// most one successful create ever runs per key and concurrent callers
// of the same key wait for it and then share its result.
//
// An error from create is returned to the caller and nothing is
// stored, so a failing key can be retried. Keep create free of calls
// back into the same Memo: the shard lock is not reentrant.
func (m *Memo[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	shard := m.getShard(key)

	// Fast path: read lock to check existence
	shard.mu.RLock()
	value, ok := shard.entries[key]
	shard.mu.RUnlock()
	if ok {
		m.hits.Add(1)
		return value, nil
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()

	// Re-check after acquiring the write lock
	if value, ok := shard.entries[key]; ok {
		m.hits.Add(1)
		return value, nil
	}

	m.misses.Add(1)

	value, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	shard.entries[key] = value
	return value, nil
}

// Len returns the total number of entries across all shards.
func (m *Memo[K, V]) Len() int {
	total := 0
	for _, shard := range m.shards {
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}

// Range calls f for every stored entry until f returns false.
// f runs outside the shard locks; entries stored concurrently with the
// walk may or may not be visited.
func (m *Memo[K, V]) Range(f func(K, V) bool) {
	for _, shard := range m.shards {
		shard.mu.RLock()
		snapshot := make(map[K]V, len(shard.entries))
		for k, v := range shard.entries {
			snapshot[k] = v
		}
		shard.mu.RUnlock()

		for k, v := range snapshot {
			if !f(k, v) {
				return
			}
		}
	}
}

// Stats describes memo usage.
type Stats struct {
	Len     int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// Stats returns current statistics.
// This operation is mostly lock-free (atomic counters).
func (m *Memo[K, V]) Stats() Stats {
	hits := m.hits.Load()
	misses := m.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Len:     m.Len(),
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

// ResetStats resets all statistics counters to zero.
func (m *Memo[K, V]) ResetStats() {
	m.hits.Store(0)
	m.misses.Store(0)
}
