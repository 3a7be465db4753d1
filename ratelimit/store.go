/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/atomic"
)

// DefaultStoreShards is a default number of shards in the CounterStore.
const DefaultStoreShards = 64

// MaxStoreShards is a maximum allowed number of shards in the CounterStore.
const MaxStoreShards = 4096

// ErrStoreFull is returned when a new counter cannot be created
// because the store reached its capacity and contains only live counters.
var ErrStoreFull = errors.New("rate limit store is full")

// CounterState is a snapshot of a counter.
type CounterState struct {
	Count     int
	ExpiresAt time.Time
}

type counterEntry struct {
	count     int
	expiresAt time.Time
}

func (e *counterEntry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

type counterShard struct {
	mu      sync.Mutex
	entries map[string]*counterEntry

	// nextExpiry is a lower bound of expiresAt of all entries in the shard.
	// The shard has no expired entries while now is before it.
	nextExpiry time.Time
}

func (sh *counterShard) mayHaveExpired(now time.Time) bool {
	return len(sh.entries) != 0 && !now.Before(sh.nextExpiry)
}

// CounterStore is a concurrency-safe map of counters with per-entry expiration.
// Keys are distributed between shards, each shard is guarded by its own mutex,
// so operations on keys from different shards never contend.
type CounterStore struct {
	shards           []*counterShard
	shardMask        uint64
	maxKeys          int
	size             atomic.Int64
	now              func() time.Time
	metricsCollector MetricsCollector
}

// StoreOpts represents options for the CounterStore.
type StoreOpts struct {
	// Shards is a number of shards. Must be a power of two. DefaultStoreShards is used if zero.
	Shards int

	// MaxKeys limits the total number of counters. Zero means no limit.
	// When the store is full, expired counters are evicted (from the key's shard first, then from the others);
	// live counters are never evicted.
	MaxKeys int

	// MetricsCollector collects statistics about the store. Metrics are disabled if nil.
	MetricsCollector MetricsCollector

	// Now returns the current time. time.Now is used if nil.
	Now func() time.Time
}

// NewCounterStore creates a new CounterStore with default options.
func NewCounterStore() *CounterStore {
	s, _ := NewCounterStoreWithOpts(StoreOpts{}) // Error is always nil for default options.
	return s
}

// NewCounterStoreWithOpts creates a new CounterStore with the provided options.
func NewCounterStoreWithOpts(opts StoreOpts) (*CounterStore, error) {
	if opts.Shards == 0 {
		opts.Shards = DefaultStoreShards
	}
	if opts.Shards < 0 || opts.Shards > MaxStoreShards || opts.Shards&(opts.Shards-1) != 0 {
		return nil, fmt.Errorf("shards must be a power of two in range [1, %d], got %d", MaxStoreShards, opts.Shards)
	}
	if opts.MaxKeys < 0 {
		return nil, fmt.Errorf("max keys must not be negative, got %d", opts.MaxKeys)
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	shards := make([]*counterShard, opts.Shards)
	for i := range shards {
		shards[i] = &counterShard{entries: make(map[string]*counterEntry)}
	}
	return &CounterStore{
		shards:           shards,
		shardMask:        uint64(opts.Shards - 1),
		maxKeys:          opts.MaxKeys,
		now:              opts.Now,
		metricsCollector: opts.MetricsCollector,
	}, nil
}

func (s *CounterStore) shardFor(key string) *counterShard {
	return s.shards[xxhash.Sum64String(key)&s.shardMask]
}

// GetOrInit returns the count of the live counter for the key.
// If there is no live counter, a new one with zero count and expiration in ttl is created.
func (s *CounterStore) GetOrInit(key string, ttl time.Duration) (int, error) {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, err := s.getOrInit(shard, key, ttl)
	if err != nil {
		return 0, err
	}
	return entry.count, nil
}

// Increment adds 1 to the live counter for the key and returns the new count.
// It does nothing and returns false if there is no live counter for the key.
func (s *CounterStore) Increment(key string) (int, bool) {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := s.getLive(shard, key)
	if !ok {
		return 0, false
	}
	entry.count++
	return entry.count, true
}

// TryIncrement atomically gets (or initializes with ttl) the counter for the key
// and increments it if its count is less than the limit.
// The returned state reflects the counter after the operation.
func (s *CounterStore) TryIncrement(key string, ttl time.Duration, limit int) (CounterState, bool, error) {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, err := s.getOrInit(shard, key, ttl)
	if err != nil {
		return CounterState{}, false, err
	}
	if entry.count >= limit {
		return CounterState{Count: entry.count, ExpiresAt: entry.expiresAt}, false, nil
	}
	entry.count++
	return CounterState{Count: entry.count, ExpiresAt: entry.expiresAt}, true, nil
}

// Get returns the state of the live counter for the key.
func (s *CounterStore) Get(key string) (CounterState, bool) {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := s.getLive(shard, key)
	if !ok {
		return CounterState{}, false
	}
	return CounterState{Count: entry.count, ExpiresAt: entry.expiresAt}, true
}

// Len returns the number of counters in the store.
// Expired counters that have not been reclaimed yet are included.
func (s *CounterStore) Len() int {
	return int(s.size.Load())
}

// Capacity returns the maximum number of counters the store may hold. Zero means no limit.
func (s *CounterStore) Capacity() int {
	return s.maxKeys
}

// Sweep removes all expired counters and returns their number.
// Each shard is locked separately, so concurrent operations are blocked only briefly.
func (s *CounterStore) Sweep() int {
	var removed int
	for _, shard := range s.shards {
		shard.mu.Lock()
		removed += s.removeExpired(shard, s.now())
		shard.mu.Unlock()
	}
	return removed
}

// RunPeriodicCleanup runs a cycle of periodic removal of expired counters.
// It's supposed to be run in a separate goroutine and stops when the context is done.
func (s *CounterStore) RunPeriodicCleanup(ctx context.Context, cleanupInterval time.Duration) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *CounterStore) getLive(shard *counterShard, key string) (*counterEntry, bool) {
	entry, ok := shard.entries[key]
	if !ok {
		return nil, false
	}
	if entry.expired(s.now()) {
		delete(shard.entries, key)
		s.size.Dec()
		s.metricsCollector.AddExpired(1)
		s.metricsCollector.AddAmount(-1)
		return nil, false
	}
	return entry, true
}

func (s *CounterStore) getOrInit(shard *counterShard, key string, ttl time.Duration) (*counterEntry, error) {
	if entry, ok := s.getLive(shard, key); ok {
		return entry, nil
	}

	now := s.now()
	if !s.reserve() {
		s.removeExpired(shard, now)
		if !s.reserve() {
			s.removeExpiredFromOtherShards(shard, now)
			if !s.reserve() {
				s.metricsCollector.IncStoreFull()
				return nil, ErrStoreFull
			}
		}
	}

	entry := &counterEntry{expiresAt: now.Add(ttl)}
	if len(shard.entries) == 0 || entry.expiresAt.Before(shard.nextExpiry) {
		shard.nextExpiry = entry.expiresAt
	}
	shard.entries[key] = entry
	s.metricsCollector.IncCreated()
	s.metricsCollector.AddAmount(1)
	return entry, nil
}

// reserve takes a slot for a new counter. It fails if the store is bounded and full.
func (s *CounterStore) reserve() bool {
	if s.size.Inc() <= int64(s.maxKeys) || s.maxKeys == 0 {
		return true
	}
	s.size.Dec()
	return false
}

// removeExpiredFromOtherShards skips shards that are locked at the moment.
// The caller holds the lock of the given shard, so waiting for others could deadlock.
func (s *CounterStore) removeExpiredFromOtherShards(locked *counterShard, now time.Time) int {
	var removed int
	for _, shard := range s.shards {
		if shard == locked || !shard.mu.TryLock() {
			continue
		}
		removed += s.removeExpired(shard, now)
		shard.mu.Unlock()
	}
	return removed
}

func (s *CounterStore) removeExpired(shard *counterShard, now time.Time) int {
	if !shard.mayHaveExpired(now) {
		return 0
	}
	var removed int
	var nextExpiry time.Time
	for key, entry := range shard.entries {
		if entry.expired(now) {
			delete(shard.entries, key)
			removed++
			continue
		}
		if nextExpiry.IsZero() || entry.expiresAt.Before(nextExpiry) {
			nextExpiry = entry.expiresAt
		}
	}
	shard.nextExpiry = nextExpiry
	if removed > 0 {
		s.size.Sub(int64(removed))
		s.metricsCollector.AddExpired(removed)
		s.metricsCollector.AddAmount(-removed)
	}
	return removed
}
