// internal/storage/memory_store.go
package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps values in process memory with expiration, an entry
// limit enforced by LRU trimming, and a byte quota that rejects writes.
type MemoryStore struct {
	cache      map[string]*memoryEntry
	mutex      sync.RWMutex
	maxEntries int
	maxBytes   int64
	usedBytes  int64
	expiration time.Duration

	now func() time.Time
}

type memoryEntry struct {
	value     string
	createdAt time.Time
	lastRead  time.Time
}

// NewMemoryStore creates a store. Non-positive arguments pick defaults.
func NewMemoryStore(maxEntries int, maxBytes int64, expiration time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if maxBytes <= 0 {
		maxBytes = 256 << 20
	}
	if expiration <= 0 {
		expiration = 12 * time.Hour
	}

	return &MemoryStore{
		cache:      make(map[string]*memoryEntry),
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		expiration: expiration,
		now:        time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, exists := s.cache[key]
	if !exists {
		return "", ErrNotFound
	}
	if s.expired(entry) {
		s.remove(key)
		return "", ErrNotFound
	}
	entry.lastRead = s.now()
	return entry.value, nil
}

// Set stores value. A write that would push the store past its byte quota
// fails with ErrQuotaExceeded and leaves the previous value in place.
func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	size := int64(len(key) + len(value))
	var previous int64
	if old, exists := s.cache[key]; exists {
		previous = int64(len(key) + len(old.value))
	}
	if s.usedBytes-previous+size > s.maxBytes {
		return ErrQuotaExceeded
	}

	now := s.now()
	s.cache[key] = &memoryEntry{value: value, createdAt: now, lastRead: now}
	s.usedBytes += size - previous

	if len(s.cache) > s.maxEntries {
		s.cleanupLRU(max(1, s.maxEntries/5))
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mutex.Lock()
	s.remove(key)
	s.mutex.Unlock()
	return nil
}

// Sweep drops expired entries and returns how many were removed
func (s *MemoryStore) Sweep() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for key, entry := range s.cache {
		if s.expired(entry) {
			s.remove(key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included
func (s *MemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.cache)
}

// UsedBytes returns the bytes counted against the quota
func (s *MemoryStore) UsedBytes() int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.usedBytes
}

func (s *MemoryStore) expired(entry *memoryEntry) bool {
	return s.now().Sub(entry.createdAt) > s.expiration
}

// remove must be called with the write lock held
func (s *MemoryStore) remove(key string) {
	if entry, exists := s.cache[key]; exists {
		s.usedBytes -= int64(len(key) + len(entry.value))
		delete(s.cache, key)
	}
}

// cleanupLRU drops the count least recently read entries
func (s *MemoryStore) cleanupLRU(count int) {
	type keyAge struct {
		key  string
		time time.Time
	}

	entries := make([]keyAge, 0, len(s.cache))
	for k, v := range s.cache {
		entries = append(entries, keyAge{k, v.lastRead})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].time.Before(entries[j].time)
	})

	for i := 0; i < min(count, len(entries)); i++ {
		s.remove(entries[i].key)
	}
}
