// Package idempotency caches responses to retried payment initiations so a
// client that resends the same Idempotency-Key gets the original checkout
// link back instead of a second charge attempt.
package idempotency

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Response is a cached response to an idempotent request.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	CachedAt   time.Time
}

// Store manages idempotency keys and their cached responses.
type Store interface {
	Get(ctx context.Context, key string) (*Response, bool)
	Set(ctx context.Context, key string, response *Response, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is an in-memory Store with TTL expiry and LRU eviction.
type MemoryStore struct {
	mu          sync.Mutex
	cache       map[string]*cacheEntry
	lru         *list.List
	maxSize     int
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

type cacheEntry struct {
	key       string
	response  *Response
	expiresAt time.Time
	element   *list.Element
}

// NewMemoryStore creates an in-memory store capped at 10,000 entries.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithSize(10000)
}

// NewMemoryStoreWithSize creates an in-memory store with a custom cap.
func NewMemoryStoreWithSize(maxSize int) *MemoryStore {
	s := &MemoryStore{
		cache:       make(map[string]*cacheEntry),
		lru:         list.New(),
		maxSize:     maxSize,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Response, bool) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, found := s.cache[key]
	if !found || now.After(entry.expiresAt) {
		return nil, false
	}
	s.lru.MoveToFront(entry.element)
	return entry.response, true
}

func (s *MemoryStore) Set(_ context.Context, key string, response *Response, ttl time.Duration) error {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists := s.cache[key]; exists {
		entry.response = response
		entry.expiresAt = now.Add(ttl)
		s.lru.MoveToFront(entry.element)
		return nil
	}

	// Evict before inserting so the cache never exceeds its cap.
	if len(s.cache) >= s.maxSize {
		s.evictOldest()
	}

	entry := &cacheEntry{
		key:       key,
		response:  response,
		expiresAt: now.Add(ttl),
	}
	entry.element = s.lru.PushFront(entry)
	s.cache[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(key)
	return nil
}

// remove deletes an entry; caller must hold the lock.
func (s *MemoryStore) remove(key string) {
	if entry, exists := s.cache[key]; exists {
		s.lru.Remove(entry.element)
		delete(s.cache, key)
	}
}

// evictOldest drops the least recently used entry; caller must hold the lock.
func (s *MemoryStore) evictOldest() {
	element := s.lru.Back()
	if element == nil {
		return
	}
	s.remove(element.Value.(*cacheEntry).key)
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	defer close(s.cleanupDone)

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			var expired []string
			for key, entry := range s.cache {
				if now.After(entry.expiresAt) {
					expired = append(expired, key)
				}
			}
			for _, key := range expired {
				s.remove(key)
			}
			s.mu.Unlock()
		}
	}
}

// Close stops the background cleanup goroutine.
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	<-s.cleanupDone
	return nil
}
