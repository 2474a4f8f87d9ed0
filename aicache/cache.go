package aicache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

/*
Cache stores serialized AI responses keyed by statement fingerprint, prompt
kind, and provider. Implementations must be safe for concurrent use; a
failing cache degrades to a miss, it never fails a request.
*/
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Invalidate(key string)
	Len() int
}

/*
Key builds the canonical cache key. The provider is part of the key so that
switching providers never serves a stale cross-provider response.
*/
func Key(fingerprint, kind, provider string) string {
	return fmt.Sprintf("%s:%s:%s", fingerprint, kind, provider)
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

/*
Memory is an in-process cache with LRU eviction and per-entry TTL. Expired
entries are dropped lazily on read.
*/
type Memory struct {
	ttl time.Duration
	lru *lru.Cache[string, entry]
	now func() time.Time
}

type MemoryOptionFn func(*Memory)

/*
NewMemory creates a memory cache with the given options.
*/
func NewMemory(opts ...MemoryOptionFn) *Memory {
	memory := &Memory{
		ttl: time.Hour,
		now: time.Now,
	}

	for _, fn := range opts {
		fn(memory)
	}

	if memory.lru == nil {
		cache, err := lru.New[string, entry](1000)
		if err != nil {
			// lru.New only fails on a non-positive size.
			panic(err)
		}
		memory.lru = cache
	}

	return memory
}

/*
WithTTL sets how long entries stay valid.
*/
func WithTTL(ttl time.Duration) MemoryOptionFn {
	return func(m *Memory) {
		m.ttl = ttl
	}
}

/*
WithSize sets the maximum number of entries before LRU eviction.
*/
func WithSize(size int) MemoryOptionFn {
	return func(m *Memory) {
		cache, err := lru.New[string, entry](size)
		if err != nil {
			panic(err)
		}
		m.lru = cache
	}
}

// withClock substitutes the time source in tests.
func withClock(now func() time.Time) MemoryOptionFn {
	return func(m *Memory) {
		m.now = now
	}
}

func (m *Memory) Get(key string) ([]byte, bool) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false
	}
	if m.now().After(e.expiresAt) {
		m.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(key string, value []byte) {
	m.lru.Add(key, entry{
		value:     value,
		expiresAt: m.now().Add(m.ttl),
	})
}

func (m *Memory) Invalidate(key string) {
	m.lru.Remove(key)
}

func (m *Memory) Len() int {
	return m.lru.Len()
}
