package pool

import (
	"sync"
	"time"
)

// Factory creates a new backend handle when the pool is below capacity.
type Factory[T any] func() (T, error)

type entry[T any] struct {
	handle     T
	lastUsedAt time.Time
}

// Pool bounds the number of live backend client handles. Acquire never
// blocks: below capacity it creates, at capacity it recycles the
// least-recently-used handle. Handles are stateless from the caller's
// point of view, so there is no Release.
type Pool[T any] struct {
	mu      sync.Mutex
	factory Factory[T]
	maxSize int
	ttl     time.Duration
	entries []*entry[T]
	now     func() time.Time // overridable in tests
}

func New[T any](maxSize int, ttl time.Duration, factory Factory[T]) *Pool[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Pool[T]{
		factory: factory,
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Acquire returns a handle, creating one below capacity and recycling
// the LRU entry at capacity. Entries idle past the TTL are swept before
// the capacity check, so a long-idle pool shrinks back toward zero.
func (p *Pool[T]) Acquire() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.sweepLocked(now)

	if len(p.entries) < p.maxSize {
		handle, err := p.factory()
		if err != nil {
			var zero T
			return zero, err
		}
		p.entries = append(p.entries, &entry[T]{handle: handle, lastUsedAt: now})
		return handle, nil
	}

	// At capacity: recycle the least-recently-used handle
	lru := p.entries[0]
	for _, e := range p.entries[1:] {
		if e.lastUsedAt.Before(lru.lastUsedAt) {
			lru = e
		}
	}
	lru.lastUsedAt = now
	return lru.handle, nil
}

// Len reports the current number of pooled handles.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Pool[T]) sweepLocked(now time.Time) {
	if p.ttl <= 0 {
		return
	}
	kept := p.entries[:0]
	for _, e := range p.entries {
		if now.Sub(e.lastUsedAt) <= p.ttl {
			kept = append(kept, e)
		}
	}
	p.entries = kept
}
