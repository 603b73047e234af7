package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultSweepInterval bounds how often Allow opportunistically drops idle
// buckets.
const DefaultSweepInterval = time.Minute

type bucket struct {
	hits   []time.Time // ascending
	window time.Duration
}

// prune drops hits with now-t >= window. Hits are ordered so the survivors
// are a suffix.
func (b *bucket) prune(now time.Time) {
	i := 0
	for i < len(b.hits) && now.Sub(b.hits[i]) >= b.window {
		i++
	}
	if i > 0 {
		b.hits = append(b.hits[:0], b.hits[i:]...)
	}
}

// Memory is an in-process Limiter. Buckets whose newest hit has aged out are
// removed by Sweep, which Allow also runs at most once per sweep interval, so
// the map does not grow with every client ever seen.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	sweep   rate.Sometimes
}

// MemoryOption configures a Memory limiter.
type MemoryOption func(*Memory)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithSweepInterval changes how often Allow sweeps idle buckets.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *Memory) { m.sweep = rate.Sometimes{Interval: d} }
}

// NewMemory returns an empty in-memory limiter.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		buckets: make(map[string]*bucket),
		now:     time.Now,
		sweep:   rate.Sometimes{Interval: DefaultSweepInterval},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Limiter = (*Memory)(nil)

func (m *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, Info, error) {
	if window <= 0 {
		return false, Info{}, ErrInvalidWindow
	}

	m.sweep.Do(m.Sweep)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{}
		m.buckets[key] = b
	}
	b.window = window
	b.prune(now)

	if len(b.hits) >= limit {
		reset := now.Add(window)
		if len(b.hits) > 0 {
			reset = b.hits[0].Add(window)
		}
		return false, denied(limit, reset), nil
	}

	b.hits = append(b.hits, now)
	return true, Info{
		Limit:     limit,
		Remaining: limit - len(b.hits),
		ResetTime: b.hits[0].Add(window),
	}, nil
}

// Sweep removes every bucket with no hit inside its window.
func (m *Memory) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, b := range m.buckets {
		b.prune(now)
		if len(b.hits) == 0 {
			delete(m.buckets, key)
		}
	}
}

// Len reports how many keys currently hold a bucket.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Reset forgets key entirely.
func (m *Memory) Reset(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, key)
}
