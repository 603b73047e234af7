package cryptox

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool runs a Hasher with bounded concurrency. Hashing is deliberately slow
// and CPU-bound, so an unbounded number of concurrent logins would starve
// every other request; callers wait for a slot instead and give up when
// their context ends.
type Pool struct {
	hasher Hasher
	sem    *semaphore.Weighted
}

// NewPool wraps h. workers <= 0 means one slot per CPU.
func NewPool(h Hasher, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{hasher: h, sem: semaphore.NewWeighted(int64(workers))}
}

// Hash hashes password once a worker slot is free.
func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)
	return p.hasher.Hash(password)
}

// Verify reports whether password matches encoded. A cancelled context
// counts as a mismatch and is returned as the error.
func (p *Pool) Verify(ctx context.Context, password, encoded string) (bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.sem.Release(1)
	return p.hasher.Verify(password, encoded), nil
}
