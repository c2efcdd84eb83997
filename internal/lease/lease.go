// Package lease provides mutual exclusion keyed on a lock key, with
// pluggable backends that differ in how a lease expires: TTL-enforced
// (in-memory, Redis) or connection-scoped (SQL advisory, SQL named-lock),
// plus a row-based variant that layers its own TTL semantics over a plain
// SQL table.
//
// The coordinator depends only on the Backend interface; it never
// branches on which concrete backend is wired in.
package lease

import (
	"context"
	"time"
)

// Backend is the mutual-exclusion capability the coordinator depends on.
// Implementations must make acquire atomic: under concurrent callers
// racing the same key, exactly one Acquire returns true.
type Backend interface {
	// Acquire atomically claims key for ttl if no holder currently owns
	// it. Backends for which ttl is meaningless (advisory, named-lock)
	// ignore it and rely on connection lifetime instead.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release releases key iff the calling holder currently owns it. It
	// is safe to call when the key is not held; that returns false, nil.
	Release(ctx context.Context, key string) (bool, error)

	// Close releases any resources the backend holds (connections,
	// background goroutines). Backends with nothing to close no-op.
	Close() error
}

// WithLease acquires key for ttl, runs body if acquisition succeeds, and
// releases the lease afterward regardless of body's outcome. If
// acquisition fails (either returns false or errors), body is skipped and
// WithLease returns (false, err).
//
// The coordinator itself never calls this: per spec, a dispatched firing's
// lease is deliberately never released so that a re-tick inside the
// lookback window cannot re-dispatch it. WithLease exists for callers that
// need ordinary critical-section locking (e.g. administrative tooling)
// rather than dispatch-once semantics.
func WithLease(ctx context.Context, b Backend, key string, ttl time.Duration, body func() error) (bool, error) {
	ok, err := b.Acquire(ctx, key, ttl)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	defer b.Release(ctx, key)

	if err := body(); err != nil {
		return true, err
	}
	return true, nil
}
