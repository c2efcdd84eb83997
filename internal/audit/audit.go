// Package audit records best-effort dispatch history: which node
// dispatched which firing of which job, and when. A logging failure must
// never prevent or roll back a callback invocation; callers treat Log's
// error as something to log and swallow, never as a reason to abort.
package audit

import (
	"context"
	"time"
)

// Status is the recorded outcome of a dispatch attempt.
type Status string

const (
	StatusDispatched Status = "dispatched"
	StatusFailed     Status = "failed"
)

// Record is one dispatch history entry.
type Record struct {
	JobKey        string
	FiringInstant time.Time
	NodeID        string
	Status        Status
	DispatchedAt  time.Time
}

// Backend is the dispatch audit capability the coordinator depends on.
// Implementations need not be durable across process restarts except the
// SQL table backend, which is the only one recovery relies on to survive
// a restart.
type Backend interface {
	// Log records that nodeID dispatched (or attempted to dispatch)
	// jobKey at firingInstant with the given status.
	Log(ctx context.Context, jobKey string, firingInstant time.Time, nodeID string, status Status) error

	// Find returns the record for (jobKey, firingInstant), if any.
	Find(ctx context.Context, jobKey string, firingInstant time.Time) (*Record, bool, error)

	// Dispatched reports whether a record already exists for
	// (jobKey, firingInstant), regardless of status.
	Dispatched(ctx context.Context, jobKey string, firingInstant time.Time) (bool, error)

	// Cleanup deletes records older than olderThan relative to now,
	// for backends that can prune. Backends with nothing to prune no-op.
	Cleanup(ctx context.Context, olderThan time.Duration) error

	Close() error
}
