package lease

import (
	"context"
	"sync"
	"time"

	"github.com/jrjohn/railscron-go/internal/clock"
)

// Memory is a single-process lease backend backed by a mutex-protected
// map. It is correct only within one process; it exists for single-node
// deployments and tests, not for cross-process coordination.
type Memory struct {
	mu      sync.Mutex
	holders map[string]time.Time // key -> expiry
	clock   clock.Clock
}

// NewMemory constructs an in-memory backend using c to determine whether a
// held key has expired.
func NewMemory(c clock.Clock) *Memory {
	return &Memory{
		holders: make(map[string]time.Time),
		clock:   c,
	}
}

func (m *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if expiry, held := m.holders[key]; held && now.Before(expiry) {
		return false, nil
	}
	m.holders[key] = now.Add(ttl)
	return true, nil
}

func (m *Memory) Release(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, held := m.holders[key]; !held {
		return false, nil
	}
	delete(m.holders, key)
	return true, nil
}

func (m *Memory) Close() error {
	return nil
}
