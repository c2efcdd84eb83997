package audit

import (
	"context"
	"sync"
	"time"

	"github.com/jrjohn/railscron-go/internal/clock"
)

type memoryKey struct {
	jobKey        string
	firingUnixSec int64
}

// Memory is a single-process audit backend backed by a mutex-protected
// map. Records never expire on their own; Cleanup is the only way to
// remove them.
type Memory struct {
	mu      sync.Mutex
	records map[memoryKey]Record
	clock   clock.Clock
}

func NewMemory(c clock.Clock) *Memory {
	return &Memory{records: make(map[memoryKey]Record), clock: c}
}

func (m *Memory) Log(_ context.Context, jobKey string, firingInstant time.Time, nodeID string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey{jobKey: jobKey, firingUnixSec: firingInstant.Unix()}
	m.records[key] = Record{
		JobKey:        jobKey,
		FiringInstant: firingInstant,
		NodeID:        nodeID,
		Status:        status,
		DispatchedAt:  m.clock.Now(),
	}
	return nil
}

func (m *Memory) Find(_ context.Context, jobKey string, firingInstant time.Time) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey{jobKey: jobKey, firingUnixSec: firingInstant.Unix()}
	rec, ok := m.records[key]
	if !ok {
		return nil, false, nil
	}
	out := rec
	return &out, true, nil
}

func (m *Memory) Dispatched(ctx context.Context, jobKey string, firingInstant time.Time) (bool, error) {
	_, ok, err := m.Find(ctx, jobKey, firingInstant)
	return ok, err
}

func (m *Memory) Cleanup(_ context.Context, olderThan time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.clock.Now().Add(-olderThan)
	for key, rec := range m.records {
		if rec.FiringInstant.Before(cutoff) {
			delete(m.records, key)
		}
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}
