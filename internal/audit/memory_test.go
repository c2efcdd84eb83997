package audit

import (
	"context"
	"testing"
	"time"

	"github.com/jrjohn/railscron-go/internal/clock"
)

func TestMemoryLogAndFind(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m := NewMemory(c)
	firing := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := m.Log(ctx, "job", firing, "node-1", StatusDispatched); err != nil {
		t.Fatal(err)
	}

	rec, ok, err := m.Find(ctx, "job", firing)
	if err != nil || !ok {
		t.Fatalf("Find = (%v, %v, %v), want record", rec, ok, err)
	}
	if rec.NodeID != "node-1" || rec.Status != StatusDispatched {
		t.Fatalf("got %+v", rec)
	}
}

func TestMemoryDispatched(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(clock.New(time.UTC))
	firing := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	dispatched, err := m.Dispatched(ctx, "job", firing)
	if err != nil || dispatched {
		t.Fatalf("Dispatched before Log = (%v, %v), want (false, nil)", dispatched, err)
	}

	if err := m.Log(ctx, "job", firing, "node-1", StatusDispatched); err != nil {
		t.Fatal(err)
	}

	dispatched, err = m.Dispatched(ctx, "job", firing)
	if err != nil || !dispatched {
		t.Fatalf("Dispatched after Log = (%v, %v), want (true, nil)", dispatched, err)
	}
}

func TestMemoryCleanup(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m := NewMemory(c)

	old := c.Now().Add(-48 * time.Hour)
	recent := c.Now().Add(-1 * time.Hour)
	if err := m.Log(ctx, "job", old, "node-1", StatusDispatched); err != nil {
		t.Fatal(err)
	}
	if err := m.Log(ctx, "job2", recent, "node-1", StatusDispatched); err != nil {
		t.Fatal(err)
	}

	if err := m.Cleanup(ctx, 24*time.Hour); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := m.Find(ctx, "job", old); ok {
		t.Fatal("expected old record to be pruned")
	}
	if _, ok, _ := m.Find(ctx, "job2", recent); !ok {
		t.Fatal("expected recent record to survive cleanup")
	}
}

func TestMemoryFindMissing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(clock.New(time.UTC))

	_, ok, err := m.Find(ctx, "nope", time.Now())
	if err != nil || ok {
		t.Fatalf("Find = (_, %v, %v), want (false, nil)", ok, err)
	}
}
