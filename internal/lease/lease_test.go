package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrjohn/railscron-go/internal/clock"
)

func TestWithLeaseRunsBodyOnAcquire(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(clock.New(time.UTC))

	ran := false
	ok, err := WithLease(ctx, m, "k", time.Minute, func() error {
		ran = true
		return nil
	})
	if err != nil || !ok || !ran {
		t.Fatalf("WithLease = (%v, %v), ran=%v, want (true, nil, true)", ok, err, ran)
	}

	// Body returning released the lease, so it must be free again.
	acquired, err := m.Acquire(ctx, "k", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("Acquire after WithLease = (%v, %v), want (true, nil)", acquired, err)
	}
}

func TestWithLeaseSkipsBodyWhenNotAcquired(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(clock.New(time.UTC))

	if _, err := m.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatal(err)
	}

	ran := false
	ok, err := WithLease(ctx, m, "k", time.Minute, func() error {
		ran = true
		return nil
	})
	if err != nil || ok || ran {
		t.Fatalf("WithLease = (%v, %v), ran=%v, want (false, nil, false)", ok, err, ran)
	}
}

func TestWithLeasePropagatesBodyError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(clock.New(time.UTC))
	wantErr := errors.New("body failed")

	ok, err := WithLease(ctx, m, "k", time.Minute, func() error {
		return wantErr
	})
	if !ok || !errors.Is(err, wantErr) {
		t.Fatalf("WithLease = (%v, %v), want (true, %v)", ok, err, wantErr)
	}

	// Release still happened despite the body error.
	acquired, err := m.Acquire(ctx, "k", time.Minute)
	if err != nil || !acquired {
		t.Fatalf("Acquire after failing body = (%v, %v), want (true, nil)", acquired, err)
	}
}
