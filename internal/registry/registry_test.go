package registry

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func noopCallback(time.Time, string) error { return nil }

func TestAddAndFind(t *testing.T) {
	r := New()
	job := Job{Key: "m", Expression: "* * * * *", Callback: noopCallback}

	if err := r.Add(job); err != nil {
		t.Fatal(err)
	}

	got, ok := r.Find("m")
	if !ok {
		t.Fatal("expected job to be found")
	}
	if got.Expression != "* * * * *" {
		t.Fatalf("got expression %q", got.Expression)
	}
}

func TestAddRejectsDuplicateKey(t *testing.T) {
	r := New()
	job := Job{Key: "m", Expression: "* * * * *", Callback: noopCallback}
	if err := r.Add(job); err != nil {
		t.Fatal(err)
	}

	err := r.Add(job)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestAddRejectsInvalidJob(t *testing.T) {
	r := New()
	cases := []Job{
		{Key: "", Expression: "* * * * *", Callback: noopCallback},
		{Key: "m", Expression: "", Callback: noopCallback},
		{Key: "m", Expression: "* * * * *", Callback: nil},
	}
	for _, job := range cases {
		if err := r.Add(job); !errors.Is(err, ErrInvalidJob) {
			t.Errorf("Add(%+v) err = %v, want ErrInvalidJob", job, err)
		}
	}
}

func TestRemove(t *testing.T) {
	r := New()
	job := Job{Key: "m", Expression: "* * * * *", Callback: noopCallback}
	if err := r.Add(job); err != nil {
		t.Fatal(err)
	}

	if err := r.Remove("m"); err != nil {
		t.Fatal(err)
	}
	if r.Registered("m") {
		t.Fatal("expected job to be unregistered")
	}
}

func TestRemoveNotFound(t *testing.T) {
	r := New()
	if err := r.Remove("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAllIsSnapshot(t *testing.T) {
	r := New()
	r.Add(Job{Key: "a", Expression: "* * * * *", Callback: noopCallback})
	r.Add(Job{Key: "b", Expression: "* * * * *", Callback: noopCallback})

	all := r.All()
	if len(all) != 2 {
		t.Fatalf("got %d jobs, want 2", len(all))
	}

	r.Remove("a")
	if len(all) != 2 {
		t.Fatal("snapshot mutated after underlying Remove")
	}
}

func TestClear(t *testing.T) {
	r := New()
	r.Add(Job{Key: "a", Expression: "* * * * *", Callback: noopCallback})
	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("Len() = %d after Clear, want 0", r.Len())
	}
}

func TestEachAllowsMutationDuringIteration(t *testing.T) {
	r := New()
	r.Add(Job{Key: "a", Expression: "* * * * *", Callback: noopCallback})
	r.Add(Job{Key: "b", Expression: "* * * * *", Callback: noopCallback})

	visited := 0
	r.Each(func(j Job) {
		visited++
		// Each takes its snapshot under the lock before yielding, so
		// mutating here must not deadlock.
		r.Add(Job{Key: "added-" + j.Key, Expression: "* * * * *", Callback: noopCallback})
	})

	if visited != 2 {
		t.Fatalf("visited %d jobs, want 2", visited)
	}
	if r.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", r.Len())
	}
}

func TestConcurrentAddFind(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := string(rune('a' + i%26))
			r.Add(Job{Key: key, Expression: "* * * * *", Callback: noopCallback})
			r.Find(key)
			r.All()
		}()
	}
	wg.Wait()
}
