// Package registry holds the set of jobs a coordinator dispatches,
// behind a thread-safe, mutex-protected map.
package registry

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrDuplicateKey is returned by Add when a job with the same key is
	// already registered.
	ErrDuplicateKey = errors.New("registry: duplicate job key")

	// ErrInvalidJob is returned by Add when a job fails validation.
	ErrInvalidJob = errors.New("registry: invalid job")

	// ErrNotFound is returned by Remove when the key is not registered.
	ErrNotFound = errors.New("registry: job not found")
)

// Callback is the shape of a job's dispatch function: it receives the
// firing instant and the idempotency key derived for it.
type Callback func(firingInstant time.Time, idempotencyKey string) error

// Job is an immutable registration: once added, its Key, Expression, and
// Callback never change. Removing and re-adding under the same key is the
// only way to replace one.
type Job struct {
	Key        string
	Expression string
	Callback   Callback
}

func (j Job) validate() error {
	if j.Key == "" {
		return errors.Join(ErrInvalidJob, errors.New("key must not be empty"))
	}
	if j.Expression == "" {
		return errors.Join(ErrInvalidJob, errors.New("expression must not be empty"))
	}
	if j.Callback == nil {
		return errors.Join(ErrInvalidJob, errors.New("callback must not be nil"))
	}
	return nil
}

// Registry is a thread-safe mapping of job key to Job.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{jobs: make(map[string]Job)}
}

// Add registers job, rejecting a duplicate key or a job that fails
// validation.
func (r *Registry) Add(job Job) error {
	if err := job.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Key]; exists {
		return errors.Join(ErrDuplicateKey, errors.New(job.Key))
	}
	r.jobs[job.Key] = job
	return nil
}

// Remove unregisters the job under key.
func (r *Registry) Remove(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[key]; !exists {
		return errors.Join(ErrNotFound, errors.New(key))
	}
	delete(r.jobs, key)
	return nil
}

// Find returns the job registered under key, if any.
func (r *Registry) Find(key string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[key]
	return job, ok
}

// Registered reports whether key is currently registered.
func (r *Registry) Registered(key string) bool {
	_, ok := r.Find(key)
	return ok
}

// All returns a snapshot slice of every registered job. Order is
// unspecified.
func (r *Registry) All() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job)
	}
	return out
}

// Clear removes every registered job.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs = make(map[string]Job)
}

// Each takes a snapshot of the registry under the lock, then invokes fn
// for every job without holding the lock, so fn may safely call back into
// Add/Remove/Clear on the same registry without deadlocking.
func (r *Registry) Each(fn func(Job)) {
	for _, job := range r.All() {
		fn(job)
	}
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
