package lease

import (
	"errors"
	"fmt"
)

// ErrBackend is the sentinel wrapped into every backend-level failure
// (connection loss, query error, script failure). The coordinator treats
// any such error identically to a failed acquisition: log and move on.
var ErrBackend = errors.New("lease backend error")

// BackendError wraps an underlying backend failure (a Redis error, a SQL
// driver error) with the backend name that produced it.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}

func newBackendError(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Backend: backend, Err: err}
}
