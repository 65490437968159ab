package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend operations.
var (
	ErrBackendFailed     = errors.New("backend failed")
	ErrNotAvailable      = errors.New("backend not available")
	ErrUnknownBackend    = errors.New("unknown backend")
	ErrDuplicateBackend  = errors.New("backend already declared")
	ErrInvalidDescriptor = errors.New("invalid backend descriptor")
)

// InvocationError records a failed call into a native backend. It matches
// both ErrBackendFailed and the underlying cause.
type InvocationError struct {
	Backend string
	Err     error
}

// Error implements error.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("backend %s: invocation failed: %v", e.Backend, e.Err)
}

// Unwrap returns the sentinel and the cause.
func (e *InvocationError) Unwrap() []error {
	return []error{ErrBackendFailed, e.Err}
}

// ProbeError records why a probe did not reach Available.
type ProbeError struct {
	Backend string
	Missing []string
	Err     error
}

// Error implements error.
func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend %s: probe: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("backend %s: missing %v", e.Backend, e.Missing)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Err
}
