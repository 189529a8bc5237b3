package models

import "errors"

// Error classes shared across packages. Wrap them with fmt.Errorf("...: %w", Err...)
// and test with errors.Is.
var (
	// ErrNotFound marks an unknown norm id or a missing artifact.
	ErrNotFound = errors.New("not found")
	// ErrStructural marks a corrupt or incomplete serialized artifact.
	ErrStructural = errors.New("structural error")
	// ErrTimeout marks an external call that exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrRetryable marks a transient failure of an external collaborator.
	ErrRetryable = errors.New("retryable")
	// ErrDegraded marks a lookup whose answer is unknown.
	ErrDegraded = errors.New("degraded")
	// ErrConflict marks a write that would rewrite recorded history.
	ErrConflict = errors.New("conflict")
	// ErrInvalid marks a malformed request or record.
	ErrInvalid = errors.New("invalid")
)
