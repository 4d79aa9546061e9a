// internal/services/errors.go
package services

import "errors"

// Error taxonomy shared by all workflows. Callers classify with errors.Is;
// services wrap these with fmt.Errorf("%w: ...") to add detail.
var (
	// ErrNotFound means a referenced entity (sale, lead, campaign, policy)
	// does not exist. Not retryable.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition means a state machine rule was violated, e.g.
	// trying to leave a terminal status. Not retryable.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrConflict means a conditional update lost a race: another writer
	// already moved the row. The caller should treat the operation as
	// handled elsewhere and stop.
	ErrConflict = errors.New("conflict")

	// ErrIntegration means an outbound call (messaging, document
	// generation, payment processor) failed.
	ErrIntegration = errors.New("integration error")

	// ErrValidation means the workflow input was malformed.
	ErrValidation = errors.New("validation error")
)
