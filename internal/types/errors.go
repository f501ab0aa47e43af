package types

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================
//
// Five error classes cover the failure surface of the core:
//   - ValidationError:    bad input, rejected at the boundary with a field reason
//   - QuotaExceededError: reservation denied; terminal for the current attempt
//   - AIServiceError:     transient provider failure; triggers release+fallback
//   - SyncConflictError:  concurrent edit detected; recorded, non-fatal
//   - StorageError:       local cache unavailable; degrades the offline path only
//
// All call sites translate these through ux.Message before anything reaches
// the user; raw error text is never user-facing.

// ErrNotFound marks a lookup miss. Persistence implementations wrap it so
// callers can distinguish "no record yet" from a real failure with errors.Is.
var ErrNotFound = errors.New("not found")

// ValidationError reports an out-of-range or malformed field. It is rejected
// before reaching the policy layer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// QuotaExceededError is the denial result of a reservation attempt. It
// carries the figures the caller needs to render a gentle denial.
type QuotaExceededError struct {
	Tier      QuotaTier
	Remaining int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly allowance exhausted (tier=%s, remaining=%d)", e.Tier, e.Remaining)
}

// AIServiceError wraps a transient failure of the AI collaborator: timeout,
// transport error, or an unparseable response.
type AIServiceError struct {
	Op  string
	Err error
}

func (e *AIServiceError) Error() string {
	return fmt.Sprintf("ai service: %s: %v", e.Op, e.Err)
}

func (e *AIServiceError) Unwrap() error { return e.Err }

// SyncConflictError reports a concurrent local/remote edit of the same
// record. Reconciliation continues; the conflict is surfaced for review.
type SyncConflictError struct {
	EntityType EntityType
	Key        string
}

func (e *SyncConflictError) Error() string {
	return fmt.Sprintf("sync conflict: %s %s", e.EntityType, e.Key)
}

// StorageError wraps a local cache failure. The core keeps functioning from
// server reads; only the offline acceleration path degrades.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("local storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsQuotaExceeded reports whether err is (or wraps) a quota denial.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}

// IsValidation reports whether err is (or wraps) a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
