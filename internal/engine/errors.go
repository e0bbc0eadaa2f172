package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/husk/internal/model"
)

// ErrNotFound is returned by a Transport when the representation no longer
// exists. Deletes treat it as success.
var ErrNotFound = errors.New("representation not found")

// ReconcileError represents a failed reconciliation cycle.
//
// Failures include:
//   - Transport failure: remote create/update call failed
//   - Checkpoint write failure: remote mutation succeeded, checkpoint did not
//   - Render failure: the renderer could not produce desired state
//   - Timeout: the cycle stalled past the configured bound
//
// In every case the tracked entry is left in a state from which the next
// event for the key retries consistently.
type ReconcileError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Key identifies the affected tracked entity.
	Key model.Key

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes reconcile errors.
type ErrorCode string

const (
	// ErrCodeTransport indicates a remote create/update/list call failed.
	ErrCodeTransport ErrorCode = "TRANSPORT_FAILURE"

	// ErrCodeCheckpoint indicates the checkpoint write failed after the
	// representation was mutated.
	ErrCodeCheckpoint ErrorCode = "CHECKPOINT_WRITE_FAILURE"

	// ErrCodeRender indicates the renderer returned an error.
	ErrCodeRender ErrorCode = "RENDER_FAILURE"

	// ErrCodeTimeout indicates the cycle exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeInvalidEvent indicates a malformed event.
	ErrCodeInvalidEvent ErrorCode = "INVALID_EVENT"
)

// Error implements the error interface.
func (e *ReconcileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (key=%s): %v", e.Code, e.Message, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %s (key=%s)", e.Code, e.Message, e.Key)
}

// Unwrap returns the underlying cause.
func (e *ReconcileError) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, key model.Key, message string, err error) *ReconcileError {
	// A cancelled or expired context surfaces as a timeout no matter which
	// collaborator observed it.
	if code != ErrCodeInvalidEvent && errors.Is(err, context.DeadlineExceeded) {
		code = ErrCodeTimeout
	}
	return &ReconcileError{Code: code, Message: message, Key: key, Err: err}
}

func hasCode(err error, code ErrorCode) bool {
	var re *ReconcileError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsTransportError returns true if a remote call failed.
// Uses errors.As to handle wrapped errors.
func IsTransportError(err error) bool {
	return hasCode(err, ErrCodeTransport)
}

// IsCheckpointError returns true if the checkpoint write failed.
func IsCheckpointError(err error) bool {
	return hasCode(err, ErrCodeCheckpoint)
}

// IsTimeout returns true if the cycle timed out.
func IsTimeout(err error) bool {
	return hasCode(err, ErrCodeTimeout)
}

// ErrorCodeOf extracts the code of a reconcile error, or "" for other errors.
func ErrorCodeOf(err error) ErrorCode {
	var re *ReconcileError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
