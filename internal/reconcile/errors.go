package reconcile

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed Engine and by receipts
// whose push never ran.
var ErrClosed = errors.New("reconcile: engine closed")

// PushErrorCode categorizes push failures.
type PushErrorCode string

const (
	// ErrCodeRemote indicates the authority rejected or failed an operation.
	ErrCodeRemote PushErrorCode = "REMOTE_FAILED"

	// ErrCodeLocal indicates the replica could not record a push result.
	ErrCodeLocal PushErrorCode = "LOCAL_FAILED"

	// ErrCodeCanceled indicates the push was canceled between records.
	ErrCodeCanceled PushErrorCode = "CANCELED"
)

// PushError stops a push pass. The failing record and every record after
// it remain pending.
type PushError struct {
	Code      PushErrorCode
	ProfileID string
	RecordID  string
	Op        string

	// Remaining counts pending rows not confirmed by this pass, the failing
	// one included.
	Remaining int

	Err error
}

// Error implements the error interface.
func (e *PushError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("%s: push aborted (profile=%s, remaining=%d): %v", e.Code, e.ProfileID, e.Remaining, e.Err)
	}
	return fmt.Sprintf("%s: %s %s failed (profile=%s, remaining=%d): %v",
		e.Code, e.Op, e.RecordID, e.ProfileID, e.Remaining, e.Err)
}

// Unwrap returns the underlying error.
func (e *PushError) Unwrap() error {
	return e.Err
}

// IsRemoteError returns true if err is a push failure caused by the
// authority. Uses errors.As to handle wrapped errors.
func IsRemoteError(err error) bool {
	var pe *PushError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeRemote
	}
	return false
}
