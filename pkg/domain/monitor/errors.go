package monitor

import (
	"errors"
	"fmt"
)

// MonitorError is a typed error for the monitor domain.
type MonitorError string

func (e MonitorError) Error() string { return string(e) }

const (
	ErrQuotaExceeded   MonitorError = "monitor limit reached"
	ErrInvalidGameType MonitorError = "invalid game type"
	ErrHandleInvalid   MonitorError = "message handle no longer valid"
	ErrDuplicateHandle MonitorError = "message is already monitored"
	ErrNotFound        MonitorError = "monitor not found"
)

// QuotaError reports the counts behind ErrQuotaExceeded.
type QuotaError struct {
	ScopeID string
	Count   int
	Limit   int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s for scope %s (%d/%d)", ErrQuotaExceeded, e.ScopeID, e.Count, e.Limit)
}

// Is makes errors.Is(err, ErrQuotaExceeded) hold.
func (e *QuotaError) Is(target error) bool { return target == ErrQuotaExceeded }

// InvalidHandle wraps a platform error so that it matches ErrHandleInvalid
// while keeping the cause for logging.
func InvalidHandle(cause error) error {
	if cause == nil {
		return ErrHandleInvalid
	}
	return fmt.Errorf("%w: %v", ErrHandleInvalid, cause)
}

// IsHandleInvalid reports whether err means the task must be retired.
func IsHandleInvalid(err error) bool {
	return errors.Is(err, ErrHandleInvalid)
}
