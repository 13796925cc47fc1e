package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Reason classifies why acquisition or capture failed.
type Reason int

const (
	ReasonUnknown Reason = iota
	ReasonPermissionDenied
	ReasonDeviceNotFound
	ReasonDeviceBusy
	ReasonConstraintsUnsupported
	ReasonTimeout
	ReasonCaptureFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonPermissionDenied:
		return "permission_denied"
	case ReasonDeviceNotFound:
		return "device_not_found"
	case ReasonDeviceBusy:
		return "device_busy"
	case ReasonConstraintsUnsupported:
		return "constraints_unsupported"
	case ReasonTimeout:
		return "timeout"
	case ReasonCaptureFailed:
		return "capture_failed"
	default:
		return "unknown"
	}
}

// Remedies a caller can offer the user.
const (
	RemedyRetry  = "retry"
	RemedyUpload = "upload"
)

// Remedy returns the action most likely to help after a failure for this
// reason.
func (r Reason) Remedy() string {
	switch r {
	case ReasonTimeout, ReasonDeviceBusy, ReasonCaptureFailed, ReasonUnknown:
		return RemedyRetry
	default:
		return RemedyUpload
	}
}

// Sentinel errors matched by errors.Is against an *Error.
var (
	ErrPermissionDenied       = errors.New("camera permission denied")
	ErrDeviceNotFound         = errors.New("no camera found")
	ErrDeviceBusy             = errors.New("camera is in use")
	ErrConstraintsUnsupported = errors.New("camera does not support the requested settings")
	ErrTimeout                = errors.New("camera did not respond in time")
	ErrCaptureFailed          = errors.New("capture failed")
	ErrUnknown                = errors.New("camera error")

	// ErrInvalidState is returned when an operation is not allowed in the
	// controller's current state.
	ErrInvalidState = errors.New("invalid camera state")
)

var sentinels = map[Reason]error{
	ReasonUnknown:                ErrUnknown,
	ReasonPermissionDenied:       ErrPermissionDenied,
	ReasonDeviceNotFound:         ErrDeviceNotFound,
	ReasonDeviceBusy:             ErrDeviceBusy,
	ReasonConstraintsUnsupported: ErrConstraintsUnsupported,
	ReasonTimeout:                ErrTimeout,
	ReasonCaptureFailed:          ErrCaptureFailed,
}

// Error is a classified camera failure.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	msg := sentinels[e.Reason].Error()
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Reason.
func (e *Error) Is(target error) bool {
	return sentinels[e.Reason] == target
}

// Remedy returns e.Reason.Remedy().
func (e *Error) Remedy() string { return e.Reason.Remedy() }

// Classify maps a device error to a Reason. Errors that are already an *Error
// keep their reason; others are matched by keyword.
func Classify(err error) Reason {
	if err == nil {
		return ReasonUnknown
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, os.ErrPermission) {
		return ReasonPermissionDenied
	}
	if errors.Is(err, os.ErrNotExist) {
		return ReasonDeviceNotFound
	}

	return ClassifyMessage(err.Error())
}

// ClassifyMessage matches an error message against known keywords.
func ClassifyMessage(msg string) Reason {
	msg = strings.ToLower(msg)

	switch {
	case containsAny(msg, "permission", "not allowed", "notallowed", "access denied", "eacces", "unauthorized"):
		return ReasonPermissionDenied
	case containsAny(msg, "not found", "no such", "notfound", "no device", "enoent", "could not open device"):
		return ReasonDeviceNotFound
	case containsAny(msg, "busy", "in use", "notreadable", "not readable", "ebusy"):
		return ReasonDeviceBusy
	case containsAny(msg, "overconstrained", "constraint", "not-negotiated", "not negotiated", "caps", "unsupported"):
		return ReasonConstraintsUnsupported
	case containsAny(msg, "timeout", "timed out"):
		return ReasonTimeout
	default:
		return ReasonUnknown
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
