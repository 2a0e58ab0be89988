package platform

import (
	"errors"
	"fmt"
)

// ErrorKind classifies adapter failures so callers can decide retryability
type ErrorKind string

const (
	ErrKindAuth        ErrorKind = "auth"
	ErrKindNotFound    ErrorKind = "not_found"
	ErrKindRateLimited ErrorKind = "rate_limited"
	ErrKindMalformed   ErrorKind = "malformed"
	ErrKindNetwork     ErrorKind = "network"
	ErrKindUnsupported ErrorKind = "unsupported"
)

// Error is a platform-level failure carrying the adapter type and a kind
type Error struct {
	Platform string
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Platform, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Platform, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a platform error
func NewError(platformType string, kind ErrorKind, message string, cause error) *Error {
	return &Error{Platform: platformType, Kind: kind, Message: message, Err: cause}
}

// KindOf extracts the error kind, or "" if err is not a platform error
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsRetryable reports whether a failed call is worth retrying.
// Network failures and rate limiting are transient; auth, not-found and
// malformed responses are not.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case ErrKindNetwork, ErrKindRateLimited:
		return true
	default:
		return false
	}
}
