package ai

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrNotConfigured is the cause of ConfigurationAbsent errors.
var ErrNotConfigured = errors.New("no ai credential configured")

// Kind classifies AI failures so callers can decide on retries.
type Kind string

const (
	KindTransport           Kind = "transport_error"
	KindMalformedResponse   Kind = "malformed_response"
	KindIncompleteResponse  Kind = "incomplete_response"
	KindConfigurationAbsent Kind = "configuration_absent"
)

// Error is the single error type crossing the AI boundary.
type Error struct {
	Kind       Kind
	Credential string
	Err        error
}

func (e *Error) Error() string {
	if e.Credential != "" {
		return fmt.Sprintf("%s (credential %s): %v", e.Kind, e.Credential, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether another attempt may succeed.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindMalformedResponse, KindIncompleteResponse:
		return true
	default:
		return false
	}
}
