package errors

import "fmt"

// Kind classifies the failures that can occur during a batch run
type Kind string

const (
	// KindInvalidParameter marks a bad input parameter, caught before any I/O
	KindInvalidParameter Kind = "invalid_parameter"
	// KindSourceUnavailable marks an unreadable species list
	KindSourceUnavailable Kind = "source_unavailable"
	// KindFetch marks a failed recordings query; fatal to the batch run
	KindFetch Kind = "fetch"
	// KindPersist marks a failed write of recordings or metadata; fatal to the batch run
	KindPersist Kind = "persist"
	// KindCheckpointCorrupt marks an unreadable or unparsable checkpoint file
	KindCheckpointCorrupt Kind = "checkpoint_corrupt"

	// Transport-level kinds used by the xeno-canto client
	KindNetwork     Kind = "network"
	KindRateLimit   Kind = "rate_limit"
	KindServerError Kind = "server_error"
	KindNotFound    Kind = "not_found"
	KindParsing     Kind = "parsing"
	KindUnknown     Kind = "unknown"
)

// Error is a classified error with an optional HTTP status code
type Error struct {
	Kind    Kind
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error wrapping an underlying cause
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsRetryable reports whether an error kind is worth retrying
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindNetwork, KindRateLimit, KindServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode reports whether an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// KindFromStatusCode maps an HTTP status code to an error kind
func KindFromStatusCode(statusCode int) Kind {
	switch {
	case statusCode == 0:
		return KindNetwork
	case statusCode == 429:
		return KindRateLimit
	case statusCode == 404:
		return KindNotFound
	case statusCode >= 500:
		return KindServerError
	default:
		return KindUnknown
	}
}
