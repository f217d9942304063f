package upstream

import (
	"errors"
	"fmt"
)

// Kind classifies an upstream failure. Consumer retry/drop policy is a pure
// function of the kind.
type Kind int

const (
	// KindRateLimited maps HTTP 429. Consumers ack and drop, never retry.
	KindRateLimited Kind = iota
	// KindNotFound maps HTTP 404.
	KindNotFound
	// KindUnauthorized maps HTTP 401/403.
	KindUnauthorized
	// KindTransient covers 5xx, timeouts and network errors.
	KindTransient
	// KindAPI covers remaining 4xx responses with code and body preserved.
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindTransient:
		return "transient"
	default:
		return "api_error"
	}
}

// Error is the single error type returned by the client.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream %s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the client itself should retry the request.
// Rate limits are deliberately not retryable here; the consumer layer drops.
func (e *Error) Retryable() bool { return e.Kind == KindTransient }

// classify maps an HTTP status to an error kind.
func classify(status int) Kind {
	switch {
	case status == 429:
		return KindRateLimited
	case status == 404:
		return KindNotFound
	case status == 401 || status == 403:
		return KindUnauthorized
	case status >= 500:
		return KindTransient
	default:
		return KindAPI
	}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Kind == k
}

// IsRateLimited reports whether err is an upstream 429.
func IsRateLimited(err error) bool { return IsKind(err, KindRateLimited) }

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }
