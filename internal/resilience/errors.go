package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Kind classifies a provider failure for retry and user messaging.
type Kind int

const (
	// KindPermanent failures will not succeed on retry (bad request, bad auth).
	KindPermanent Kind = iota
	// KindTransient failures are network or server hiccups safe to retry.
	KindTransient
	// KindRateLimited failures mean the provider throttled us or quota ran out.
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "permanent"
	}
}

// TransientError wraps a provider error that is safe to retry
// (429, 5xx, 529 overloaded, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"overloaded",
}

var rateLimitPatterns = []string{
	"rate limit",
	"rate_limit",
	"too many requests",
	"quota",
}

// Classify returns the failure kind of err. Nil errors are permanent.
func Classify(err error) Kind {
	if err == nil {
		return KindPermanent
	}

	var te *TransientError
	if errors.As(err, &te) {
		if te.StatusCode == 429 {
			return KindRateLimited
		}
		return KindTransient
	}

	msg := strings.ToLower(err.Error())
	for _, p := range rateLimitPatterns {
		if strings.Contains(msg, p) {
			return KindRateLimited
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return KindTransient
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return KindTransient
		}
	}
	return KindPermanent
}

// IsTransient reports whether err is worth retrying. Rate limits count as
// transient: backoff gives the provider's window a chance to reset.
func IsTransient(err error) bool {
	return Classify(err) != KindPermanent
}

// IsTransientHTTPStatus reports whether an HTTP status is a retryable
// provider-side condition. 529 is the Anthropic "overloaded" status.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	default:
		return false
	}
}
