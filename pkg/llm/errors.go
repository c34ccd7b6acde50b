package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies the outcome of a provider call.
type Kind int

const (
	// KindOK means the call succeeded.
	KindOK Kind = iota
	// KindRateLimited means the provider throttled the call; it may be retried.
	KindRateLimited
	// KindFatal means retrying will not help.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindRateLimited:
		return "rate_limited"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a classified provider error.
type Error struct {
	Kind Kind
	// Code is the provider's HTTP status, when known.
	Code int
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// RateLimited wraps err as a retryable rate-limit error.
func RateLimited(op string, err error) error {
	return &Error{Kind: KindRateLimited, Code: http.StatusTooManyRequests, Op: op, Err: err}
}

// Fatal wraps err as a non-retryable error.
func Fatal(op string, err error) error {
	return &Error{Kind: KindFatal, Op: op, Err: err}
}

// Classify decides whether err is a rate limit. Already classified errors
// keep their kind. Otherwise a 429 status, a RESOURCE_EXHAUSTED status or a
// quota message marks a rate limit, and anything else is fatal.
func Classify(err error) Kind {
	if err == nil {
		return KindOK
	}

	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}

	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) && sc.StatusCode() == http.StatusTooManyRequests {
		return KindRateLimited
	}
	var hs interface{ HTTPStatus() int }
	if errors.As(err, &hs) && hs.HTTPStatus() == http.StatusTooManyRequests {
		return KindRateLimited
	}

	if rateLimitedBody(err.Error()) || rateLimitedMessage(err.Error()) {
		return KindRateLimited
	}
	return KindFatal
}

// IsRateLimited reports whether err is retryable.
func IsRateLimited(err error) bool {
	return Classify(err) == KindRateLimited
}

// rateLimitedBody recognises a provider error envelope such as
// {"error":{"code":429,"status":"RESOURCE_EXHAUSTED"}} embedded in a message.
func rateLimitedBody(msg string) bool {
	start := strings.IndexByte(msg, '{')
	end := strings.LastIndexByte(msg, '}')
	if start < 0 || end <= start {
		return false
	}
	var body struct {
		Error struct {
			Code   int    `json:"code"`
			Status string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(msg[start:end+1]), &body); err != nil {
		return false
	}
	return body.Error.Code == http.StatusTooManyRequests || body.Error.Status == "RESOURCE_EXHAUSTED"
}

func rateLimitedMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, needle := range []string{"429", "resource_exhausted", "resource exhausted", "quota"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}
