package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type statusErr int

func (s statusErr) Error() string   { return "http error" }
func (s statusErr) StatusCode() int { return int(s) }

type httpStatusErr int

func (s httpStatusErr) Error() string   { return "upstream failed" }
func (s httpStatusErr) HTTPStatus() int { return int(s) }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindOK},
		{"typed rate limit", RateLimited("generate", errors.New("slow down")), KindRateLimited},
		{"typed fatal with 429 text", Fatal("generate", errors.New("429 in a prompt echo")), KindFatal},
		{"wrapped typed", fmt.Errorf("scan: %w", RateLimited("generate", errors.New("x"))), KindRateLimited},
		{"status code", statusErr(429), KindRateLimited},
		{"status code 500", statusErr(500), KindFatal},
		{"http status", httpStatusErr(429), KindRateLimited},
		{"json envelope code", errors.New(`upstream: {"error":{"code":429,"message":"x"}}`), KindRateLimited},
		{"json envelope status", errors.New(`{"error":{"code":400,"status":"RESOURCE_EXHAUSTED"}}`), KindRateLimited},
		{"message 429", errors.New("got 429 Too Many Requests"), KindRateLimited},
		{"message quota", errors.New("Quota exceeded for metric"), KindRateLimited},
		{"bad request", errors.New(`{"error":{"code":400,"status":"INVALID_ARGUMENT"}}`), KindFatal},
		{"context", context.Canceled, KindFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("denied")
	err := Fatal("generate", base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "generate: denied", err.Error())
	assert.Equal(t, "rate_limited", KindRateLimited.String())
}
