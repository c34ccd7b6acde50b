// Package retry wraps a provider call with rate-limit backoff. The whole
// retry loop occupies a single slot on the request queue.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/stockbuzz/stockbuzz/pkg/llm"
	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/queue"
)

// ErrQuotaExceeded is returned once every attempt was rate limited.
var ErrQuotaExceeded = errors.New("API quota exceeded. Please try again in a moment")

// Policy controls the attempt ceiling and the backoff curve. The delay
// before attempt n+1 is BaseDelay * Factor^(n-1), capped at MaxDelay when it
// is positive.
type Policy struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Factor      float64       `yaml:"factor"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// DefaultPolicy matches the provider's free-tier throttling behaviour.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 10,
		BaseDelay:   5 * time.Second,
		Factor:      1.5,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.Factor < 1 {
		p.Factor = d.Factor
	}
	return p
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	p = p.normalized()
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.Factor, float64(attempt-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Factor
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.Reset()
	return b
}

// Caller runs provider calls through a shared queue.
type Caller struct {
	queue  *queue.Queue
	policy Policy
	logger *zap.Logger
}

// New creates a Caller.
func New(q *queue.Queue, policy Policy, logger *zap.Logger) *Caller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Caller{queue: q, policy: policy.normalized(), logger: logger.Named("retry")}
}

// Policy returns the effective policy.
func (c *Caller) Policy() Policy { return c.policy }

// Stats reports the queue backlog along with the waits between attempts of
// one rate-limited call.
func (c *Caller) Stats() models.QueueStats {
	schedule := make([]time.Duration, 0, c.policy.MaxAttempts-1)
	for attempt := 1; attempt < c.policy.MaxAttempts; attempt++ {
		schedule = append(schedule, c.policy.Delay(attempt))
	}
	return models.QueueStats{
		Pending:     c.queue.Pending(),
		Dispatched:  c.queue.Dispatched(),
		Delay:       c.queue.Delay(),
		MaxAttempts: c.policy.MaxAttempts,
		Backoff:     schedule,
	}
}

// Call runs invoke as one queued task, retrying rate-limited attempts with
// backoff. It returns the value, the number of attempts made and the error.
// Non rate-limit errors end the loop at once. Exhausting the attempt ceiling
// yields ErrQuotaExceeded.
func Call[T any](ctx context.Context, c *Caller, invoke func(context.Context) (T, error)) (T, int, error) {
	type outcome struct {
		v        T
		attempts int
	}
	out, err := queue.Do(ctx, c.queue, func(ctx context.Context) (outcome, error) {
		v, n, err := run(ctx, c, invoke)
		if err != nil {
			return outcome{}, &attemptsError{attempts: n, err: err}
		}
		return outcome{v: v, attempts: n}, nil
	})
	if err != nil {
		var zero T
		var ae *attemptsError
		if errors.As(err, &ae) {
			return zero, ae.attempts, ae.err
		}
		return zero, 0, err
	}
	return out.v, out.attempts, nil
}

// Generate runs one generation request through Call.
func (c *Caller) Generate(ctx context.Context, gen llm.Generator, req llm.Request) (*llm.Response, int, error) {
	return Call(ctx, c, func(ctx context.Context) (*llm.Response, error) {
		return gen.Generate(ctx, req)
	})
}

// attemptsError carries the attempt count of a failed loop through the queue.
type attemptsError struct {
	attempts int
	err      error
}

func (e *attemptsError) Error() string { return e.err.Error() }
func (e *attemptsError) Unwrap() error { return e.err }

func run[T any](ctx context.Context, c *Caller, invoke func(context.Context) (T, error)) (T, int, error) {
	var (
		v        T
		attempts int
	)
	op := func() error {
		attempts++
		res, err := invoke(ctx)
		if err == nil {
			v = res
			return nil
		}
		if llm.Classify(err) != llm.KindRateLimited {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, d time.Duration) {
		c.logger.Warn("rate limited, backing off",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", c.policy.MaxAttempts),
			zap.Duration("delay", d),
			zap.Error(err),
		)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(c.policy.backOff(), uint64(c.policy.MaxAttempts-1)),
		ctx,
	)
	err := backoff.RetryNotify(op, b, notify)
	switch {
	case err == nil:
		return v, attempts, nil
	case ctx.Err() == nil && llm.IsRateLimited(err):
		c.logger.Error("attempt ceiling reached", zap.Int("attempts", attempts), zap.Error(err))
		var zero T
		return zero, attempts, ErrQuotaExceeded
	default:
		var zero T
		return zero, attempts, err
	}
}
