package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stockbuzz/stockbuzz/pkg/models"
)

// ErrBudgetExceeded is returned when a call would exceed a budget policy.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Usage reports usage totals. tracker.Tracker satisfies it.
type Usage interface {
	Totals(ctx context.Context, model string, since time.Time) (tokens, requests int64, err error)
}

// Enforcer checks model usage against budget policies before each call.
type Enforcer struct {
	policies []models.BudgetPolicy
	usage    Usage
	now      func() time.Time
}

// New creates an Enforcer with the given policies and usage source.
func New(policies []models.BudgetPolicy, u Usage) *Enforcer {
	return &Enforcer{policies: policies, usage: u, now: time.Now}
}

// Check returns ErrBudgetExceeded if model has used up any applicable policy.
func (e *Enforcer) Check(ctx context.Context, model string) error {
	for _, p := range e.applicablePolicies(model) {
		tokens, requests, err := e.usage.Totals(ctx, p.Model, periodStart(e.now(), p.Period))
		if err != nil {
			return fmt.Errorf("budget check: %w", err)
		}
		if p.MaxTokens > 0 && tokens >= p.MaxTokens {
			return fmt.Errorf("%w: %d/%d tokens %s", ErrBudgetExceeded, tokens, p.MaxTokens, p.Period)
		}
		if p.MaxRequests > 0 && requests >= p.MaxRequests {
			return fmt.Errorf("%w: %d/%d requests %s", ErrBudgetExceeded, requests, p.MaxRequests, p.Period)
		}
	}
	return nil
}

// Status returns usage against every configured policy.
func (e *Enforcer) Status(ctx context.Context) ([]models.BudgetStatus, error) {
	statuses := make([]models.BudgetStatus, 0, len(e.policies))

	for _, p := range e.policies {
		tokens, requests, err := e.usage.Totals(ctx, p.Model, periodStart(e.now(), p.Period))
		if err != nil {
			return nil, fmt.Errorf("budget status: %w", err)
		}
		statuses = append(statuses, models.BudgetStatus{
			Policy:            p,
			UsedTokens:        tokens,
			UsedRequests:      requests,
			RemainingTokens:   remaining(p.MaxTokens, tokens),
			RemainingRequests: remaining(p.MaxRequests, requests),
		})
	}
	return statuses, nil
}

func (e *Enforcer) applicablePolicies(model string) []models.BudgetPolicy {
	var result []models.BudgetPolicy
	for _, p := range e.policies {
		if p.Model == "" || p.Model == "*" || p.Model == model {
			result = append(result, p)
		}
	}
	return result
}

// remaining is -1 for an unlimited policy.
func remaining(limit, used int64) int64 {
	if limit <= 0 {
		return -1
	}
	return max(limit-used, 0)
}

func periodStart(now time.Time, period models.BudgetPeriod) time.Time {
	now = now.UTC()
	switch period {
	case models.BudgetMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default: // daily
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}
