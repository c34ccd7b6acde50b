package budget

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/tracker"
)

func setup(t *testing.T) (tracker.Tracker, context.Context) {
	t.Helper()
	tr, err := tracker.New(filepath.Join(t.TempDir(), "budget_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr, context.Background()
}

func record(t *testing.T, tr tracker.Tracker, model string, tokens int) {
	t.Helper()
	require.NoError(t, tr.Record(context.Background(), models.UsageRecord{
		Feature: "scan_market", Model: model, TotalTokens: tokens, CreatedAt: time.Now().UTC(),
	}))
}

func TestCheckUnderBudget(t *testing.T) {
	tr, ctx := setup(t)
	record(t, tr, "gemini-2.5-flash", 150)

	e := New([]models.BudgetPolicy{
		{Model: "*", MaxTokens: 1000, MaxRequests: 10, Period: models.BudgetDaily},
	}, tr)
	assert.NoError(t, e.Check(ctx, "gemini-2.5-flash"))
}

func TestCheckTokensExceeded(t *testing.T) {
	tr, ctx := setup(t)
	record(t, tr, "gemini-2.5-flash", 600)
	record(t, tr, "gemini-2.5-flash", 600)

	e := New([]models.BudgetPolicy{
		{Model: "*", MaxTokens: 1000, Period: models.BudgetDaily},
	}, tr)
	err := e.Check(ctx, "gemini-2.5-flash")
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.ErrorContains(t, err, "tokens")
}

func TestCheckRequestsExceeded(t *testing.T) {
	tr, ctx := setup(t)
	record(t, tr, "gemini-2.5-flash", 1)
	record(t, tr, "gemini-2.5-flash", 1)

	e := New([]models.BudgetPolicy{
		{MaxRequests: 2, Period: models.BudgetMonthly},
	}, tr)
	err := e.Check(ctx, "gemini-2.5-flash")
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.ErrorContains(t, err, "requests")
}

func TestCheckModelScoped(t *testing.T) {
	tr, ctx := setup(t)
	record(t, tr, "gemini-2.5-pro", 5000)

	e := New([]models.BudgetPolicy{
		{Model: "gemini-2.5-pro", MaxTokens: 1000, Period: models.BudgetDaily},
	}, tr)
	assert.ErrorIs(t, e.Check(ctx, "gemini-2.5-pro"), ErrBudgetExceeded)
	assert.NoError(t, e.Check(ctx, "gemini-2.5-flash"), "policy for another model does not apply")
}

func TestStatus(t *testing.T) {
	tr, ctx := setup(t)
	record(t, tr, "gemini-2.5-flash", 300)

	e := New([]models.BudgetPolicy{
		{Model: "*", MaxTokens: 1000, Period: models.BudgetDaily},
		{Model: "*", MaxRequests: 5, Period: models.BudgetMonthly},
	}, tr)

	statuses, err := e.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, int64(300), statuses[0].UsedTokens)
	assert.Equal(t, int64(700), statuses[0].RemainingTokens)
	assert.Equal(t, int64(-1), statuses[0].RemainingRequests)
	assert.Equal(t, int64(1), statuses[1].UsedRequests)
	assert.Equal(t, int64(4), statuses[1].RemainingRequests)
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2025, 3, 17, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), periodStart(now, models.BudgetDaily))
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), periodStart(now, models.BudgetMonthly))
}
