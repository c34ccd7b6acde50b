package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbuzz/stockbuzz/pkg/models"
)

func newTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	tr, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestRecordAndQuery(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, tr.Record(ctx, models.UsageRecord{
		Feature: "scan_market", Model: "gemini-2.5-flash",
		PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, Attempts: 2,
		CreatedAt: now,
	}))
	require.NoError(t, tr.Record(ctx, models.UsageRecord{
		Feature: "chat", Model: "gemini-2.5-flash", TotalTokens: 10,
		CreatedAt: now.Add(time.Second),
	}))

	records, err := tr.Query(ctx, "scan_market", now.Add(-time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 150, records[0].TotalTokens)
	assert.Equal(t, 2, records[0].Attempts)
	assert.WithinDuration(t, now, records[0].CreatedAt, time.Second)

	all, err := tr.Query(ctx, "", now.Add(-time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "chat", all[0].Feature, "newest first")
	assert.Equal(t, 1, all[0].Attempts, "attempts default to one")

	limited, err := tr.Query(ctx, "", now.Add(-time.Minute), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestTotals(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for range 3 {
		require.NoError(t, tr.Record(ctx, models.UsageRecord{
			Feature: "news", Model: "gemini-2.5-flash", TotalTokens: 150, CreatedAt: now,
		}))
	}
	require.NoError(t, tr.Record(ctx, models.UsageRecord{
		Feature: "chat", Model: "gemini-2.5-pro", TotalTokens: 50, CreatedAt: now,
	}))
	require.NoError(t, tr.Record(ctx, models.UsageRecord{
		Feature: "chat", Model: "gemini-2.5-pro", TotalTokens: 999, CreatedAt: now.Add(-48 * time.Hour),
	}))

	since := now.Add(-time.Hour)
	tokens, requests, err := tr.Totals(ctx, "*", since)
	require.NoError(t, err)
	assert.Equal(t, int64(500), tokens)
	assert.Equal(t, int64(4), requests)

	tokens, requests, err = tr.Totals(ctx, "gemini-2.5-pro", since)
	require.NoError(t, err)
	assert.Equal(t, int64(50), tokens)
	assert.Equal(t, int64(1), requests)

	tokens, _, err = tr.Totals(ctx, "other", since)
	require.NoError(t, err)
	assert.Zero(t, tokens)
}

func TestSummary(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_ = tr.Record(ctx, models.UsageRecord{Feature: "news", Model: "m", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, Attempts: 3, CreatedAt: now})
	_ = tr.Record(ctx, models.UsageRecord{Feature: "news", Model: "m", PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, CreatedAt: now})
	_ = tr.Record(ctx, models.UsageRecord{Feature: "chat", Model: "m", TotalTokens: 5, CreatedAt: now})

	summaries, err := tr.Summary(ctx, "")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, models.UsageSummary{
		Feature: "news", Model: "m", RequestCount: 2,
		TotalPrompt: 20, TotalCompletion: 10, TotalTokens: 30, TotalAttempts: 4,
	}, summaries[0])

	filtered, err := tr.Summary(ctx, "chat")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, 5, filtered[0].TotalTokens)
}
