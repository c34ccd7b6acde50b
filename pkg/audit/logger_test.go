package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func tempCfg() models.AuditConfig {
	return models.AuditConfig{
		Enabled:       true,
		RetentionDays: 90,
		MaxBodySize:   1024,
		Include:       []string{IncludePrompts, IncludeResponses},
	}
}

func mustNew(t *testing.T, cfg models.AuditConfig) *Logger {
	t.Helper()
	l, err := New(filepath.Join(t.TempDir(), "audit_test.db"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleEntry() models.AuditEntry {
	return models.AuditEntry{
		RequestID:        "req-001",
		Feature:          "scan_market",
		Model:            "gemini-2.5-flash",
		CacheKey:         "scan_market_{}",
		Prompt:           "Find momentum stocks",
		Response:         `{"stocks":[]}`,
		Outcome:          models.OutcomeOK,
		Attempts:         1,
		PromptTokens:     10,
		CompletionTokens: 20,
		TotalTokens:      30,
		LatencyMs:        150,
		CreatedAt:        time.Now(),
	}
}

func TestLogAndQuery(t *testing.T) {
	l := mustNew(t, tempCfg())
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, sampleEntry()))

	entries, err := l.Query(ctx, models.AuditQueryOpts{Feature: "scan_market"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	got := entries[0]
	assert.Equal(t, "req-001", got.RequestID)
	assert.Equal(t, "scan_market_{}", got.CacheKey)
	assert.Equal(t, "Find momentum stocks", got.Prompt)
	assert.Equal(t, 30, got.TotalTokens)
	assert.Equal(t, int64(150), got.LatencyMs)
}

func TestQueryFilters(t *testing.T) {
	l := mustNew(t, tempCfg())
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, sampleEntry()))
	failed := sampleEntry()
	failed.RequestID = "req-002"
	failed.Feature = "news"
	failed.Outcome = models.OutcomeQuota
	failed.Error = "API quota exceeded"
	require.NoError(t, l.Log(ctx, failed))

	entries, err := l.Query(ctx, models.AuditQueryOpts{Outcome: models.OutcomeQuota})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-002", entries[0].RequestID)
	assert.Equal(t, "API quota exceeded", entries[0].Error)

	entries, err = l.Query(ctx, models.AuditQueryOpts{Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = l.Query(ctx, models.AuditQueryOpts{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGet(t *testing.T) {
	l := mustNew(t, tempCfg())
	ctx := context.Background()
	require.NoError(t, l.Log(ctx, sampleEntry()))

	e, err := l.Get(ctx, "req-001")
	require.NoError(t, err)
	assert.Equal(t, "scan_market", e.Feature)

	_, err = l.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLogAssignsRequestID(t *testing.T) {
	l := mustNew(t, tempCfg())
	ctx := context.Background()

	e := sampleEntry()
	e.RequestID = ""
	e.CreatedAt = time.Time{}
	require.NoError(t, l.Log(ctx, e))

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].RequestID, 36)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestExcludeFeatures(t *testing.T) {
	cfg := tempCfg()
	cfg.ExcludeFeatures = []string{"scan_market"}
	l := mustNew(t, cfg)
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, sampleEntry()))

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBodyTruncation(t *testing.T) {
	cfg := tempCfg()
	cfg.MaxBodySize = 16
	l := mustNew(t, cfg)
	ctx := context.Background()

	entry := sampleEntry()
	entry.Prompt = strings.Repeat("x", 100)
	require.NoError(t, l.Log(ctx, entry))

	e, err := l.Get(ctx, "req-001")
	require.NoError(t, err)
	assert.Len(t, e.Prompt, 16)
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "ab", truncate("ab€", 4))
	assert.Equal(t, "ab€", truncate("ab€", 5))
	assert.Equal(t, "abc", truncate("abc", 0))
}

func TestIncludeFiltering(t *testing.T) {
	cfg := tempCfg()
	cfg.Include = nil
	l := mustNew(t, cfg)
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, sampleEntry()))

	e, err := l.Get(ctx, "req-001")
	require.NoError(t, err)
	assert.Empty(t, e.Prompt)
	assert.Empty(t, e.Response)
	assert.Equal(t, 30, e.TotalTokens, "metadata is always kept")
}

func TestCleanup(t *testing.T) {
	cfg := tempCfg()
	cfg.RetentionDays = 1
	l := mustNew(t, cfg)
	ctx := context.Background()

	old := sampleEntry()
	old.CreatedAt = time.Now().AddDate(0, 0, -2)
	require.NoError(t, l.Log(ctx, old))
	fresh := sampleEntry()
	fresh.RequestID = "req-002"
	require.NoError(t, l.Log(ctx, fresh))

	deleted, err := l.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	entries, err := l.Query(ctx, models.AuditQueryOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-002", entries[0].RequestID)
}

func TestStats(t *testing.T) {
	l := mustNew(t, tempCfg())
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, sampleEntry()))
	e2 := sampleEntry()
	e2.RequestID = "req-002"
	require.NoError(t, l.Log(ctx, e2))

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, stats)
	assert.Equal(t, "scan_market", stats[0].Feature)
	assert.Equal(t, 2, stats[0].Count)
}

func TestNilLoggerSafe(t *testing.T) {
	var l *Logger
	assert.NoError(t, l.Log(context.Background(), sampleEntry()))
	assert.NoError(t, l.Close())
}

func TestNewInvalidPath(t *testing.T) {
	_, err := New(filepath.Join(os.TempDir(), "nonexistent", "deep", "path", "audit.db"), tempCfg())
	assert.Error(t, err)
}
