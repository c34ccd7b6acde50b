package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/store"
)

// Tracker records and queries model usage per dashboard feature.
type Tracker interface {
	// Record stores a usage record.
	Record(ctx context.Context, rec models.UsageRecord) error
	// Query returns usage records, newest first, optionally filtered by feature.
	Query(ctx context.Context, feature string, since time.Time, limit int) ([]models.UsageRecord, error)
	// Totals returns tokens and request count since a given time. An empty or
	// "*" model counts every model.
	Totals(ctx context.Context, model string, since time.Time) (tokens, requests int64, err error)
	// Summary returns usage aggregated by feature and model, optionally
	// filtered by feature.
	Summary(ctx context.Context, feature string) ([]models.UsageSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	feature TEXT NOT NULL,
	model TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	completion_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_usage_feature_time ON usage_records(feature, created_at);
CREATE INDEX IF NOT EXISTS idx_usage_model_time ON usage_records(model, created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", store.DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// Record stores a usage record.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Attempts == 0 {
		rec.Attempts = 1
	}
	_, err := sq.Insert("usage_records").
		Columns("feature", "model", "prompt_tokens", "completion_tokens", "total_tokens", "attempts", "created_at").
		Values(rec.Feature, rec.Model, rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.Attempts, rec.CreatedAt.UTC()).
		RunWith(t.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Query returns usage records since a given time, newest first.
func (t *SQLiteTracker) Query(ctx context.Context, feature string, since time.Time, limit int) ([]models.UsageRecord, error) {
	q := sq.Select("id", "feature", "model", "prompt_tokens", "completion_tokens", "total_tokens", "attempts", "created_at").
		From("usage_records").
		Where(sq.GtOrEq{"created_at": since.UTC()}).
		OrderBy("created_at DESC", "id DESC")
	if feature != "" {
		q = q.Where(sq.Eq{"feature": feature})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	rows, err := q.RunWith(t.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		if err := rows.Scan(&r.ID, &r.Feature, &r.Model, &r.PromptTokens, &r.CompletionTokens, &r.TotalTokens, &r.Attempts, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Totals returns tokens used and requests made since a given time.
func (t *SQLiteTracker) Totals(ctx context.Context, model string, since time.Time) (int64, int64, error) {
	q := sq.Select("COALESCE(SUM(total_tokens), 0)", "COUNT(*)").
		From("usage_records").
		Where(sq.GtOrEq{"created_at": since.UTC()})
	if model != "" && model != "*" {
		q = q.Where(sq.Eq{"model": model})
	}

	var tokens, requests int64
	if err := q.RunWith(t.db).QueryRowContext(ctx).Scan(&tokens, &requests); err != nil {
		return 0, 0, fmt.Errorf("total usage: %w", err)
	}
	return tokens, requests, nil
}

// Summary returns aggregated usage grouped by feature and model.
func (t *SQLiteTracker) Summary(ctx context.Context, feature string) ([]models.UsageSummary, error) {
	q := sq.Select("feature", "model", "COUNT(*)", "SUM(prompt_tokens)", "SUM(completion_tokens)", "SUM(total_tokens)", "SUM(attempts)").
		From("usage_records").
		GroupBy("feature", "model").
		OrderBy("SUM(total_tokens) DESC", "feature")
	if feature != "" {
		q = q.Where(sq.Eq{"feature": feature})
	}

	rows, err := q.RunWith(t.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var s models.UsageSummary
		if err := rows.Scan(&s.Feature, &s.Model, &s.RequestCount, &s.TotalPrompt, &s.TotalCompletion, &s.TotalTokens, &s.TotalAttempts); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
