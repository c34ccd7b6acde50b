// Package audit keeps a queryable log of model calls made by dashboard
// features.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/store"
)

// Include values for AuditConfig.Include.
const (
	IncludePrompts   = "prompts"
	IncludeResponses = "responses"
)

const defaultQueryLimit = 100

var columns = []string{
	"request_id", "feature", "model", "cache_key", "prompt", "response",
	"outcome", "error", "attempts", "prompt_tokens", "completion_tokens",
	"total_tokens", "latency_ms", "created_at",
}

// Logger writes and queries audit entries in a SQLite database.
type Logger struct {
	db      *sql.DB
	cfg     models.AuditConfig
	now     func() time.Time
	done    chan struct{}
	wg      sync.WaitGroup
	include map[string]bool
	exclude map[string]bool
}

// New opens the audit database at dbPath, creates the schema and starts the
// hourly retention sweep.
func New(dbPath string, cfg models.AuditConfig) (*Logger, error) {
	db, err := sql.Open("sqlite", store.DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	inc := make(map[string]bool)
	for _, v := range cfg.Include {
		inc[v] = true
	}
	exc := make(map[string]bool)
	for _, v := range cfg.ExcludeFeatures {
		exc[v] = true
	}

	l := &Logger{
		db:      db,
		cfg:     cfg,
		now:     time.Now,
		done:    make(chan struct{}),
		include: inc,
		exclude: exc,
	}

	if cfg.RetentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}

	return l, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_log (
			request_id        TEXT PRIMARY KEY,
			feature           TEXT NOT NULL,
			model             TEXT NOT NULL,
			cache_key         TEXT NOT NULL DEFAULT '',
			prompt            TEXT NOT NULL DEFAULT '',
			response          TEXT NOT NULL DEFAULT '',
			outcome           TEXT NOT NULL,
			error             TEXT NOT NULL DEFAULT '',
			attempts          INTEGER NOT NULL DEFAULT 0,
			prompt_tokens     INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens      INTEGER NOT NULL DEFAULT 0,
			latency_ms        INTEGER NOT NULL DEFAULT 0,
			created_at        DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_feature ON audit_log(feature)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// NewRequestID returns a fresh audit request ID.
func NewRequestID() string {
	return uuid.NewString()
}

// Log inserts an audit entry, respecting include/exclude configuration.
// Logging on a nil Logger is a no-op.
func (l *Logger) Log(ctx context.Context, entry models.AuditEntry) error {
	if l == nil || l.db == nil {
		return nil
	}
	if l.exclude[entry.Feature] {
		return nil
	}

	if entry.RequestID == "" {
		entry.RequestID = NewRequestID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	if !l.include[IncludePrompts] {
		entry.Prompt = ""
	}
	if !l.include[IncludeResponses] {
		entry.Response = ""
	}
	entry.Prompt = truncate(entry.Prompt, l.cfg.MaxBodySize)
	entry.Response = truncate(entry.Response, l.cfg.MaxBodySize)

	_, err := sq.Insert("audit_log").
		Options("OR REPLACE").
		Columns(columns...).
		Values(
			entry.RequestID, entry.Feature, entry.Model, entry.CacheKey,
			entry.Prompt, entry.Response, entry.Outcome, entry.Error,
			entry.Attempts, entry.PromptTokens, entry.CompletionTokens,
			entry.TotalTokens, entry.LatencyMs, entry.CreatedAt.UTC(),
		).
		RunWith(l.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// Query returns audit entries matching the given options, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	q := sq.Select(columns...).From("audit_log")

	if opts.RequestID != "" {
		q = q.Where(sq.Eq{"request_id": opts.RequestID})
	}
	if opts.Feature != "" {
		q = q.Where(sq.Eq{"feature": opts.Feature})
	}
	if opts.Model != "" {
		q = q.Where(sq.Eq{"model": opts.Model})
	}
	if opts.Outcome != "" {
		q = q.Where(sq.Eq{"outcome": opts.Outcome})
	}
	if !opts.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": opts.Since.UTC()})
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	q = q.OrderBy("created_at DESC").Limit(uint64(limit))

	rows, err := q.RunWith(l.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(
			&e.RequestID, &e.Feature, &e.Model, &e.CacheKey, &e.Prompt, &e.Response,
			&e.Outcome, &e.Error, &e.Attempts, &e.PromptTokens, &e.CompletionTokens,
			&e.TotalTokens, &e.LatencyMs, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the entry with the given request ID.
func (l *Logger) Get(ctx context.Context, requestID string) (models.AuditEntry, error) {
	entries, err := l.Query(ctx, models.AuditQueryOpts{RequestID: requestID, Limit: 1})
	if err != nil {
		return models.AuditEntry{}, err
	}
	if len(entries) == 0 {
		return models.AuditEntry{}, fmt.Errorf("audit entry %q: %w", requestID, store.ErrNotFound)
	}
	return entries[0], nil
}

// Stats returns aggregate counts grouped by feature and day.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := sq.Select("feature", "date(created_at) AS day", "count(*)").
		From("audit_log").
		GroupBy("feature", "day").
		OrderBy("day DESC", "feature").
		RunWith(l.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		var day sql.NullString
		if err := rows.Scan(&s.Feature, &day, &s.Count); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than the configured retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := l.now().AddDate(0, 0, -l.cfg.RetentionDays).UTC()
	res, err := sq.Delete("audit_log").
		Where(sq.Lt{"created_at": cutoff}).
		RunWith(l.db).
		ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}
