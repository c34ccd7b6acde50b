// Package store persists user-owned dashboard state in SQLite: provider API
// keys and watchlists.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/stockbuzz/stockbuzz/pkg/models"
)

// ErrNotFound is returned when a key or watchlist does not exist.
var ErrNotFound = errors.New("not found")

// DSN returns a modernc sqlite data source for path. Components share one
// database file, so writers wait on a busy timeout instead of failing, and
// times are stored in SQLite's own format so date functions can read them.
func DSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
}

// Store holds API keys and watchlists.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

const createTables = `
CREATE TABLE IF NOT EXISTS api_keys (
	provider_id TEXT PRIMARY KEY,
	api_key TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	status TEXT NOT NULL DEFAULT 'untested',
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS watchlists (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	tickers TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL
);
`

// Open creates a Store and runs auto-migration.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	if _, err := db.Exec(createTables); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store db: %w", err)
	}

	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveKey inserts or replaces the key for cfg.ProviderID.
func (s *Store) SaveKey(ctx context.Context, cfg models.APIKeyConfig) error {
	if _, ok := models.LookupProvider(cfg.ProviderID); !ok {
		return fmt.Errorf("unknown provider %q", cfg.ProviderID)
	}
	if cfg.Status == "" {
		cfg.Status = models.KeyUntested
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (provider_id, api_key, enabled, status, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(provider_id) DO UPDATE SET api_key = excluded.api_key, enabled = excluded.enabled,
		 status = excluded.status, updated_at = excluded.updated_at`,
		cfg.ProviderID, cfg.APIKey, cfg.Enabled, string(cfg.Status), s.now(),
	)
	if err != nil {
		return fmt.Errorf("save key: %w", err)
	}
	return nil
}

// GetKey returns the stored key for a provider.
func (s *Store) GetKey(ctx context.Context, providerID string) (models.APIKeyConfig, error) {
	var k models.APIKeyConfig
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT provider_id, api_key, enabled, status, updated_at FROM api_keys WHERE provider_id = ?`,
		providerID,
	).Scan(&k.ProviderID, &k.APIKey, &k.Enabled, &status, &k.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return k, fmt.Errorf("key for %s: %w", providerID, ErrNotFound)
	}
	if err != nil {
		return k, fmt.Errorf("get key: %w", err)
	}
	k.Status = models.KeyStatus(status)
	return k, nil
}

// ListKeys returns every stored key ordered by provider.
func (s *Store) ListKeys(ctx context.Context) ([]models.APIKeyConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider_id, api_key, enabled, status, updated_at FROM api_keys ORDER BY provider_id`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []models.APIKeyConfig
	for rows.Next() {
		var k models.APIKeyConfig
		var status string
		if err := rows.Scan(&k.ProviderID, &k.APIKey, &k.Enabled, &status, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		k.Status = models.KeyStatus(status)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// SetKeyStatus records the outcome of a connection test.
func (s *Store) SetKeyStatus(ctx context.Context, providerID string, status models.KeyStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET status = ?, updated_at = ? WHERE provider_id = ?`,
		string(status), s.now(), providerID,
	)
	if err != nil {
		return fmt.Errorf("set key status: %w", err)
	}
	return requireRow(res, "key for "+providerID)
}

// SetKeyEnabled toggles a stored key.
func (s *Store) SetKeyEnabled(ctx context.Context, providerID string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET enabled = ?, updated_at = ? WHERE provider_id = ?`,
		enabled, s.now(), providerID,
	)
	if err != nil {
		return fmt.Errorf("set key enabled: %w", err)
	}
	return requireRow(res, "key for "+providerID)
}

// DeleteKey removes the key for a provider.
func (s *Store) DeleteKey(ctx context.Context, providerID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE provider_id = ?`, providerID)
	if err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return requireRow(res, "key for "+providerID)
}

// CreateWatchlist stores a new watchlist with a generated ID.
func (s *Store) CreateWatchlist(ctx context.Context, name string, tickers []string) (models.Watchlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Watchlist{}, errors.New("watchlist name is required")
	}
	w := models.Watchlist{ID: uuid.NewString(), Name: name, Tickers: NormalizeTickers(tickers)}
	data, _ := json.Marshal(w.Tickers)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watchlists (id, name, tickers, created_at) VALUES (?, ?, ?, ?)`,
		w.ID, w.Name, string(data), s.now(),
	)
	if err != nil {
		return models.Watchlist{}, fmt.Errorf("create watchlist: %w", err)
	}
	return w, nil
}

// Watchlist returns the watchlist with the given ID or name.
func (s *Store) Watchlist(ctx context.Context, idOrName string) (models.Watchlist, error) {
	var w models.Watchlist
	var tickers string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, tickers FROM watchlists WHERE id = ? OR name = ? LIMIT 1`,
		idOrName, idOrName,
	).Scan(&w.ID, &w.Name, &tickers)
	if errors.Is(err, sql.ErrNoRows) {
		return w, fmt.Errorf("watchlist %q: %w", idOrName, ErrNotFound)
	}
	if err != nil {
		return w, fmt.Errorf("get watchlist: %w", err)
	}
	if err := json.Unmarshal([]byte(tickers), &w.Tickers); err != nil {
		return w, fmt.Errorf("decode watchlist tickers: %w", err)
	}
	return w, nil
}

// ListWatchlists returns every watchlist in creation order.
func (s *Store) ListWatchlists(ctx context.Context) ([]models.Watchlist, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, tickers FROM watchlists ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list watchlists: %w", err)
	}
	defer rows.Close()

	var lists []models.Watchlist
	for rows.Next() {
		var w models.Watchlist
		var tickers string
		if err := rows.Scan(&w.ID, &w.Name, &tickers); err != nil {
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}
		if err := json.Unmarshal([]byte(tickers), &w.Tickers); err != nil {
			return nil, fmt.Errorf("decode watchlist tickers: %w", err)
		}
		lists = append(lists, w)
	}
	return lists, rows.Err()
}

// AddTickers appends tickers that are not already on the watchlist.
func (s *Store) AddTickers(ctx context.Context, idOrName string, tickers ...string) (models.Watchlist, error) {
	w, err := s.Watchlist(ctx, idOrName)
	if err != nil {
		return w, err
	}
	w.Tickers = NormalizeTickers(append(w.Tickers, tickers...))
	return w, s.saveTickers(ctx, w)
}

// RemoveTickers drops tickers from the watchlist.
func (s *Store) RemoveTickers(ctx context.Context, idOrName string, tickers ...string) (models.Watchlist, error) {
	w, err := s.Watchlist(ctx, idOrName)
	if err != nil {
		return w, err
	}
	drop := make(map[string]bool, len(tickers))
	for _, t := range NormalizeTickers(tickers) {
		drop[t] = true
	}
	kept := make([]string, 0, len(w.Tickers))
	for _, t := range w.Tickers {
		if !drop[t] {
			kept = append(kept, t)
		}
	}
	w.Tickers = kept
	return w, s.saveTickers(ctx, w)
}

// DeleteWatchlist removes a watchlist by ID or name.
func (s *Store) DeleteWatchlist(ctx context.Context, idOrName string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watchlists WHERE id = ? OR name = ?`, idOrName, idOrName)
	if err != nil {
		return fmt.Errorf("delete watchlist: %w", err)
	}
	return requireRow(res, fmt.Sprintf("watchlist %q", idOrName))
}

func (s *Store) saveTickers(ctx context.Context, w models.Watchlist) error {
	data, _ := json.Marshal(w.Tickers)
	if _, err := s.db.ExecContext(ctx, `UPDATE watchlists SET tickers = ? WHERE id = ?`, string(data), w.ID); err != nil {
		return fmt.Errorf("update watchlist: %w", err)
	}
	return nil
}

// NormalizeTickers upper-cases, trims and de-duplicates symbols, keeping the
// first occurrence order. The result is never nil.
func NormalizeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "$")))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
