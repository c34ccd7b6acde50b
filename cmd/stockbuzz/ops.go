package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stockbuzz/stockbuzz/pkg/budget"
	"github.com/stockbuzz/stockbuzz/pkg/config"
	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/render"
)

func newBudgetCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Inspect request and token budgets",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show consumption against each budget policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				enforcer := a.budget
				if enforcer == nil {
					// Report usage even while enforcement is off.
					enforcer = budget.New(a.cfg.Budget.Policies, a.tracker)
				}
				statuses, err := enforcer.Status(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, statuses, func(p *render.Printer) {
					if !a.cfg.Budget.Enabled {
						p.Dim("Budget enforcement is disabled.")
					}
					p.Budget(statuses)
				})
			})
		},
	})
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var feature string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show token usage per feature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				rows, err := a.tracker.Summary(cmd.Context(), feature)
				if err != nil {
					return err
				}
				if rows == nil {
					rows = []models.UsageSummary{}
				}
				return emit(cmd.OutOrStdout(), opts, rows, func(p *render.Printer) {
					p.Usage(rows)
					if fi, err := os.Stat(a.cfg.DBPath); err == nil {
						p.Dim("Database %s (%s)", a.cfg.DBPath, render.Bytes(fi.Size()))
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&feature, "feature", "", "only show one feature")
	return cmd
}

func newAuditCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the model call audit log",
	}
	cmd.AddCommand(
		newAuditSearchCmd(opts),
		newAuditShowCmd(opts),
		&cobra.Command{
			Use:   "stats",
			Short: "Show audit log counts by feature and day",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withAudit(opts, func(a *app) error {
					stats, err := a.audit.Stats(cmd.Context())
					if err != nil {
						return err
					}
					return emit(cmd.OutOrStdout(), opts, stats, func(p *render.Printer) { p.AuditStats(stats) })
				})
			},
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: "Delete audit entries older than the retention period",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withAudit(opts, func(a *app) error {
					deleted, err := a.audit.Cleanup(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d audit entries.\n", deleted)
					return nil
				})
			},
		},
	)
	return cmd
}

func newAuditSearchCmd(opts *rootOptions) *cobra.Command {
	var (
		q     models.AuditQueryOpts
		since string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search audit log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				q.Since = t
			}
			return withAudit(opts, func(a *app) error {
				entries, err := a.audit.Query(cmd.Context(), q)
				if err != nil {
					return err
				}
				if entries == nil {
					entries = []models.AuditEntry{}
				}
				return emit(cmd.OutOrStdout(), opts, entries, func(p *render.Printer) { p.AuditEntries(entries) })
			})
		},
	}
	cmd.Flags().StringVar(&q.Feature, "feature", "", "filter by feature")
	cmd.Flags().StringVar(&q.Model, "model", "", "filter by model")
	cmd.Flags().StringVar(&q.Outcome, "outcome", "", "filter by outcome (ok, error, quota, blocked)")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&q.Limit, "limit", 50, "max entries to return")
	return cmd
}

func newAuditShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show REQUEST_ID",
		Short: "Show a single audit entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAudit(opts, func(a *app) error {
				e, err := a.audit.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, e, func(p *render.Printer) { p.AuditEntry(e) })
			})
		},
	}
}

func withAudit(opts *rootOptions, fn func(a *app) error) error {
	return withApp(opts, func(a *app) error {
		if a.audit == nil {
			return errors.New("audit logging is disabled (set audit.enabled in the config)")
		}
		return fn(a)
	})
}

// The result cache lives in memory, so the cache commands talk to a running
// "stockbuzz serve".
func newCacheCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the result cache of a running server",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "", "server address (default: server.listen from the config)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show result cache statistics",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				var st models.CacheStats
				if err := serverCall(cmd.Context(), opts, addr, http.MethodGet, "/api/cache/stats", nil, &st); err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, st, func(p *render.Printer) { p.CacheStats(st) })
			},
		},
		newCacheClearCmd(opts, &addr),
	)
	return cmd
}

func newCacheClearCmd(opts *rootOptions, addr *string) *cobra.Command {
	var pattern, symbol string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop cached results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			switch {
			case symbol != "":
				q.Set("symbol", symbol)
			case pattern != "":
				q.Set("pattern", pattern)
			}
			var res struct {
				Removed int `json:"removed"`
			}
			if err := serverCall(cmd.Context(), opts, *addr, http.MethodPost, "/api/cache/invalidate", q, &res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached results.\n", res.Removed)
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "only drop keys containing this substring")
	cmd.Flags().StringVar(&symbol, "symbol", "", "only drop quotes and analysis mentioning this ticker")
	return cmd
}

// serverCall sends one request to the local API and decodes the JSON reply.
func serverCall(ctx context.Context, opts *rootOptions, addr, method, path string, q url.Values, out any) error {
	if addr == "" {
		cfg, err := config.LoadOrDefault(opts.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		addr = cfg.Server.Listen
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u := strings.TrimSuffix(addr, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("contact server (is stockbuzz serve running?): %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("server: %s", e.Error)
		}
		return fmt.Errorf("server: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
