package main

import (
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/stockbuzz/stockbuzz/pkg/audit"
	"github.com/stockbuzz/stockbuzz/pkg/budget"
	"github.com/stockbuzz/stockbuzz/pkg/cache"
	"github.com/stockbuzz/stockbuzz/pkg/config"
	"github.com/stockbuzz/stockbuzz/pkg/credentials"
	"github.com/stockbuzz/stockbuzz/pkg/llm/gemini"
	"github.com/stockbuzz/stockbuzz/pkg/logging"
	"github.com/stockbuzz/stockbuzz/pkg/market"
	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/queue"
	"github.com/stockbuzz/stockbuzz/pkg/render"
	"github.com/stockbuzz/stockbuzz/pkg/retry"
	"github.com/stockbuzz/stockbuzz/pkg/router"
	"github.com/stockbuzz/stockbuzz/pkg/store"
	"github.com/stockbuzz/stockbuzz/pkg/tracker"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	resolver *credentials.Resolver
	tracker  *tracker.SQLiteTracker
	budget   *budget.Enforcer
	audit    *audit.Logger
	market   *market.Service
}

// openApp loads the config and wires every component. Callers must Close
// the result.
func openApp(opts *rootOptions) (a *app, err error) {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Log.Level
	if opts.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	if err := cfg.EnsureDBDir(); err != nil {
		return nil, err
	}

	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	if a.store, err = store.Open(cfg.DBPath); err != nil {
		return a, fmt.Errorf("open store: %w", err)
	}
	a.resolver = credentials.NewResolver(a.store, map[string][]string{
		models.ProviderGemini:  cfg.Credentials.EnvVars,
		models.ProviderPolygon: {cfg.Credentials.PolygonEnvVar},
	}, logger)

	if a.tracker, err = tracker.New(cfg.DBPath); err != nil {
		return a, fmt.Errorf("init tracker: %w", err)
	}
	if cfg.Budget.Enabled {
		a.budget = budget.New(cfg.Budget.Policies, a.tracker)
	}
	if cfg.Audit.Enabled {
		if a.audit, err = audit.New(cfg.DBPath, cfg.Audit); err != nil {
			return a, fmt.Errorf("init audit: %w", err)
		}
	}

	q := queue.New(cfg.Queue.Delay, logger)
	a.market, err = market.New(market.Deps{
		Cache:     cache.New(cfg.Cache.TTL),
		Caller:    retry.New(q, cfg.Retry, logger),
		Generator: gemini.New(a.resolver, logger, a.geminiOptions()...),
		Router:    router.New(cfg),
		Budget:    a.budget,
		Tracker:   a.tracker,
		Audit:     a.audit,
		Logger:    logger,
	})
	if err != nil {
		return a, err
	}
	return a, nil
}

func (a *app) geminiOptions() []gemini.Option {
	if a.cfg.Credentials.GeminiBaseURL == "" {
		return nil
	}
	return []gemini.Option{gemini.WithBaseURL(a.cfg.Credentials.GeminiBaseURL)}
}

// Close releases the databases and flushes the logger.
func (a *app) Close() {
	if a.audit != nil {
		_ = a.audit.Close()
	}
	if a.tracker != nil {
		_ = a.tracker.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logger.Sync()
}

// withApp opens the app for the duration of fn.
func withApp(opts *rootOptions, fn func(a *app) error) error {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// emit prints v as indented JSON with --json, or through show otherwise.
func emit(w io.Writer, opts *rootOptions, v any, show func(p *render.Printer)) error {
	if opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	show(render.New(w))
	return nil
}
