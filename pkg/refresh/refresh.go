// Package refresh re-runs a configured set of dashboard widgets on a fixed
// interval and tracks the outcome of each one on a Board.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stockbuzz/stockbuzz/pkg/models"
)

// DefaultInterval is used when Options.Interval is zero.
const DefaultInterval = 5 * time.Minute

// ErrBusy is returned by RefreshAll while another round is running.
var ErrBusy = errors.New("refresh already in progress")

// Source is the subset of the market service the refresher drives.
type Source interface {
	ScanMarket(ctx context.Context, force bool, f *models.ScannerFilters) (models.ScanResult, error)
	ScanEarningsGappers(ctx context.Context, force bool, f *models.EarningsFilters) (models.ScanResult, error)
	ScanMarketMovers(ctx context.Context, force bool, f *models.MoversFilters) (models.MoversResult, error)
	ScanOversoldRebounds(ctx context.Context, force bool) (models.OversoldResult, error)
	ScanInsiderTrading(ctx context.Context, force bool) (models.InsiderScanResult, error)
	ScanMarketHeatmaps(ctx context.Context, force bool) (models.HeatmapResult, error)
	FetchMarketNews(ctx context.Context, watchlist []string, force bool) (models.NewsFeedResult, error)
	FetchMarketIndices(ctx context.Context, force bool) ([]models.MarketIndex, error)
	FetchEconomicCalendar(ctx context.Context, rng string, force bool) ([]models.EconomicEvent, error)
	FetchTopGainersLosers(ctx context.Context, force bool) (models.GainersLosersResult, error)
	FetchDailyMarketSummary(ctx context.Context, force bool) (models.DailyMarketSummary, error)
	FetchWatchlistQuotes(ctx context.Context, symbols []string, force bool) ([]models.WatchlistItem, error)
}

// SymbolsFunc returns the tickers used by the news and quotes widgets.
type SymbolsFunc func(ctx context.Context) ([]string, error)

type widgetFunc func(ctx context.Context, src Source, symbols SymbolsFunc) error

func discard[T any](_ T, err error) error { return err }

var widgets = map[string]widgetFunc{
	"scanner": func(ctx context.Context, src Source, _ SymbolsFunc) error {
		return discard(src.ScanMarket(ctx, true, nil))
	},
	"earnings": func(ctx context.Context, src Source, _ SymbolsFunc) error {
		return discard(src.ScanEarningsGappers(ctx, true, nil))
	},
	"movers": func(ctx context.Context, src Source, _ SymbolsFunc) error {
		return discard(src.ScanMarketMovers(ctx, true, nil))
	},
	"oversold": func(ctx context.Context, src Source, _ SymbolsFunc) error {
		return discard(src.ScanOversoldRebounds(ctx, true))
	},
	"insider": func(ctx context.Context, src Source, _ SymbolsFunc) error {
		return discard(src.ScanInsiderTrading(ctx, true))
	},
	"heatmaps": func(ctx context.Context, src Source, _ SymbolsFunc) error {
		return discard(src.ScanMarketHeatmaps(ctx, true))
	},
	"news": func(ctx context.Context, src Source, symbols SymbolsFunc) error {
		syms, err := symbols(ctx)
		if err != nil {
			return err
		}
		return discard(src.FetchMarketNews(ctx, syms, true))
	},
	"indices": func(ctx context.Context, src Source, _ SymbolsFunc) error {
		return discard(src.FetchMarketIndices(ctx, true))
	},
	"calendar": func(ctx context.Context, src Source, _ SymbolsFunc) error {
		return discard(src.FetchEconomicCalendar(ctx, "", true))
	},
	"gainers": func(ctx context.Context, src Source, _ SymbolsFunc) error {
		return discard(src.FetchTopGainersLosers(ctx, true))
	},
	"summary": func(ctx context.Context, src Source, _ SymbolsFunc) error {
		return discard(src.FetchDailyMarketSummary(ctx, true))
	},
	"quotes": func(ctx context.Context, src Source, symbols SymbolsFunc) error {
		syms, err := symbols(ctx)
		if err != nil {
			return err
		}
		return discard(src.FetchWatchlistQuotes(ctx, syms, true))
	},
}

// Widgets lists the widget names a Refresher accepts.
func Widgets() []string {
	names := make([]string, 0, len(widgets))
	for name := range widgets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options configure a Refresher.
type Options struct {
	Widgets  []string
	Interval time.Duration
	Symbols  SymbolsFunc
	// OnRound is called after every round with the board snapshot.
	OnRound func([]WidgetStatus)
	Logger  *zap.Logger
}

// Refresher periodically force-refreshes widgets. Model calls still go
// through the service's queue, so widgets refreshed in parallel are paced
// like any other caller.
type Refresher struct {
	src      Source
	board    *Board
	widgets  []string
	interval time.Duration
	symbols  SymbolsFunc
	onRound  func([]WidgetStatus)
	logger   *zap.Logger

	running atomic.Bool
}

// New creates a Refresher. Unknown widget names are rejected.
func New(src Source, opts Options) (*Refresher, error) {
	if src == nil {
		return nil, errors.New("refresh: source is required")
	}
	if len(opts.Widgets) == 0 {
		return nil, errors.New("refresh: no widgets configured")
	}

	seen := make(map[string]bool, len(opts.Widgets))
	names := make([]string, 0, len(opts.Widgets))
	for _, w := range opts.Widgets {
		w = strings.ToLower(strings.TrimSpace(w))
		if _, ok := widgets[w]; !ok {
			return nil, fmt.Errorf("refresh: unknown widget %q (known: %s)", w, strings.Join(Widgets(), ", "))
		}
		if !seen[w] {
			seen[w] = true
			names = append(names, w)
		}
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	symbols := opts.Symbols
	if symbols == nil {
		symbols = func(context.Context) ([]string, error) { return nil, nil }
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Refresher{
		src:      src,
		board:    NewBoard(names...),
		widgets:  names,
		interval: interval,
		symbols:  symbols,
		onRound:  opts.OnRound,
		logger:   logger.Named("refresh"),
	}, nil
}

// Board returns the board the refresher reports to.
func (r *Refresher) Board() *Board {
	return r.board
}

// RefreshAll refreshes every widget concurrently and waits for all of them.
// A failing widget does not stop the others; the first failure is returned.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer r.running.Store(false)

	start := time.Now()
	var g errgroup.Group
	for _, name := range r.widgets {
		fn := widgets[name]
		g.Go(func() error {
			r.board.Start(name)
			err := fn(ctx, r.src, r.symbols)
			r.board.Finish(name, err)
			if err != nil {
				r.logger.Warn("widget refresh failed", zap.String("widget", name), zap.Error(err))
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	err := g.Wait()

	r.logger.Info("refresh round complete",
		zap.Int("widgets", len(r.widgets)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("failed", err != nil),
	)
	if r.onRound != nil {
		r.onRound(r.board.Snapshot())
	}
	return err
}

// Run refreshes immediately and then once per interval until ctx is done.
// Widget failures are reported on the board and never stop the loop.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.RefreshAll(ctx); err != nil && !errors.Is(err, ErrBusy) && ctx.Err() == nil {
			r.logger.Debug("round finished with errors", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
