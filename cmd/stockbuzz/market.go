package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stockbuzz/stockbuzz/pkg/market"
	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/render"
)

var scanTitles = map[string]string{
	market.ScanKindMarket:   "Momentum Scanner",
	market.ScanKindEarnings: "Earnings Gappers",
}

type stockSort struct {
	field func(models.StockCandidate) string
	kind  market.SortKind
}

// stockSorts maps --sort values onto the stock column and its parser.
var stockSorts = map[string]stockSort{
	"symbol": {func(s models.StockCandidate) string { return s.Symbol }, market.SortString},
	"price":  {func(s models.StockCandidate) string { return s.Price }, market.SortPrice},
	"gap":    {func(s models.StockCandidate) string { return s.GapPercent }, market.SortPercentage},
	"volume": {func(s models.StockCandidate) string { return s.Volume }, market.SortVolume},
	"rvol":   {func(s models.StockCandidate) string { return s.RelativeVolume }, market.SortVolume},
	"float":  {func(s models.StockCandidate) string { return s.Float }, market.SortVolume},
}

func sortNames() string {
	names := make([]string, 0, len(stockSorts))
	for n := range stockSorts {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	var (
		force    bool
		sortBy   string
		asc      bool
		scanner  models.ScannerFilters
		earnings models.EarningsFilters
		movers   models.MoversFilters
	)

	cmd := &cobra.Command{
		Use:       "scan [kind]",
		Short:     "Run a market scanner",
		Long:      "Run a market scanner. Kinds: " + strings.Join(market.ScanKinds, ", ") + ". The default is market.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: market.ScanKinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := market.ScanKindMarket
			if len(args) == 1 {
				kind = strings.ToLower(args[0])
			}
			var sortSpec *stockSort
			if sortBy != "" {
				s, ok := stockSorts[sortBy]
				if !ok {
					return fmt.Errorf("unknown sort column %q (known: %s)", sortBy, sortNames())
				}
				sortSpec = &s
			}

			var f market.ScanFilters
			switch kind {
			case market.ScanKindMarket:
				f.Scanner = &scanner
			case market.ScanKindEarnings:
				f.Earnings = &earnings
			case market.ScanKindMovers:
				f.Movers = &movers
			}

			return withApp(opts, func(a *app) error {
				res, err := a.market.Scan(cmd.Context(), kind, force, f)
				if err != nil {
					return err
				}
				if sr, ok := res.(models.ScanResult); ok && sortSpec != nil {
					sr.Stocks = market.SortStocks(sr.Stocks, sortSpec.field, sortSpec.kind, !asc)
					res = sr
				}
				return emit(cmd.OutOrStdout(), opts, res, func(p *render.Printer) {
					switch r := res.(type) {
					case models.ScanResult:
						p.Scan(scanTitles[kind], r)
					case models.MoversResult:
						p.Movers(r)
					case models.OversoldResult:
						p.Oversold(r)
					case models.InsiderScanResult:
						p.Insider(r)
					case models.HeatmapResult:
						p.Heatmaps(r)
					}
				})
			})
		},
	}

	fl := cmd.Flags()
	fl.BoolVarP(&force, "force", "f", false, "bypass the result cache")
	fl.StringVar(&sortBy, "sort", "", "sort stocks by column ("+sortNames()+")")
	fl.BoolVar(&asc, "asc", false, "sort ascending")

	fl.BoolVar(&scanner.EnableRoss, "ross", false, "market: apply the Ross Cameron momentum criteria")
	fl.BoolVar(&scanner.ProjVolume, "proj-volume", false, "market: projected volume above 5M")
	fl.BoolVar(&scanner.MorningActive, "morning", false, "market: active in the morning session")
	fl.BoolVar(&scanner.Breakout, "breakout", false, "market: breaking out of a pattern")
	fl.BoolVar(&scanner.HighVolatility, "volatile", false, "market: high intraday volatility")
	fl.BoolVar(&scanner.ExcludeDerivatives, "no-derivatives", false, "market: exclude ETFs, warrants and rights")
	fl.BoolVar(&scanner.LowFloatRetail, "low-float", false, "market: low float favoured by retail")

	fl.BoolVar(&earnings.EPSBeat, "eps-beat", false, "earnings: beat EPS estimates")
	fl.BoolVar(&earnings.RevBeat, "rev-beat", false, "earnings: beat revenue estimates")
	fl.BoolVar(&earnings.Move5Pct, "move5", false, "earnings: gap of at least 5%")
	fl.BoolVar(&earnings.Vol5M, "vol5m", false, "earnings: volume above 5M")
	fl.BoolVar(&earnings.RVol2x, "rvol2x", false, "earnings: relative volume above 2x")
	fl.BoolVar(&earnings.PriceRange, "price-range", false, "earnings: price between $2 and $20")
	fl.StringVar(&earnings.Session, "session", "", "earnings: ALL, PRE, REGULAR or POST")
	fl.StringVar(&earnings.Sector, "sector", "", "earnings: restrict to a sector")

	fl.StringVar(&movers.Mode, "mode", "", "movers: ALL, GAINERS or LOSERS")
	fl.StringVar(&movers.Cap, "cap", "", "movers: ALL, SMALL, MID or LARGE")
	return cmd
}

func newNewsCmd(opts *rootOptions) *cobra.Command {
	var (
		force     bool
		watchlist string
	)

	cmd := &cobra.Command{
		Use:   "news [SYMBOL...]",
		Short: "Show market news, optionally for a set of tickers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				symbols, err := a.symbols(cmd, watchlist, args)
				if err != nil {
					return err
				}
				res, err := a.market.FetchMarketNews(cmd.Context(), symbols, force)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, res, func(p *render.Printer) { p.News(res) })
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "bypass the result cache")
	cmd.Flags().StringVarP(&watchlist, "watchlist", "w", "", "use the tickers of a watchlist")
	return cmd
}

func newIndicesCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "indices",
		Short: "Show the major market indices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				res, err := a.market.FetchMarketIndices(cmd.Context(), force)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, res, func(p *render.Printer) { p.Indices(res) })
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "bypass the result cache")
	return cmd
}

func newCalendarCmd(opts *rootOptions) *cobra.Command {
	var (
		force bool
		rng   string
	)
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show the economic calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				res, err := a.market.FetchEconomicCalendar(cmd.Context(), rng, force)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, res, func(p *render.Printer) { p.Calendar(rng, res) })
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "bypass the result cache")
	cmd.Flags().StringVarP(&rng, "range", "r", "Today", "date range, e.g. Today, Tomorrow or This Week")
	return cmd
}

func newMoversCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "movers",
		Short: "Show the top pre-market gainers and losers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				res, err := a.market.FetchTopGainersLosers(cmd.Context(), force)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, res, func(p *render.Printer) { p.GainersLosers(res) })
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "bypass the result cache")
	return cmd
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the daily market summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				res, err := a.market.FetchDailyMarketSummary(cmd.Context(), force)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, res, func(p *render.Printer) { p.Summary(res) })
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "bypass the result cache")
	return cmd
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Analyze a single stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				res, err := a.market.AnalyzeStock(cmd.Context(), args[0], force)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, res, func(p *render.Printer) { p.Analysis(res) })
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "bypass the result cache")
	return cmd
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var contextFile string
	cmd := &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Ask the analyst a question",
		Long:  "Ask the analyst a question. --context names a JSON file, such as the --json output of another command, that the answer should refer to.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var contextData any
			if contextFile != "" {
				data, err := os.ReadFile(contextFile)
				if err != nil {
					return fmt.Errorf("read context: %w", err)
				}
				if err := json.Unmarshal(data, &contextData); err != nil {
					return fmt.Errorf("parse context %s: %w", contextFile, err)
				}
			}

			return withApp(opts, func(a *app) error {
				reply, err := a.market.ChatWithAnalyst(cmd.Context(), strings.Join(args, " "), contextData)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, map[string]string{"reply": reply}, func(p *render.Printer) {
					p.Text(reply)
				})
			})
		},
	}
	cmd.Flags().StringVar(&contextFile, "context", "", "JSON file passed to the analyst as context")
	return cmd
}

func newScreenshotCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screenshot FILE",
		Short: "Extract ticker symbols from a screenshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			return withApp(opts, func(a *app) error {
				res, err := a.market.ExtractTickersFromImage(cmd.Context(), img, imageMIME(args[0], img))
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, res, func(p *render.Printer) { p.Screenshot(res) })
			})
		},
	}
	return cmd
}

// imageMIME picks the image type from the file extension, falling back to
// content sniffing.
func imageMIME(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	}
	if t := http.DetectContentType(data); strings.HasPrefix(t, "image/") {
		return t
	}
	return market.DefaultImageMIME
}

// symbols returns args, or the tickers of the named watchlist.
func (a *app) symbols(cmd *cobra.Command, watchlist string, args []string) ([]string, error) {
	if watchlist == "" {
		return args, nil
	}
	if len(args) > 0 {
		return nil, errors.New("give either symbols or --watchlist, not both")
	}
	wl, err := a.store.Watchlist(cmd.Context(), watchlist)
	if err != nil {
		return nil, err
	}
	return wl.Tickers, nil
}
