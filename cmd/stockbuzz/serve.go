package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stockbuzz/stockbuzz/pkg/mcp"
	"github.com/stockbuzz/stockbuzz/pkg/refresh"
	"github.com/stockbuzz/stockbuzz/pkg/render"
	"github.com/stockbuzz/stockbuzz/pkg/server"
	"github.com/stockbuzz/stockbuzz/pkg/store"
)

// refreshFlags select the widgets refreshed in the background.
type refreshFlags struct {
	widgets   []string
	interval  time.Duration
	watchlist string
}

func (f *refreshFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.widgets, "widgets", nil, "widgets to refresh (default: refresh.widgets from the config)")
	cmd.Flags().DurationVar(&f.interval, "interval", 0, "refresh interval (default: refresh.interval from the config)")
	cmd.Flags().StringVarP(&f.watchlist, "watchlist", "w", "", "watchlist whose tickers feed the quotes and news widgets")
}

// newRefresher builds a refresher over a's market service. The quotes and
// news widgets read their tickers from the chosen watchlist, or the first
// one when none is named.
func (f *refreshFlags) newRefresher(a *app, onRound func([]refresh.WidgetStatus)) (*refresh.Refresher, error) {
	widgets := f.widgets
	if len(widgets) == 0 {
		widgets = a.cfg.Refresh.Widgets
	}
	interval := f.interval
	if interval <= 0 {
		interval = a.cfg.Refresh.Interval
	}
	return refresh.New(a.market, refresh.Options{
		Widgets:  widgets,
		Interval: interval,
		Symbols:  watchlistSymbols(a.store, f.watchlist),
		OnRound:  onRound,
		Logger:   a.logger,
	})
}

func watchlistSymbols(st *store.Store, name string) refresh.SymbolsFunc {
	return func(ctx context.Context) ([]string, error) {
		if name != "" {
			wl, err := st.Watchlist(ctx, name)
			if err != nil {
				return nil, err
			}
			return wl.Tickers, nil
		}
		lists, err := st.ListWatchlists(ctx)
		if err != nil || len(lists) == 0 {
			return nil, err
		}
		return lists[0].Tickers, nil
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		listen    string
		noRefresh bool
		rf        refreshFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local HTTP API with background refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				addr := listen
				if addr == "" {
					addr = a.cfg.Server.Listen
				}

				var refresher *refresh.Refresher
				if !noRefresh && (len(rf.widgets) > 0 || len(a.cfg.Refresh.Widgets) > 0) {
					var err error
					if refresher, err = rf.newRefresher(a, nil); err != nil {
						return err
					}
				}

				srv := server.New(addr, server.Deps{
					Market:    a.market,
					Store:     a.store,
					Refresher: refresher,
					Logger:    a.logger,
				})

				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error { return srv.ListenAndServe(ctx) })
				if refresher != nil {
					g.Go(func() error { return refresher.Run(ctx) })
				}
				err := g.Wait()
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (default: server.listen from the config)")
	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "disable background refresh")
	rf.register(cmd)
	return cmd
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the dashboard queries as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				srv := mcp.New(mcp.Deps{
					Market:  a.market,
					Tracker: a.tracker,
					Budget:  a.budget,
					Audit:   a.audit,
					Logger:  a.logger,
				}, version)

				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return srv.Run(ctx, os.Stdin, os.Stdout)
			})
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var rf refreshFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh dashboard widgets periodically and print their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				p := render.New(cmd.OutOrStdout())
				refresher, err := rf.newRefresher(a, func(snap []refresh.WidgetStatus) {
					p.Heading(time.Now().Format("15:04:05") + " refresh")
					p.Board(snap)
				})
				if err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return refresher.Run(ctx)
			})
		},
	}
	rf.register(cmd)
	return cmd
}
