package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/render"
)

func newWatchlistCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watchlist",
		Aliases: []string{"wl"},
		Short:   "Manage watchlists",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List watchlists",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(opts, func(a *app) error {
					lists, err := a.store.ListWatchlists(cmd.Context())
					if err != nil {
						return err
					}
					if lists == nil {
						lists = []models.Watchlist{}
					}
					return emit(cmd.OutOrStdout(), opts, lists, func(p *render.Printer) { p.Watchlists(lists) })
				})
			},
		},
		&cobra.Command{
			Use:   "create NAME [TICKER...]",
			Short: "Create a watchlist",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(opts, func(a *app) error {
					wl, err := a.store.CreateWatchlist(cmd.Context(), args[0], args[1:])
					if err != nil {
						return err
					}
					return printWatchlist(cmd, opts, "Created", wl)
				})
			},
		},
		&cobra.Command{
			Use:   "add NAME TICKER...",
			Short: "Add tickers to a watchlist",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(opts, func(a *app) error {
					wl, err := a.store.AddTickers(cmd.Context(), args[0], args[1:]...)
					if err != nil {
						return err
					}
					return printWatchlist(cmd, opts, "Updated", wl)
				})
			},
		},
		&cobra.Command{
			Use:   "remove NAME TICKER...",
			Short: "Remove tickers from a watchlist",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(opts, func(a *app) error {
					wl, err := a.store.RemoveTickers(cmd.Context(), args[0], args[1:]...)
					if err != nil {
						return err
					}
					return printWatchlist(cmd, opts, "Updated", wl)
				})
			},
		},
		&cobra.Command{
			Use:   "delete NAME",
			Short: "Delete a watchlist",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(opts, func(a *app) error {
					if err := a.store.DeleteWatchlist(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted watchlist %s.\n", args[0])
					return nil
				})
			},
		},
		newWatchlistQuotesCmd(opts),
	)
	return cmd
}

func newWatchlistQuotesCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "quotes NAME",
		Short: "Show quotes for the tickers of a watchlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				wl, err := a.store.Watchlist(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				items, err := a.market.FetchWatchlistQuotes(cmd.Context(), wl.Tickers, force)
				if err != nil {
					return err
				}
				return emit(cmd.OutOrStdout(), opts, items, func(p *render.Printer) {
					p.Heading(wl.Name)
					p.Quotes(items)
				})
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "bypass the result cache")
	return cmd
}

func printWatchlist(cmd *cobra.Command, opts *rootOptions, verb string, wl models.Watchlist) error {
	return emit(cmd.OutOrStdout(), opts, wl, func(p *render.Printer) {
		tickers := strings.Join(wl.Tickers, " ")
		if tickers == "" {
			tickers = "(empty)"
		}
		p.Line("%s watchlist %s: %s", verb, wl.Name, tickers)
	})
}
