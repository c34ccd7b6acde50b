package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/stockbuzz/stockbuzz/pkg/config"
)

var version = "dev"

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	envFile    string
	verbose    bool
	json       bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "stockbuzz",
		Short:         "StockBuzz: AI-assisted stock market dashboard",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal; keys may be stored or exported.
			if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", opts.envFile, err)
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", config.DefaultPath(), "path to config file")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file consulted for API keys")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&opts.json, "json", false, "print results as JSON")

	root.AddCommand(
		newScanCmd(opts),
		newNewsCmd(opts),
		newIndicesCmd(opts),
		newCalendarCmd(opts),
		newMoversCmd(opts),
		newSummaryCmd(opts),
		newWatchlistCmd(opts),
		newAnalyzeCmd(opts),
		newChatCmd(opts),
		newScreenshotCmd(opts),
		newKeysCmd(opts),
		newCacheCmd(opts),
		newBudgetCmd(opts),
		newStatsCmd(opts),
		newAuditCmd(opts),
		newServeCmd(opts),
		newMCPCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the stockbuzz version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stockbuzz %s\n", version)
		},
	}
}
