package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stockbuzz/stockbuzz/pkg/credentials"
	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/render"
	"github.com/stockbuzz/stockbuzz/pkg/store"
)

func newKeysCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider API keys",
	}
	cmd.AddCommand(
		newKeysListCmd(opts),
		newKeysSetCmd(opts),
		newKeysToggleCmd(opts, "enable", true),
		newKeysToggleCmd(opts, "disable", false),
		&cobra.Command{
			Use:   "remove PROVIDER",
			Short: "Delete a stored key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(opts, func(a *app) error {
					if err := a.store.DeleteKey(cmd.Context(), args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed key for %s.\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "test PROVIDER",
			Short: "Test a stored key against its provider",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(opts, func(a *app) error {
					return a.testKey(cmd, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "providers",
			Short: "List the providers a key can be stored for",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return emit(cmd.OutOrStdout(), opts, models.Providers, func(p *render.Printer) {
					p.Providers(models.Providers)
				})
			},
		},
	)
	return cmd
}

func newKeysListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show stored keys and where each provider's key comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				ctx := cmd.Context()
				stored, err := a.store.ListKeys(ctx)
				if err != nil {
					return err
				}
				byID := make(map[string]models.APIKeyConfig, len(stored))
				for _, k := range stored {
					byID[k.ProviderID] = k
				}

				rows := make([]render.KeyRow, 0, len(models.Providers))
				for _, pr := range models.Providers {
					row := render.KeyRow{Provider: pr, Source: a.resolver.Source(ctx, pr.ID)}
					if k, ok := byID[pr.ID]; ok {
						row.Key = &k
						row.Masked = credentials.Mask(k.APIKey)
					}
					rows = append(rows, row)
				}
				return emit(cmd.OutOrStdout(), opts, rows, func(p *render.Printer) { p.Keys(rows) })
			})
		},
	}
}

func newKeysSetCmd(opts *rootOptions) *cobra.Command {
	var (
		disabled bool
		test     bool
	)
	cmd := &cobra.Command{
		Use:   "set PROVIDER [KEY]",
		Short: "Store a key for a provider",
		Long:  "Store a key for a provider. Without KEY the key is read from the first line of stdin.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			if _, ok := models.LookupProvider(provider); !ok {
				return fmt.Errorf("unknown provider %q (see stockbuzz keys providers)", provider)
			}

			var key string
			if len(args) == 2 {
				key = args[1]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read key: %w", err)
				}
				key = line
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("key is empty")
			}

			return withApp(opts, func(a *app) error {
				err := a.store.SaveKey(cmd.Context(), models.APIKeyConfig{
					ProviderID: provider,
					APIKey:     key,
					Enabled:    !disabled,
					Status:     models.KeyUntested,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved key %s for %s.\n", credentials.Mask(key), provider)
				if test {
					return a.testKey(cmd, provider)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&disabled, "disabled", false, "store the key without enabling it")
	cmd.Flags().BoolVar(&test, "test", false, "test the key after saving it")
	return cmd
}

func newKeysToggleCmd(opts *rootOptions, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " PROVIDER",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a stored key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(a *app) error {
				if err := a.store.SetKeyEnabled(cmd.Context(), args[0], enabled); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Key for %s %sd.\n", args[0], verb)
				return nil
			})
		},
	}
}

// testKey verifies the stored key and prints the recorded status. Only keys
// that test valid are used for outbound calls.
func (a *app) testKey(cmd *cobra.Command, provider string) error {
	checker := credentials.NewChecker(nil, a.logger, a.geminiOptions()...)
	status, err := credentials.Verify(cmd.Context(), a.store, checker, provider)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no key stored for %s", provider)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Key for %s is %s.\n", provider, status)
	if status != models.KeyValid {
		return fmt.Errorf("%s key check failed", provider)
	}
	return nil
}
