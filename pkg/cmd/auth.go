package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taskslot/pkg/auth"
)

func newAuthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "auth [google|graph]",
		Short:     "Authorize taskslot against Google or Microsoft",
		Long:      "Discards any cached token and runs the browser authorization flow. Defaults to the calendar provider.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{auth.ProviderGoogle, auth.ProviderGraph},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.mgr.Config()
			provider := cfg.Calendar.Provider
			if len(args) == 1 {
				provider = args[0]
			}

			var tokenFile string
			switch provider {
			case auth.ProviderGoogle:
				oc, err := auth.GoogleConfig(a.dir(), auth.GoogleScopes)
				if err != nil {
					return err
				}
				tokenFile = filepath.Join(a.dir(), auth.GoogleTokenFile)
				if err := auth.Authorize(cmd.Context(), provider, oc, tokenFile); err != nil {
					return err
				}
			case auth.ProviderGraph:
				oc, err := auth.MicrosoftConfig(cfg.Graph.ClientID, cfg.Graph.Tenant)
				if err != nil {
					return err
				}
				tokenFile = filepath.Join(a.dir(), auth.GraphTokenFile)
				if err := auth.Authorize(cmd.Context(), provider, oc, tokenFile); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown provider %q, want google or graph", provider)
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful! Token saved to %s\n", tokenFile)
			return err
		},
	}
}
