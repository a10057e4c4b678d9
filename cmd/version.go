package cmd

import (
	"fmt"

	"muster-gateway/internal/config"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI and gateway version",
		Long: `Displays the muster-gateway CLI version and, if a gateway is
reachable on the configured port, the version reported by its /health
endpoint.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "muster-gateway version %s\n", rootCmd.Version)

			statePath := resolveStatePath("")
			state, err := config.Load(statePath)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "\nGateway: (could not load state)")
				return
			}

			health, err := probeHealth(state.Gateway.Port)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "\nGateway: (not running)")
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nGateway: %s (%s)\n", health.Version, health.Service)
		},
	}
}
