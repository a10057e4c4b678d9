package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// rootCmd is the base command when muster-gateway is invoked with no
// subcommand.
var rootCmd = &cobra.Command{
	Use:   "muster-gateway",
	Short: "A local MCP aggregation gateway",
	Long: `muster-gateway aggregates several MCP servers behind one
Streamable HTTP endpoint, namespacing their tools as <service>/<tool> and
routing project-scoped visibility by the caller's working directory.`,
	SilenceUsage: true,
}

// SetVersion injects the build-time version into the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command. Called from main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "muster-gateway version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newVersionCmd())
}
