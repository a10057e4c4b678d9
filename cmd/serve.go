package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"muster-gateway/internal/config"
	"muster-gateway/internal/gateway"
	"muster-gateway/pkg/logging"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var (
	serveDebug     bool
	serveStatePath string
	servePort      int
	serveWait      bool
)

func newServeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway in the foreground until interrupted",
		Long: `Starts the gateway's HTTP listener and every configured upstream
service, then blocks until SIGINT or SIGTERM is received.

The gateway loads its persisted configuration (services, project overrides,
project paths) from --state-path, defaulting to the user's muster-gateway
config directory.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	c.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	c.Flags().StringVar(&serveStatePath, "state-path", "", "Path to the persisted state file (default: user config dir)")
	c.Flags().IntVar(&servePort, "port", 0, "Override the configured listen port (0 keeps the persisted value)")
	c.Flags().BoolVar(&serveWait, "wait", false, "Show a progress spinner while upstream services warm up")
	return c
}

func runServe(cmd *cobra.Command, args []string) error {
	level := logging.LevelInfo
	if serveDebug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, os.Stderr)

	statePath := resolveStatePath(serveStatePath)
	state, err := config.Load(statePath)
	if err != nil {
		return fmt.Errorf("loading gateway state: %w", err)
	}
	if servePort != 0 {
		state.Gateway.Port = servePort
	}
	if err := config.Save(statePath, state); err != nil {
		return fmt.Errorf("persisting gateway state: %w", err)
	}

	mgr := gateway.NewManager(statePath)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var s *spinner.Spinner
	if serveWait {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Starting gateway and warming up upstream services..."
		s.Start()
	}
	err = mgr.Start(ctx, state.Gateway)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return fmt.Errorf("starting gateway: %w", err)
	}

	status := mgr.Status()
	fmt.Fprintf(cmd.OutOrStdout(), "Gateway listening on 127.0.0.1:%d. Press Ctrl+C to stop.\n", status.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down gateway...")
	stopCtx, cancel := context.WithTimeout(context.Background(), gateway.DefaultShutdownTimeout)
	defer cancel()
	return mgr.Stop(stopCtx)
}

func resolveStatePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return config.DefaultStatePathOrPanic()
}
