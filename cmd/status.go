package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"muster-gateway/internal/config"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var statusStatePath string

const statusCheckTimeout = 5 * time.Second

type healthBody struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Stats   struct {
		ActiveConnections int64 `json:"activeConnections"`
		TotalConnections  int64 `json:"totalConnections"`
		TotalRequests     int64 `json:"totalRequests"`
		McpSessions       int   `json:"mcpSessions"`
	} `json:"stats"`
}

func newStatusCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "status",
		Short: "Report whether the gateway is reachable",
		Long: `Loads the persisted gateway configuration and probes its /health
endpoint. The gateway itself runs in the foreground of a 'serve' invocation,
so this command only reports reachability — it has no way to start or stop a
gateway running in another process.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
	c.Flags().StringVar(&statusStatePath, "state-path", "", "Path to the persisted state file (default: user config dir)")
	return c
}

func runStatus(cmd *cobra.Command, args []string) error {
	statePath := resolveStatePath(statusStatePath)
	state, err := config.Load(statePath)
	if err != nil {
		return fmt.Errorf("loading gateway state: %w", err)
	}

	health, probeErr := probeHealth(state.Gateway.Port)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"State path", statePath})
	t.AppendRow(table.Row{"Configured port", state.Gateway.Port})
	t.AppendRow(table.Row{"Registered services", len(state.Services)})

	if probeErr != nil {
		t.AppendRow(table.Row{"Status", text.FgRed.Sprint("unreachable")})
		t.AppendRow(table.Row{"Detail", probeErr.Error()})
		t.Render()
		return nil
	}

	t.AppendRow(table.Row{"Status", text.FgGreen.Sprint("running")})
	t.AppendRow(table.Row{"Active connections", health.Stats.ActiveConnections})
	t.AppendRow(table.Row{"Total connections", health.Stats.TotalConnections})
	t.AppendRow(table.Row{"Total requests", health.Stats.TotalRequests})
	t.AppendRow(table.Row{"MCP sessions", health.Stats.McpSessions})
	t.Render()
	return nil
}

// probeHealth issues a GET against the gateway's /health endpoint on the
// configured port and decodes its JSON body.
func probeHealth(port int) (healthBody, error) {
	client := &http.Client{Timeout: statusCheckTimeout}
	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)

	resp, err := client.Get(url)
	if err != nil {
		return healthBody{}, fmt.Errorf("gateway is not running. Start it with: muster-gateway serve")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return healthBody{}, fmt.Errorf("gateway responded with status %d", resp.StatusCode)
	}

	var body healthBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return healthBody{}, fmt.Errorf("decoding health response: %w", err)
	}
	return body, nil
}
