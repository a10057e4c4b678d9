package gateway

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"muster-gateway/internal/aggregator"
	"muster-gateway/internal/channel"
	"muster-gateway/internal/router"
	"muster-gateway/internal/session"
)

// ReadHeaderTimeout and IdleTimeout are the underlying http.Server
// timeouts.
// WriteTimeout is left at zero intentionally: SSE streams are long-lived.
const (
	ReadHeaderTimeout = 10 * time.Second
	IdleTimeout       = 120 * time.Second
)

// KeepaliveInterval is how often an open SSE stream emits a ':' comment.
const KeepaliveInterval = 30 * time.Second

const serviceName = "muster-gateway"
const serviceVersion = "1.0.0"

type stats struct {
	activeConnections atomic.Int64
	totalConnections   atomic.Int64
	totalRequests      atomic.Int64
}

// Server is the gateway's HTTP server: the composed middleware chain plus
// route table.
type Server struct {
	mux *http.ServeMux

	sessions   *session.Store
	aggregator *aggregator.Aggregator
	router     *router.ContextRouter
	channels   *channel.Registry

	origin    *OriginValidator
	authToken string

	stats stats
}

// NewServer wires every collaborator into the route table.
func NewServer(sessions *session.Store, agg *aggregator.Aggregator, rtr *router.ContextRouter, channels *channel.Registry, authToken string, allowedOriginExtras []string) *Server {
	s := &Server{
		sessions:   sessions,
		aggregator: agg,
		router:     rtr,
		channels:   channels,
		origin:     NewOriginValidator(allowedOriginExtras),
		authToken:  authToken,
	}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /mcp", s.withOriginAndAuth(s.handleMCPPost))
	s.mux.HandleFunc("GET /mcp", s.withOriginAndAuth(s.handleMCPGet))
	s.mux.HandleFunc("DELETE /mcp", s.withOriginAndAuth(s.handleMCPDelete))
	s.mux.HandleFunc("GET /sse", s.withOriginAndAuth(s.handleLegacySSE))
	s.mux.HandleFunc("POST /message", s.withOriginAndAuth(s.handleLegacyMessage))
}

// ServeHTTP lets Server itself be used as an http.Handler, e.g. wrapped in
// an http.Server by GatewayServerManager.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

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

// handleHealth serves /health body; no auth, no origin check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := healthBody{Status: "ok", Service: serviceName, Version: serviceVersion}
	body.Stats.ActiveConnections = s.stats.activeConnections.Load()
	body.Stats.TotalConnections = s.stats.totalConnections.Load()
	body.Stats.TotalRequests = s.stats.totalRequests.Load()
	body.Stats.McpSessions = s.sessions.Count()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
