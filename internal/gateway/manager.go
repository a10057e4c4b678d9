package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"muster-gateway/internal/aggregator"
	"muster-gateway/internal/channel"
	"muster-gateway/internal/config"
	"muster-gateway/internal/configrepo"
	"muster-gateway/internal/policy"
	"muster-gateway/internal/process"
	"muster-gateway/internal/router"
	"muster-gateway/internal/session"
	"muster-gateway/internal/templating"
	"muster-gateway/pkg/logging"

	"github.com/coreos/go-systemd/v22/activation"
)

// State is GatewayServerManager's lifecycle state: Stopped -> Starting ->
// Running -> Stopping -> Stopped.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// DefaultShutdownTimeout bounds how long Stop waits for in-flight requests
// and open SSE streams to drain before the listener is torn down regardless.
const DefaultShutdownTimeout = 5 * time.Second

// StatusReport is the observable snapshot Status() returns: a read-only
// view with no access to live internals.
type StatusReport struct {
	State State
	Port  int
}

// Manager owns the gateway's full lifecycle: binding the listener (with
// systemd socket activation support), constructing every collaborator
// fresh on each Start, and tearing them down cleanly on Stop.
type Manager struct {
	statePath string

	mu      sync.Mutex
	state   State
	port    int
	httpSrv *http.Server
	stdio   *process.Manager
	done    chan struct{}
}

// NewManager constructs a Manager that persists/loads its GatewayConfig at
// statePath.
func NewManager(statePath string) *Manager {
	return &Manager{statePath: statePath, state: StateStopped}
}

// Status reports the manager's current lifecycle state and bound port.
// Safe to call concurrently with Start/Stop.
func (m *Manager) Status() StatusReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return StatusReport{State: m.state, Port: m.port}
}

// Start builds every collaborator (session store, aggregator, router,
// channel registry, HTTP server) from cfg and the persisted repository at
// statePath, binds a listener, and serves in the background. Idempotent
// failure mode: calling Start while already Running or Starting returns an
// error rather than spawning a second listener.
func (m *Manager) Start(ctx context.Context, cfg config.GatewayConfig) error {
	m.mu.Lock()
	if m.state != StateStopped {
		m.mu.Unlock()
		return fmt.Errorf("gateway server already started")
	}
	m.state = StateStarting
	m.mu.Unlock()

	listener, err := m.acquireListener(cfg.Port)
	if err != nil {
		m.mu.Lock()
		m.state = StateStopped
		m.mu.Unlock()
		return fmt.Errorf("binding gateway listener: %w", err)
	}

	state, err := config.Load(m.statePath)
	if err != nil {
		m.mu.Lock()
		m.state = StateStopped
		m.mu.Unlock()
		_ = listener.Close()
		return fmt.Errorf("loading gateway state: %w", err)
	}
	state.Gateway = cfg

	repo := configrepo.New(m.statePath, state)
	var secrets configrepo.EnvSecretProvider

	stdioMgr := process.NewManager(cfg.StderrRingBufferB)
	templateResolver := templating.NewResolver(secrets)
	policyResolver := policy.NewResolver(repo)
	agg := aggregator.New(stdioMgr, policyResolver, templateResolver)

	for _, def := range state.Services {
		agg.UpdateService(def)
	}

	rtr, err := router.New(repo, cfg.RouterCacheSize)
	if err != nil {
		m.mu.Lock()
		m.state = StateStopped
		m.mu.Unlock()
		_ = listener.Close()
		return fmt.Errorf("constructing context router: %w", err)
	}

	sessions := session.New(time.Duration(cfg.SessionTTLMinutes)*time.Minute, cfg.MaxSessions)
	channels := channel.NewRegistry(cfg.RootsQueueSize)

	srv := NewServer(sessions, agg, rtr, channels, cfg.AuthToken, cfg.AllowedOriginExtras)

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: ReadHeaderTimeout,
		IdleTimeout:       IdleTimeout,
	}

	warmupOutcomes := agg.Warmup(ctx)
	for _, outcome := range warmupOutcomes {
		if outcome.Err != nil {
			logging.Warn("Gateway", "Warmup failed for service %s: %v", outcome.ServiceID, outcome.Err)
		}
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.httpSrv = httpSrv
	m.stdio = stdioMgr
	m.port = listener.Addr().(*net.TCPAddr).Port
	m.done = done
	m.state = StateRunning
	m.mu.Unlock()

	cleanupTicker := time.NewTicker(time.Minute)
	go func() {
		defer cleanupTicker.Stop()
		for {
			select {
			case <-cleanupTicker.C:
				sessions.CleanupExpired()
			case <-done:
				return
			}
		}
	}()

	go func() {
		logging.Info("Gateway", "Listening on %s", listener.Addr())
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logging.Error("Gateway", err, "HTTP server error")
		}
	}()

	return nil
}

// acquireListener checks for a systemd-provided socket before falling back
// to net.Listen.
func (m *Manager) acquireListener(port int) (net.Listener, error) {
	listeners, err := activation.Listeners()
	if err != nil {
		logging.Error("Gateway", err, "Failed to get systemd listeners")
	} else if len(listeners) > 0 {
		logging.Info("Gateway", "Systemd socket activation detected, using provided listener")
		return listeners[0], nil
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	return net.Listen("tcp", addr)
}

// Stop gracefully shuts down the HTTP server and every supervised stdio
// child. Idempotent: calling Stop on an already-stopped manager is a no-op.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateStopped {
		m.mu.Unlock()
		return nil
	}
	m.state = StateStopping
	httpSrv := m.httpSrv
	stdioMgr := m.stdio
	done := m.done
	m.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, DefaultShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if httpSrv != nil {
		shutdownErr = httpSrv.Shutdown(shutdownCtx)
	}
	if stdioMgr != nil {
		stdioMgr.ShutdownAll(process.DefaultShutdownGrace)
	}
	if done != nil {
		close(done)
	}

	m.mu.Lock()
	m.httpSrv = nil
	m.stdio = nil
	m.done = nil
	m.port = 0
	m.state = StateStopped
	m.mu.Unlock()

	logging.Info("Gateway", "Gateway server stopped")
	return shutdownErr
}

// Restart persists newPort into the gateway config and restarts the server
// with it. The replacement config is saved before Stop/Start so an observer
// reading the state file mid-restart never sees a torn write.
func (m *Manager) Restart(ctx context.Context, newPort int) error {
	state, err := config.Load(m.statePath)
	if err != nil {
		return fmt.Errorf("loading gateway state: %w", err)
	}
	state.Gateway.Port = newPort
	if err := config.Save(m.statePath, state); err != nil {
		return fmt.Errorf("persisting gateway state: %w", err)
	}

	if err := m.Stop(ctx); err != nil {
		return fmt.Errorf("stopping gateway: %w", err)
	}
	return m.Start(ctx, state.Gateway)
}
