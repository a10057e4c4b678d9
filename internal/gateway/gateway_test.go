package gateway

import (
	"context"
	"testing"

	"muster-gateway/internal/aggregator"
	"muster-gateway/internal/api"
	"muster-gateway/internal/channel"
	"muster-gateway/internal/policy"
	"muster-gateway/internal/router"
	"muster-gateway/internal/session"
)

const testToken = "test-token"

type emptyRepo struct{}

func (emptyRepo) ListServices(ctx context.Context) ([]api.ServiceDefinition, error) {
	return nil, nil
}

func (emptyRepo) GetService(ctx context.Context, id string) (api.ServiceDefinition, bool, error) {
	return api.ServiceDefinition{}, false, nil
}

func (emptyRepo) ProjectOverride(ctx context.Context, projectID, serviceID string) (api.ToolPolicy, bool, error) {
	return api.ToolPolicy{}, false, nil
}

type emptyProjectStore struct{}

func (emptyProjectStore) RegisteredPaths(ctx context.Context) ([]api.ProjectPath, error) {
	return nil, nil
}

func (emptyProjectStore) Version(ctx context.Context) (uint64, error) { return 1, nil }

// newTestServer wires every collaborator with empty/no-op backends, mirroring
// how aggregator_test.go builds a bare Aggregator for handler-level tests
// that never need a live upstream.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	rtr, err := router.New(emptyProjectStore{}, 0)
	if err != nil {
		t.Fatalf("router.New: %v", err)
	}

	agg := aggregator.New(nil, policy.NewResolver(emptyRepo{}), nil)
	sessions := session.New(0, 0)
	channels := channel.NewRegistry(0)

	return NewServer(sessions, agg, rtr, channels, testToken, nil)
}
