package policy

import (
	"context"
	"sync"

	"muster-gateway/internal/api"
)

// Resolver composes an api.ServiceRepository's overrides and service
// defaults into an effective ToolPolicy.
type Resolver struct {
	repo api.ServiceRepository
}

// NewResolver constructs a Resolver over the given ServiceRepository.
func NewResolver(repo api.ServiceRepository) *Resolver {
	return &Resolver{repo: repo}
}

// Effective implements 4.F's effective(project_id, service_id):
//  1. project override, if present and not Inherit
//  2. service default, if present and not Inherit
//  3. AllowAll
func (r *Resolver) Effective(ctx context.Context, projectID, serviceID string) (api.ToolPolicy, error) {
	override, found, err := r.repo.ProjectOverride(ctx, projectID, serviceID)
	if err != nil {
		return api.ToolPolicy{}, err
	}
	if found && override.Kind != api.PolicyInherit && !override.IsZero() {
		return override, nil
	}

	def, found, err := r.repo.GetService(ctx, serviceID)
	if err != nil {
		return api.ToolPolicy{}, err
	}
	if found && def.DefaultPolicy.Kind != api.PolicyInherit && !def.DefaultPolicy.IsZero() {
		return def.DefaultPolicy, nil
	}

	// Inherit at service level degrades to AllowAll.
	return api.AllowAllPolicy(), nil
}

// Allows is a thin pass-through to ToolPolicy.Allows, kept as a package
// function so callers don't need to import api directly just for this.
func Allows(policy api.ToolPolicy, toolName string) bool {
	return policy.Allows(toolName)
}

// requestKey is the memoization key: (session, service) for the lifetime of
// one request.
type requestKey struct {
	sessionID string
	serviceID string
}

// RequestCache memoizes Effective() results within a single HTTP request.
// It is cheap to allocate per-request and must not be reused across
// requests since project bindings can differ across sessions.
type RequestCache struct {
	resolver *Resolver
	mu       sync.Mutex
	cached   map[requestKey]api.ToolPolicy
}

// NewRequestCache wraps resolver with a fresh per-request memoization
// layer.
func NewRequestCache(resolver *Resolver) *RequestCache {
	return &RequestCache{resolver: resolver, cached: make(map[requestKey]api.ToolPolicy)}
}

// Effective resolves and caches the policy for (projectID, serviceID),
// keyed additionally by sessionID so two sessions bound to different
// projects against the same service never collide in the cache.
func (c *RequestCache) Effective(ctx context.Context, sessionID, projectID, serviceID string) (api.ToolPolicy, error) {
	key := requestKey{sessionID: sessionID, serviceID: serviceID}

	c.mu.Lock()
	if p, ok := c.cached[key]; ok {
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	policy, err := c.resolver.Effective(ctx, projectID, serviceID)
	if err != nil {
		return api.ToolPolicy{}, err
	}

	c.mu.Lock()
	c.cached[key] = policy
	c.mu.Unlock()
	return policy, nil
}
