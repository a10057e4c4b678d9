package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"muster-gateway/internal/api"
	"muster-gateway/internal/httpupstream"
	"muster-gateway/internal/policy"
	"muster-gateway/internal/process"
	"muster-gateway/internal/templating"
	"muster-gateway/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"
)

// Aggregator owns the per-service capability cache and the logic that
// merges, filters, and dispatches across every enabled upstream.
type Aggregator struct {
	mu       sync.RWMutex
	services map[string]*serviceEntry

	stdio       *process.Manager
	dispatchers map[string]*stdioDispatcher // stdio only, guarded by mu

	templates *templating.Resolver
	resolver  *policy.Resolver

	callTimeout time.Duration
}

// New constructs an Aggregator. stdio supervises this gateway's stdio
// children; resolver computes effective tool policy; templates resolves
// env_template/headers_template secret sigils.
func New(stdio *process.Manager, resolver *policy.Resolver, templates *templating.Resolver) *Aggregator {
	return &Aggregator{
		services:    make(map[string]*serviceEntry),
		stdio:       stdio,
		dispatchers: make(map[string]*stdioDispatcher),
		templates:   templates,
		resolver:    resolver,
		callTimeout: DefaultCallTimeout,
	}
}

// UpdateService implements update_service(def): registers or
// replaces def's entry. The caller is responsible for calling
// RefreshService afterward to (re)establish the upstream connection and
// warm the capability cache.
func (a *Aggregator) UpdateService(def api.ServiceDefinition) {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing, ok := a.services[def.ID]
	if ok {
		existing.definition = def
		return
	}
	a.services[def.ID] = &serviceEntry{definition: def}
}

// RemoveService implements remove_service(id): drops the
// service's cache entry and tears down its upstream connection.
func (a *Aggregator) RemoveService(ctx context.Context, id string) {
	a.mu.Lock()
	delete(a.services, id)
	delete(a.dispatchers, id)
	a.mu.Unlock()

	_ = a.stdio.Shutdown(id, 0)
}

// Warmup fetches tools/resources/prompts for every enabled service,
// isolating failures per service.
// Worker-pool bookkeeping uses errgroup; cancellation-on-first-error is
// deliberately unused.
func (a *Aggregator) Warmup(ctx context.Context) []WarmupOutcome {
	a.mu.RLock()
	ids := make([]string, 0, len(a.services))
	for id, e := range a.services {
		if e.definition.Enabled {
			ids = append(ids, id)
		}
	}
	a.mu.RUnlock()

	outcomes := make([]WarmupOutcome, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			count, err := a.refreshOne(ctx, id)
			outcomes[i] = WarmupOutcome{ServiceID: id, ToolCount: count, Err: err}
			return nil // isolated: never fail the group
		})
	}
	_ = g.Wait()
	return outcomes
}

// RefreshService implements refresh_service(id, env_resolver):
// re-establishes the upstream connection (if needed) and re-fetches
// capabilities for a single service.
func (a *Aggregator) RefreshService(ctx context.Context, id string) error {
	_, err := a.refreshOne(ctx, id)
	return err
}

func (a *Aggregator) refreshOne(ctx context.Context, id string) (int, error) {
	a.mu.RLock()
	entry, ok := a.services[id]
	a.mu.RUnlock()
	if !ok {
		return 0, api.ErrServiceNotFound
	}

	dispatch, err := a.ensureDispatch(ctx, entry.definition)
	if err != nil {
		a.setErr(id, err)
		return 0, err
	}

	caps, err := fetchCapabilities(ctx, dispatch)
	if err != nil {
		a.setErr(id, err)
		return 0, err
	}

	a.mu.Lock()
	if e, ok := a.services[id]; ok {
		e.dispatch = dispatch
		e.caps = caps
		e.lastErr = ""
	}
	a.mu.Unlock()

	return len(caps.Tools), nil
}

func (a *Aggregator) setErr(id string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.services[id]; ok {
		e.lastErr = err.Error()
	}
	logging.Warn("Aggregator", "Refresh failed for service %s: %v", id, err)
}

// ensureDispatch builds (or reuses) the dispatchFunc for a service's
// transport, resolving env_template/headers_template through
// internal/templating immediately before use.
func (a *Aggregator) ensureDispatch(ctx context.Context, def api.ServiceDefinition) (dispatchFunc, error) {
	switch def.Transport {
	case api.TransportStdio:
		return a.ensureStdioDispatch(ctx, def)
	case api.TransportHTTP:
		return a.httpDispatch(ctx, def)
	default:
		return nil, fmt.Errorf("service %s: unknown transport %q", def.ID, def.Transport)
	}
}

// ensureStdioDispatch spawns (or reuses) the stdio child for def and
// performs the initialize/notifications/initialized handshake over it
// before the dispatcher is cached, so every cached dispatcher is always
// handshake-complete: fetchCapabilities never races a server that hasn't
// seen initialize yet.
func (a *Aggregator) ensureStdioDispatch(ctx context.Context, def api.ServiceDefinition) (dispatchFunc, error) {
	a.mu.RLock()
	d, ok := a.dispatchers[def.ID]
	a.mu.RUnlock()
	if ok {
		if info, found := a.stdio.Status(def.ID); found && info.Status == process.StatusRunning {
			return d.dispatch, nil
		}
	}

	env := map[string]string{}
	if def.Stdio != nil && a.templates != nil {
		resolved, err := a.templates.ResolveMap(def.Stdio.EnvTemplate)
		if err != nil {
			return nil, err
		}
		env = resolved
	}

	if err := a.stdio.Spawn(ctx, def.ID, def.Stdio.Command, def.Stdio.Args, env); err != nil {
		return nil, err
	}

	dispatcher, err := newStdioDispatcher(a.stdio, def.ID)
	if err != nil {
		return nil, err
	}

	if err := performHandshake(ctx, dispatcher.dispatch, dispatcher.notify); err != nil {
		_ = a.stdio.Shutdown(def.ID, 0)
		return nil, err
	}

	a.mu.Lock()
	a.dispatchers[def.ID] = dispatcher
	a.mu.Unlock()

	return dispatcher.dispatch, nil
}

// httpDispatch connects to an HTTP upstream and runs its initialize/
// notifications/initialized handshake before returning a dispatchFunc, so
// fetchCapabilities's first request against it is never the first request
// the server sees.
func (a *Aggregator) httpDispatch(ctx context.Context, def api.ServiceDefinition) (dispatchFunc, error) {
	client := httpupstream.NewClient(def.ID, def.HTTP.URL, nil)

	if a.templates != nil && def.HTTP != nil {
		headers, err := a.templates.ResolveMap(def.HTTP.HeadersTemplate)
		if err != nil {
			return nil, err
		}
		client.SetHeaders(headers)
	}

	if _, err := client.Initialize(ctx); err != nil {
		return nil, err
	}
	if err := client.SendInitialized(ctx); err != nil {
		return nil, err
	}

	return func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		if a.templates != nil && def.HTTP != nil {
			headers, err := a.templates.ResolveMap(def.HTTP.HeadersTemplate)
			if err != nil {
				return nil, err
			}
			client.SetHeaders(headers)
		}
		return client.SendRequest(ctx, payload)
	}, nil
}

// fetchCapabilities issues tools/list, resources/list, prompts/list
// against dispatch and assembles an api.ServiceCapabilities.
func fetchCapabilities(ctx context.Context, dispatch dispatchFunc) (*api.ServiceCapabilities, error) {
	tools, err := listCall[mcp.Tool](ctx, dispatch, "tools/list", "tools")
	if err != nil {
		return nil, err
	}
	resources, err := listCall[mcp.Resource](ctx, dispatch, "resources/list", "resources")
	if err != nil {
		return nil, err
	}
	prompts, err := listCall[mcp.Prompt](ctx, dispatch, "prompts/list", "prompts")
	if err != nil {
		return nil, err
	}
	return &api.ServiceCapabilities{
		Tools:     tools,
		Resources: resources,
		Prompts:   prompts,
		FetchedAt: time.Now(),
	}, nil
}

var listCallCounter atomic.Uint64

func listCall[T any](ctx context.Context, dispatch dispatchFunc, method, field string) ([]T, error) {
	payload, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      listCallCounter.Add(1),
		"method":  method,
	})
	raw, err := dispatch(ctx, payload)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, api.NewGatewayError(api.KindHTTPInvalidBody, "malformed "+method+" response", err)
	}
	if envelope.Error != nil {
		return nil, api.NewGatewayError(api.KindInitializeFailed, envelope.Error.Message, nil)
	}

	result := make(map[string][]T)
	result[field] = nil
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return nil, api.NewGatewayError(api.KindHTTPInvalidBody, "malformed "+method+" result", err)
	}
	return result[field], nil
}

// snapshot returns a stable-ordered copy of enabled service entries,
// sorted by (name, id).
func (a *Aggregator) snapshot() []*serviceEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	entries := make([]*serviceEntry, 0, len(a.services))
	for _, e := range a.services {
		if e.definition.Enabled {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].definition.Name != entries[j].definition.Name {
			return entries[i].definition.Name < entries[j].definition.Name
		}
		return entries[i].definition.ID < entries[j].definition.ID
	})
	return entries
}

// ListTools implements the aggregated tools/list operation.
func (a *Aggregator) ListTools(ctx context.Context, sessionID, projectID string) ([]mcp.Tool, error) {
	cache := policy.NewRequestCache(a.resolver)

	out := []mcp.Tool{}
	for _, e := range a.snapshot() {
		if e.caps == nil {
			continue
		}
		p, err := cache.Effective(ctx, sessionID, projectID, e.definition.ID)
		if err != nil {
			return nil, err
		}
		for _, t := range e.caps.Tools {
			if !p.Allows(t.Name) {
				continue
			}
			t.Name = externalName(e.definition.Name, t.Name)
			out = append(out, t)
		}
	}
	return out, nil
}

// ListResources implements the aggregated resources/list operation,
// rewriting each URI to mcp-service://<service_id>/<original_uri>.
func (a *Aggregator) ListResources(ctx context.Context, sessionID, projectID string) ([]mcp.Resource, error) {
	cache := policy.NewRequestCache(a.resolver)

	var out []mcp.Resource
	for _, e := range a.snapshot() {
		if e.caps == nil {
			continue
		}
		p, err := cache.Effective(ctx, sessionID, projectID, e.definition.ID)
		if err != nil {
			return nil, err
		}
		for _, r := range e.caps.Resources {
			if !p.Allows(r.Name) {
				continue
			}
			r.URI = rewriteResourceURI(e.definition.ID, r.URI)
			out = append(out, r)
		}
	}
	return out, nil
}

// ListPrompts implements the aggregated prompts/list operation.
func (a *Aggregator) ListPrompts(ctx context.Context, sessionID, projectID string) ([]mcp.Prompt, error) {
	cache := policy.NewRequestCache(a.resolver)

	var out []mcp.Prompt
	for _, e := range a.snapshot() {
		if e.caps == nil {
			continue
		}
		p, err := cache.Effective(ctx, sessionID, projectID, e.definition.ID)
		if err != nil {
			return nil, err
		}
		for _, pr := range e.caps.Prompts {
			if !p.Allows(pr.Name) {
				continue
			}
			pr.Name = externalName(e.definition.Name, pr.Name)
			out = append(out, pr)
		}
	}
	return out, nil
}

// CallTool implements tools/call: name must be "service/tool",
// the service is resolved by name (case-sensitive), and a policy-denied or
// unrecognized tool returns the same "Tool not found" message to avoid an
// information leak.
func (a *Aggregator) CallTool(ctx context.Context, sessionID, projectID, externalToolName string, arguments json.RawMessage, id json.RawMessage) (json.RawMessage, error) {
	serviceName, localName, ok := splitExternalName(externalToolName)
	if !ok {
		return nil, api.NewGatewayError(api.KindMalformedToolName, api.ErrMalformedToolName.Error(), api.ErrMalformedToolName)
	}

	entry := a.findByName(serviceName)
	if entry == nil {
		return nil, api.NewGatewayError(api.KindUnknownTool, fmt.Sprintf("Tool not found: %s", externalToolName), nil)
	}

	cache := policy.NewRequestCache(a.resolver)
	p, err := cache.Effective(ctx, sessionID, projectID, entry.definition.ID)
	if err != nil {
		return nil, err
	}
	if !p.Allows(localName) {
		logging.Audit(logging.AuditEvent{
			Action:    "tools/call denied",
			Outcome:   "failure",
			SessionID: logging.TruncateSessionID(sessionID),
			Target:    entry.definition.ID,
			Details:   externalToolName,
		})
		return nil, api.NewGatewayError(api.KindPolicyDenied, fmt.Sprintf("Tool not found: %s", externalToolName), nil)
	}

	a.mu.RLock()
	dispatch := entry.dispatch
	a.mu.RUnlock()
	if dispatch == nil {
		return nil, api.NewGatewayError(api.KindStdioCrashed, "service has no active connection", nil).WithService(entry.definition.ID)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      localName,
			"arguments": arguments,
		},
	})

	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()
	return dispatch(ctx, payload)
}

func (a *Aggregator) findByName(serviceName string) *serviceEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, e := range a.services {
		if e.definition.Enabled && e.definition.Name == serviceName {
			return e
		}
	}
	return nil
}

func (a *Aggregator) findByID(serviceID string) *serviceEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.services[serviceID]
	if !ok || !e.definition.Enabled {
		return nil
	}
	return e
}

// ReadResource implements "resources/read ... route to owning
// service by prefix": uri must be the mcp-service://<service_id>/<uri>
// form ListResources produced (or a pass-through file:// uri, which has no
// owning service and is rejected here).
func (a *Aggregator) ReadResource(ctx context.Context, uri string, id json.RawMessage) (json.RawMessage, error) {
	serviceID, originalURI, ok := splitResourceURI(uri)
	if !ok {
		return nil, api.NewGatewayError(api.KindInvalidRequest, "resource uri is not owned by any service", nil)
	}
	entry := a.findByID(serviceID)
	if entry == nil {
		return nil, api.NewGatewayError(api.KindUnknownTool, fmt.Sprintf("Resource not found: %s", uri), nil)
	}

	a.mu.RLock()
	dispatch := entry.dispatch
	a.mu.RUnlock()
	if dispatch == nil {
		return nil, api.NewGatewayError(api.KindStdioCrashed, "service has no active connection", nil).WithService(serviceID)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"method":  "resources/read",
		"params":  map[string]interface{}{"uri": originalURI},
	})

	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()
	return dispatch(ctx, payload)
}

// GetPrompt implements "prompts/get ... route to owning
// service by prefix": name must be "service/prompt", mirroring tools/call.
func (a *Aggregator) GetPrompt(ctx context.Context, sessionID, projectID, externalName string, arguments json.RawMessage, id json.RawMessage) (json.RawMessage, error) {
	serviceName, localName, ok := splitExternalName(externalName)
	if !ok {
		return nil, api.NewGatewayError(api.KindMalformedToolName, api.ErrMalformedToolName.Error(), api.ErrMalformedToolName)
	}

	entry := a.findByName(serviceName)
	if entry == nil {
		return nil, api.NewGatewayError(api.KindUnknownTool, fmt.Sprintf("Prompt not found: %s", externalName), nil)
	}

	cache := policy.NewRequestCache(a.resolver)
	p, err := cache.Effective(ctx, sessionID, projectID, entry.definition.ID)
	if err != nil {
		return nil, err
	}
	if !p.Allows(localName) {
		return nil, api.NewGatewayError(api.KindPolicyDenied, fmt.Sprintf("Prompt not found: %s", externalName), nil)
	}

	a.mu.RLock()
	dispatch := entry.dispatch
	a.mu.RUnlock()
	if dispatch == nil {
		return nil, api.NewGatewayError(api.KindStdioCrashed, "service has no active connection", nil).WithService(entry.definition.ID)
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"method":  "prompts/get",
		"params": map[string]interface{}{
			"name":      localName,
			"arguments": arguments,
		},
	})

	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()
	return dispatch(ctx, payload)
}

// splitResourceURI parses the mcp-service://<service_id>/<uri> form
// produced by rewriteResourceURI.
func splitResourceURI(uri string) (serviceID, originalURI string, ok bool) {
	const scheme = "mcp-service://"
	if !strings.HasPrefix(uri, scheme) {
		return "", "", false
	}
	rest := uri[len(scheme):]
	idx := strings.Index(rest, "/")
	if idx <= 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// externalName builds the "<service_name>/<local_name>" scheme.
func externalName(serviceName, localName string) string {
	return serviceName + "/" + localName
}

// splitExternalName parses "service/tool", requiring exactly one "/" so
// every valid external name matches ^[^/]+/[^/]+$.
func splitExternalName(name string) (service, local string, ok bool) {
	idx := strings.Index(name, "/")
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	if strings.Contains(name[idx+1:], "/") {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}

// rewriteResourceURI applies mcp-service:// rewrite, passing
// file:// URIs through unchanged.
func rewriteResourceURI(serviceID, uri string) string {
	if strings.HasPrefix(uri, "file://") {
		return uri
	}
	return fmt.Sprintf("mcp-service://%s/%s", serviceID, uri)
}
