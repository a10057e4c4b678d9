package httpupstream

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"muster-gateway/internal/api"
	"muster-gateway/pkg/logging"
)

// DefaultTimeout is the per-request timeout.
const DefaultTimeout = 30 * time.Second

// ProtocolVersion is the MCP wire version this client negotiates at
// initialize.
const ProtocolVersion = "2025-03-26"

// Timeout constants with the same values as the gateway's own HTTP server
// timeouts (which that package defines separately). Only DefaultIdleTimeout
// is used here, for the shared transport's idle-connection timeout.
const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 120 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
)

// sharedTransport is reused by every Client so TCP connections pool across
// upstream services instead of being re-established per request.
var sharedTransport = &http.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     DefaultIdleTimeout,
	TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
}

// Client is a single HTTP/SSE MCP upstream connection.
type Client struct {
	serviceID string
	url       string
	headers   map[string]string
	http      *http.Client

	mu        sync.Mutex
	sessionID string
}

// NewClient constructs a Client for one HTTP service definition.
func NewClient(serviceID, url string, headers map[string]string) *Client {
	return &Client{
		serviceID: serviceID,
		url:       url,
		headers:   headers,
		http:      &http.Client{Transport: sharedTransport, Timeout: DefaultTimeout},
	}
}

// SetHeaders replaces the custom headers applied to every subsequent
// request. Called before each dispatch with freshly resolved
// headers_template values so a rotated secret takes effect on the next
// call without a restart.
func (c *Client) SetHeaders(headers map[string]string) {
	c.mu.Lock()
	c.headers = headers
	c.mu.Unlock()
}

// SessionID returns the currently stored Mcp-Session-Id, if any.
func (c *Client) SessionID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID, c.sessionID != ""
}

// SendRequest implements send_request(payload).
func (c *Client) SendRequest(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, api.NewGatewayError(api.KindHTTPConnection, "building request", err).WithService(c.serviceID)
	}
	c.applyHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, api.NewGatewayError(api.KindHTTPConnection, "connection error", err).WithService(c.serviceID)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.mu.Lock()
		c.sessionID = ""
		c.mu.Unlock()
		logging.Debug("HttpUpstream", "Service %s returned 404, session cleared", c.serviceID)
		return nil, api.NewGatewayError(api.KindHTTPStatus, "request failed", nil).
			WithService(c.serviceID).WithStatus(http.StatusNotFound)
	}

	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ge := api.NewGatewayError(api.KindHTTPStatus, fmt.Sprintf("upstream returned status %d", resp.StatusCode), nil).
			WithService(c.serviceID).WithStatus(resp.StatusCode)
		return nil, ge
	}
	if readErr != nil {
		return nil, api.NewGatewayError(api.KindHTTPInvalidBody, "reading response body", readErr).WithService(c.serviceID)
	}

	if sid := resp.Header.Get("Mcp-Session-Id"); sid != "" {
		c.mu.Lock()
		c.sessionID = sid
		c.mu.Unlock()
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/event-stream") {
		return parseSSEResult(body, c.serviceID)
	}
	return body, nil
}

// parseSSEResult scans an SSE response body for the first `data:` line
// whose payload is a JSON object containing "result" or "error".
func parseSSEResult(body []byte, serviceID string) (json.RawMessage, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}

		var probe struct {
			Result json.RawMessage `json:"result"`
			Error  json.RawMessage `json:"error"`
		}
		if err := json.Unmarshal([]byte(data), &probe); err != nil {
			continue
		}
		if probe.Result != nil || probe.Error != nil {
			return json.RawMessage(data), nil
		}
	}
	return nil, api.NewGatewayError(api.KindHTTPInvalidBody, "SSE response had no result/error data line", nil).
		WithService(serviceID)
}

func (c *Client) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	c.mu.Lock()
	headers := c.headers
	sid := c.sessionID
	c.mu.Unlock()

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if sid != "" {
		req.Header.Set("Mcp-Session-Id", sid)
	}
}

// Initialize performs the MCP handshake against this upstream, negotiating
// ProtocolVersion.
func (c *Client) Initialize(ctx context.Context) (json.RawMessage, error) {
	payload, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]interface{}{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]interface{}{},
			"clientInfo":      map[string]string{"name": "muster-gateway", "version": "1.0.0"},
		},
	})

	result, err := c.SendRequest(ctx, payload)
	if err != nil {
		if ge, ok := api.AsGatewayError(err); ok {
			return nil, api.NewGatewayError(api.KindInitializeFailed, "initialize failed", ge).WithService(c.serviceID)
		}
		return nil, err
	}
	return result, nil
}

// SendInitialized POSTs the notifications/initialized notification. No
// reply is expected; a non-2xx status is treated as an error.
func (c *Client) SendInitialized(ctx context.Context) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "notifications/initialized",
	})

	_, err := c.SendRequest(ctx, payload)
	if err != nil {
		return err
	}
	return nil
}
