package aggregator

import (
	"context"
	"encoding/json"

	"muster-gateway/internal/api"
	"muster-gateway/internal/httpupstream"
)

// performHandshake runs the MCP initialize / notifications/initialized
// exchange over a stdio dispatcher, mirroring httpupstream.Client.
// Initialize/SendInitialized for the HTTP transport. Every dispatchFunc
// the aggregator caches must have completed this before fetchCapabilities
// issues its first tools/resources/prompts list call.
func performHandshake(ctx context.Context, dispatch dispatchFunc, notify func(json.RawMessage) error) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]interface{}{
			"protocolVersion": httpupstream.ProtocolVersion,
			"capabilities":    map[string]interface{}{},
			"clientInfo":      map[string]string{"name": "muster-gateway", "version": "1.0.0"},
		},
	})

	raw, err := dispatch(ctx, payload)
	if err != nil {
		return api.NewGatewayError(api.KindInitializeFailed, "initialize failed", err)
	}

	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		return api.NewGatewayError(api.KindInitializeFailed, envelope.Error.Message, nil)
	}

	initialized, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "notifications/initialized",
	})
	return notify(initialized)
}
