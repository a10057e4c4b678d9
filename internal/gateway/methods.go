package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"muster-gateway/internal/api"
	"muster-gateway/internal/jsonrpc"
	"muster-gateway/internal/session"
)

// dispatchMethod implements the remainder of method table for
// an initialized session.
func (s *Server) dispatchMethod(ctx context.Context, w http.ResponseWriter, req *jsonrpc.Request, sess *session.McpSession) {
	switch req.Method {
	case "ping":
		writeResponse(w, http.StatusOK, jsonrpc.NewResult(req.ID, map[string]interface{}{}))

	case "tools/list":
		tools, err := s.aggregator.ListTools(ctx, sess.SessionID, sess.ProjectID)
		s.respondOrError(w, req.ID, tools, err)

	case "resources/list":
		resources, err := s.aggregator.ListResources(ctx, sess.SessionID, sess.ProjectID)
		s.respondOrError(w, req.ID, resources, err)

	case "prompts/list":
		prompts, err := s.aggregator.ListPrompts(ctx, sess.SessionID, sess.ProjectID)
		s.respondOrError(w, req.ID, prompts, err)

	case "tools/call":
		var params struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeResponse(w, http.StatusOK, jsonrpc.NewError(req.ID, jsonrpc.CodeInvalidParams, "Invalid params", nil))
			return
		}
		raw, err := s.aggregator.CallTool(ctx, sess.SessionID, sess.ProjectID, params.Name, params.Arguments, req.ID)
		s.writeUpstreamResult(w, req.ID, raw, err)

	case "resources/read":
		var params struct {
			URI string `json:"uri"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeResponse(w, http.StatusOK, jsonrpc.NewError(req.ID, jsonrpc.CodeInvalidParams, "Invalid params", nil))
			return
		}
		raw, err := s.aggregator.ReadResource(ctx, params.URI, req.ID)
		s.writeUpstreamResult(w, req.ID, raw, err)

	case "prompts/get":
		var params struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeResponse(w, http.StatusOK, jsonrpc.NewError(req.ID, jsonrpc.CodeInvalidParams, "Invalid params", nil))
			return
		}
		raw, err := s.aggregator.GetPrompt(ctx, sess.SessionID, sess.ProjectID, params.Name, params.Arguments, req.ID)
		s.writeUpstreamResult(w, req.ID, raw, err)

	default:
		writeResponse(w, http.StatusOK, jsonrpc.NewError(req.ID, jsonrpc.CodeMethodNotFound, "Method not found: "+req.Method, nil))
	}
}

// respondOrError writes result as a JSON-RPC success, or maps err through
// the shared error table.
func (s *Server) respondOrError(w http.ResponseWriter, id json.RawMessage, result interface{}, err error) {
	if err != nil {
		status, code := httpStatusAndCode(err)
		writeResponse(w, httpStatusOrOK(status), jsonrpc.NewError(id, code, errMessage(err), nil))
		return
	}
	writeResponse(w, http.StatusOK, jsonrpc.NewResult(id, result))
}

// writeUpstreamResult passes an already-framed upstream JSON-RPC response
// through verbatim, or maps a dispatch-time error (malformed name, unknown
// tool, policy denial) through the shared table.
func (s *Server) writeUpstreamResult(w http.ResponseWriter, id json.RawMessage, raw json.RawMessage, err error) {
	if err != nil {
		status, code := httpStatusAndCode(err)
		writeResponse(w, httpStatusOrOK(status), jsonrpc.NewError(id, code, errMessage(err), nil))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// httpStatusOrOK keeps JSON-RPC errors that occur after a session has
// already been validated at HTTP 200 — a policy-denied or unknown-tool
// tools/call returns 200 with a JSON-RPC error body, not a non-2xx status.
// A mapped 5xx status is passed through unchanged.
func httpStatusOrOK(status int) int {
	if status >= 500 {
		return status
	}
	return http.StatusOK
}

// errMessage returns the client-safe message for err, eliding internal
// details for anything that isn't already a GatewayError.
func errMessage(err error) string {
	if ge, ok := api.AsGatewayError(err); ok {
		return ge.Message
	}
	return "Internal error"
}
