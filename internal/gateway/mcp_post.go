package gateway

import (
	"encoding/json"
	"io"
	"net/http"

	"muster-gateway/internal/jsonrpc"
	"muster-gateway/internal/session"
	"muster-gateway/pkg/logging"
)

const sessionHeader = "Mcp-Session-Id"

// handleMCPPost implements POST /mcp dispatch.
func (s *Server) handleMCPPost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.CodeParseError, "Parse error")
		return
	}

	// A server-to-client request's eventual answer is POSTed back as a
	// bare JSON-RPC response (no "method"); route it to H instead of the
	// method table.
	if resp, ok := parseClientResponse(body); ok {
		sessID := r.Header.Get(sessionHeader)
		matched := s.channels.HandleClientResponse(sessID, string(resp.id), resp.value)
		w.Header().Set("Content-Type", "application/json")
		if matched {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		return
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.CodeParseError, "Parse error")
		return
	}
	if req.JSONRPC != jsonrpc.Version {
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.CodeInvalidRequest, "Invalid request")
		return
	}

	if req.Method == "initialize" {
		s.handleInitialize(w, r, &req)
		return
	}

	sessID := r.Header.Get(sessionHeader)
	if sessID == "" {
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.CodeMissingSession, "Missing session header")
		return
	}
	sess := s.sessions.Get(sessID)
	if sess == nil {
		writeJSONRPCError(w, http.StatusNotFound, jsonrpc.CodeSessionNotFound, "Session not found")
		return
	}
	s.sessions.Touch(sessID)

	if req.Method == "notifications/initialized" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if !sess.Initialized {
		writeResponse(w, http.StatusOK, jsonrpc.NewError(req.ID, jsonrpc.CodeSessionNotFound, "Session not initialized", nil))
		return
	}

	s.dispatchMethod(r.Context(), w, &req, sess)
}

type clientResponse struct {
	id    json.RawMessage
	value json.RawMessage
}

// parseClientResponse recognizes the {"id":..., "result"|"error":...}
// shape of a server-to-client reply, distinguishing it from a regular
// request by the absence of "method".
func parseClientResponse(body []byte) (clientResponse, bool) {
	var probe struct {
		Method string          `json:"method"`
		ID     json.RawMessage `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return clientResponse{}, false
	}
	if probe.Method != "" || len(probe.ID) == 0 {
		return clientResponse{}, false
	}
	if probe.Result == nil && probe.Error == nil {
		return clientResponse{}, false
	}
	value := probe.Result
	if value == nil {
		value = probe.Error
	}
	return clientResponse{id: probe.ID, value: value}, true
}

// writeResponse writes a JSON-RPC Response with the given HTTP status.
func writeResponse(w http.ResponseWriter, status int, resp *jsonrpc.Response) {
	if resp.Error != nil && resp.Error.Code == jsonrpc.CodeInternalError {
		logging.Error("Gateway", nil, "Responding with internal error (status %d): %s", status, resp.Error.Message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleInitialize implements the initialize branch of method
// table: create/touch session, parse params, bind work dir + project,
// respond with server capabilities, and set MCP-Session-Id.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, req *jsonrpc.Request) {
	var params struct {
		ProtocolVersion  string `json:"protocolVersion"`
		Capabilities     struct {
			Roots *session.RootsCapability `json:"roots"`
		} `json:"capabilities"`
		WorkspaceFolders []session.WorkspaceFolder `json:"workspaceFolders"`
		RootURI          string                    `json:"rootUri"`
		RootPath         string                    `json:"rootPath"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeResponse(w, http.StatusOK, jsonrpc.NewError(req.ID, jsonrpc.CodeInvalidParams, "Invalid params", nil))
			return
		}
	}

	sessID := r.Header.Get(sessionHeader)
	var sess *session.McpSession
	if sessID != "" {
		sess = s.sessions.Get(sessID)
	}
	if sess == nil {
		var err error
		sess, err = s.sessions.Create()
		if err != nil {
			writeResponse(w, http.StatusOK, jsonrpc.NewError(req.ID, jsonrpc.CodeSessionNotFound, err.Error(), nil))
			return
		}
	}

	workDir := session.ResolveWorkDir(params.WorkspaceFolders, params.RootURI, params.RootPath)
	projectID := ""
	if workDir != "" {
		if match, err := s.router.Find(r.Context(), workDir); err == nil && match != nil {
			projectID = match.ProjectID
		}
	}
	sess.Initialize(params.ProtocolVersion, workDir, projectID, params.Capabilities.Roots)

	w.Header().Set(sessionHeader, sess.SessionID)
	writeResponse(w, http.StatusOK, jsonrpc.NewResult(req.ID, map[string]interface{}{
		"protocolVersion": "2025-03-26",
		"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}, "resources": map[string]interface{}{}, "prompts": map[string]interface{}{}},
		"serverInfo":      map[string]interface{}{"name": serviceName, "version": serviceVersion},
	}))
}

// handleMCPDelete implements DELETE /mcp explicit session
// termination.
func (s *Server) handleMCPDelete(w http.ResponseWriter, r *http.Request) {
	sessID := r.Header.Get(sessionHeader)
	if sessID == "" {
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.CodeMissingSession, "Missing session header")
		return
	}
	if s.sessions.Get(sessID) == nil {
		writeJSONRPCError(w, http.StatusNotFound, jsonrpc.CodeSessionNotFound, "Session not found")
		return
	}
	s.sessions.Remove(sessID)
	s.channels.Deregister(sessID)
	w.WriteHeader(http.StatusNoContent)
}
