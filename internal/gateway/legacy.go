package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"muster-gateway/internal/jsonrpc"
	"muster-gateway/internal/session"
	"muster-gateway/pkg/logging"
)

// legacyWarnOnce de-duplicates the legacy-transport deprecation log so a
// long-lived /sse connection logs it a single time.
var legacyWarnOnce sync.Once

func logLegacyDeprecation() {
	legacyWarnOnce.Do(func() {
		logging.Warn("Gateway", "legacy /sse+/message transport is deprecated")
	})
}

// handleLegacySSE implements deprecated GET /sse: emit a
// single endpoint event naming the /message URL for this connection, then
// keepalive comments until the client disconnects.
func (s *Server) handleLegacySSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONRPCError(w, http.StatusInternalServerError, -32603, "Streaming unsupported")
		return
	}
	logLegacyDeprecation()

	sess := s.sessions.CreateTransient()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: endpoint\ndata: /message?session_id=%s\n\n", sess.InternalID())
	flusher.Flush()

	ticker := time.NewTicker(KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			s.sessions.RemoveByInternalID(sess.InternalID())
			return
		}
	}
}

// handleLegacyMessage implements deprecated POST /message: an
// optional ?session_id= names an existing legacy session; if missing, a
// transient one is created for this single request.
func (s *Server) handleLegacyMessage(w http.ResponseWriter, r *http.Request) {
	logLegacyDeprecation()

	sid := r.URL.Query().Get("session_id")
	sess := s.sessions.GetByInternalID(sid)
	if sess == nil {
		sess = s.sessions.CreateTransient()
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.CodeParseError, "Parse error")
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
		s.handleLegacyInitialize(w, r, &req, sess)
		return
	}
	if !sess.Initialized {
		writeResponse(w, http.StatusOK, jsonrpc.NewError(req.ID, jsonrpc.CodeSessionNotFound, "Session not initialized", nil))
		return
	}

	s.dispatchMethod(r.Context(), w, &req, sess)
}

func (s *Server) handleLegacyInitialize(w http.ResponseWriter, r *http.Request, req *jsonrpc.Request, sess *session.McpSession) {
	var params struct {
		ProtocolVersion  string                     `json:"protocolVersion"`
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

	workDir := session.ResolveWorkDir(params.WorkspaceFolders, params.RootURI, params.RootPath)
	projectID := ""
	if workDir != "" {
		if match, err := s.router.Find(r.Context(), workDir); err == nil && match != nil {
			projectID = match.ProjectID
		}
	}
	sess.Initialize(params.ProtocolVersion, workDir, projectID, params.Capabilities.Roots)

	writeResponse(w, http.StatusOK, jsonrpc.NewResult(req.ID, map[string]interface{}{
		"protocolVersion": "2025-03-26",
		"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}, "resources": map[string]interface{}{}, "prompts": map[string]interface{}{}},
		"serverInfo":      map[string]interface{}{"name": serviceName, "version": serviceVersion},
	}))
}
