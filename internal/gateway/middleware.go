package gateway

import (
	"encoding/json"
	"net/http"

	"muster-gateway/internal/jsonrpc"
)

// writeJSONRPCError writes a JSON-RPC error envelope with the given HTTP
// status, matching uniform error envelope shape.
func writeJSONRPCError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := jsonrpc.NewError(jsonrpc.NullID, code, message, nil)
	_ = json.NewEncoder(w).Encode(resp)
}

// withOriginAndAuth applies the origin validator then the bearer-token
// check, before handing
// off to next.
func (s *Server) withOriginAndAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.origin.Allowed(r.Header.Get("Origin")) {
			writeJSONRPCError(w, http.StatusForbidden, jsonrpc.CodeAuthOrOrigin, "Forbidden: Invalid origin")
			return
		}

		token, present := extractToken(r)
		if !present {
			writeJSONRPCError(w, http.StatusUnauthorized, jsonrpc.CodeAuthOrOrigin, "Missing token")
			return
		}
		if !tokensEqual(token, s.authToken) {
			writeJSONRPCError(w, http.StatusUnauthorized, jsonrpc.CodeAuthOrOrigin, "Invalid token")
			return
		}

		s.stats.totalRequests.Add(1)
		next(w, r)
	}
}
