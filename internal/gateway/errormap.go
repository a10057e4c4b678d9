package gateway

import (
	"net/http"

	"muster-gateway/internal/api"
	"muster-gateway/internal/jsonrpc"
)

// mapping is the single lookup table translating a GatewayError kind to an
// (HTTP status, JSON-RPC code) pair.
var mapping = map[api.ErrorKind]struct {
	status int
	code   int
}{
	api.KindParseError:      {http.StatusBadRequest, jsonrpc.CodeParseError},
	api.KindInvalidRequest:  {http.StatusBadRequest, jsonrpc.CodeInvalidRequest},
	api.KindMissingSession:  {http.StatusBadRequest, jsonrpc.CodeMissingSession},
	api.KindExpiredSession:  {http.StatusNotFound, jsonrpc.CodeSessionNotFound},
	api.KindForbiddenOrigin: {http.StatusForbidden, jsonrpc.CodeAuthOrOrigin},
	api.KindUnauthorized:    {http.StatusUnauthorized, jsonrpc.CodeAuthOrOrigin},

	api.KindUnknownMethod:      {http.StatusOK, jsonrpc.CodeMethodNotFound},
	api.KindUnknownTool:        {http.StatusOK, jsonrpc.CodeMethodNotFound},
	api.KindPolicyDenied:       {http.StatusOK, jsonrpc.CodeMethodNotFound},
	api.KindMalformedToolName:  {http.StatusOK, jsonrpc.CodeInvalidParams},

	api.KindStdioCrashed:      {http.StatusOK, jsonrpc.CodeInternalError},
	api.KindStdioTimeout:      {http.StatusOK, jsonrpc.CodeInternalError},
	api.KindHTTPConnection:    {http.StatusOK, jsonrpc.CodeInternalError},
	api.KindHTTPStatus:        {http.StatusOK, jsonrpc.CodeInternalError},
	api.KindHTTPInvalidBody:   {http.StatusOK, jsonrpc.CodeInternalError},
	api.KindInitializeFailed:  {http.StatusOK, jsonrpc.CodeInternalError},

	api.KindPortInUse:      {http.StatusInternalServerError, jsonrpc.CodeServerError},
	api.KindStartupFailure: {http.StatusInternalServerError, jsonrpc.CodeServerError},
	api.KindConfigInvalid:  {http.StatusInternalServerError, jsonrpc.CodeServerError},

	api.KindLockPoisoned:  {http.StatusInternalServerError, jsonrpc.CodeInternalError},
	api.KindChannelClosed: {http.StatusInternalServerError, jsonrpc.CodeInternalError},
	api.KindDatabaseError: {http.StatusInternalServerError, jsonrpc.CodeInternalError},
}

// httpStatusAndCode maps err to the (HTTP status, JSON-RPC code) pair it
// should surface as. Errors that are not a *api.GatewayError are treated as
// unplanned internal faults.
func httpStatusAndCode(err error) (status, code int) {
	ge, ok := api.AsGatewayError(err)
	if !ok {
		return http.StatusInternalServerError, jsonrpc.CodeInternalError
	}
	if m, ok := mapping[ge.Kind]; ok {
		if ge.Status != 0 {
			return http.StatusOK, m.code
		}
		return m.status, m.code
	}
	return http.StatusInternalServerError, jsonrpc.CodeInternalError
}
