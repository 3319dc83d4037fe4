// Package endpoint wires the public HTTP surface.
package endpoint

import (
	"encoding/json"
	"net/http"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/logger"
	"github.com/tomfle18/aiostreams/internal/server"
)

var log = logger.Scoped("endpoint")

func isMethod(r *http.Request, method string) bool {
	return r.Method == method
}

func errorMethodNotAllowed(r *http.Request) *core.Error {
	return core.NewError(core.ErrorCodeMethodNotAllowed, "method not allowed: "+r.Method)
}

func readRequestBodyJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(v); err != nil {
		return core.NewError(core.ErrorCodeBadRequest, "invalid request body").WithCause(err)
	}
	return nil
}

func sendError(w http.ResponseWriter, r *http.Request, err error) {
	e := core.AsError(err)
	if e.StatusCode >= 500 || e.StatusCode == 0 {
		server.GetReqCtx(r).Log.Error("request failed", "error", err, "path", r.URL.Path)
	}
	e.Send(w, r)
}

func sendResponse(w http.ResponseWriter, r *http.Request, statusCode int, data any, err error) {
	if err != nil {
		sendError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if encErr := json.NewEncoder(w).Encode(data); encErr != nil {
		server.GetReqCtx(r).Log.Error("failed to encode response", "error", encErr)
	}
}

type middleware func(http.HandlerFunc) http.HandlerFunc

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}
