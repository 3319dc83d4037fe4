// Package server carries the per-request context and shared HTTP
// plumbing.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/tomfle18/aiostreams/internal/logger"
)

var log = logger.Scoped("server")

type ctxKey struct{}

type ReqCtx struct {
	RequestID string
	StartedAt time.Time
	Log       *logger.Logger
}

func GetReqCtx(r *http.Request) *ReqCtx {
	if rCtx, ok := r.Context().Value(ctxKey{}).(*ReqCtx); ok {
		return rCtx
	}
	return &ReqCtx{RequestID: "-", StartedAt: time.Now(), Log: log}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// WithReqCtx attaches a request id and scoped logger, and logs one line
// per completed request.
func WithReqCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rCtx := &ReqCtx{
			RequestID: xid.New().String(),
			StartedAt: time.Now(),
		}
		rCtx.Log = log.With("request_id", rCtx.RequestID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, rCtx)))

		rCtx.Log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(rCtx.StartedAt).Round(time.Millisecond).String(),
		)
	})
}
