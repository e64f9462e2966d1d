package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mkustermann/pub-dartlang-dart/pkg/log"
)

// requestIDHeader carries the per-request correlation id back to the client.
const requestIDHeader = "X-Request-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogger tags every request with a correlation id and logs method,
// path, status and duration on completion. WebSocket upgrades are skipped:
// wrapping their ResponseWriter would hide the http.Hijacker the upgrade
// needs.
func RequestLogger(next http.Handler) http.Handler {
	logger := log.ForComponent("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(requestIDHeader, id)

		if r.Header.Get("Upgrade") == "websocket" {
			logger.Debugf("%s %s %s upgrade", id, r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		logger.Debugf("%s %s %s %d %s", id, r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
