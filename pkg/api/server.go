// Package api serves the JSON interface and the live version feed. It reuses
// the same backend and search service as the HTML frontend and adds a
// diagnostics endpoint reporting render latencies and index counters.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mkustermann/pub-dartlang-dart/pkg/cache"
	"github.com/mkustermann/pub-dartlang-dart/pkg/frontend"
	"github.com/mkustermann/pub-dartlang-dart/pkg/log"
	"github.com/mkustermann/pub-dartlang-dart/pkg/models"
	"github.com/mkustermann/pub-dartlang-dart/pkg/realtime"
	"github.com/mkustermann/pub-dartlang-dart/pkg/search"
)

// StatsProvider reports index counters. The SQLite store implements it.
type StatsProvider interface {
	Stats(ctx context.Context) (map[string]int64, error)
}

// Options wires a Server. Backend and Searcher are required; the rest may be
// nil, in which case the corresponding endpoint reports an empty section.
type Options struct {
	Backend  models.Backend
	Searcher *search.Service
	Stats    StatsProvider
	Cache    *cache.RenderCache
	Hub      *realtime.Hub
	Trackers *frontend.Trackers
	PageSize int
}

// Server holds the JSON API handlers and their dependencies.
type Server struct {
	backend  models.Backend
	searcher *search.Service
	stats    StatsProvider
	cache    *cache.RenderCache
	hub      *realtime.Hub
	trackers *frontend.Trackers
	pageSize int
	logger   *log.Logger
}

// NewServer creates the API server.
func NewServer(opts Options) *Server {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	return &Server{
		backend:  opts.Backend,
		searcher: opts.Searcher,
		stats:    opts.Stats,
		cache:    opts.Cache,
		hub:      opts.Hub,
		trackers: opts.Trackers,
		pageSize: opts.PageSize,
		logger:   log.ForComponent("api"),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

// CorsMiddleware allows cross-origin reads of the JSON API.
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
