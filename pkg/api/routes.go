package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/packages", s.HandleListPackages)
	mux.HandleFunc("GET /api/packages/{name}", s.HandlePackage)
	mux.HandleFunc("GET /api/packages/{name}/versions", s.HandleVersions)
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/feed", s.HandleFeed)
	mux.HandleFunc("GET /debug/status", s.HandleStatus)
	mux.HandleFunc("GET /healthz", s.HandleHealth)
}
