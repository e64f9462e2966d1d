package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mkustermann/pub-dartlang-dart/pkg/metrics"
	"github.com/mkustermann/pub-dartlang-dart/pkg/models"
	"github.com/mkustermann/pub-dartlang-dart/pkg/query"
	"github.com/mkustermann/pub-dartlang-dart/pkg/version"
)

func (s *Server) HandleListPackages(w http.ResponseWriter, r *http.Request) {
	page := query.ParsePage(r.URL.Query())
	offset := (page - 1) * s.pageSize

	packages, err := s.backend.LatestPackages(r.Context(), offset, s.pageSize)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list packages", err.Error())
		return
	}

	summaries := make([]PackageSummary, len(packages))
	for i, pkg := range packages {
		summaries[i] = packageSummary(pkg)
	}

	s.writeJSON(w, http.StatusOK, ListPackagesResponse{
		Packages: summaries,
		Count:    len(summaries),
		Page:     page,
	})
}

func (s *Server) HandlePackage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid path", "Package name is required")
		return
	}

	pkg, err := s.backend.LookupPackage(r.Context(), name)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Package not found", fmt.Sprintf("Package '%s' does not exist", name))
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to look up package", err.Error())
		return
	}

	versions, err := s.versionResponses(r, name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list versions", err.Error())
		return
	}

	response := PackageResponse{
		PackageSummary: packageSummary(*pkg),
		Versions:       versions,
	}

	if spec, ok := s.latestPubspec(r, name, pkg.LatestVersion); ok {
		response.Homepage = spec.Homepage
		response.Repository = spec.RepositoryURL()
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleVersions(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid path", "Package name is required")
		return
	}

	if _, err := s.backend.LookupPackage(r.Context(), name); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Package not found", fmt.Sprintf("Package '%s' does not exist", name))
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to look up package", err.Error())
		return
	}

	versions, err := s.versionResponses(r, name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to list versions", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, ListVersionsResponse{
		Package:  name,
		Versions: versions,
		Count:    len(versions),
	})
}

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := query.Parse(params.Get("q"), params)
	page := query.ParsePage(params)
	q.Offset = (page - 1) * s.pageSize
	q.Limit = s.pageSize

	if !q.IsValid() {
		s.writeError(w, http.StatusBadRequest, "Missing query parameter", "Query parameter 'q' is required")
		return
	}

	results, err := s.searcher.Search(r.Context(), q)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Search failed", err.Error())
		return
	}

	entries := make([]SearchResultEntry, len(results.Packages))
	for i, result := range results.Packages {
		entries[i] = SearchResultEntry{
			PackageSummary: packageSummary(result.Package),
			Score:          result.Score,
		}
	}

	s.writeJSON(w, http.StatusOK, SearchResponse{
		Query:      params.Get("q"),
		Results:    entries,
		Count:      len(entries),
		TotalCount: results.TotalCount,
		Page:       page,
		Limit:      s.pageSize,
		HasMore:    q.Offset+len(entries) < results.TotalCount,
	})
}

func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		Version:      version.Version,
		CacheEnabled: s.cache != nil && s.cache.Enabled(),
		Latencies:    make(map[string]LatencyStats),
	}

	if s.hub != nil {
		response.FeedListeners = s.hub.Size()
	}

	if s.trackers != nil {
		response.Latencies["index"] = latencyStats(s.trackers.Index)
		response.Latencies["search"] = latencyStats(s.trackers.Search)
		response.Latencies["package"] = latencyStats(s.trackers.Package)
	}

	if s.stats != nil {
		stats, err := s.stats.Stats(r.Context())
		if err != nil {
			s.logger.Warnf("reading storage stats: %v", err)
		} else {
			response.Storage = stats
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}

func (s *Server) versionResponses(r *http.Request, name string) ([]VersionResponse, error) {
	versions, err := s.backend.VersionsOfPackage(r.Context(), name)
	if err != nil {
		return nil, err
	}

	responses := make([]VersionResponse, len(versions))
	for i, v := range versions {
		url, err := s.backend.DownloadURL(r.Context(), name, v.Version)
		if err != nil {
			return nil, err
		}
		responses[i] = VersionResponse{
			Version:     v.Version,
			CreatedAt:   v.CreatedAt,
			DownloadURL: url,
		}
	}
	return responses, nil
}

func (s *Server) latestPubspec(r *http.Request, name, latest string) (models.Pubspec, bool) {
	versions, err := s.backend.VersionsOfPackage(r.Context(), name)
	if err != nil {
		return models.Pubspec{}, false
	}
	for _, v := range versions {
		if v.Version == latest {
			return v.Pubspec(), true
		}
	}
	return models.Pubspec{}, false
}

func packageSummary(pkg models.Package) PackageSummary {
	return PackageSummary{
		Name:          pkg.Name,
		Description:   pkg.Description,
		LatestVersion: pkg.LatestVersion,
		Platforms:     pkg.Platforms,
		Downloads:     pkg.Downloads,
		UpdatedAt:     pkg.UpdatedAt,
	}
}

func latencyStats(t *metrics.LatencyTracker) LatencyStats {
	stats := LatencyStats{Count: t.Count()}
	if d, ok := t.Median(); ok {
		stats.Median = durationMillis(d)
	}
	if d, ok := t.P90(); ok {
		stats.P90 = durationMillis(d)
	}
	if d, ok := t.P99(); ok {
		stats.P99 = durationMillis(d)
	}
	return stats
}

func durationMillis(d time.Duration) *float64 {
	ms := float64(d) / float64(time.Millisecond)
	return &ms
}
