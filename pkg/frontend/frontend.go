// Package frontend serves the HTML pages of the registry: the landing page,
// the package listing with search, and per-package detail pages. Every page
// render is memoized in the render cache keyed by the canonical request URL,
// and cold-path render latency feeds the per-page latency trackers exposed
// by the diagnostics endpoint.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkustermann/pub-dartlang-dart/pkg/cache"
	"github.com/mkustermann/pub-dartlang-dart/pkg/log"
	"github.com/mkustermann/pub-dartlang-dart/pkg/metrics"
	"github.com/mkustermann/pub-dartlang-dart/pkg/models"
	"github.com/mkustermann/pub-dartlang-dart/pkg/pagination"
	"github.com/mkustermann/pub-dartlang-dart/pkg/query"
	"github.com/mkustermann/pub-dartlang-dart/pkg/render"
	"github.com/mkustermann/pub-dartlang-dart/pkg/repometa"
	"github.com/mkustermann/pub-dartlang-dart/pkg/search"
	"github.com/mkustermann/pub-dartlang-dart/pkg/version"
	"github.com/mkustermann/pub-dartlang-dart/pkg/versions"
)

// bypassParam marks a request that must skip the render cache entirely:
// neither read nor written for that invocation.
const bypassParam = "experimental"

// packagePageVersionCount is how many versions the detail page lists before
// deferring to the full listing.
const packagePageVersionCount = 8

// Trackers holds the latency trackers for each page family. They are
// explicitly constructed and injected; the diagnostics endpoint reads them.
type Trackers struct {
	Index   *metrics.LatencyTracker
	Search  *metrics.LatencyTracker
	Package *metrics.LatencyTracker
}

// NewTrackers creates one tracker per page family with the given window
// capacity.
func NewTrackers(capacity int) *Trackers {
	return &Trackers{
		Index:   metrics.NewLatencyTracker(capacity),
		Search:  metrics.NewLatencyTracker(capacity),
		Package: metrics.NewLatencyTracker(capacity),
	}
}

// Options wires a Server. Backend, Searcher and Renderer are required;
// RepoMeta may be nil (no repository metadata) and Cache must be non-nil but
// may wrap a nil backend (uncached).
type Options struct {
	Backend      models.Backend
	Searcher     *search.Service
	Renderer     render.Renderer
	Cache        *cache.RenderCache
	RepoMeta     repometa.Fetcher
	Trackers     *Trackers
	PageSize     int
	MaxPageLinks int
}

// Server holds the frontend handlers and their dependencies.
type Server struct {
	backend      models.Backend
	searcher     *search.Service
	renderer     render.Renderer
	cache        *cache.RenderCache
	repoMeta     repometa.Fetcher
	trackers     *Trackers
	pageSize     int
	maxPageLinks int
	logger       *log.Logger
}

// NewServer creates the frontend server.
func NewServer(opts Options) *Server {
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	if opts.MaxPageLinks <= 0 {
		opts.MaxPageLinks = 11
	}
	if opts.Trackers == nil {
		opts.Trackers = NewTrackers(metrics.DefaultCapacity)
	}
	return &Server{
		backend:      opts.Backend,
		searcher:     opts.Searcher,
		renderer:     opts.Renderer,
		cache:        opts.Cache,
		repoMeta:     opts.RepoMeta,
		trackers:     opts.Trackers,
		pageSize:     opts.PageSize,
		maxPageLinks: opts.MaxPageLinks,
		logger:       log.ForComponent("frontend"),
	}
}

// Trackers exposes the injected latency trackers for the diagnostics
// endpoint.
func (s *Server) Trackers() *Trackers {
	return s.trackers
}

// RegisterRoutes attaches the HTML routes to the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /packages", s.handleSearch)
	mux.HandleFunc("GET /packages/{name}", s.handlePackage)
	mux.HandleFunc("GET /packages/{name}/versions", s.handleVersions)
	mux.HandleFunc("/", s.handleNotFound)
}

// serveRendered runs one page render through the cache (unless the request
// carries the bypass flag) and writes the result. Cold-path latency goes to
// the given tracker; cache hits are not recorded.
func (s *Server) serveRendered(w http.ResponseWriter, r *http.Request, tracker *metrics.LatencyTracker, compute cache.ComputeFunc) {
	timed := func(ctx context.Context) (string, error) {
		start := time.Now()
		html, err := compute(ctx)
		if err == nil && tracker != nil {
			tracker.Add(time.Since(start))
		}
		return html, err
	}

	var html string
	var err error
	if r.URL.Query().Has(bypassParam) {
		html, err = timed(r.Context())
	} else {
		html, err = s.cache.GetOrCompute(r.Context(), cacheKey(r), timed)
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := fmt.Fprint(w, html); err != nil {
		s.logger.Warnf("writing response for %s: %v", r.URL.Path, err)
	}
}

// cacheKey is the canonical request URL including the query string as sent.
// Two requests differing only in parameter order get distinct keys; that
// imprecision is accepted.
func cacheKey(r *http.Request) string {
	return r.URL.RequestURI()
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.serveRendered(w, r, s.trackers.Index, func(ctx context.Context) (string, error) {
		page := IndexPage{
			BasePage: basePage("Packages"),
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			pkgs, err := s.backend.LatestPackages(gctx, 0, s.pageSize)
			if err != nil {
				return fmt.Errorf("fetching latest packages: %w", err)
			}
			page.LatestPackages = pkgs
			return nil
		})
		g.Go(func() error {
			vs, err := s.backend.LatestPackageVersions(gctx, 0, s.pageSize, false)
			if err != nil {
				return fmt.Errorf("fetching latest versions: %w", err)
			}
			page.LatestVersions = vs
			return nil
		})
		if err := g.Wait(); err != nil {
			return "", err
		}

		return s.renderer.RenderPage("index", page)
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.serveRendered(w, r, s.trackers.Search, func(ctx context.Context) (string, error) {
		params := r.URL.Query()
		q := query.Parse(params.Get("q"), params)
		pageNum := query.ParsePage(params)
		q.Offset = (pageNum - 1) * s.pageSize
		q.Limit = s.pageSize

		result, err := s.searcher.Search(ctx, q)
		if err != nil {
			return "", err
		}

		window := pagination.WindowFor(q.Offset, result.TotalCount, s.pageSize, s.maxPageLinks)
		moreItems := q.Offset+len(result.Packages) < result.TotalCount

		page := SearchPage{
			BasePage:   basePage("Search"),
			Query:      q.Text,
			Sort:       q.Order.String(),
			Platforms:  q.Platforms.String(),
			Results:    result.Packages,
			TotalCount: result.TotalCount,
			PageLinks:  buildPageLinks(r.URL, window),
			HasPrev:    window.HasPrev(),
			HasNext:    window.HasNext(moreItems),
		}
		if page.HasPrev {
			page.PrevURL = pageURL(r.URL, window.Current-1)
		}
		if page.HasNext {
			page.NextURL = pageURL(r.URL, window.Current+1)
		}

		return s.renderer.RenderPage("search", page)
	})
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.serveRendered(w, r, s.trackers.Package, func(ctx context.Context) (string, error) {
		pkg, pkgVersions, err := s.fetchPackageWithVersions(ctx, name)
		if err != nil {
			return "", err
		}

		ordered := versions.SortPubDescending(pkgVersions)
		latestStable := ordered[0]
		latestDev := versions.LatestDev(pkgVersions)

		page := PackagePage{
			BasePage:       basePage(pkg.Name),
			Package:        *pkg,
			Pubspec:        latestStable.Pubspec(),
			LatestStable:   latestStable.Version,
			LatestDev:      latestDev.Version,
			ShowDevVersion: latestDev.Version != latestStable.Version,
			MoreVersions:   len(ordered) > packagePageVersionCount,
		}
		if len(ordered) > packagePageVersionCount {
			ordered = ordered[:packagePageVersionCount]
		}
		page.Versions, err = s.versionRows(ctx, ordered)
		if err != nil {
			return "", err
		}

		// Repository metadata depends on the selected version's pubspec, so
		// it is sequenced after the fan-out above.
		if s.repoMeta != nil {
			if repoURL := page.Pubspec.RepositoryURL(); repoURL != "" {
				info, err := s.repoMeta.Fetch(ctx, repoURL)
				if err != nil {
					s.logger.Warnf("repository metadata for %s: %v", pkg.Name, err)
				} else {
					page.Repository = info
				}
			}
		}

		return s.renderer.RenderPage("package", page)
	})
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s.serveRendered(w, r, s.trackers.Package, func(ctx context.Context) (string, error) {
		pkg, pkgVersions, err := s.fetchPackageWithVersions(ctx, name)
		if err != nil {
			return "", err
		}

		page := VersionsPage{
			BasePage: basePage(pkg.Name + " versions"),
			Package:  *pkg,
		}
		page.Versions, err = s.versionRows(ctx, versions.SortPubDescending(pkgVersions))
		if err != nil {
			return "", err
		}

		return s.renderer.RenderPage("versions", page)
	})
}

// fetchPackageWithVersions fans out the two independent backend reads a
// package page needs and joins them.
func (s *Server) fetchPackageWithVersions(ctx context.Context, name string) (*models.Package, []models.PackageVersion, error) {
	var (
		pkg         *models.Package
		pkgVersions []models.PackageVersion
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pkg, err = s.backend.LookupPackage(gctx, name)
		return err
	})
	g.Go(func() error {
		var err error
		pkgVersions, err = s.backend.VersionsOfPackage(gctx, name)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if len(pkgVersions) == 0 {
		// A package row without versions is an index inconsistency; treat
		// it like an unknown package.
		return nil, nil, models.ErrNotFound
	}
	return pkg, pkgVersions, nil
}

func (s *Server) versionRows(ctx context.Context, vs []models.PackageVersion) ([]VersionRow, error) {
	rows := make([]VersionRow, len(vs))
	for i, v := range vs {
		url, err := s.backend.DownloadURL(ctx, v.PackageName, v.Version)
		if err != nil {
			return nil, fmt.Errorf("download url for %s %s: %w", v.PackageName, v.Version, err)
		}
		rows[i] = VersionRow{
			Version:     v.Version,
			CreatedAt:   v.CreatedAt.Format("Jan 2, 2006"),
			DownloadURL: url,
			Prerelease:  versions.IsPrerelease(v.Version),
		}
	}
	return rows, nil
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderNotFound(w, r)
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request) {
	page := NotFoundPage{
		BasePage: basePage("Not found"),
		Path:     r.URL.Path,
	}
	html, err := s.renderer.RenderPage("notfound", page)
	if err != nil {
		s.logger.Errorf("rendering not-found page: %v", err)
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, html)
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, models.ErrNotFound) {
		s.renderNotFound(w, r)
		return
	}
	s.logger.Errorf("serving %s: %v", r.URL.Path, err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func basePage(title string) BasePage {
	return BasePage{Title: title, Version: version.APIVersion()}
}
