// Package search executes normalized queries against the search engine and
// hydrates the scored results into full package records for presentation.
package search

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mkustermann/pub-dartlang-dart/pkg/log"
	"github.com/mkustermann/pub-dartlang-dart/pkg/models"
	"github.com/mkustermann/pub-dartlang-dart/pkg/query"
)

// Engine is the search-ranking collaborator. The SQLite store implements it;
// tests substitute fakes.
type Engine interface {
	Search(ctx context.Context, q query.SearchQuery) (*models.SearchResult, error)
}

// PackageResult pairs a hydrated package record with its ranking score.
type PackageResult struct {
	Package models.Package
	Score   float64
}

// ResultPage is one page of search results with the metadata the pagination
// window needs.
type ResultPage struct {
	Query      query.SearchQuery
	TotalCount int
	Packages   []PackageResult
}

// Service runs searches: it gates invalid queries, calls the engine, and
// hydrates scores into package records.
type Service struct {
	backend models.Backend
	engine  Engine
	logger  *log.Logger
}

// NewService creates a search service over the given backend and engine.
func NewService(backend models.Backend, engine Engine) *Service {
	return &Service{
		backend: backend,
		engine:  engine,
		logger:  log.ForComponent("search"),
	}
}

// Search executes one normalized query. An invalid query (empty text, no
// prefix, default order, empty platform predicate) short-circuits to an
// empty page without reaching the engine; the caller renders it as "no
// results", not as an error.
//
// Package records for the scored page are fetched concurrently and joined;
// score order is preserved. A package that vanished between ranking and
// hydration is dropped from the page rather than failing the request.
func (s *Service) Search(ctx context.Context, q query.SearchQuery) (*ResultPage, error) {
	page := &ResultPage{Query: q}
	if !q.IsValid() {
		s.logger.Debugf("rejecting empty query before engine call")
		return page, nil
	}

	result, err := s.engine.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	page.TotalCount = result.TotalCount

	hydrated := make([]*PackageResult, len(result.Scores))
	g, gctx := errgroup.WithContext(ctx)
	for i, score := range result.Scores {
		g.Go(func() error {
			pkg, err := s.backend.LookupPackage(gctx, score.PackageName)
			if errors.Is(err, models.ErrNotFound) {
				s.logger.Warnf("ranked package %s vanished before hydration", score.PackageName)
				return nil
			}
			if err != nil {
				return fmt.Errorf("hydrating %s: %w", score.PackageName, err)
			}
			hydrated[i] = &PackageResult{Package: *pkg, Score: score.Score}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range hydrated {
		if r != nil {
			page.Packages = append(page.Packages, *r)
		}
	}
	return page, nil
}
