// Package models defines the domain types served by the pub frontend and the
// collaborator contracts the request handlers depend on.
//
// The frontend itself never owns package data: packages and versions are
// supplied by a Backend implementation (the SQLite store in pkg/storage, or a
// fake in tests) and are only read and reordered, never mutated.
package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by Backend lookups when the requested package or
// version does not exist. Callers map it to a 404-equivalent response; it is
// an expected outcome, not a fault.
var ErrNotFound = errors.New("entity not found")

// Package is the registry-level record for one package.
type Package struct {
	Name          string
	Description   string
	LatestVersion string
	// Platforms holds the lowercase platform tags (e.g. "flutter", "web",
	// "server") the latest version declares support for.
	Platforms []string
	Downloads int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PackageVersion is one published version of a package. PubspecJSON is kept
// as an opaque blob; only the few fields the frontend renders are decoded on
// demand via Pubspec().
type PackageVersion struct {
	PackageName string
	Version     string
	PubspecJSON []byte
	CreatedAt   time.Time
}

// Pubspec is the subset of the pubspec the frontend cares about.
type Pubspec struct {
	Description string `json:"description"`
	Homepage    string `json:"homepage"`
	Repository  string `json:"repository"`
	Author      string `json:"author"`
	// Platforms maps declared platform tags to their (ignored) settings.
	Platforms map[string]any `json:"platforms"`
}

// RepositoryURL returns the best-known source repository link: the
// repository field when present, the homepage otherwise.
func (p Pubspec) RepositoryURL() string {
	if p.Repository != "" {
		return p.Repository
	}
	return p.Homepage
}

// Pubspec decodes the few rendered pubspec fields. A malformed or empty blob
// yields a zero Pubspec rather than an error; the pubspec is display-only.
func (v PackageVersion) Pubspec() Pubspec {
	var p Pubspec
	if len(v.PubspecJSON) == 0 {
		return p
	}
	_ = json.Unmarshal(v.PubspecJSON, &p)
	return p
}

// PackageScore pairs a package name with its search ranking score.
type PackageScore struct {
	PackageName string
	Score       float64
}

// SearchResult is what a SearchEngine returns: the total number of matches
// and the scored page requested by the query's offset/limit.
type SearchResult struct {
	TotalCount int
	Scores     []PackageScore
}

// Backend supplies package and version records. Implementations must be safe
// for concurrent use; the frontend fans out independent fetches per request.
type Backend interface {
	// LatestPackages returns packages ordered by most recent update.
	LatestPackages(ctx context.Context, offset, limit int) ([]Package, error)

	// LatestPackageVersions returns recently published versions, newest
	// first. Pre-release versions are excluded unless includePrereleases.
	LatestPackageVersions(ctx context.Context, offset, limit int, includePrereleases bool) ([]PackageVersion, error)

	// LookupPackage returns the package with the given name, or ErrNotFound.
	LookupPackage(ctx context.Context, name string) (*Package, error)

	// VersionsOfPackage returns all published versions of a package. The
	// result is empty (not ErrNotFound) for unknown packages.
	VersionsOfPackage(ctx context.Context, name string) ([]PackageVersion, error)

	// DownloadURL returns the archive URL for one package version.
	DownloadURL(ctx context.Context, pkg, version string) (string, error)
}
