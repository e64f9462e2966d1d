package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkustermann/pub-dartlang-dart/pkg/models"
	"github.com/mkustermann/pub-dartlang-dart/pkg/query"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "packages.db"), "https://dl.example.com/packages/")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	return store
}

func pubspec(t *testing.T, description string, platformTags ...string) json.RawMessage {
	t.Helper()
	doc := map[string]any{"description": description}
	if len(platformTags) > 0 {
		tags := make(map[string]any, len(platformTags))
		for _, tag := range platformTags {
			tags[tag] = map[string]any{}
		}
		doc["platforms"] = tags
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func seedPackages(t *testing.T, store *Store) {
	t.Helper()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	imports := []PackageImport{
		{
			Name:      "http_client",
			Downloads: 5000,
			Versions: []VersionImport{
				{Version: "0.9.0", Pubspec: pubspec(t, "An HTTP client", "server", "web"), CreatedAt: base},
				{Version: "1.0.0", Pubspec: pubspec(t, "A composable HTTP client", "server", "web"), CreatedAt: base.Add(24 * time.Hour)},
				{Version: "1.1.0-beta", Pubspec: pubspec(t, "A composable HTTP client", "server", "web"), CreatedAt: base.Add(48 * time.Hour)},
			},
		},
		{
			Name:      "json_codec",
			Downloads: 9000,
			Versions: []VersionImport{
				{Version: "2.0.0", Pubspec: pubspec(t, "Fast JSON encoding and decoding", "flutter", "web"), CreatedAt: base.Add(time.Hour)},
			},
		},
		{
			Name:      "terminal_colors",
			Downloads: 100,
			Versions: []VersionImport{
				{Version: "0.1.0", Pubspec: pubspec(t, "ANSI colors for terminals", "server"), CreatedAt: base.Add(2 * time.Hour)},
			},
		},
	}
	if err := store.ImportPackages(context.Background(), imports); err != nil {
		t.Fatalf("importing: %v", err)
	}
}

func TestImportAndLookup(t *testing.T) {
	store := newTestStore(t)
	seedPackages(t, store)

	pkg, err := store.LookupPackage(context.Background(), "http_client")
	if err != nil {
		t.Fatalf("LookupPackage: %v", err)
	}
	// Pub-style latest: the stable 1.0.0 outranks the newer 1.1.0-beta.
	if pkg.LatestVersion != "1.0.0" {
		t.Errorf("LatestVersion = %q, want 1.0.0", pkg.LatestVersion)
	}
	if pkg.Description != "A composable HTTP client" {
		t.Errorf("Description = %q", pkg.Description)
	}
	if len(pkg.Platforms) != 2 || pkg.Platforms[0] != "server" || pkg.Platforms[1] != "web" {
		t.Errorf("Platforms = %v, want [server web]", pkg.Platforms)
	}
	if pkg.Downloads != 5000 {
		t.Errorf("Downloads = %d, want 5000", pkg.Downloads)
	}
}

func TestLookupPackageNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LookupPackage(context.Background(), "nope")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVersionsOfPackage(t *testing.T) {
	store := newTestStore(t)
	seedPackages(t, store)

	vs, err := store.VersionsOfPackage(context.Background(), "http_client")
	if err != nil {
		t.Fatalf("VersionsOfPackage: %v", err)
	}
	if len(vs) != 3 {
		t.Fatalf("got %d versions, want 3", len(vs))
	}
	// Publication order, oldest first.
	if vs[0].Version != "0.9.0" || vs[2].Version != "1.1.0-beta" {
		t.Errorf("unexpected order: %s .. %s", vs[0].Version, vs[2].Version)
	}
	spec := vs[1].Pubspec()
	if spec.Description != "A composable HTTP client" {
		t.Errorf("pubspec description = %q", spec.Description)
	}
}

func TestLatestPackageVersions(t *testing.T) {
	store := newTestStore(t)
	seedPackages(t, store)

	all, err := store.LatestPackageVersions(context.Background(), 0, 10, true)
	if err != nil {
		t.Fatalf("LatestPackageVersions: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d versions, want 5", len(all))
	}
	if all[0].Version != "1.1.0-beta" {
		t.Errorf("newest first, got %s", all[0].Version)
	}

	stable, err := store.LatestPackageVersions(context.Background(), 0, 10, false)
	if err != nil {
		t.Fatalf("LatestPackageVersions: %v", err)
	}
	for _, v := range stable {
		if v.Version == "1.1.0-beta" {
			t.Error("prerelease returned despite includePrereleases=false")
		}
	}
	if len(stable) != 4 {
		t.Errorf("got %d stable versions, want 4", len(stable))
	}
}

func TestLatestPackageVersionsBuildMetadata(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	imports := []PackageImport{{
		Name: "build_info",
		Versions: []VersionImport{
			{Version: "1.0.0+build-5", Pubspec: pubspec(t, "Build metadata"), CreatedAt: base},
			{Version: "1.1.0-rc.1", Pubspec: pubspec(t, "Build metadata"), CreatedAt: base.Add(time.Hour)},
		},
	}}
	if err := store.ImportPackages(context.Background(), imports); err != nil {
		t.Fatalf("importing: %v", err)
	}

	stable, err := store.LatestPackageVersions(context.Background(), 0, 10, false)
	if err != nil {
		t.Fatalf("LatestPackageVersions: %v", err)
	}
	// The hyphen in the build metadata must not classify 1.0.0+build-5 as a
	// pre-release.
	if len(stable) != 1 || stable[0].Version != "1.0.0+build-5" {
		t.Errorf("stable versions = %+v, want only 1.0.0+build-5", stable)
	}
}

func TestLatestPackagesOrder(t *testing.T) {
	store := newTestStore(t)
	seedPackages(t, store)

	pkgs, err := store.LatestPackages(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("LatestPackages: %v", err)
	}
	if len(pkgs) != 3 {
		t.Fatalf("got %d packages, want 3", len(pkgs))
	}
	// http_client's newest version (the beta) sets its update time.
	if pkgs[0].Name != "http_client" {
		t.Errorf("most recently updated = %s, want http_client", pkgs[0].Name)
	}
}

func TestDownloadURL(t *testing.T) {
	store := newTestStore(t)
	seedPackages(t, store)

	u, err := store.DownloadURL(context.Background(), "http_client", "1.0.0")
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	want := "https://dl.example.com/packages/http_client/versions/1.0.0.tar.gz"
	if u != want {
		t.Errorf("DownloadURL = %q, want %q", u, want)
	}

	if _, err := store.DownloadURL(context.Background(), "http_client", "9.9.9"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unpublished version, got %v", err)
	}
}

func TestSearchFullText(t *testing.T) {
	store := newTestStore(t)
	seedPackages(t, store)

	result, err := store.Search(context.Background(), query.SearchQuery{Text: "http client", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.TotalCount != 1 {
		t.Fatalf("TotalCount = %d, want 1", result.TotalCount)
	}
	if result.Scores[0].PackageName != "http_client" {
		t.Errorf("top result = %s", result.Scores[0].PackageName)
	}
}

func TestSearchPrefixFilter(t *testing.T) {
	store := newTestStore(t)
	seedPackages(t, store)

	result, err := store.Search(context.Background(), query.SearchQuery{PackagePrefix: "json", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.TotalCount != 1 || result.Scores[0].PackageName != "json_codec" {
		t.Errorf("prefix search = %+v, want json_codec", result.Scores)
	}

	// LIKE wildcards in the prefix must not widen the match.
	result, err = store.Search(context.Background(), query.SearchQuery{PackagePrefix: "%", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.TotalCount != 0 {
		t.Errorf("wildcard prefix matched %d packages, want 0", result.TotalCount)
	}
}

func TestSearchPlatformFilter(t *testing.T) {
	store := newTestStore(t)
	seedPackages(t, store)

	q := query.Parse("", url.Values{"platforms": {"flutter!"}})
	q.Limit = 10
	result, err := store.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.TotalCount != 1 || result.Scores[0].PackageName != "json_codec" {
		t.Errorf("platform search = %+v, want json_codec only", result.Scores)
	}
}

func TestSearchOptionalPlatformBoost(t *testing.T) {
	store := newTestStore(t)
	seedPackages(t, store)

	// An optional tag must not filter, only rank supporting packages first.
	q := query.Parse("", url.Values{"platforms": {"server"}})
	q.Limit = 10
	result, err := store.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.TotalCount != 3 {
		t.Fatalf("TotalCount = %d, want 3", result.TotalCount)
	}
	// json_codec has the most downloads but no server support; the two
	// server packages outrank it.
	if result.Scores[0].PackageName != "http_client" {
		t.Errorf("top result = %s, want http_client", result.Scores[0].PackageName)
	}
	if result.Scores[2].PackageName != "json_codec" {
		t.Errorf("last result = %s, want json_codec", result.Scores[2].PackageName)
	}
}

func TestSearchOrderUpdated(t *testing.T) {
	store := newTestStore(t)
	seedPackages(t, store)

	result, err := store.Search(context.Background(), query.SearchQuery{
		Order: query.OrderUpdated,
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Scores) != 3 {
		t.Fatalf("got %d results, want 3", len(result.Scores))
	}
	if result.Scores[0].PackageName != "http_client" {
		t.Errorf("most recently updated = %s, want http_client", result.Scores[0].PackageName)
	}
}

func TestSearchPagination(t *testing.T) {
	store := newTestStore(t)
	seedPackages(t, store)

	page1, err := store.Search(context.Background(), query.SearchQuery{
		Order: query.OrderUpdated,
		Limit: 2,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if page1.TotalCount != 3 || len(page1.Scores) != 2 {
		t.Fatalf("page 1: total %d, len %d", page1.TotalCount, len(page1.Scores))
	}

	page2, err := store.Search(context.Background(), query.SearchQuery{
		Order:  query.OrderUpdated,
		Limit:  2,
		Offset: 2,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page2.Scores) != 1 {
		t.Fatalf("page 2: len %d, want 1", len(page2.Scores))
	}
	if page2.Scores[0].PackageName == page1.Scores[0].PackageName {
		t.Error("pages overlap")
	}
}

func TestReimportUpdatesIndex(t *testing.T) {
	store := newTestStore(t)
	seedPackages(t, store)

	update := []PackageImport{{
		Name:      "json_codec",
		Downloads: 9500,
		Versions: []VersionImport{
			{Version: "2.0.0", Pubspec: pubspec(t, "Fast JSON encoding and decoding", "flutter", "web"), CreatedAt: time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)},
			{Version: "2.1.0", Pubspec: pubspec(t, "Streaming JSON codec", "flutter", "web"), CreatedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		},
	}}
	if err := store.ImportPackages(context.Background(), update); err != nil {
		t.Fatalf("re-import: %v", err)
	}

	pkg, err := store.LookupPackage(context.Background(), "json_codec")
	if err != nil {
		t.Fatalf("LookupPackage: %v", err)
	}
	if pkg.LatestVersion != "2.1.0" {
		t.Errorf("LatestVersion = %q, want 2.1.0", pkg.LatestVersion)
	}
	if pkg.Description != "Streaming JSON codec" {
		t.Errorf("Description = %q", pkg.Description)
	}

	// The FTS index follows the new description without duplicating entries.
	result, err := store.Search(context.Background(), query.SearchQuery{Text: "streaming", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.TotalCount != 1 || result.Scores[0].PackageName != "json_codec" {
		t.Errorf("search after re-import = %+v", result.Scores)
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	seedPackages(t, store)

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["packages"] != 3 {
		t.Errorf("packages = %d, want 3", stats["packages"])
	}
	if stats["versions"] != 5 {
		t.Errorf("versions = %d, want 5", stats["versions"])
	}
}
