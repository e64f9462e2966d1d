// Package storage implements the package index on SQLite: the Backend
// collaborator serving package and version records, and the FTS5-based
// search engine behind the search service.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/mkustermann/pub-dartlang-dart/pkg/log"
	"github.com/mkustermann/pub-dartlang-dart/pkg/models"
)

// Store is the SQLite-backed package index. It implements models.Backend and
// the search service's Engine contract.
type Store struct {
	db              *sql.DB
	downloadBaseURL string
	logger          *log.Logger
}

// New opens (and if necessary creates) the package index at dbPath.
// downloadBaseURL is prepended to archive paths by DownloadURL.
func New(dbPath, downloadBaseURL string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Apply performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = memory",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	s := &Store{
		db:              db,
		downloadBaseURL: strings.TrimRight(downloadBaseURL, "/"),
		logger:          log.ForComponent("storage"),
	}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS packages (
			name TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			latest_version TEXT NOT NULL DEFAULT '',
			platforms TEXT NOT NULL DEFAULT '',
			downloads INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_packages_updated_at ON packages(updated_at DESC)`,
		`CREATE TABLE IF NOT EXISTS versions (
			package TEXT NOT NULL,
			version TEXT NOT NULL,
			pubspec TEXT NOT NULL DEFAULT '{}',
			prerelease INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (package, version)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_versions_created_at ON versions(created_at DESC)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS packages_fts USING fts5(name, description)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LatestPackages returns packages ordered by most recent update.
func (s *Store) LatestPackages(ctx context.Context, offset, limit int) ([]models.Package, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, description, latest_version, platforms, downloads, created_at, updated_at
		FROM packages
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying latest packages: %w", err)
	}
	defer closeRows(rows, s.logger)

	return scanPackages(rows)
}

// LatestPackageVersions returns recently published versions, newest first.
func (s *Store) LatestPackageVersions(ctx context.Context, offset, limit int, includePrereleases bool) ([]models.PackageVersion, error) {
	where := ""
	if !includePrereleases {
		// The flag is computed from the parsed version at import time, so
		// build metadata containing a hyphen does not count as a pre-release.
		where = "WHERE prerelease = 0"
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT package, version, pubspec, created_at
		FROM versions
		%s
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, where), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying latest versions: %w", err)
	}
	defer closeRows(rows, s.logger)

	return scanVersions(rows)
}

// LookupPackage returns one package record, or models.ErrNotFound.
func (s *Store) LookupPackage(ctx context.Context, name string) (*models.Package, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, description, latest_version, platforms, downloads, created_at, updated_at
		FROM packages
		WHERE name = ?
	`, name)

	pkg, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up package %s: %w", name, err)
	}
	return pkg, nil
}

// VersionsOfPackage returns all published versions of a package in
// publication order. Ordering policy is the caller's concern.
func (s *Store) VersionsOfPackage(ctx context.Context, name string) ([]models.PackageVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT package, version, pubspec, created_at
		FROM versions
		WHERE package = ?
		ORDER BY created_at ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("querying versions of %s: %w", name, err)
	}
	defer closeRows(rows, s.logger)

	return scanVersions(rows)
}

// DownloadURL returns the archive URL for one package version, or
// models.ErrNotFound when the version was never published.
func (s *Store) DownloadURL(ctx context.Context, pkg, version string) (string, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM versions WHERE package = ? AND version = ?`, pkg, version).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("checking version %s %s: %w", pkg, version, err)
	}
	return fmt.Sprintf("%s/%s/versions/%s.tar.gz", s.downloadBaseURL, pkg, version), nil
}

// Stats returns index counters for the status endpoint.
func (s *Store) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)
	for name, q := range map[string]string{
		"packages": "SELECT COUNT(*) FROM packages",
		"versions": "SELECT COUNT(*) FROM versions",
	} {
		var n int64
		if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s: %w", name, err)
		}
		stats[name] = n
	}
	return stats, nil
}

func scanPackage(row *sql.Row) (*models.Package, error) {
	var pkg models.Package
	var platformList string
	err := row.Scan(&pkg.Name, &pkg.Description, &pkg.LatestVersion, &platformList,
		&pkg.Downloads, &pkg.CreatedAt, &pkg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	pkg.Platforms = splitPlatforms(platformList)
	return &pkg, nil
}

func scanPackages(rows *sql.Rows) ([]models.Package, error) {
	var out []models.Package
	for rows.Next() {
		var pkg models.Package
		var platformList string
		if err := rows.Scan(&pkg.Name, &pkg.Description, &pkg.LatestVersion, &platformList,
			&pkg.Downloads, &pkg.CreatedAt, &pkg.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning package row: %w", err)
		}
		pkg.Platforms = splitPlatforms(platformList)
		out = append(out, pkg)
	}
	return out, rows.Err()
}

func scanVersions(rows *sql.Rows) ([]models.PackageVersion, error) {
	var out []models.PackageVersion
	for rows.Next() {
		var v models.PackageVersion
		var pubspec string
		var created time.Time
		if err := rows.Scan(&v.PackageName, &v.Version, &pubspec, &created); err != nil {
			return nil, fmt.Errorf("scanning version row: %w", err)
		}
		v.PubspecJSON = []byte(pubspec)
		v.CreatedAt = created
		out = append(out, v)
	}
	return out, rows.Err()
}

// splitPlatforms unpacks the space-padded platform tag list (see
// joinPlatforms in import.go).
func splitPlatforms(list string) []string {
	fields := strings.Fields(list)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func closeRows(rows *sql.Rows, logger *log.Logger) {
	if err := rows.Close(); err != nil {
		logger.Warnf("closing rows: %v", err)
	}
}
