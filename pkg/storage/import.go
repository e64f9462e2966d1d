package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mkustermann/pub-dartlang-dart/pkg/log"
	"github.com/mkustermann/pub-dartlang-dart/pkg/models"
	"github.com/mkustermann/pub-dartlang-dart/pkg/platforms"
	"github.com/mkustermann/pub-dartlang-dart/pkg/versions"
)

// PackageImport is one package as read from a registry dump.
type PackageImport struct {
	Name      string          `json:"name"`
	Downloads int64           `json:"downloads"`
	Versions  []VersionImport `json:"versions"`
}

// VersionImport is one published version in a registry dump.
type VersionImport struct {
	Version   string          `json:"version"`
	Pubspec   json.RawMessage `json:"pubspec"`
	CreatedAt time.Time       `json:"created_at"`
}

// ImportPackages upserts a batch of packages and their versions, recomputing
// each package's derived columns: latest version (pub-style ordering),
// description and platform tags from the latest pubspec, and the created and
// updated timestamps from the version history. The FTS index is kept in sync.
func (s *Store) ImportPackages(ctx context.Context, pkgs []PackageImport) error {
	if len(pkgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				s.logger.Warnf("rolling back import: %v", err)
			}
		}
	}()

	versionStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO versions (package, version, pubspec, prerelease, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing version statement: %w", err)
	}
	defer closeStmt(versionStmt, s.logger)

	// Upsert rather than REPLACE: REPLACE would assign a new rowid and orphan
	// the FTS entry keyed on the old one.
	packageStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO packages
			(name, description, latest_version, platforms, downloads, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			latest_version = excluded.latest_version,
			platforms = excluded.platforms,
			downloads = excluded.downloads,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing package statement: %w", err)
	}
	defer closeStmt(packageStmt, s.logger)

	ftsStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO packages_fts (rowid, name, description)
		VALUES ((SELECT rowid FROM packages WHERE name = ?), ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing FTS statement: %w", err)
	}
	defer closeStmt(ftsStmt, s.logger)

	for _, pkg := range pkgs {
		if pkg.Name == "" || len(pkg.Versions) == 0 {
			s.logger.Warnf("skipping import of %q: no versions", pkg.Name)
			continue
		}

		modelVersions := make([]models.PackageVersion, len(pkg.Versions))
		for i, v := range pkg.Versions {
			pubspec := v.Pubspec
			if len(pubspec) == 0 {
				pubspec = json.RawMessage("{}")
			}
			modelVersions[i] = models.PackageVersion{
				PackageName: pkg.Name,
				Version:     v.Version,
				PubspecJSON: pubspec,
				CreatedAt:   v.CreatedAt,
			}
			if _, err := versionStmt.ExecContext(ctx,
				pkg.Name, v.Version, string(pubspec), versions.IsPrerelease(v.Version), v.CreatedAt); err != nil {
				return fmt.Errorf("inserting version %s %s: %w", pkg.Name, v.Version, err)
			}
		}

		latest := versions.LatestStable(modelVersions)
		pubspec := latest.Pubspec()
		createdAt, updatedAt := timeBounds(modelVersions)

		if _, err := packageStmt.ExecContext(ctx,
			pkg.Name, pubspec.Description, latest.Version,
			joinPlatforms(pubspecPlatforms(pubspec)), pkg.Downloads,
			createdAt, updatedAt); err != nil {
			return fmt.Errorf("inserting package %s: %w", pkg.Name, err)
		}
		if _, err := ftsStmt.ExecContext(ctx, pkg.Name, pkg.Name, pubspec.Description); err != nil {
			return fmt.Errorf("indexing package %s: %w", pkg.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	committed = true
	return nil
}

func timeBounds(vs []models.PackageVersion) (oldest, newest time.Time) {
	oldest, newest = vs[0].CreatedAt, vs[0].CreatedAt
	for _, v := range vs[1:] {
		if v.CreatedAt.Before(oldest) {
			oldest = v.CreatedAt
		}
		if v.CreatedAt.After(newest) {
			newest = v.CreatedAt
		}
	}
	return oldest, newest
}

// pubspecPlatforms extracts the known platform tags a pubspec declares.
func pubspecPlatforms(p models.Pubspec) []string {
	var tags []string
	for tag := range p.Platforms {
		tag = strings.ToLower(tag)
		for _, known := range platforms.KnownPlatforms {
			if tag == known {
				tags = append(tags, tag)
				break
			}
		}
	}
	sort.Strings(tags)
	return tags
}

// joinPlatforms packs tags as " a b c " so required-platform filters can use
// a simple LIKE '% tag %' match.
func joinPlatforms(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return " " + strings.Join(tags, " ") + " "
}

func closeStmt(stmt *sql.Stmt, logger *log.Logger) {
	if err := stmt.Close(); err != nil {
		logger.Warnf("closing statement: %v", err)
	}
}
