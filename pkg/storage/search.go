package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkustermann/pub-dartlang-dart/pkg/models"
	"github.com/mkustermann/pub-dartlang-dart/pkg/query"
)

// optionalPlatformBoost is added to a package's score per optional platform
// tag it supports. Small relative to typical bm25 spreads so it reorders
// near-ties only.
const optionalPlatformBoost = 0.5

// Search ranks packages against a normalized query using the FTS5 index.
// Relevance order uses bm25; the recently-updated order sorts by update
// time. Package-prefix and required-platform filters narrow the candidate
// set; optional platform tags boost the score without filtering. The caller
// guarantees the query is valid (see query.SearchQuery).
func (s *Store) Search(ctx context.Context, q query.SearchQuery) (*models.SearchResult, error) {
	var (
		joins      []string
		conditions []string
		args       []any
	)

	hasText := strings.TrimSpace(q.Text) != ""
	if hasText {
		joins = append(joins, "JOIN packages_fts ON packages_fts.rowid = p.rowid")
		conditions = append(conditions, "packages_fts MATCH ?")
		args = append(args, escapeFTS5Query(q.Text))
	}
	if q.PackagePrefix != "" {
		conditions = append(conditions, "p.name LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(q.PackagePrefix)+"%")
	}
	for _, tag := range q.Platforms.Required {
		conditions = append(conditions, "p.platforms LIKE ?")
		args = append(args, "% "+tag+" %")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}
	joinClause := strings.Join(joins, " ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM packages p %s %s", joinClause, whereClause)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting search results: %w", err)
	}

	scoreExpr := "0.0"
	if hasText {
		// bm25 is smaller-is-better; negate so higher scores rank first.
		scoreExpr = "-bm25(packages_fts)"
	}
	var boostArgs []any
	for _, tag := range q.Platforms.Optional {
		scoreExpr += fmt.Sprintf(" + (CASE WHEN p.platforms LIKE ? THEN %g ELSE 0.0 END)", optionalPlatformBoost)
		boostArgs = append(boostArgs, "% "+tag+" %")
	}

	orderClause := "ORDER BY p.downloads DESC, p.name ASC"
	if hasText || len(boostArgs) > 0 {
		orderClause = "ORDER BY score DESC, p.downloads DESC, p.name ASC"
	}
	if q.Order == query.OrderUpdated {
		orderClause = "ORDER BY p.updated_at DESC, p.name ASC"
	}

	pageQuery := fmt.Sprintf(`
		SELECT p.name, %s AS score
		FROM packages p %s
		%s
		%s
		LIMIT ? OFFSET ?
	`, scoreExpr, joinClause, whereClause, orderClause)
	pageArgs := append(append([]any{}, boostArgs...), args...)
	pageArgs = append(pageArgs, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, pageQuery, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("searching packages: %w", err)
	}
	defer closeRows(rows, s.logger)

	result := &models.SearchResult{TotalCount: total}
	for rows.Next() {
		var score models.PackageScore
		if err := rows.Scan(&score.PackageName, &score.Score); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		result.Scores = append(result.Scores, score)
	}
	return result, rows.Err()
}

// escapeFTS5Query quotes each whitespace-separated term so user input cannot
// inject FTS5 operators; terms combine with the implicit AND.
func escapeFTS5Query(text string) string {
	terms := strings.Fields(text)
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// escapeLike escapes LIKE wildcards in user-supplied prefixes.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
