// Package query turns raw search input (free text plus URL parameters) into
// the structured SearchQuery the search service consumes. Parsing is a pure
// transformation: malformed input degrades to defaults instead of failing
// the request.
package query

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/mkustermann/pub-dartlang-dart/pkg/platforms"
)

// Order selects the result ordering of a search.
type Order int

const (
	// OrderTop is the default relevance ordering.
	OrderTop Order = iota
	// OrderUpdated orders by most recent package update.
	OrderUpdated
)

// packageScopeRe matches an embedded "package:<identifier>" token, optionally
// followed by a wildcard marker. The identifier is restricted to lowercase
// letters, digits and underscore; the match itself is case-insensitive.
var packageScopeRe = regexp.MustCompile(`(?i)package:([a-z0-9_]+)\*?`)

// whitespaceRe collapses runs of whitespace left behind by token stripping.
var whitespaceRe = regexp.MustCompile(`\s+`)

// SearchQuery is the immutable, normalized form of one search request.
// Constructed once per request and never mutated afterwards.
type SearchQuery struct {
	Text          string
	Offset        int
	Limit         int
	Platforms     platforms.Predicate
	PackagePrefix string
	Order         Order
}

// IsValid reports whether the query is worth sending to the search engine.
// An all-empty query (no text, no prefix, default order, empty predicate) is
// rejected before reaching the engine.
func (q SearchQuery) IsValid() bool {
	if strings.TrimSpace(q.Text) != "" {
		return true
	}
	if q.PackagePrefix != "" {
		return true
	}
	if q.Order != OrderTop {
		return true
	}
	return !q.Platforms.IsEmpty()
}

// Parse normalizes raw query text and URL parameters into a SearchQuery.
// Offset and Limit are left at zero; the caller derives them from the page
// number (see ParsePage) and its page-size constant.
//
// A "package:<identifier>" token embedded in the text becomes the package
// prefix filter unless an explicit "prefix" parameter was supplied; either
// way the token is stripped from the text and whitespace is collapsed.
func Parse(text string, params url.Values) SearchQuery {
	q := SearchQuery{
		PackagePrefix: params.Get("prefix"),
		Platforms:     platforms.ParsePredicate(params),
		Order:         parseOrder(params.Get("sort")),
	}

	if m := packageScopeRe.FindStringSubmatch(text); m != nil {
		if q.PackagePrefix == "" {
			q.PackagePrefix = strings.ToLower(m[1])
		}
		text = packageScopeRe.ReplaceAllString(text, " ")
	}
	q.Text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))

	return q
}

// ParsePage extracts the 1-based page number from URL parameters. Absent,
// non-numeric or non-positive values all fall back to page 1; malformed
// input never fails the request.
func ParsePage(params url.Values) int {
	raw := params.Get("page")
	if raw == "" {
		return 1
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func parseOrder(raw string) Order {
	if raw == "updated" {
		return OrderUpdated
	}
	return OrderTop
}

// String returns a human-readable name for the order, used in links and logs.
func (o Order) String() string {
	if o == OrderUpdated {
		return "updated"
	}
	return "top"
}
