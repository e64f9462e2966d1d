package frontend

import (
	"net/url"
	"strconv"

	"github.com/mkustermann/pub-dartlang-dart/pkg/models"
	"github.com/mkustermann/pub-dartlang-dart/pkg/pagination"
	"github.com/mkustermann/pub-dartlang-dart/pkg/repometa"
	"github.com/mkustermann/pub-dartlang-dart/pkg/search"
)

// BasePage carries the fields every page template renders.
type BasePage struct {
	Title   string
	Version string
}

// IndexPage backs the landing page.
type IndexPage struct {
	BasePage
	LatestPackages []models.Package
	LatestVersions []models.PackageVersion
}

// PageLink is one entry in the pagination link row.
type PageLink struct {
	Page    int
	URL     string
	Current bool
}

// SearchPage backs the package listing / search results page.
type SearchPage struct {
	BasePage
	Query      string
	Sort       string
	Platforms  string
	Results    []search.PackageResult
	TotalCount int
	PageLinks  []PageLink
	HasPrev    bool
	HasNext    bool
	PrevURL    string
	NextURL    string
}

// VersionRow is one version entry on the package and versions pages.
type VersionRow struct {
	Version     string
	CreatedAt   string
	DownloadURL string
	Prerelease  bool
}

// PackagePage backs the package detail page.
type PackagePage struct {
	BasePage
	Package        models.Package
	Pubspec        models.Pubspec
	LatestStable   string
	LatestDev      string
	ShowDevVersion bool
	Versions       []VersionRow
	MoreVersions   bool
	Repository     *repometa.RepositoryInfo
}

// VersionsPage backs the full version listing of one package.
type VersionsPage struct {
	BasePage
	Package  models.Package
	Versions []VersionRow
}

// NotFoundPage backs the 404 page.
type NotFoundPage struct {
	BasePage
	Path string
}

// buildPageLinks renders the pagination window into concrete links by
// rewriting the page parameter of the current request URL.
func buildPageLinks(base *url.URL, w pagination.Window) []PageLink {
	links := make([]PageLink, 0, w.Rightmost-w.Leftmost+1)
	for _, p := range w.Pages() {
		links = append(links, PageLink{
			Page:    p,
			URL:     pageURL(base, p),
			Current: p == w.Current,
		})
	}
	return links
}

func pageURL(base *url.URL, page int) string {
	u := *base
	q := u.Query()
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	return u.RequestURI()
}
