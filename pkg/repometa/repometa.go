// Package repometa fetches source-repository metadata (stars, description)
// for display on package pages. The fetcher is optional: a nil Fetcher turns
// the feature off, and fetch failures degrade to absent metadata rather than
// failing the page.
package repometa

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"

	"github.com/mkustermann/pub-dartlang-dart/pkg/log"
)

// RepositoryInfo is the subset of repository metadata a package page shows.
type RepositoryInfo struct {
	FullName    string
	Description string
	Stars       int
	URL         string
}

// Fetcher resolves a repository URL from a pubspec into metadata. A nil
// result with nil error means the URL is not supported (e.g. not GitHub).
type Fetcher interface {
	Fetch(ctx context.Context, repoURL string) (*RepositoryInfo, error)
}

// GitHubFetcher resolves github.com repository URLs through the GitHub API.
type GitHubFetcher struct {
	client *github.Client
	logger *log.Logger
}

// NewGitHubFetcher creates a fetcher. An empty token yields an
// unauthenticated client with the correspondingly low rate limit.
func NewGitHubFetcher(ctx context.Context, token string) *GitHubFetcher {
	var client *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = github.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		client = github.NewClient(nil)
	}
	return &GitHubFetcher{
		client: client,
		logger: log.ForComponent("repometa"),
	}
}

// Fetch returns metadata for a github.com repository URL, or (nil, nil) for
// URLs it cannot resolve.
func (f *GitHubFetcher) Fetch(ctx context.Context, repoURL string) (*RepositoryInfo, error) {
	owner, repo, ok := parseGitHubURL(repoURL)
	if !ok {
		return nil, nil
	}

	repository, _, err := f.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w", owner, repo, err)
	}

	return &RepositoryInfo{
		FullName:    repository.GetFullName(),
		Description: repository.GetDescription(),
		Stars:       repository.GetStargazersCount(),
		URL:         repository.GetHTMLURL(),
	}, nil
}

// parseGitHubURL extracts owner and repository from a github.com URL.
func parseGitHubURL(raw string) (owner, repo string, ok bool) {
	if raw == "" {
		return "", "", false
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(strings.TrimPrefix(u.Host, "www."), "github.com") {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}
