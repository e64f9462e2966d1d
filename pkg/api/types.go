package api

import "time"

// PackageSummary is the list-shape serialization of a package.
type PackageSummary struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	LatestVersion string    `json:"latest_version"`
	Platforms     []string  `json:"platforms"`
	Downloads     int64     `json:"downloads"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// VersionResponse is one package version with its archive location.
type VersionResponse struct {
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	DownloadURL string    `json:"download_url"`
}

// ListPackagesResponse is a page of packages ordered by update recency.
type ListPackagesResponse struct {
	Packages []PackageSummary `json:"packages"`
	Count    int              `json:"count"`
	Page     int              `json:"page"`
}

// SearchResultEntry pairs a package summary with its ranking score.
type SearchResultEntry struct {
	PackageSummary
	Score float64 `json:"score"`
}

// SearchResponse is one page of ranked search results.
type SearchResponse struct {
	Query      string              `json:"query"`
	Results    []SearchResultEntry `json:"results"`
	Count      int                 `json:"count"`
	TotalCount int                 `json:"total_count"`
	Page       int                 `json:"page"`
	Limit      int                 `json:"limit"`
	HasMore    bool                `json:"has_more"`
}

// PackageResponse is the detail serialization of a package.
type PackageResponse struct {
	PackageSummary
	Homepage   string            `json:"homepage,omitempty"`
	Repository string            `json:"repository,omitempty"`
	Versions   []VersionResponse `json:"versions"`
}

// ListVersionsResponse is the full version history of one package.
type ListVersionsResponse struct {
	Package  string            `json:"package"`
	Versions []VersionResponse `json:"versions"`
	Count    int               `json:"count"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse answers the liveness probe.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// LatencyStats reports percentiles of one page family in milliseconds.
// Pointers distinguish "no samples yet" from a zero reading.
type LatencyStats struct {
	Count  int      `json:"count"`
	Median *float64 `json:"median_ms,omitempty"`
	P90    *float64 `json:"p90_ms,omitempty"`
	P99    *float64 `json:"p99_ms,omitempty"`
}

// StatusResponse is the diagnostics snapshot.
type StatusResponse struct {
	Version       string                  `json:"version"`
	CacheEnabled  bool                    `json:"cache_enabled"`
	FeedListeners int                     `json:"feed_listeners"`
	Latencies     map[string]LatencyStats `json:"latencies"`
	Storage       map[string]int64        `json:"storage,omitempty"`
}
