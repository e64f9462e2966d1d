// Package versions orders package version collections and selects the
// distinguished "latest stable" and "latest dev" versions.
//
// Two orderings exist. Plain descending follows raw semantic-version
// precedence. Pub-style descending ranks every stable release above every
// pre-release, independent of numeric magnitude, so a package page never
// advertises "2.0.0-beta" as its latest version while "1.9.0" exists.
package versions

import (
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/mkustermann/pub-dartlang-dart/pkg/models"
)

type parsed struct {
	version models.PackageVersion
	sem     *semver.Version // nil when the version string does not parse
}

func parseAll(vs []models.PackageVersion) []parsed {
	out := make([]parsed, len(vs))
	for i, v := range vs {
		sem, err := semver.NewVersion(v.Version)
		if err != nil {
			sem = nil
		}
		out[i] = parsed{version: v, sem: sem}
	}
	return out
}

// sortWith stable-sorts a copy of vs using the given descending comparator.
// The input slice is never mutated; backend data is read-only here. Stability
// is a correctness property: identical version strings preserve their input
// relative order.
func sortWith(vs []models.PackageVersion, less func(a, b parsed) bool) []models.PackageVersion {
	ps := parseAll(vs)
	sort.SliceStable(ps, func(i, j int) bool { return less(ps[i], ps[j]) })
	out := make([]models.PackageVersion, len(ps))
	for i, p := range ps {
		out[i] = p.version
	}
	return out
}

// plainLess ranks by raw semantic-version precedence, newest first.
// Unparsable versions sort after all valid ones, keeping input order among
// themselves.
func plainLess(a, b parsed) bool {
	switch {
	case a.sem == nil:
		return false
	case b.sem == nil:
		return true
	}
	return a.sem.Compare(b.sem) > 0
}

// pubLess ranks stable releases above pre-releases regardless of magnitude,
// then by precedence within each class.
func pubLess(a, b parsed) bool {
	switch {
	case a.sem == nil:
		return false
	case b.sem == nil:
		return true
	}
	aPre := a.sem.Prerelease() != ""
	bPre := b.sem.Prerelease() != ""
	if aPre != bPre {
		return !aPre
	}
	return a.sem.Compare(b.sem) > 0
}

// devLess ranks by core version first; on a core tie the pre-release wins
// over the stable release, surfacing the highest version overall including
// pre-releases.
func devLess(a, b parsed) bool {
	switch {
	case a.sem == nil:
		return false
	case b.sem == nil:
		return true
	}
	if c := coreCompare(a.sem, b.sem); c != 0 {
		return c > 0
	}
	aPre := a.sem.Prerelease() != ""
	bPre := b.sem.Prerelease() != ""
	if aPre != bPre {
		return aPre
	}
	return a.sem.Compare(b.sem) > 0
}

func coreCompare(a, b *semver.Version) int {
	if a.Major() != b.Major() {
		return int(int64(a.Major()) - int64(b.Major()))
	}
	if a.Minor() != b.Minor() {
		return int(int64(a.Minor()) - int64(b.Minor()))
	}
	return int(int64(a.Patch()) - int64(b.Patch()))
}

// SortDescending returns the versions under plain descending order: raw
// semantic-version precedence, newest first. An empty input yields an empty
// result.
func SortDescending(vs []models.PackageVersion) []models.PackageVersion {
	return sortWith(vs, plainLess)
}

// SortPubDescending returns the versions under pub-style descending order:
// the newest stable release first, pre-releases ordered among themselves but
// never above any stable release.
func SortPubDescending(vs []models.PackageVersion) []models.PackageVersion {
	return sortWith(vs, pubLess)
}

// LatestStable selects the version a package page advertises: the first
// element of the pub-style descending order. When no stable release exists
// the highest pre-release is returned. Callers must guarantee at least one
// version exists; an empty input is a contract violation.
func LatestStable(vs []models.PackageVersion) models.PackageVersion {
	return SortPubDescending(vs)[0]
}

// LatestDev selects the highest version overall, pre-releases included: on a
// core-version tie the pre-release takes priority over the stable release.
// Callers must guarantee at least one version exists.
func LatestDev(vs []models.PackageVersion) models.PackageVersion {
	return sortWith(vs, devLess)[0]
}

// IsPrerelease reports whether a version string denotes a pre-release.
// Unparsable versions count as pre-releases so they are never advertised as
// stable.
func IsPrerelease(version string) bool {
	sem, err := semver.NewVersion(version)
	if err != nil {
		return true
	}
	return sem.Prerelease() != ""
}
