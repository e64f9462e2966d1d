// Package platforms parses and represents the platform filter of a search
// request: which target platforms (flutter, server, web) a package must or
// should support to match.
package platforms

import (
	"net/url"
	"sort"
	"strings"
)

// KnownPlatforms lists the platform tags the registry understands. Tags
// outside this set are dropped during parsing.
var KnownPlatforms = []string{"flutter", "server", "web"}

// Predicate is a platform filter with required and optional tag sets. A
// package matches when it supports every required tag; optional tags only
// influence ranking. An empty predicate means "no platform filter".
type Predicate struct {
	Required []string
	Optional []string
}

// ParsePredicate builds a Predicate from repeated "platforms" URL parameters.
// Each parameter may hold one tag or several separated by spaces or commas.
// A trailing '!' marks a tag as required; otherwise it is optional. Unknown
// tags are ignored, duplicates collapse, and the resulting sets are sorted so
// a predicate serializes canonically.
func ParsePredicate(params url.Values) Predicate {
	var p Predicate
	seenRequired := make(map[string]bool)
	seenOptional := make(map[string]bool)

	for _, raw := range params["platforms"] {
		for _, field := range strings.FieldsFunc(raw, func(r rune) bool {
			return r == ' ' || r == ','
		}) {
			tag := strings.ToLower(strings.TrimSpace(field))
			required := strings.HasSuffix(tag, "!")
			tag = strings.TrimSuffix(tag, "!")
			if !isKnown(tag) {
				continue
			}
			if required {
				seenRequired[tag] = true
			} else {
				seenOptional[tag] = true
			}
		}
	}

	for tag := range seenRequired {
		p.Required = append(p.Required, tag)
		// Required subsumes optional for the same tag.
		delete(seenOptional, tag)
	}
	for tag := range seenOptional {
		p.Optional = append(p.Optional, tag)
	}
	sort.Strings(p.Required)
	sort.Strings(p.Optional)
	return p
}

// IsEmpty reports whether the predicate carries no filter at all.
func (p Predicate) IsEmpty() bool {
	return len(p.Required) == 0 && len(p.Optional) == 0
}

// Matches reports whether a package supporting the given tags satisfies the
// required part of the predicate.
func (p Predicate) Matches(supported []string) bool {
	for _, req := range p.Required {
		found := false
		for _, tag := range supported {
			if tag == req {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// String renders the predicate in the same form ParsePredicate accepts,
// suitable for rebuilding query parameters and links.
func (p Predicate) String() string {
	parts := make([]string, 0, len(p.Required)+len(p.Optional))
	for _, tag := range p.Required {
		parts = append(parts, tag+"!")
	}
	parts = append(parts, p.Optional...)
	return strings.Join(parts, " ")
}

func isKnown(tag string) bool {
	for _, known := range KnownPlatforms {
		if tag == known {
			return true
		}
	}
	return false
}
