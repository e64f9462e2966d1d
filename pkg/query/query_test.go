package query

import (
	"net/url"
	"testing"
)

func TestParsePackageScope(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		params     url.Values
		wantText   string
		wantPrefix string
	}{
		{
			name:       "embedded token becomes prefix",
			text:       "foo package:bar baz",
			params:     url.Values{},
			wantText:   "foo baz",
			wantPrefix: "bar",
		},
		{
			name:       "explicit prefix parameter wins",
			text:       "foo package:bar baz",
			params:     url.Values{"prefix": {"qux"}},
			wantText:   "foo baz",
			wantPrefix: "qux",
		},
		{
			name:       "wildcard marker stripped",
			text:       "package:http* client",
			params:     url.Values{},
			wantText:   "client",
			wantPrefix: "http",
		},
		{
			name:       "token casing normalized",
			text:       "PACKAGE:json utils",
			params:     url.Values{},
			wantText:   "utils",
			wantPrefix: "json",
		},
		{
			name:       "no token leaves text untouched",
			text:       "just plain text",
			params:     url.Values{},
			wantText:   "just plain text",
			wantPrefix: "",
		},
		{
			name:       "whitespace collapsed after stripping",
			text:       "  foo   package:bar   baz  ",
			params:     url.Values{},
			wantText:   "foo baz",
			wantPrefix: "bar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Parse(tt.text, tt.params)
			if q.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", q.Text, tt.wantText)
			}
			if q.PackagePrefix != tt.wantPrefix {
				t.Errorf("PackagePrefix = %q, want %q", q.PackagePrefix, tt.wantPrefix)
			}
		})
	}
}

func TestParseOrder(t *testing.T) {
	q := Parse("", url.Values{"sort": {"updated"}})
	if q.Order != OrderUpdated {
		t.Errorf("Order = %v, want OrderUpdated", q.Order)
	}

	q = Parse("", url.Values{"sort": {"nonsense"}})
	if q.Order != OrderTop {
		t.Errorf("Order = %v, want OrderTop for unknown sort", q.Order)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		param url.Values
		want  bool
	}{
		{"empty query rejected", "", url.Values{}, false},
		{"whitespace-only text rejected", "   ", url.Values{}, false},
		{"text accepted", "http client", url.Values{}, true},
		{"prefix alone accepted", "", url.Values{"prefix": {"http"}}, true},
		{"non-default order accepted", "", url.Values{"sort": {"updated"}}, true},
		{"platform filter accepted", "", url.Values{"platforms": {"web"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Parse(tt.text, tt.param)
			if got := q.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"absent", "", 1},
		{"valid", "7", 7},
		{"zero", "0", 1},
		{"negative", "-3", 1},
		{"garbage", "banana", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := url.Values{}
			if tt.raw != "" {
				params.Set("page", tt.raw)
			}
			if got := ParsePage(params); got != tt.want {
				t.Errorf("ParsePage(page=%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}
