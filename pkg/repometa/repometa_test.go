package repometa

import "testing"

func TestParseGitHubURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
		wantOK    bool
	}{
		{"plain repo", "https://github.com/dart-lang/http", "dart-lang", "http", true},
		{"git suffix", "https://github.com/dart-lang/http.git", "dart-lang", "http", true},
		{"deep path", "https://github.com/dart-lang/http/tree/main/pkgs", "dart-lang", "http", true},
		{"www prefix", "https://www.github.com/dart-lang/http", "dart-lang", "http", true},
		{"other host", "https://gitlab.com/group/project", "", "", false},
		{"owner only", "https://github.com/dart-lang", "", "", false},
		{"empty", "", "", "", false},
		{"not a url", "://bad", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, ok := parseGitHubURL(tt.url)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if owner != tt.wantOwner || repo != tt.wantRepo {
				t.Errorf("parseGitHubURL(%q) = %q/%q, want %q/%q",
					tt.url, owner, repo, tt.wantOwner, tt.wantRepo)
			}
		})
	}
}
