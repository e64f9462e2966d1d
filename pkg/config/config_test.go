package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr() != "localhost:8080" {
		t.Errorf("ListenAddr = %q, want localhost:8080", cfg.ListenAddr())
	}
	if cfg.PageSize != 10 || cfg.MaxPageLinks != 11 {
		t.Errorf("paging defaults = %d/%d, want 10/11", cfg.PageSize, cfg.MaxPageLinks)
	}
	if cfg.TrackerCapacity != 100 {
		t.Errorf("TrackerCapacity = %d, want 100", cfg.TrackerCapacity)
	}
	if cfg.Cache.Type != CacheMemory {
		t.Errorf("Cache.Type = %q, want %q", cfg.Cache.Type, CacheMemory)
	}
}

func TestLoadConfigFillsMissingFields(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
listen_port = "9000"
database_path = "/tmp/test-packages.db"
feed_poll_interval = "5s"

[cache]
type = "none"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenPort != "9000" {
		t.Errorf("ListenPort = %q, want 9000", cfg.ListenPort)
	}
	if cfg.ListenHost != "localhost" {
		t.Errorf("ListenHost = %q, want default localhost", cfg.ListenHost)
	}
	if cfg.FeedPollInterval.Duration != 5*time.Second {
		t.Errorf("FeedPollInterval = %v, want 5s", cfg.FeedPollInterval.Duration)
	}
	if cfg.PageSize != 10 {
		t.Errorf("PageSize = %d, want default 10", cfg.PageSize)
	}
	if cfg.Cache.Type != CacheNone {
		t.Errorf("Cache.Type = %q, want none", cfg.Cache.Type)
	}
}

func TestLoadConfigRejectsUnknownCacheType(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[cache]
type = "redis"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unknown cache type")
	}
}

func TestLoadConfigMemcachedRequiresAddr(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[cache]
type = "memcached"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for memcached without address")
	}
}

func TestSaveAndReloadConfig(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg, err := GetDefaultConfig()
	if err != nil {
		t.Fatalf("GetDefaultConfig: %v", err)
	}
	cfg.ListenPort = "9999"
	cfg.FeedPollInterval = Duration{42 * time.Second}

	if err := cfg.SaveConfig(path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.ListenPort != "9999" {
		t.Errorf("ListenPort = %q, want 9999", loaded.ListenPort)
	}
	if loaded.FeedPollInterval.Duration != 42*time.Second {
		t.Errorf("FeedPollInterval = %v, want 42s", loaded.FeedPollInterval.Duration)
	}
}

func TestSaveTemplateConfig(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := GetDefaultConfig()
	if err != nil {
		t.Fatalf("GetDefaultConfig: %v", err)
	}
	if err := cfg.SaveTemplateConfig(path); err != nil {
		t.Fatalf("SaveTemplateConfig: %v", err)
	}

	// The template must itself be loadable.
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("template config does not parse: %v", err)
	}
	// The placeholder database path must be rewritten to this instance's
	// data directory, not left pointing at /home/user.
	want := filepath.Join(dataHome, "pubweb", "packages.db")
	if loaded.DatabasePath != want {
		t.Errorf("DatabasePath = %q, want %q", loaded.DatabasePath, want)
	}
}
