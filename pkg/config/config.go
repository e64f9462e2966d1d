package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

// Cache backend selection values for CacheConfig.Type.
const (
	CacheNone      = "none"
	CacheMemory    = "memory"
	CacheMemcached = "memcached"
)

type Config struct {
	ListenHost string `toml:"listen_host"`
	ListenPort string `toml:"listen_port"`

	// DatabasePath is the SQLite package index location.
	DatabasePath string `toml:"database_path"`

	// DownloadBaseURL is prepended to package archive paths.
	DownloadBaseURL string `toml:"download_base_url"`

	// PageSize is the number of results per listing page.
	PageSize int `toml:"page_size"`

	// MaxPageLinks bounds the pagination link window width.
	MaxPageLinks int `toml:"max_page_links"`

	// TrackerCapacity is the latency tracker sample window size.
	TrackerCapacity int `toml:"tracker_capacity"`

	// GithubToken enables repository metadata on package pages when set.
	GithubToken string `toml:"github_token,omitempty"`

	// FeedPollInterval controls how often the live feed poller checks for
	// newly published versions.
	FeedPollInterval Duration `toml:"feed_poll_interval"`

	Cache CacheConfig `toml:"cache"`
}

type CacheConfig struct {
	// Type selects the render-cache backend: "none", "memory" or
	// "memcached".
	Type string `toml:"type"`

	// MemcachedAddr is the memcached server address, used when Type is
	// "memcached".
	MemcachedAddr string `toml:"memcached_addr,omitempty"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	dataDir, err := GetDefaultDataDir()
	if err != nil {
		return nil, fmt.Errorf("getting default data directory: %w", err)
	}
	return &Config{
		ListenHost:       "localhost",
		ListenPort:       "8080",
		DatabasePath:     filepath.Join(dataDir, "packages.db"),
		DownloadBaseURL:  "https://storage.example.com/packages",
		PageSize:         10,
		MaxPageLinks:     11,
		TrackerCapacity:  100,
		FeedPollInterval: Duration{30 * time.Second},
		Cache:            CacheConfig{Type: CacheMemory},
	}, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	defaults, err := GetDefaultConfig()
	if err != nil {
		return nil, err
	}
	if config.ListenHost == "" {
		config.ListenHost = defaults.ListenHost
	}
	if config.ListenPort == "" {
		config.ListenPort = defaults.ListenPort
	}
	if config.DatabasePath == "" {
		config.DatabasePath = defaults.DatabasePath
	}
	if config.DownloadBaseURL == "" {
		config.DownloadBaseURL = defaults.DownloadBaseURL
	}
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.MaxPageLinks <= 0 {
		config.MaxPageLinks = defaults.MaxPageLinks
	}
	if config.TrackerCapacity <= 0 {
		config.TrackerCapacity = defaults.TrackerCapacity
	}
	if config.FeedPollInterval.Duration == 0 {
		config.FeedPollInterval = defaults.FeedPollInterval
	}
	if config.Cache.Type == "" {
		config.Cache.Type = defaults.Cache.Type
	}

	switch config.Cache.Type {
	case CacheNone, CacheMemory, CacheMemcached:
	default:
		return nil, fmt.Errorf("unknown cache type %q", config.Cache.Type)
	}
	if config.Cache.Type == CacheMemcached && config.Cache.MemcachedAddr == "" {
		return nil, fmt.Errorf("cache type %q requires memcached_addr", CacheMemcached)
	}

	return &config, nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the annotated sample configuration, with the
// database path pointed at the user's data directory.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	rendered := strings.Replace(configTemplate, "/home/user/.local/share/pubweb/packages.db", c.DatabasePath, 1)
	return os.WriteFile(configPath, []byte(rendered), 0644)
}

// ListenAddr returns the host:port the server binds to.
func (c *Config) ListenAddr() string {
	return c.ListenHost + ":" + c.ListenPort
}

// GetDefaultDataDir returns the default directory for the package index.
func GetDefaultDataDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "pubweb")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating data directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetConfigDir returns the configuration directory for the frontend.
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "pubweb")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
