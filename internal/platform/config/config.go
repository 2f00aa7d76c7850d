// Package config resolves the data directory layout and overlays config.yaml on defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
)

type Config struct {
	DataDir     string
	ConfigPath  string
	DBPath      string
	SnapshotDir string
	PluginDir   string

	Settings Settings

	FlushInterval time.Duration
	RecentWindow  time.Duration
	// Location decides where "today" starts.
	Location *time.Location
}

// Settings is the YAML-backed part of the configuration.
type Settings struct {
	Tracker       TrackerConfig `yaml:"tracker"`
	Store         string        `yaml:"store"`
	Listen        string        `yaml:"listen"`
	FlushInterval string        `yaml:"flush_interval"`
	RecentWindow  string        `yaml:"recent_window"`
	Timezone      string        `yaml:"timezone"`
	Logging       LoggingConfig `yaml:"logging"`
	Filter        FilterConfig  `yaml:"filter"`
}

type TrackerConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

type FilterConfig struct {
	PrefLangEnabled      bool            `yaml:"pref_lang_enabled"`
	TargetLanguage       string          `yaml:"target_language"`
	DomainsToTrack       map[string]bool `yaml:"domains_to_track"`
	DomainsToAlwaysTrack []string        `yaml:"domains_to_always_track"`
	BlacklistedKeywords  []string        `yaml:"blacklisted_keywords"`
}

// DefaultSettings returns the settings used when config.yaml is absent.
func DefaultSettings() Settings {
	return Settings{
		Tracker: TrackerConfig{
			Name:        "Immersion Time Tracker",
			Description: "Tracks time immersing in a language",
		},
		Store:         StoreSQLite,
		Listen:        "127.0.0.1:7345",
		FlushInterval: "10s",
		RecentWindow:  "72h",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Filter: FilterConfig{
			PrefLangEnabled: false,
			TargetLanguage:  "ja",
			DomainsToTrack: map[string]bool{
				"youtube.com":  true,
				"netflix.com":  true,
				"nicovideo.jp": true,
			},
		},
	}
}

func New(dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	cfg := Config{
		DataDir:     dataDir,
		ConfigPath:  filepath.Join(dataDir, "config.yaml"),
		DBPath:      filepath.Join(dataDir, "watchtime.db"),
		SnapshotDir: filepath.Join(dataDir, "snapshots"),
		PluginDir:   filepath.Join(dataDir, "plugins"),
		Settings:    DefaultSettings(),
	}

	data, err := os.ReadFile(cfg.ConfigPath)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg.Settings); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolve() error {
	flush, err := time.ParseDuration(c.Settings.FlushInterval)
	if err != nil {
		return fmt.Errorf("flush_interval: %w", err)
	}
	if flush <= 0 {
		return fmt.Errorf("flush_interval must be positive")
	}
	window, err := time.ParseDuration(c.Settings.RecentWindow)
	if err != nil {
		return fmt.Errorf("recent_window: %w", err)
	}
	if window <= 0 {
		return fmt.Errorf("recent_window must be positive")
	}
	switch c.Settings.Store {
	case StoreSQLite, StoreFile:
	default:
		return fmt.Errorf("unknown store: %q", c.Settings.Store)
	}
	if c.Settings.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	loc := time.Local
	if c.Settings.Timezone != "" {
		loc, err = time.LoadLocation(c.Settings.Timezone)
		if err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	c.Location = loc
	c.FlushInterval = flush
	c.RecentWindow = window
	return nil
}

// Marshal renders the effective settings as YAML.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c.Settings)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
