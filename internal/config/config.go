package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the blog configuration loaded from blog.yaml.
type Config struct {
	Site  SiteConfig  `yaml:"site"`
	Paths PathsConfig `yaml:"paths"`
	Serve ServeConfig `yaml:"serve"`

	// ConfigPath is the file the configuration was loaded from. It is
	// tracked because the config file itself is a global build dependency.
	ConfigPath string `yaml:"-"`
}

// SiteConfig holds site-wide metadata used by templates and the feed.
type SiteConfig struct {
	Title       string `yaml:"title"`
	Author      string `yaml:"author"`
	Description string `yaml:"description,omitempty"`
	Keywords    string `yaml:"keywords,omitempty"`
	Language    string `yaml:"language,omitempty"`
	BaseURL     string `yaml:"base_url"`
	Email       string `yaml:"email,omitempty"`
	StartYear   int    `yaml:"start_year,omitempty"`
	Analytics   string `yaml:"analytics,omitempty"` // raw HTML injected into templates
	UTCOffset   int    `yaml:"utc_offset,omitempty"`
}

// PathsConfig holds every file-system location the builder reads or writes.
type PathsConfig struct {
	Content        string `yaml:"content"`
	About          string `yaml:"about"`
	JournalScratch string `yaml:"journal_scratch"`
	JournalArchive string `yaml:"journal_archive"`
	Doit           string `yaml:"doit"`
	Templates      string `yaml:"templates"`
	Dist           string `yaml:"dist"`
	HashStore      string `yaml:"hash_store"`
	History        string `yaml:"history,omitempty"` // sqlite build history; empty disables
}

// ServeConfig configures the watch-mode daemon.
type ServeConfig struct {
	Addr            string        `yaml:"addr,omitempty"`
	Debounce        time.Duration `yaml:"debounce,omitempty"`
	MaxDelay        time.Duration `yaml:"max_delay,omitempty"`
	RebuildInterval time.Duration `yaml:"rebuild_interval,omitempty"` // periodic full rebuild; 0 disables
	Metrics         bool          `yaml:"metrics,omitempty"`
}

// Load reads, expands and validates the configuration file.
func Load(configPath string) (*Config, error) {
	// Pick up .env if present; a missing file is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables in the YAML content (tokens, base URLs).
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
	}

	cfg.ConfigPath = configPath
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields that have no sensible default.
func (c *Config) Validate() error {
	if c.Site.Title == "" {
		return fmt.Errorf("config: site.title is required")
	}
	if c.Site.BaseURL == "" {
		return fmt.Errorf("config: site.base_url is required")
	}
	if c.Serve.Debounce < 0 || c.Serve.MaxDelay < 0 {
		return fmt.Errorf("config: serve debounce/max_delay must not be negative")
	}
	return nil
}

// YearRange returns the copyright year range, e.g. "2021-2026".
func (c *Config) YearRange() string {
	current := time.Now().Year()
	if c.Site.StartYear <= 0 || c.Site.StartYear >= current {
		return fmt.Sprintf("%d", current)
	}
	return fmt.Sprintf("%d-%d", c.Site.StartYear, current)
}

// Location returns the time zone used when parsing post dates.
func (c *Config) Location() *time.Location {
	if c.Site.UTCOffset == 0 {
		return time.Local
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.Site.UTCOffset), c.Site.UTCOffset*3600)
}
