package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/me2resh/me2resh-daily/internal/classify"
)

const (
	defaultTimezone      = "Europe/London"
	defaultLookbackHours = 24
)

// Config is the declarative document for one scan run: sources, the
// classification rule tables, and scan-level settings. Built once at process
// start and passed by reference through constructors; never a global.
type Config struct {
	Scan     ScanConfig     `yaml:"scan"`
	Sources  []SourceConfig `yaml:"sources"`
	Rules    classify.Rules `yaml:"rules"`
	Research ResearchConfig `yaml:"research"`
	Email    EmailConfig    `yaml:"email"`
	Archive  ArchiveConfig  `yaml:"archive"`

	location *time.Location
}

// ScanConfig holds run-wide settings.
type ScanConfig struct {
	Timezone      string          `yaml:"timezone"`
	LookbackHours int             `yaml:"lookbackHours"`
	ValidateLinks bool            `yaml:"validateLinks"`
	TitleDedup    bool            `yaml:"titleDedup"`
	Allowlist     AllowlistConfig `yaml:"allowlist"`
}

// AllowlistConfig restricts candidates to curated hosts when enabled.
type AllowlistConfig struct {
	Enabled bool     `yaml:"enabled"`
	Hosts   []string `yaml:"hosts"`
}

// SourceConfig describes one feed.
type SourceConfig struct {
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	Type     string   `yaml:"type"`
	Keywords []string `yaml:"keywords"`
}

// ResearchConfig wires the web-research collaborator.
type ResearchConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Model          string `yaml:"model"`
	MaxCallsPerDay int    `yaml:"maxCallsPerDay"`
	APIKey         string `yaml:"-"` // env only, never in the file
}

// EmailConfig describes the outbound report email.
type EmailConfig struct {
	Enabled  bool     `yaml:"enabled"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Subject  string   `yaml:"subject"`
	SMTPHost string   `yaml:"smtpHost"`
	SMTPPort int      `yaml:"smtpPort"`
	Username string   `yaml:"-"` // env only
	Password string   `yaml:"-"` // env only
}

// ArchiveConfig selects where finished reports are stored.
type ArchiveConfig struct {
	Mode     string `yaml:"mode"` // "file", "postgres" or "off"
	FilePath string `yaml:"filePath"`
	DSN      string `yaml:"-"` // env only
}

// Load reads the YAML config file, applies env overrides and validates.
// A missing path loads pure defaults; an unreadable or invalid document is a
// hard error, classification cannot run without rules.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: cannot read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: cannot parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Scan: ScanConfig{
			Timezone:      defaultTimezone,
			LookbackHours: defaultLookbackHours,
			ValidateLinks: false,
			TitleDedup:    true,
		},
		Sources: []SourceConfig{
			{Name: "AWS What's New", URL: "https://aws.amazon.com/about-aws/whats-new/recent/feed/", Type: "rss"},
			{Name: "NIST NVD", URL: "https://nvd.nist.gov/feeds/xml/cve/misc/nvd-rss-analyzed.xml", Type: "rss"},
			{Name: "Hacker News Front Page", URL: "https://hnrss.org/frontpage", Type: "rss"},
		},
		Rules: classify.DefaultRules(),
		Research: ResearchConfig{
			Enabled:        false,
			Model:          "gemini-1.5-flash",
			MaxCallsPerDay: 3,
		},
		Email: EmailConfig{
			Enabled:  false,
			Subject:  "Daily Brief",
			SMTPPort: 587,
		},
		Archive: ArchiveConfig{
			Mode:     "file",
			FilePath: "reports",
		},
	}
}

func (c *Config) applyEnvOverrides() {
	c.Research.APIKey = os.Getenv("GEMINI_API_KEY")
	c.Email.Username = os.Getenv("SMTP_USERNAME")
	c.Email.Password = os.Getenv("SMTP_PASSWORD")
	c.Archive.DSN = os.Getenv("DATABASE_DSN")

	if v := os.Getenv("LOOKBACK_HOURS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			c.Scan.LookbackHours = val
		}
	}
	if v := os.Getenv("VALIDATE_LINKS"); v != "" {
		c.Scan.ValidateLinks = v == "true"
	}
	if v := os.Getenv("ARCHIVE_MODE"); v != "" {
		c.Archive.Mode = v
	}
}

// Validate checks everything the run cannot recover from. Any error here is
// fatal at startup, before the first fetch.
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.Scan.Timezone)
	if err != nil {
		return fmt.Errorf("config: unknown timezone %q: %w", c.Scan.Timezone, err)
	}
	c.location = loc

	if c.Scan.LookbackHours <= 0 {
		return fmt.Errorf("config: lookbackHours must be positive, got %d", c.Scan.LookbackHours)
	}

	for i, src := range c.Sources {
		if src.Name == "" || src.URL == "" {
			return fmt.Errorf("config: source %d is missing name or url", i)
		}
	}

	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Research.Enabled && c.Research.APIKey == "" {
		return fmt.Errorf("config: research is enabled but GEMINI_API_KEY is not set")
	}

	if c.Email.Enabled {
		if c.Email.From == "" || len(c.Email.To) == 0 || c.Email.SMTPHost == "" {
			return fmt.Errorf("config: email is enabled but from/to/smtpHost are incomplete")
		}
	}

	switch c.Archive.Mode {
	case "file", "off":
	case "postgres":
		if c.Archive.DSN == "" {
			return fmt.Errorf("config: archive mode is postgres but DATABASE_DSN is not set")
		}
	default:
		return fmt.Errorf("config: unknown archive mode %q", c.Archive.Mode)
	}

	return nil
}

// Location resolves the configured timezone; Validate must have run.
func (c *Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Lookback returns the recency window as a duration.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.Scan.LookbackHours) * time.Hour
}
