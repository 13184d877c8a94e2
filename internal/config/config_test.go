package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "Europe/London", cfg.Scan.Timezone)
	assert.Equal(t, 24, cfg.Scan.LookbackHours)
	assert.True(t, cfg.Scan.TitleDedup)
	assert.False(t, cfg.Research.Enabled)
	assert.Equal(t, "file", cfg.Archive.Mode)
	assert.NotEmpty(t, cfg.Sources)
	assert.Equal(t, 24*time.Hour, cfg.Lookback())
}

func TestLoadUnreadablePathFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	doc := `
scan:
  timezone: America/New_York
  lookbackHours: 48
  validateLinks: true
sources:
  - name: Custom Feed
    url: https://example.com/feed
    type: rss
    keywords: [kubernetes]
email:
  enabled: false
  subject: Morning Signals
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "America/New_York", cfg.Scan.Timezone)
	assert.Equal(t, "America/New_York", cfg.Location().String())
	assert.Equal(t, 48, cfg.Scan.LookbackHours)
	assert.True(t, cfg.Scan.ValidateLinks)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "Custom Feed", cfg.Sources[0].Name)
	assert.Equal(t, "Morning Signals", cfg.Email.Subject)

	// Untouched parts of the document keep their defaults.
	assert.Equal(t, 5, cfg.Rules.MaxItemsPerCategory)
}

func TestLoadMalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan: [not: a: mapping"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOOKBACK_HOURS", "6")
	t.Setenv("VALIDATE_LINKS", "true")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Scan.LookbackHours)
	assert.True(t, cfg.Scan.ValidateLinks)
	assert.Equal(t, "test-key", cfg.Research.APIKey)
}

func TestEnvOverrideIgnoresInvalidLookback(t *testing.T) {
	t.Setenv("LOOKBACK_HOURS", "minus four")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.Scan.LookbackHours)
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown timezone", func(c *Config) { c.Scan.Timezone = "Mars/Olympus" }},
		{"non-positive lookback", func(c *Config) { c.Scan.LookbackHours = 0 }},
		{"source missing url", func(c *Config) { c.Sources[0].URL = "" }},
		{"broken rules", func(c *Config) { c.Rules.MaxItemsPerCategory = 0 }},
		{"research without key", func(c *Config) { c.Research.Enabled = true; c.Research.APIKey = "" }},
		{"email incomplete", func(c *Config) { c.Email.Enabled = true }},
		{"postgres without dsn", func(c *Config) { c.Archive.Mode = "postgres"; c.Archive.DSN = "" }},
		{"unknown archive mode", func(c *Config) { c.Archive.Mode = "s3" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
