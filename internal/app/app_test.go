package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me2resh/me2resh-daily/internal/config"
	"github.com/me2resh/me2resh-daily/internal/feed"
	"github.com/me2resh/me2resh-daily/internal/storage"
	"github.com/me2resh/me2resh-daily/internal/urlutil"
)

func TestFilterAllowed(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Scan.Allowlist = config.AllowlistConfig{Enabled: true, Hosts: []string{"aws.amazon.com"}}

	a := &App{
		cfg:       cfg,
		allowlist: urlutil.NewAllowlist(true, cfg.Scan.Allowlist.Hosts),
	}

	items := []feed.Item{
		{Title: "kept", SourceURL: "https://aws.amazon.com/whats-new", PublishedAt: time.Now()},
		{Title: "dropped", SourceURL: "https://blog.example.com/post", PublishedAt: time.Now()},
	}

	kept := a.filterAllowed(items)
	require.Len(t, kept, 1)
	assert.Equal(t, "kept", kept[0].Title)
}

func TestFilterAllowedDisabledPassesThrough(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	a := &App{
		cfg:       cfg,
		allowlist: urlutil.NewAllowlist(false, nil),
	}

	items := []feed.Item{{Title: "anything", SourceURL: "https://anywhere.example/post"}}
	assert.Len(t, a.filterAllowed(items), 1)
}

func TestNewArchiverModes(t *testing.T) {
	off, err := newArchiver(config.ArchiveConfig{Mode: "off"})
	require.NoError(t, err)
	assert.Nil(t, off)

	file, err := newArchiver(config.ArchiveConfig{Mode: "file", FilePath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &storage.FileArchive{}, file)
}
