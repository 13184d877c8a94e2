package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(title, link string, published *time.Time) *gofeed.Item {
	return &gofeed.Item{
		Title:           title,
		Link:            link,
		PublishedParsed: published,
	}
}

func TestFromParsedFreshnessCutoff(t *testing.T) {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	fresh := now.Add(-2 * time.Hour)
	stale := now.Add(-48 * time.Hour)

	src := Source{Name: "test", URL: "https://example.com/feed"}
	items := FromParsed(src, []*gofeed.Item{
		entry("fresh story", "https://example.com/a", &fresh),
		entry("stale story", "https://example.com/b", &stale),
	}, 24*time.Hour, now)

	require.Len(t, items, 1)
	assert.Equal(t, "fresh story", items[0].Title)
}

func TestFromParsedUnparseableDateKept(t *testing.T) {
	// An entry without a parseable date is treated as fresh regardless of
	// the lookback window; malformed timestamps never drop an item.
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	src := Source{Name: "test", URL: "https://example.com/feed"}
	items := FromParsed(src, []*gofeed.Item{
		{Title: "undated story", Link: "https://example.com/a", Published: "not a date"},
	}, 1*time.Hour, now)

	require.Len(t, items, 1)
	assert.Equal(t, "undated story", items[0].Title)
	assert.Equal(t, now, items[0].PublishedAt)
}

func TestFromParsedDropsMalformedEntries(t *testing.T) {
	now := time.Now()
	src := Source{Name: "test"}

	items := FromParsed(src, []*gofeed.Item{
		{Title: "", Link: "https://example.com/a"},
		{Title: "no link", Link: ""},
		nil,
		{Title: "ok", Link: "https://example.com/b"},
	}, 24*time.Hour, now)

	require.Len(t, items, 1)
	assert.Equal(t, "ok", items[0].Title)
}

func TestFromParsedRawEntryCap(t *testing.T) {
	now := time.Now()
	var entries []*gofeed.Item
	for i := 0; i < 80; i++ {
		entries = append(entries, entry(fmt.Sprintf("story %d", i), fmt.Sprintf("https://example.com/%d", i), nil))
	}

	items := FromParsed(Source{Name: "test"}, entries, 24*time.Hour, now)
	assert.Len(t, items, maxRawEntries)
}

func TestFromParsedKeywordFilter(t *testing.T) {
	now := time.Now()
	src := Source{Name: "test", Keywords: []string{"kubernetes"}}

	items := FromParsed(src, []*gofeed.Item{
		entry("Kubernetes 1.34 released", "https://example.com/a", nil),
		entry("Gardening tips for autumn", "https://example.com/b", nil),
	}, 24*time.Hour, now)

	require.Len(t, items, 1)
	assert.Equal(t, "Kubernetes 1.34 released", items[0].Title)
}

func TestFromParsedCanonicalizesLinks(t *testing.T) {
	now := time.Now()
	items := FromParsed(Source{Name: "test"}, []*gofeed.Item{
		entry("story", "http://example.com/a/?utm_source=rss", nil),
	}, 24*time.Hour, now)

	require.Len(t, items, 1)
	assert.Equal(t, "https://example.com/a", items[0].SourceURL)
	assert.Equal(t, "example.com", items[0].Domain)
}

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Feed</title>
<link>https://example.com</link>
<item>
<title>Working story</title>
<link>https://example.com/working</link>
</item>
</channel>
</rss>`

func TestFetchAllSourceFailureIsolation(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFixture)
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	sources := []Source{
		{Name: "good", URL: good.URL, Type: "rss"},
		{Name: "bad", URL: bad.URL, Type: "rss"},
		{Name: "unreachable", URL: "http://127.0.0.1:1/feed", Type: "rss"},
	}

	sets := FetchAll(context.Background(), sources, 24*time.Hour)

	// One slice per source, in source order; failing sources yield empty
	// slices and never abort the scan.
	require.Len(t, sets, 3)
	require.Len(t, sets[0], 1)
	assert.Equal(t, "Working story", sets[0][0].Title)
	assert.Empty(t, sets[1])
	assert.Empty(t, sets[2])
}
