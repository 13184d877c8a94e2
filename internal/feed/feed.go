package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/me2resh/me2resh-daily/internal/logger"
	"github.com/me2resh/me2resh-daily/internal/metrics"
	"github.com/me2resh/me2resh-daily/internal/urlutil"
)

// Feeds with more raw entries than this are truncated before filtering.
const maxRawEntries = 50

const fetchTimeout = 20 * time.Second

// Source describes one configured feed.
type Source struct {
	Name     string
	URL      string
	Type     string // "rss" is the reference implementation
	Keywords []string
}

// Item is a single candidate discovered from any source, prior to
// classification. SourceURL is always canonical.
type Item struct {
	Title       string    `json:"title"`
	SourceName  string    `json:"source_name"`
	SourceURL   string    `json:"source_url"`
	PublishedAt time.Time `json:"published_at"`
	Domain      string    `json:"domain"`
	Summary     string    `json:"summary,omitempty"`
}

// FetchAll pulls every configured source concurrently and returns one item
// slice per source, in source order. A failing source contributes an empty
// slice; it never aborts the scan.
func FetchAll(ctx context.Context, sources []Source, lookback time.Duration) [][]Item {
	results := make([][]Item, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i] = Fetch(ctx, src, lookback)
		}(i, src)
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	metrics.Global.AddItemsFetched(total)
	logger.Info("feed: fetch settled", "sources", len(sources), "items", total)

	return results
}

// Fetch retrieves one source and applies the freshness cutoff. Any fetch or
// parse failure is logged and yields zero items for that source.
func Fetch(ctx context.Context, src Source, lookback time.Duration) []Item {
	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	parser := gofeed.NewParser()
	parsed, err := parser.ParseURLWithContext(src.URL, fctx)
	if err != nil {
		logger.Warn("feed: source failed", "source", src.Name, "url", src.URL, "error", err)
		metrics.Global.IncrementSourcesFailed()
		return nil
	}

	items := FromParsed(src, parsed.Items, lookback, time.Now())
	logger.Debug("feed: source ok", "source", src.Name, "kept", len(items), "raw", len(parsed.Items))
	return items
}

// FromParsed converts raw gofeed entries into candidate items. Entries older
// than now-lookback are excluded, but an entry without a parseable date is
// treated as fresh and kept: recency filtering must never drop items solely
// because a publisher emits malformed timestamps.
func FromParsed(src Source, entries []*gofeed.Item, lookback time.Duration, now time.Time) []Item {
	if len(entries) > maxRawEntries {
		entries = entries[:maxRawEntries]
	}
	cutoff := now.Add(-lookback)

	var items []Item
	for _, entry := range entries {
		if entry == nil || strings.TrimSpace(entry.Title) == "" || strings.TrimSpace(entry.Link) == "" {
			logger.Debug("feed: malformed entry dropped", "source", src.Name)
			metrics.Global.IncrementMalformedDropped()
			continue
		}

		if len(src.Keywords) > 0 && !matchesKeywords(entry, src.Keywords) {
			continue
		}

		published := now
		hasDate := false
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
			hasDate = true
		} else if entry.UpdatedParsed != nil {
			published = *entry.UpdatedParsed
			hasDate = true
		}

		if hasDate && published.Before(cutoff) {
			continue
		}

		link := urlutil.Canonicalize(entry.Link)
		items = append(items, Item{
			Title:       strings.TrimSpace(entry.Title),
			SourceName:  src.Name,
			SourceURL:   link,
			PublishedAt: published,
			Domain:      urlutil.Domain(link),
			Summary:     strings.TrimSpace(entry.Description),
		})
	}

	return items
}

// matchesKeywords applies the per-source keyword filter against the entry
// title and description.
func matchesKeywords(entry *gofeed.Item, keywords []string) bool {
	text := strings.ToLower(entry.Title + " " + entry.Description)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
