package validate

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/me2resh/me2resh-daily/internal/feed"
	"github.com/me2resh/me2resh-daily/internal/logger"
	"github.com/me2resh/me2resh-daily/internal/metrics"
)

const (
	probeTimeout = 10 * time.Second
	batchSize    = 5
)

// Result is a probed candidate. Items that fail the probe are excluded from
// downstream stages, not merely flagged.
type Result struct {
	Item       feed.Item
	HTTPStatus int
	CheckedAt  time.Time
	OK         bool
}

// Prober checks candidate reachability with HEAD requests, falling back to
// GET when HEAD is refused. Probes run in batches of five so a scan never
// hammers a single host or exhausts sockets.
type Prober struct {
	client *http.Client
}

func NewProber() *Prober {
	return &Prober{
		client: &http.Client{Timeout: probeTimeout},
	}
}

// Probe validates all items and returns only the reachable ones, preserving
// input order. 2xx counts as valid; everything else (4xx, 5xx, network error,
// timeout) drops the item.
func (p *Prober) Probe(ctx context.Context, items []feed.Item) []feed.Item {
	kept := make([]feed.Item, 0, len(items))

	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		results := make([]Result, len(batch))
		done := make(chan int, len(batch))
		for i, item := range batch {
			go func(i int, item feed.Item) {
				results[i] = p.probeOne(ctx, item)
				done <- i
			}(i, item)
		}
		for range batch {
			<-done
		}

		for _, r := range results {
			if r.OK {
				kept = append(kept, r.Item)
			} else {
				logger.Debug("validate: dropping unreachable item",
					"url", r.Item.SourceURL, "status", r.HTTPStatus)
				metrics.Global.IncrementProbesFailed()
			}
		}
	}

	logger.Info("validate: probes settled", "checked", len(items), "kept", len(kept))
	return kept
}

func (p *Prober) probeOne(ctx context.Context, item feed.Item) Result {
	res := Result{Item: item, CheckedAt: time.Now()}

	status, err := p.request(ctx, http.MethodHead, item.SourceURL, nil)
	if err != nil || status >= 400 {
		// Some hosts reject HEAD outright; retry with GET before giving up.
		status, err = p.request(ctx, http.MethodGet, item.SourceURL, &res.Item)
	}
	if err != nil {
		return res
	}

	res.HTTPStatus = status
	res.OK = status >= 200 && status < 300
	res.Item.SourceURL = item.SourceURL
	return res
}

// request performs a single probe. On GET, when the candidate arrived without
// a title (research citations sometimes do), the page <title> is used to
// backfill it.
func (p *Prober) request(ctx context.Context, method, url string, backfill *feed.Item) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "me2resh-daily/1.0 (+link check)")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if method == http.MethodGet && backfill != nil && strings.TrimSpace(backfill.Title) == "" &&
		resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if doc, derr := goquery.NewDocumentFromReader(resp.Body); derr == nil {
			if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
				backfill.Title = title
			}
		}
	}

	return resp.StatusCode, nil
}
