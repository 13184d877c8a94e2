package app

import (
	"context"
	"fmt"
	"time"

	"github.com/me2resh/me2resh-daily/internal/budget"
	"github.com/me2resh/me2resh-daily/internal/classify"
	"github.com/me2resh/me2resh-daily/internal/config"
	"github.com/me2resh/me2resh-daily/internal/feed"
	"github.com/me2resh/me2resh-daily/internal/logger"
	"github.com/me2resh/me2resh-daily/internal/mailer"
	"github.com/me2resh/me2resh-daily/internal/merge"
	"github.com/me2resh/me2resh-daily/internal/metrics"
	"github.com/me2resh/me2resh-daily/internal/report"
	"github.com/me2resh/me2resh-daily/internal/research"
	"github.com/me2resh/me2resh-daily/internal/urlutil"
	"github.com/me2resh/me2resh-daily/internal/validate"
)

// App wires the scan pipeline: fetch + research fan-out, merge barrier,
// classification, assembly, then the archive and email sinks.
type App struct {
	cfg       *config.Config
	allowlist *urlutil.Allowlist
	prober    *validate.Prober
	research  *research.Client
	budget    *budget.ResearchBudget
	archiver  Archiver
	mail      *mailer.Mailer
}

// New builds the application from validated configuration. Construction
// fails only on wiring errors (bad DSN, unreachable database); per-source
// runtime failures are handled inside Run.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		cfg:       cfg,
		allowlist: urlutil.NewAllowlist(cfg.Scan.Allowlist.Enabled, cfg.Scan.Allowlist.Hosts),
		prober:    validate.NewProber(),
		budget:    budget.New(cfg.Research.MaxCallsPerDay),
	}

	if cfg.Research.Enabled {
		client, err := research.NewClient(ctx, cfg.Research.APIKey, cfg.Research.Model)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.research = client
	}

	archiver, err := newArchiver(cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.archiver = archiver

	if cfg.Email.Enabled {
		a.mail = &mailer.Mailer{
			From:     cfg.Email.From,
			To:       cfg.Email.To,
			Subject:  cfg.Email.Subject,
			SMTPHost: cfg.Email.SMTPHost,
			SMTPPort: cfg.Email.SMTPPort,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
		}
	}

	return a, nil
}

// Close releases external clients.
func (a *App) Close() {
	if a.research != nil {
		a.research.Close()
	}
	if closer, ok := a.archiver.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("app: archiver close failed", "error", err)
		}
	}
}

// Run executes one scan and returns the assembled report. The report is
// always producible: source and research failures degrade to fewer items,
// and sink failures are logged without failing the run.
func (a *App) Run(ctx context.Context) (report.ScanResult, error) {
	start := time.Now()
	defer func() {
		metrics.Global.RecordScanDuration(time.Since(start))
		metrics.Global.SetLastRun()
	}()

	now := time.Now()
	lookback := a.cfg.Lookback()

	sources := make([]feed.Source, 0, len(a.cfg.Sources))
	for _, src := range a.cfg.Sources {
		sources = append(sources, feed.Source{
			Name:     src.Name,
			URL:      src.URL,
			Type:     src.Type,
			Keywords: src.Keywords,
		})
	}

	// Fan-out: feeds and the research collaborator run concurrently; the
	// merge below is the barrier that waits for both to settle.
	researchDone := make(chan []feed.Item, 1)
	go func() {
		researchDone <- a.runResearch(ctx, now)
	}()

	itemSets := feed.FetchAll(ctx, sources, lookback)
	itemSets = append(itemSets, <-researchDone)

	merged := merge.Merge(itemSets, merge.Options{TitleDedup: a.cfg.Scan.TitleDedup})
	merged = a.filterAllowed(merged)

	if a.cfg.Scan.ValidateLinks {
		merged = a.prober.Probe(ctx, merged)
	}

	sections := classify.Classify(merged, a.cfg.Rules, now)
	result := report.Assemble(now, a.cfg.Location(), sections, merged)

	if a.archiver != nil {
		if err := a.archiver.Store(result); err != nil {
			logger.Error("app: archive failed", "error", err)
			metrics.Global.SetError(err.Error())
		} else {
			metrics.Global.IncrementReportsArchived()
		}
	}

	if a.mail != nil {
		if err := a.mail.Send(ctx, result); err != nil {
			logger.Error("app: email delivery failed", "error", err)
			metrics.Global.SetError(err.Error())
		}
	}

	logger.Info("app: scan complete", "date", result.Date, "candidates", len(merged),
		"duration", time.Since(start).Round(time.Millisecond))
	return result, nil
}

// runResearch calls the collaborator and flattens its citations into
// candidate items. Every failure path substitutes an empty result: the scan
// prefers availability over completeness.
func (a *App) runResearch(ctx context.Context, now time.Time) []feed.Item {
	if a.research == nil {
		return nil
	}

	if err := a.budget.Spend(); err != nil {
		logger.Warn("app: skipping research", "reason", err)
		return nil
	}

	partial, err := a.research.Research(ctx, research.Request{
		Date:          now,
		Timezone:      a.cfg.Scan.Timezone,
		LookbackHours: a.cfg.Scan.LookbackHours,
	})
	if err != nil {
		logger.Warn("app: research failed, proceeding with feeds only", "error", err)
		metrics.Global.IncrementResearchFailures()
		partial = research.Empty()
	}

	items := partial.Items(now)
	metrics.Global.AddItemsFromResearch(len(items))
	return items
}

func (a *App) filterAllowed(items []feed.Item) []feed.Item {
	if !a.cfg.Scan.Allowlist.Enabled {
		return items
	}

	kept := items[:0:0]
	for _, item := range items {
		if a.allowlist.Allowed(item.SourceURL) {
			kept = append(kept, item)
		} else {
			logger.Debug("app: host not on allowlist", "url", item.SourceURL)
		}
	}
	logger.Info("app: allowlist applied", "in", len(items), "kept", len(kept))
	return kept
}
