package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rewired-gh/transferoracle/internal/analysis"
	"github.com/rewired-gh/transferoracle/internal/laliga"
	"github.com/rewired-gh/transferoracle/internal/logger"
	"github.com/rewired-gh/transferoracle/internal/metrics"
	"github.com/rewired-gh/transferoracle/internal/signals"
	"github.com/rewired-gh/transferoracle/internal/telegram"
)

type refresher interface {
	Refresh(ctx context.Context) (*analysis.Report, error)
}

type downloader interface {
	Run(ctx context.Context) (*laliga.Summary, error)
}

type notifier interface {
	Send(d telegram.Digest) error
}

// runner performs one full cycle: download, analysis, notification. Cycles
// are serialized so the scheduler and the HTTP refresh never overlap.
type runner struct {
	mu sync.Mutex

	session    refresher
	downloader downloader
	notifier   notifier
	cooldown   *analysis.Cooldown
	recorder   *metrics.Recorder
	now        func() time.Time

	// gateway is the signal gateway of the cycle in progress.
	gateway *signals.Gateway
}

// newEnricher is handed to the analysis session. Each run gets a fresh
// gateway so memoized failures never outlive a run.
func (r *runner) newEnricher(build func() *signals.Gateway) func() analysis.Enricher {
	return func() analysis.Enricher {
		g := build()
		r.gateway = g
		return g
	}
}

func (r *runner) run(ctx context.Context) (*analysis.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.now()
	logger.Info("Starting analysis cycle")

	if r.downloader != nil {
		summary, err := r.downloader.Run(ctx)
		r.recorder.RecordDownload(err)
		if err != nil {
			// Analysis still runs on the previous snapshots.
			logger.Error("Snapshot download failed: %v", err)
		} else {
			logger.Info("Downloaded %d files for week %d", len(summary.Files), summary.Week)
			for _, w := range summary.Warnings {
				logger.Warn("%s", w)
			}
		}
	}

	r.gateway = nil
	report, err := r.session.Refresh(ctx)
	r.recordLookups()

	res := metrics.RunResult{Duration: r.now().Sub(start)}
	if err != nil {
		r.recorder.RecordRun(res, err)
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	res.Suggestions = len(report.Suggestions)
	res.Warnings = len(report.Warnings)
	res.Enriched = report.Enriched
	if len(report.Suggestions) > 0 {
		res.BestValueRatio = report.Suggestions[0].ValueRatio
	}
	r.recorder.RecordRun(res, nil)

	r.notify(report)

	logger.Info("Analysis cycle completed in %v", res.Duration)
	return report, nil
}

func (r *runner) recordLookups() {
	if r.gateway == nil {
		return
	}
	st := r.gateway.Stats()
	r.recorder.RecordLookups("memoized", st.Memoized)
	r.recorder.RecordLookups("cache_hit", st.CacheHits)
	r.recorder.RecordLookups("fetched", st.Fetched)
	r.recorder.RecordLookups("failed", st.Failed)
	r.recorder.RecordLookups("skipped", st.Skipped)
	logger.Debug("Signal lookups: %+v", st)
}

// notify sends suggestions that were not already sent within the cooldown.
func (r *runner) notify(report *analysis.Report) {
	if r.notifier == nil {
		logger.Debug("Telegram notifications disabled")
		return
	}
	now := r.now()
	fresh := report.Suggestions
	if r.cooldown != nil {
		fresh = r.cooldown.Filter(fresh, now)
	}
	if len(fresh) == 0 {
		logger.Info("No new transfer suggestions to send")
		return
	}

	digest := telegram.Digest{
		Team:        report.Team.ManagerName,
		Week:        report.Week,
		GeneratedAt: report.GeneratedAt,
		Budget:      report.Budget,
		Suggestions: fresh,
	}
	if err := r.notifier.Send(digest); err != nil {
		logger.Error("Failed to send Telegram notification: %v", err)
		return
	}
	logger.Info("Sent Telegram notification with %d suggestions", len(fresh))
	if r.cooldown != nil {
		r.cooldown.Record(fresh, now)
	}
}
