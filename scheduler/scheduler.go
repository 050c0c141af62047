// Package scheduler runs batches of site crawls against one shared browser
// with a fixed concurrency ceiling.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/use-agent/contactcrawl/cache"
	"github.com/use-agent/contactcrawl/engine"
	"github.com/use-agent/contactcrawl/models"
	"golang.org/x/sync/errgroup"
)

// SiteCrawler crawls one site with a browser owned by the caller.
type SiteCrawler interface {
	Crawl(ctx context.Context, browser engine.Browser, url string) (models.SiteRecord, error)
}

// Scheduler runs batches. It is safe for concurrent use; each batch gets its
// own browser and its own ceiling.
type Scheduler struct {
	launch      engine.Launcher
	crawler     SiteCrawler
	concurrency int

	cache  *cache.Cache
	maxAge time.Duration

	active  atomic.Int32
	peak    atomic.Int32
	batches atomic.Int32
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCache serves records younger than maxAge from c and stores fresh ones.
func WithCache(c *cache.Cache, maxAge time.Duration) Option {
	return func(s *Scheduler) {
		s.cache = c
		s.maxAge = maxAge
	}
}

// New creates a Scheduler. A concurrency below 1 is raised to 1.
func New(launch engine.Launcher, crawler SiteCrawler, concurrency int, opts ...Option) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	s := &Scheduler{launch: launch, crawler: crawler, concurrency: concurrency}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns a snapshot of crawl activity.
func (s *Scheduler) Stats() models.SchedulerStats {
	return models.SchedulerStats{
		Concurrency:    s.concurrency,
		ActiveSites:    int(s.active.Load()),
		PeakSites:      int(s.peak.Load()),
		BatchesRunning: int(s.batches.Load()),
	}
}

// RunBatch crawls every URL exactly once, at most s.concurrency at a time,
// and returns the records that carry contact data in completion order.
//
// A site that fails or panics is logged and contributes nothing. The only
// errors returned are batch-level: the browser could not be launched.
func (s *Scheduler) RunBatch(ctx context.Context, urls []string) (*models.BatchResult, error) {
	s.batches.Add(1)
	defer s.batches.Add(-1)

	start := time.Now()
	agg := NewAggregator()

	pending := urls
	if s.cache != nil && s.maxAge > 0 {
		pending = pending[:0:0]
		for _, u := range urls {
			if rec, ok := s.cache.Get(cache.Key(u), s.maxAge); ok {
				agg.Add(rec)
				continue
			}
			pending = append(pending, u)
		}
	}
	if len(pending) == 0 {
		return agg.Result(), nil
	}

	browser, err := s.launch(ctx)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			slog.Warn("browser close failed", "error", err)
		}
	}()

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, u := range pending {
		g.Go(func() error {
			s.crawlOne(ctx, browser, u, agg)
			return nil
		})
	}
	_ = g.Wait()

	result := agg.Result()
	slog.Info("batch finished",
		"urls", len(urls),
		"results", len(result.Results),
		"duration", time.Since(start).String(),
	)
	return result, nil
}

// crawlOne runs a single site crawl, isolating its failures from the batch.
func (s *Scheduler) crawlOne(ctx context.Context, browser engine.Browser, url string, agg *Aggregator) {
	s.enter()
	defer s.active.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("site crawl panicked",
				"url", url,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	rec, err := s.crawler.Crawl(ctx, browser, url)
	if err != nil {
		slog.Error("site crawl failed", "url", url, "error", err)
		return
	}
	if s.cache != nil && s.maxAge > 0 {
		s.cache.Set(cache.Key(url), rec)
	}
	if !agg.Add(rec) {
		slog.Debug("site yielded no contact data", "url", url)
	}
}

func (s *Scheduler) enter() {
	n := s.active.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			return
		}
	}
}
