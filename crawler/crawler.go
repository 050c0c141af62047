// Package crawler visits one site (homepage, discovered contact-style pages
// and a guessed contact page) and reduces what it finds to a SiteRecord.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/contactcrawl/config"
	"github.com/use-agent/contactcrawl/engine"
	"github.com/use-agent/contactcrawl/extractor"
	"github.com/use-agent/contactcrawl/models"
	"github.com/use-agent/contactcrawl/normalize"
)

// defaultSnapshotTimeout applies when the config leaves SnapshotTimeout unset.
const defaultSnapshotTimeout = 30 * time.Second

// Crawler crawls single sites. It holds no per-site state and is safe for
// concurrent use.
type Crawler struct {
	cfg        config.CrawlerConfig
	normalizer *normalize.Normalizer
}

// New creates a Crawler. A nil normalizer gets the default one.
func New(cfg config.CrawlerConfig, n *normalize.Normalizer) *Crawler {
	if n == nil {
		n = normalize.New(nil)
	}
	if len(cfg.LinkKeywords) == 0 {
		cfg.LinkKeywords = extractor.DefaultLinkKeywords
	}
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = defaultSnapshotTimeout
	}
	return &Crawler{cfg: cfg, normalizer: n}
}

// Crawl visits url in its own browsing context and returns the normalized
// record. Page-level failures are logged and skipped; the only error
// returned is a failure to open the browsing context.
//
// The returned record may carry no data; filtering is the caller's concern.
func (c *Crawler) Crawl(ctx context.Context, browser engine.Browser, url string) (models.SiteRecord, error) {
	bctx, err := browser.NewContext(ctx)
	if err != nil {
		return models.SiteRecord{}, models.NewScrapeError(models.ErrCodeBrowserCrash,
			fmt.Sprintf("open browsing context for %s", url), err)
	}
	defer func() {
		if err := bctx.Close(); err != nil {
			slog.Debug("close browsing context", "url", url, "error", err)
		}
	}()

	var site SiteData

	// Homepage: the snapshot is read even when navigation failed, since a
	// partially loaded document can still point at the contact pages.
	snap, err := c.visit(ctx, bctx, url, true)
	if err != nil {
		slog.Warn("homepage failed", "url", url, "error", err)
	} else {
		site.Merge(extractor.Extract(snap))
	}

	links := extractor.DiscoverLinks(snap, c.cfg.LinkKeywords, c.cfg.MaxInternalLinks)
	for _, link := range links {
		snap, err := c.visit(ctx, bctx, link, false)
		if err != nil {
			slog.Warn("internal page failed", "url", url, "page", link, "error", err)
			continue
		}
		site.Merge(extractor.Extract(snap))
	}

	contact := ContactURL(url, c.cfg.ContactPath)
	if snap, err := c.visit(ctx, bctx, contact, false); err != nil {
		slog.Debug("contact page failed", "url", url, "page", contact, "error", err)
	} else {
		site.Merge(extractor.Extract(snap))
	}

	result := c.normalizer.Normalize(site.Input())
	return models.SiteRecord{
		URL:         url,
		CompanyName: CompanyName(url),
		Data:        result.ContactData(),
	}, nil
}

// visit loads target in a fresh page and snapshots it. With partial set, a
// failed navigation still attempts the snapshot and returns it alongside the
// error so the homepage can feed link discovery; it may be nil. Reading the
// DOM is bounded by SnapshotTimeout.
func (c *Crawler) visit(ctx context.Context, bctx engine.Context, target string, partial bool) (*extractor.Snapshot, error) {
	page, err := bctx.NewPage(ctx)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "open page", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			slog.Debug("close page", "page", target, "error", err)
		}
	}()

	navCtx := ctx
	if c.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, c.cfg.NavigationTimeout)
		defer cancel()
	}

	navErr := page.Goto(navCtx, target)
	if navErr != nil && !partial {
		return nil, navErr
	}

	snapCtx, cancel := context.WithTimeout(ctx, c.cfg.SnapshotTimeout)
	defer cancel()
	snap, err := page.Snapshot(snapCtx)
	if err != nil {
		if navErr != nil {
			return nil, navErr
		}
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "snapshot "+target, err)
	}
	return snap, navErr
}
