package engine

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/contactcrawl/config"
	"github.com/use-agent/contactcrawl/extractor"
	"github.com/use-agent/contactcrawl/models"
	"github.com/ysmood/gson"
)

// RodBrowser is a headless Chrome process driven over CDP.
type RodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      config.BrowserConfig
}

// LaunchRod starts a Chrome process and connects to it.
func LaunchRod(cfg config.BrowserConfig) (*RodBrowser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	return &RodBrowser{browser: browser, launcher: l, cfg: cfg}, nil
}

// NewContext opens an incognito browser context. The context is not bound
// to ctx so it can still be disposed after ctx ends.
func (b *RodBrowser) NewContext(ctx context.Context) (Context, error) {
	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to create browser context",
			err,
		)
	}
	return &rodContext{browser: incognito, cfg: b.cfg}, nil
}

// Close kills the Chrome process and removes its profile directory.
func (b *RodBrowser) Close() error {
	err := b.browser.Close()
	if err != nil {
		slog.Warn("browser close failed, killing process", "error", err)
		b.launcher.Kill()
	}
	b.launcher.Cleanup()
	return err
}

type rodContext struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
}

// NewPage opens a tab with the context's user agent, viewport, stealth
// script and resource blocking installed. All of it must happen before the
// first navigation to take effect.
func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	page, err := c.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to open page",
			err,
		)
	}
	if c.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: c.cfg.UserAgent}); err != nil {
			slog.Debug("set user agent failed", "error", err)
		}
	}
	if c.cfg.ViewportWidth > 0 && c.cfg.ViewportHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             c.cfg.ViewportWidth,
			Height:            c.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			slog.Debug("set viewport failed", "error", err)
		}
	}
	if c.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	return &rodPage{
		page:   page,
		router: setupHijack(page, c.cfg.BlockedResourceTypes),
		settle: c.cfg.SettleDelay,
	}, nil
}

// Close disposes the incognito context and every page left in it.
func (c *rodContext) Close() error {
	return c.browser.Close()
}

type rodPage struct {
	page   *rod.Page
	router *rod.HijackRouter
	settle time.Duration
}

// Goto navigates and waits for DOMContentLoaded plus the settle delay.
// The wait listener is registered before Navigate so a fast page cannot
// fire the event before we listen for it.
func (p *rodPage) Goto(ctx context.Context, target string) error {
	page := p.page.Context(ctx)

	if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{
				"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
			},
		}.Call(page)
	}

	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(target); err != nil {
		return categorizeError(err, "navigation to "+target+" failed")
	}
	wait()
	if err := ctx.Err(); err != nil {
		return categorizeError(err, "navigation to "+target+" timed out")
	}

	if p.settle > 0 {
		select {
		case <-ctx.Done():
			return categorizeError(ctx.Err(), "navigation to "+target+" timed out")
		case <-time.After(p.settle):
		}
	}
	return nil
}

// Snapshot evaluates extractor.SnapshotJS in the page.
func (p *rodPage) Snapshot(ctx context.Context) (*extractor.Snapshot, error) {
	res, err := p.page.Context(ctx).Eval(extractor.SnapshotJS)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to read page DOM", err)
	}
	var snap extractor.Snapshot
	if err := res.Value.Unmarshal(&snap); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to decode page DOM", err)
	}
	return &snap, nil
}

func (p *rodPage) Close() error {
	if p.router != nil {
		_ = p.router.Stop()
	}
	return p.page.Close()
}
