// Package engine provides the page-rendering capability used by the site
// crawler: a shared browser, isolated browsing contexts and single-use pages.
package engine

import (
	"context"
	"fmt"

	"github.com/use-agent/contactcrawl/config"
	"github.com/use-agent/contactcrawl/extractor"
)

// Browser is a running rendering backend shared by every crawl in a batch.
// Implementations must be safe for concurrent use.
type Browser interface {
	// NewContext opens an isolated browsing session (cookies, storage).
	NewContext(ctx context.Context) (Context, error)

	// Close tears down the backend and every context still open on it.
	Close() error
}

// Context is an isolated browsing session owned by a single site crawl.
type Context interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab owned by a single navigation.
type Page interface {
	// Goto navigates to url and returns once the document is ready to read.
	// The deadline of ctx bounds the whole navigation.
	Goto(ctx context.Context, url string) error

	// Snapshot reads the current DOM.
	Snapshot(ctx context.Context) (*extractor.Snapshot, error)

	Close() error
}

// Launcher starts a Browser for one batch.
type Launcher func(ctx context.Context) (Browser, error)

// Engine modes accepted by NewLauncher.
const (
	ModeBrowser = "browser"
	ModeHTTP    = "http"
	ModeAuto    = "auto"
)

// NewLauncher returns the Launcher for the configured engine mode.
//
//   - browser: one headless Chrome per batch
//   - http:    static fetches, no JavaScript
//   - auto:    static first, escalating to Chrome per page; the winning
//     engine is remembered per domain across batches
func NewLauncher(cfg *config.Config) (Launcher, error) {
	switch cfg.Engine.Mode {
	case ModeBrowser, "":
		return func(ctx context.Context) (Browser, error) {
			return LaunchRod(cfg.Browser)
		}, nil

	case ModeHTTP:
		return func(ctx context.Context) (Browser, error) {
			return NewHTTPBrowser(cfg.Browser.UserAgent, cfg.Browser.DefaultProxy, cfg.Engine.HTTPTimeout), nil
		}, nil

	case ModeAuto:
		memory := NewDomainMemory(cfg.Engine.DomainMemoryTTL)
		return func(ctx context.Context) (Browser, error) {
			rod, err := LaunchRod(cfg.Browser)
			if err != nil {
				return nil, err
			}
			static := NewHTTPBrowser(cfg.Browser.UserAgent, cfg.Browser.DefaultProxy, cfg.Engine.HTTPTimeout)
			return NewDispatcher([]Named{
				{Name: ModeHTTP, Browser: static},
				{Name: "rod", Browser: rod},
			}, memory), nil
		}, nil

	default:
		return nil, fmt.Errorf("engine: unknown mode %q", cfg.Engine.Mode)
	}
}
