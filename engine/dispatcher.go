package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/use-agent/contactcrawl/extractor"
)

// Named pairs a Browser with the name recorded in DomainMemory.
type Named struct {
	Name    string
	Browser Browser
}

// Dispatcher is a Browser that escalates each navigation through its
// engines, lightest first, and keeps the first page that yields a usable
// snapshot. A page counts as usable when it has at least one anchor; an
// anchor-less static page is usually a JavaScript shell. The last engine's
// result is always accepted.
//
// The engine that wins for a domain is remembered and tried first next time.
type Dispatcher struct {
	engines []Named
	memory  *DomainMemory
}

// NewDispatcher creates a Dispatcher. memory may be shared between
// dispatchers and outlives them.
func NewDispatcher(engines []Named, memory *DomainMemory) *Dispatcher {
	return &Dispatcher{engines: engines, memory: memory}
}

func (d *Dispatcher) NewContext(ctx context.Context) (Context, error) {
	return &dispatchContext{d: d, contexts: make([]Context, len(d.engines))}, nil
}

// Close closes every engine and returns the first error.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, e := range d.engines {
		if err := e.Browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
		}
	}
	return errors.Join(errs...)
}

// order returns engine indexes with the remembered engine for domain first.
func (d *Dispatcher) order(domain string) []int {
	idx := make([]int, 0, len(d.engines))
	remembered := d.memory.Get(domain)
	for i, e := range d.engines {
		if e.Name == remembered {
			idx = append(idx, i)
		}
	}
	for i, e := range d.engines {
		if e.Name != remembered {
			idx = append(idx, i)
		}
	}
	return idx
}

// dispatchContext lazily opens one sub-context per engine.
type dispatchContext struct {
	d        *Dispatcher
	mu       sync.Mutex
	contexts []Context
}

func (c *dispatchContext) context(ctx context.Context, i int) (Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.contexts[i] == nil {
		sub, err := c.d.engines[i].Browser.NewContext(ctx)
		if err != nil {
			return nil, err
		}
		c.contexts[i] = sub
	}
	return c.contexts[i], nil
}

func (c *dispatchContext) NewPage(ctx context.Context) (Page, error) {
	return &dispatchPage{c: c, pages: make([]Page, len(c.d.engines))}, nil
}

func (c *dispatchContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for _, sub := range c.contexts {
		if sub != nil {
			errs = append(errs, sub.Close())
		}
	}
	return errors.Join(errs...)
}

type dispatchPage struct {
	c     *dispatchContext
	pages []Page
	snap  *extractor.Snapshot
}

func (p *dispatchPage) page(ctx context.Context, i int) (Page, error) {
	if p.pages[i] == nil {
		sub, err := p.c.context(ctx, i)
		if err != nil {
			return nil, err
		}
		page, err := sub.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		p.pages[i] = page
	}
	return p.pages[i], nil
}

func (p *dispatchPage) Goto(ctx context.Context, target string) error {
	d := p.c.d
	domain := extractDomain(target)
	remembered := d.memory.Get(domain)
	order := d.order(domain)

	p.snap = nil
	var lastErr error
	for n, i := range order {
		name := d.engines[i].Name
		last := n == len(order)-1

		snap, err := p.try(ctx, i, target)
		if err == nil && (last || len(snap.Anchors) > 0) {
			p.snap = snap
			d.memory.Set(domain, name)
			slog.Debug("engine won", "engine", name, "url", target)
			return nil
		}
		if err == nil {
			err = fmt.Errorf("%s: page has no links", name)
		}
		if name == remembered {
			d.memory.Delete(domain)
		}
		slog.Debug("engine escalating", "engine", name, "url", target, "error", err)
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", target)
	}
	return lastErr
}

func (p *dispatchPage) try(ctx context.Context, i int, target string) (*extractor.Snapshot, error) {
	page, err := p.page(ctx, i)
	if err != nil {
		return nil, err
	}
	if err := page.Goto(ctx, target); err != nil {
		return nil, err
	}
	return page.Snapshot(ctx)
}

// Snapshot returns the DOM read by the engine that won the last Goto.
func (p *dispatchPage) Snapshot(ctx context.Context) (*extractor.Snapshot, error) {
	if p.snap == nil {
		return nil, errors.New("dispatcher: no engine loaded the page")
	}
	return p.snap, nil
}

func (p *dispatchPage) Close() error {
	var errs []error
	for _, page := range p.pages {
		if page != nil {
			errs = append(errs, page.Close())
		}
	}
	return errors.Join(errs...)
}

// extractDomain parses the hostname from a URL string.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

// DomainMemory remembers which engine worked for each domain.
// Entries expire after the configured TTL.
type DomainMemory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	engine    string
	expiresAt time.Time
}

// NewDomainMemory creates a DomainMemory. Expired entries are dropped
// lazily on Get and whenever Set runs.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	return &DomainMemory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the remembered engine name for a domain, or "" if not found or expired.
func (m *DomainMemory) Get(domain string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[domain]
	if !ok {
		return ""
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, domain)
		return ""
	}
	return e.engine
}

// Set records which engine succeeded for a domain.
func (m *DomainMemory) Set(domain, engine string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.entries[domain] = memoryEntry{engine: engine, expiresAt: now.Add(m.ttl)}
}

// Delete forgets a domain, e.g. after its remembered engine failed.
func (m *DomainMemory) Delete(domain string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, domain)
}
