package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/contactcrawl/extractor"
)

// stubBrowser serves canned snapshots per URL and counts navigations.
type stubBrowser struct {
	mu     sync.Mutex
	snaps  map[string]*extractor.Snapshot
	fail   map[string]error
	gotos  int
	closed bool
	pages  int
}

func (b *stubBrowser) NewContext(ctx context.Context) (Context, error) {
	return &stubContext{b: b}, nil
}

func (b *stubBrowser) Close() error {
	b.closed = true
	return nil
}

func (b *stubBrowser) navigations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gotos
}

type stubContext struct{ b *stubBrowser }

func (c *stubContext) NewPage(ctx context.Context) (Page, error) {
	c.b.mu.Lock()
	c.b.pages++
	c.b.mu.Unlock()
	return &stubPage{b: c.b}, nil
}

func (c *stubContext) Close() error { return nil }

type stubPage struct {
	b   *stubBrowser
	url string
}

func (p *stubPage) Goto(ctx context.Context, url string) error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	p.b.gotos++
	p.url = url
	return p.b.fail[url]
}

func (p *stubPage) Snapshot(ctx context.Context) (*extractor.Snapshot, error) {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	if s, ok := p.b.snaps[p.url]; ok {
		return s, nil
	}
	return &extractor.Snapshot{URL: p.url}, nil
}

func (p *stubPage) Close() error { return nil }

func linked(url string) *extractor.Snapshot {
	return &extractor.Snapshot{URL: url, Anchors: []string{url + "/about"}}
}

func load(t *testing.T, b Browser, url string) (*extractor.Snapshot, error) {
	t.Helper()
	ctx := context.Background()
	bc, err := b.NewContext(ctx)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer bc.Close()
	page, err := bc.NewPage(ctx)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	defer page.Close()
	if err := page.Goto(ctx, url); err != nil {
		return nil, err
	}
	return page.Snapshot(ctx)
}

func TestDispatcherStaticWins(t *testing.T) {
	static := &stubBrowser{snaps: map[string]*extractor.Snapshot{"https://a.com": linked("https://a.com")}}
	heavy := &stubBrowser{}
	memory := NewDomainMemory(time.Hour)
	d := NewDispatcher([]Named{{Name: "http", Browser: static}, {Name: "rod", Browser: heavy}}, memory)

	snap, err := load(t, d, "https://a.com")
	if err != nil {
		t.Fatalf("Goto: %v", err)
	}
	if len(snap.Anchors) != 1 {
		t.Errorf("anchors = %v", snap.Anchors)
	}
	if heavy.navigations() != 0 {
		t.Errorf("heavy engine used %d times, want 0", heavy.navigations())
	}
	if got := memory.Get("a.com"); got != "http" {
		t.Errorf("memory = %q, want http", got)
	}
}

func TestDispatcherEscalatesOnEmptyPage(t *testing.T) {
	static := &stubBrowser{}
	heavy := &stubBrowser{snaps: map[string]*extractor.Snapshot{"https://spa.io": linked("https://spa.io")}}
	memory := NewDomainMemory(time.Hour)
	d := NewDispatcher([]Named{{Name: "http", Browser: static}, {Name: "rod", Browser: heavy}}, memory)

	if _, err := load(t, d, "https://spa.io"); err != nil {
		t.Fatalf("Goto: %v", err)
	}
	if static.navigations() != 1 || heavy.navigations() != 1 {
		t.Errorf("navigations static=%d heavy=%d, want 1/1", static.navigations(), heavy.navigations())
	}
	if got := memory.Get("spa.io"); got != "rod" {
		t.Errorf("memory = %q, want rod", got)
	}

	// Second visit goes straight to the remembered engine.
	if _, err := load(t, d, "https://spa.io"); err != nil {
		t.Fatalf("Goto: %v", err)
	}
	if static.navigations() != 1 {
		t.Errorf("static engine retried: %d navigations", static.navigations())
	}
}

func TestDispatcherEscalatesOnError(t *testing.T) {
	static := &stubBrowser{fail: map[string]error{"https://b.com": errors.New("403")}}
	heavy := &stubBrowser{}
	d := NewDispatcher([]Named{{Name: "http", Browser: static}, {Name: "rod", Browser: heavy}}, NewDomainMemory(time.Hour))

	// The last engine's result is accepted even with no anchors.
	snap, err := load(t, d, "https://b.com")
	if err != nil {
		t.Fatalf("Goto: %v", err)
	}
	if snap.URL != "https://b.com" {
		t.Errorf("snapshot url = %q", snap.URL)
	}
}

func TestDispatcherAllFail(t *testing.T) {
	static := &stubBrowser{fail: map[string]error{"https://c.com": errors.New("static")}}
	heavy := &stubBrowser{fail: map[string]error{"https://c.com": errors.New("rod")}}
	memory := NewDomainMemory(time.Hour)
	memory.Set("c.com", "rod")
	d := NewDispatcher([]Named{{Name: "http", Browser: static}, {Name: "rod", Browser: heavy}}, memory)

	_, err := load(t, d, "https://c.com")
	if err == nil || err.Error() != "static" {
		t.Errorf("err = %v, want the last engine tried (static)", err)
	}
	if got := memory.Get("c.com"); got != "" {
		t.Errorf("stale memory kept: %q", got)
	}
}

func TestDispatcherClose(t *testing.T) {
	a, b := &stubBrowser{}, &stubBrowser{}
	d := NewDispatcher([]Named{{Name: "http", Browser: a}, {Name: "rod", Browser: b}}, NewDomainMemory(time.Hour))
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("engines not closed")
	}
}

func TestDomainMemoryExpiry(t *testing.T) {
	m := NewDomainMemory(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Set("x.com", "rod")
	if got := m.Get("x.com"); got != "rod" {
		t.Fatalf("Get = %q, want rod", got)
	}
	now = now.Add(2 * time.Minute)
	if got := m.Get("x.com"); got != "" {
		t.Errorf("Get after ttl = %q, want empty", got)
	}

	m.Set("y.com", "http")
	m.Delete("y.com")
	if got := m.Get("y.com"); got != "" {
		t.Errorf("Get after Delete = %q", got)
	}
}
