package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/use-agent/contactcrawl/config"
	"github.com/use-agent/contactcrawl/engine"
	"github.com/use-agent/contactcrawl/extractor"
)

// fakeSite serves HTML documents keyed by URL. Goto fails for unknown URLs
// and for URLs in broken; a broken URL with a document still snapshots.
// Snapshot of a URL in hung blocks until its context ends.
type fakeSite struct {
	mu        sync.Mutex
	docs      map[string]string
	broken    map[string]bool
	hung      map[string]bool
	visited   []string
	snapshots []string
	pages     int
	closed    int
	ctxOpen   int

	contextErr error
}

func (f *fakeSite) NewContext(ctx context.Context) (engine.Context, error) {
	if f.contextErr != nil {
		return nil, f.contextErr
	}
	f.mu.Lock()
	f.ctxOpen++
	f.mu.Unlock()
	return &fakeContext{site: f}, nil
}

func (f *fakeSite) Close() error { return nil }

type fakeContext struct{ site *fakeSite }

func (c *fakeContext) NewPage(ctx context.Context) (engine.Page, error) {
	c.site.mu.Lock()
	c.site.pages++
	c.site.mu.Unlock()
	return &fakePage{site: c.site}, nil
}

func (c *fakeContext) Close() error {
	c.site.mu.Lock()
	c.site.ctxOpen--
	c.site.mu.Unlock()
	return nil
}

type fakePage struct {
	site *fakeSite
	url  string
}

func (p *fakePage) Goto(ctx context.Context, url string) error {
	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	p.url = url
	p.site.visited = append(p.site.visited, url)
	if _, ok := p.site.docs[url]; !ok || p.site.broken[url] {
		return errors.New("navigation failed")
	}
	return nil
}

func (p *fakePage) Snapshot(ctx context.Context) (*extractor.Snapshot, error) {
	p.site.mu.Lock()
	p.site.snapshots = append(p.site.snapshots, p.url)
	doc, ok := p.site.docs[p.url]
	hung := p.site.hung[p.url]
	p.site.mu.Unlock()
	if hung {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if !ok {
		return nil, errors.New("no document")
	}
	return extractor.FromHTML(doc, p.url)
}

func (p *fakePage) Close() error {
	p.site.mu.Lock()
	p.site.closed++
	p.site.mu.Unlock()
	return nil
}

func newCrawler() *Crawler {
	return New(config.CrawlerConfig{NavigationTimeout: time.Minute, ContactPath: "contact/"}, nil)
}

func TestCrawlMailtoAndLinkedIn(t *testing.T) {
	site := &fakeSite{docs: map[string]string{
		"https://example.com": `<html><body>
			<a href="mailto:info@example.com">Mail</a>
			<a href="https://www.linkedin.com/company/example?trk=x">LinkedIn</a>
		</body></html>`,
	}}

	rec, err := newCrawler().Crawl(context.Background(), site, "https://example.com")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if rec.URL != "https://example.com" {
		t.Errorf("url = %q", rec.URL)
	}
	if rec.CompanyName == nil || *rec.CompanyName != "Example" {
		t.Errorf("companyName = %v, want Example", rec.CompanyName)
	}
	if len(rec.Data.Emails) != 1 || rec.Data.Emails[0] != "info@example.com" {
		t.Errorf("emails = %v", rec.Data.Emails)
	}
	if rec.Data.Phones == nil || len(rec.Data.Phones) != 0 {
		t.Errorf("phones = %#v, want empty non-nil", rec.Data.Phones)
	}
	if rec.Data.Social.LinkedIn != "https://www.linkedin.com/company/example" {
		t.Errorf("linkedin = %q", rec.Data.Social.LinkedIn)
	}
}

func TestCrawlTelLink(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"formatted", `<a href="tel:+1 (555) 123-4567">Call us</a>`, "+1 555-123-4567"},
		{"digits only", `<a href="tel:+14155551234">Call us</a>`, "+1 415-555-1234"},
		{"plain text", `<p>Call +1 (555) 123-4567 today</p>`, "+1 555-123-4567"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := &fakeSite{docs: map[string]string{"https://acme.io/": tt.doc}}

			rec, err := newCrawler().Crawl(context.Background(), site, "https://acme.io/")
			if err != nil {
				t.Fatalf("Crawl: %v", err)
			}
			if len(rec.Data.Phones) != 1 || rec.Data.Phones[0] != tt.want {
				t.Errorf("phones = %v, want [%s]", rec.Data.Phones, tt.want)
			}
			if len(rec.Data.Emails) != 0 {
				t.Errorf("emails = %v", rec.Data.Emails)
			}
		})
	}
}

func TestCrawlVisitsDiscoveredAndGuessedPages(t *testing.T) {
	site := &fakeSite{docs: map[string]string{
		"https://shop.example.org": `<a href="/about">About</a><a href="/contact-us">Contact</a><a href="/privacy">Privacy</a>`,
		"https://shop.example.org/contact-us": `<p>Write to sales@example.org</p>`,
		"https://shop.example.org/privacy":    `<p>dpo@example.org</p>`,
		"https://shop.example.org/contact/":   `<p>info@example.org</p>`,
	}}

	rec, err := newCrawler().Crawl(context.Background(), site, "https://shop.example.org")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	want := []string{
		"https://shop.example.org",
		"https://shop.example.org/contact-us",
		"https://shop.example.org/privacy",
		"https://shop.example.org/contact/",
	}
	if len(site.visited) != len(want) {
		t.Fatalf("visited = %v, want %v", site.visited, want)
	}
	for i := range want {
		if site.visited[i] != want[i] {
			t.Errorf("visited[%d] = %q, want %q", i, site.visited[i], want[i])
		}
	}
	// info@ beats the earlier sales@ and dpo@.
	if len(rec.Data.Emails) != 1 || rec.Data.Emails[0] != "info@example.org" {
		t.Errorf("emails = %v", rec.Data.Emails)
	}
	if site.pages != site.closed {
		t.Errorf("pages opened %d, closed %d", site.pages, site.closed)
	}
	if site.ctxOpen != 0 {
		t.Errorf("%d browsing contexts left open", site.ctxOpen)
	}
}

func TestCrawlToleratesFailures(t *testing.T) {
	site := &fakeSite{
		docs: map[string]string{
			// The homepage fails to finish loading but its partial DOM
			// still leads to the contact page.
			"https://slow.example.net":         `<a href="/contact">Contact</a><a href="mailto:ghost@example.net">x</a>`,
			"https://slow.example.net/contact": `<a href="https://facebook.com/slowco">fb</a>`,
		},
		broken: map[string]bool{"https://slow.example.net": true},
	}

	rec, err := newCrawler().Crawl(context.Background(), site, "https://slow.example.net")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(rec.Data.Emails) != 0 {
		t.Errorf("emails from failed homepage kept: %v", rec.Data.Emails)
	}
	if rec.Data.Social.Facebook != "https://facebook.com/slowco" {
		t.Errorf("facebook = %q", rec.Data.Social.Facebook)
	}
	if site.pages != site.closed {
		t.Errorf("pages opened %d, closed %d", site.pages, site.closed)
	}
}

func TestCrawlBoundsHungSnapshot(t *testing.T) {
	site := &fakeSite{
		docs:   map[string]string{"https://hung.example": `<a href="/contact">Contact</a>`},
		broken: map[string]bool{"https://hung.example": true},
		hung:   map[string]bool{"https://hung.example": true},
	}
	c := New(config.CrawlerConfig{
		NavigationTimeout: time.Minute,
		SnapshotTimeout:   20 * time.Millisecond,
		ContactPath:       "contact/",
	}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := c.Crawl(context.Background(), site, "https://hung.example")
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Crawl: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Crawl blocked on a hung snapshot")
	}
	if site.pages != site.closed {
		t.Errorf("pages opened %d, closed %d", site.pages, site.closed)
	}
}

func TestCrawlSkipsSnapshotOfFailedSubpages(t *testing.T) {
	site := &fakeSite{
		docs: map[string]string{
			"https://b.example":            `<a href="/contact-us">Contact</a>`,
			"https://b.example/contact-us": `<p>sales@b.example</p>`,
		},
		broken: map[string]bool{"https://b.example/contact-us": true},
	}

	rec, err := newCrawler().Crawl(context.Background(), site, "https://b.example")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	want := []string{"https://b.example"}
	if len(site.snapshots) != len(want) || site.snapshots[0] != want[0] {
		t.Errorf("snapshots = %v, want %v", site.snapshots, want)
	}
	if len(rec.Data.Emails) != 0 {
		t.Errorf("emails from failed page kept: %v", rec.Data.Emails)
	}
}

func TestCrawlContextError(t *testing.T) {
	site := &fakeSite{contextErr: errors.New("browser gone")}
	if _, err := newCrawler().Crawl(context.Background(), site, "https://example.com"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCrawlInternalLinkCap(t *testing.T) {
	site := &fakeSite{docs: map[string]string{
		"https://a.example": `<a href="/contact">1</a><a href="/careers">2</a><a href="/join">3</a>`,
	}}
	c := New(config.CrawlerConfig{MaxInternalLinks: 1}, nil)
	if _, err := c.Crawl(context.Background(), site, "https://a.example"); err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	// homepage + one internal page + guessed contact page
	if len(site.visited) != 3 {
		t.Errorf("visited = %v", site.visited)
	}
}

func TestCompanyName(t *testing.T) {
	tests := []struct {
		url  string
		want string // "" means nil
	}{
		{"https://www.example.com", "Example"},
		{"https://acme.co.uk/about", "Acme"},
		{"http://localhost:8080", "Localhost"},
		{"not a url", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got := CompanyName(tt.url)
		switch {
		case tt.want == "" && got != nil:
			t.Errorf("CompanyName(%q) = %q, want nil", tt.url, *got)
		case tt.want != "" && (got == nil || *got != tt.want):
			t.Errorf("CompanyName(%q) = %v, want %q", tt.url, got, tt.want)
		}
	}
}

func TestContactURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://example.com/", "https://example.com/contact/"},
		{"https://example.com", "https://example.com/contact/"},
		{"https://example.com/en", "https://example.com/en/contact/"},
	}
	for _, tt := range tests {
		if got := ContactURL(tt.in, "contact/"); got != tt.want {
			t.Errorf("ContactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
