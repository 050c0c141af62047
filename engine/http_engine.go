package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/contactcrawl/extractor"
	"github.com/use-agent/contactcrawl/models"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
)

// maxBody caps how much of a response is read.
const maxBody = 10 << 20

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// HTTPBrowser is a static rendering backend: plain GET requests with a
// Chrome TLS fingerprint, no JavaScript. Each context gets its own cookie
// jar; the transport is shared.
type HTTPBrowser struct {
	transport *http.Transport
	userAgent string
	timeout   time.Duration
}

// NewHTTPBrowser creates an HTTPBrowser. proxy may be empty.
func NewHTTPBrowser(userAgent, proxy string, timeout time.Duration) *HTTPBrowser {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &HTTPBrowser{transport: transport, userAgent: userAgent, timeout: timeout}
}

func (b *HTTPBrowser) NewContext(ctx context.Context) (Context, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("http_engine: cookie jar: %w", err)
	}
	return &httpContext{
		browser: b,
		client: &http.Client{
			Transport: b.transport,
			Jar:       jar,
			Timeout:   b.timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}, nil
}

func (b *HTTPBrowser) Close() error {
	b.transport.CloseIdleConnections()
	return nil
}

type httpContext struct {
	browser *HTTPBrowser
	client  *http.Client
}

func (c *httpContext) NewPage(ctx context.Context) (Page, error) {
	return &httpPage{ctx: c}, nil
}

func (c *httpContext) Close() error { return nil }

type httpPage struct {
	ctx      *httpContext
	html     string
	finalURL string
}

func (p *httpPage) Goto(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, "invalid URL "+target, err)
	}
	req.Header.Set("User-Agent", p.ctx.browser.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := p.ctx.client.Do(req)
	if err != nil {
		return categorizeError(err, "request to "+target+" failed")
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode >= 400 || !isHTMLContentType(ct) {
		return models.NewScrapeError(models.ErrCodeNavigation,
			fmt.Sprintf("non-html or error status %d (content-type: %s)", resp.StatusCode, ct), nil)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBody), ct)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, "unsupported charset", err)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return categorizeError(err, "reading "+target+" failed")
	}

	p.html = string(raw)
	p.finalURL = resp.Request.URL.String()
	return nil
}

func (p *httpPage) Snapshot(ctx context.Context) (*extractor.Snapshot, error) {
	if p.finalURL == "" {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "page was never loaded", nil)
	}
	snap, err := extractor.FromHTML(p.html, p.finalURL)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to parse page HTML", err)
	}
	return snap, nil
}

func (p *httpPage) Close() error {
	p.html = ""
	return nil
}

// isHTMLContentType returns true if the content-type header looks like HTML.
// A missing header is treated as HTML.
func isHTMLContentType(ct string) bool {
	if ct == "" {
		return true
	}
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}
