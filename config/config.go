package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Crawler   CrawlerConfig
	Engine    EngineConfig
	Phone     PhoneConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// EngineConfig selects the page-rendering backend.
type EngineConfig struct {
	// Mode is "browser" (headless Chrome), "http" (static fetch, no JS)
	// or "auto" (static first, escalate to the browser). default: "browser"
	Mode string

	// HTTPTimeout is the deadline for a single static fetch.
	HTTPTimeout time.Duration // default: 15s

	// DomainMemoryTTL is how long auto mode remembers the winning engine per domain.
	DomainMemoryTTL time.Duration // default: 24h
}

// CacheConfig controls the per-URL site record cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached site records.
	MaxEntries int // default: 1000

	// MaxAge is how long a cached record is served. 0 disables the cache.
	MaxAge time.Duration // default: 0
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// ShutdownTimeout bounds how long in-flight requests may drain on exit.
	ShutdownTimeout time.Duration // default: 30s
}

// BrowserConfig controls the Rod browser instance launched per batch.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// DefaultProxy is the proxy URL for all browser traffic.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth injects anti-bot-detection evasions into every page.
	Stealth bool // default: true

	// UserAgent is sent by every browsing context.
	UserAgent string

	// ViewportWidth and ViewportHeight size every page.
	ViewportWidth  int // default: 1280
	ViewportHeight int // default: 800

	// SettleDelay is the pause after DOMContentLoaded before reading the DOM.
	SettleDelay time.Duration // default: 1s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// CrawlerConfig controls the per-site crawl and the batch scheduler.
type CrawlerConfig struct {
	// Concurrency is the maximum number of sites crawled at once per batch.
	Concurrency int // default: 10

	// NavigationTimeout bounds a single page navigation.
	NavigationTimeout time.Duration // default: 7m

	// SnapshotTimeout bounds reading the DOM of a loaded page.
	SnapshotTimeout time.Duration // default: 30s

	// LinkKeywords select internal pages worth visiting.
	LinkKeywords []string // default: ["cont", "join", "care", "priv"]

	// MaxInternalLinks caps the internal pages visited per site. 0 means no cap.
	MaxInternalLinks int // default: 0

	// ContactPath is appended to the site URL for the guessed contact page.
	ContactPath string // default: "contact/"
}

// PhoneConfig controls phone number validation.
type PhoneConfig struct {
	// DefaultRegion is the region used for numbers without a country code.
	// "ZZ" accepts only numbers that carry their own country code.
	DefaultRegion string // default: "ZZ"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10

	// ScrapeEndpoint also limits POST /api/scrape. Callers fan out one
	// request per URL there, so it is exempt unless enabled.
	ScrapeEndpoint bool // default: false
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// DefaultUserAgent is the desktop Chrome UA presented to target sites.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("CONTACTCRAWL_HOST", "0.0.0.0"),
			Port: envIntOr("CONTACTCRAWL_PORT", 8080),
			Mode: envOr("CONTACTCRAWL_MODE", "release"),

			ShutdownTimeout: envDurationOr("CONTACTCRAWL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("CONTACTCRAWL_HEADLESS", true),
			DefaultProxy:   os.Getenv("CONTACTCRAWL_PROXY"),
			NoSandbox:      envBoolOr("CONTACTCRAWL_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("CONTACTCRAWL_BROWSER_BIN"),
			Stealth:        envBoolOr("CONTACTCRAWL_STEALTH", true),
			UserAgent:      envOr("CONTACTCRAWL_USER_AGENT", DefaultUserAgent),
			ViewportWidth:  envIntOr("CONTACTCRAWL_VIEWPORT_WIDTH", 1280),
			ViewportHeight: envIntOr("CONTACTCRAWL_VIEWPORT_HEIGHT", 800),
			SettleDelay:    envDurationOr("CONTACTCRAWL_SETTLE_DELAY", time.Second),
			BlockedResourceTypes: envSliceOr("CONTACTCRAWL_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Crawler: CrawlerConfig{
			Concurrency:       envIntOr("CONTACTCRAWL_CONCURRENCY", 10),
			NavigationTimeout: envDurationOr("CONTACTCRAWL_NAV_TIMEOUT", 7*time.Minute),
			SnapshotTimeout:   envDurationOr("CONTACTCRAWL_SNAPSHOT_TIMEOUT", 30*time.Second),
			LinkKeywords: envSliceOr("CONTACTCRAWL_LINK_KEYWORDS", []string{
				"cont", "join", "care", "priv",
			}),
			MaxInternalLinks: envIntOr("CONTACTCRAWL_MAX_INTERNAL_LINKS", 0),
			ContactPath:      envOr("CONTACTCRAWL_CONTACT_PATH", "contact/"),
		},
		Engine: EngineConfig{
			Mode:            envOr("CONTACTCRAWL_ENGINE", "browser"),
			HTTPTimeout:     envDurationOr("CONTACTCRAWL_HTTP_TIMEOUT", 15*time.Second),
			DomainMemoryTTL: envDurationOr("CONTACTCRAWL_DOMAIN_MEMORY_TTL", 24*time.Hour),
		},
		Phone: PhoneConfig{
			DefaultRegion: strings.ToUpper(envOr("CONTACTCRAWL_PHONE_REGION", "ZZ")),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("CONTACTCRAWL_AUTH_ENABLED", true),
			APIKeys: envSliceOr("CONTACTCRAWL_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("CONTACTCRAWL_RATE_RPS", 5.0),
			Burst:             envIntOr("CONTACTCRAWL_RATE_BURST", 10),
			ScrapeEndpoint:    envBoolOr("CONTACTCRAWL_RATE_LIMIT_SCRAPE", false),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("CONTACTCRAWL_CACHE_MAX_ENTRIES", 1000),
			MaxAge:     envDurationOr("CONTACTCRAWL_CACHE_MAX_AGE", 0),
		},
		Log: LogConfig{
			Level:  envOr("CONTACTCRAWL_LOG_LEVEL", "info"),
			Format: envOr("CONTACTCRAWL_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
