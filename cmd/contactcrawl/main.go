package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/contactcrawl/api"
	"github.com/use-agent/contactcrawl/cache"
	"github.com/use-agent/contactcrawl/config"
	"github.com/use-agent/contactcrawl/crawler"
	"github.com/use-agent/contactcrawl/engine"
	"github.com/use-agent/contactcrawl/normalize"
	"github.com/use-agent/contactcrawl/scheduler"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	envErr := config.LoadEnvFiles()
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("contactcrawl starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"engine", cfg.Engine.Mode,
		"concurrency", cfg.Crawler.Concurrency,
	)
	if envErr != nil {
		slog.Warn("dotenv file ignored", "error", envErr)
	}

	// ── 3. Rendering backend (launched per batch) ───────────────────
	launch, err := engine.NewLauncher(cfg)
	if err != nil {
		slog.Error("invalid engine configuration", "error", err)
		os.Exit(1)
	}

	// ── 4. Crawler + scheduler ──────────────────────────────────────
	normalizer := normalize.New(normalize.NewLibPhoneValidator(cfg.Phone.DefaultRegion))
	siteCrawler := crawler.New(cfg.Crawler, normalizer)

	var opts []scheduler.Option
	if cfg.Cache.MaxAge > 0 {
		opts = append(opts, scheduler.WithCache(cache.New(cfg.Cache.MaxEntries, cfg.Cache.MaxAge), cfg.Cache.MaxAge))
		slog.Info("site record cache enabled", "maxAge", cfg.Cache.MaxAge, "maxEntries", cfg.Cache.MaxEntries)
	}
	sched := scheduler.New(launch, siteCrawler, cfg.Crawler.Concurrency, opts...)

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(sched, cfg, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("contactcrawl stopped", "stats", sched.Stats())
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
