package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/contactcrawl/api/handler"
	"github.com/use-agent/contactcrawl/api/middleware"
	"github.com/use-agent/contactcrawl/config"
)

// jobTTL is how long finished batch jobs stay queryable.
const jobTTL = time.Hour

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//	Scrape:  Auth (if enabled) → RateLimit (only if RateLimit.ScrapeEndpoint)
//
// Health stays outside auth so monitoring always works.
func NewRouter(runner handler.BatchRunner, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	api := r.Group("/api")
	v1 := api.Group("/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(runner, startTime))

	protect := func(g *gin.RouterGroup, limit bool) {
		if cfg.Auth.Enabled {
			g.Use(middleware.Auth(cfg.Auth.APIKeys))
		}
		if limit {
			g.Use(middleware.RateLimit(cfg.RateLimit))
		}
	}

	// Synchronous scrape
	scrape := api.Group("")
	protect(scrape, cfg.RateLimit.ScrapeEndpoint)
	scrape.POST("/scrape", handler.Scrape(runner))

	// Batch
	jobs := handler.NewJobStore(jobTTL)
	protected := v1.Group("")
	protect(protected, true)
	protected.POST("/batch", handler.PostBatch(runner, jobs))
	protected.GET("/batch/:id", handler.GetBatch(jobs))

	return r
}
