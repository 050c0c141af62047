package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/contactcrawl/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when more than one batch is competing for the host or when
// a batch has more than 80% of its crawl slots busy.
func Health(runner BatchRunner, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := runner.Stats()

		status := "healthy"
		if stats.BatchesRunning > 1 ||
			(stats.Concurrency > 0 && stats.ActiveSites > int(float64(stats.Concurrency)*0.8)) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Stats:   stats,
			Version: Version,
		})
	}
}
