package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/contactcrawl/models"
)

// BatchRunner crawls a batch of sites. *scheduler.Scheduler implements it.
type BatchRunner interface {
	RunBatch(ctx context.Context, urls []string) (*models.BatchResult, error)
	Stats() models.SchedulerStats
}

// Scrape returns a handler for POST /api/scrape.
//
// The batch runs on a background context: a client that disconnects does
// not abort crawls already under way.
func Scrape(runner BatchRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		urls, ok := bindURLs(c)
		if !ok {
			return
		}

		result, err := runner.RunBatch(context.Background(), urls)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// bindURLs decodes {"urls": [...]} and writes the 400 response itself when
// the field is missing, empty or not an array of strings.
func bindURLs(c *gin.Context) ([]string, bool) {
	var req models.ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.URLs) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.MsgURLsRequired})
		return nil, false
	}
	return req.URLs, true
}

// respondError maps an error to its HTTP status and writes {"error": msg}.
func respondError(c *gin.Context, err error) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), nil)
	}
	c.JSON(mapErrorToStatus(scrapeErr), scrapeErr.ToResponse())
}

// mapErrorToStatus translates error codes to HTTP status codes. Anything a
// batch can fail with besides bad input is a server error.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	default:
		return http.StatusInternalServerError // 500
	}
}
