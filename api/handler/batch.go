package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/contactcrawl/models"
	"github.com/use-agent/contactcrawl/webhook"
)

// JobStore holds in-flight and finished batch jobs until they expire.
type JobStore struct {
	jobs sync.Map // id -> *models.BatchJob
	ttl  time.Duration
}

// NewJobStore creates a JobStore whose jobs are dropped ttl after creation.
// A background goroutine sweeps expired jobs every 5 minutes.
func NewJobStore(ttl time.Duration) *JobStore {
	s := &JobStore{ttl: ttl}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			s.expire(time.Now())
		}
	}()
	return s
}

func (s *JobStore) put(job *models.BatchJob) { s.jobs.Store(job.ID, job) }

func (s *JobStore) get(id string) (*models.BatchJob, bool) {
	v, ok := s.jobs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*models.BatchJob), true
}

func (s *JobStore) expire(now time.Time) {
	cutoff := now.Add(-s.ttl).Unix()
	s.jobs.Range(func(key, value any) bool {
		if value.(*models.BatchJob).CreatedAt < cutoff {
			s.jobs.Delete(key)
		}
		return true
	})
}

// PostBatch returns a handler for POST /api/v1/batch.
// It registers a job, starts the crawl in the background and answers 202
// with the job id right away.
func PostBatch(runner BatchRunner, jobs *JobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request: " + err.Error()})
			return
		}
		if len(req.URLs) == 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: models.MsgURLsRequired})
			return
		}

		job := models.NewBatchJob("batch-"+uuid.NewString(), len(req.URLs), time.Now().Unix())
		jobs.put(job)

		go runBatch(runner, job, req)

		c.JSON(http.StatusAccepted, models.BatchResponse{
			ID:     job.ID,
			Status: models.JobProcessing,
			Total:  job.Total,
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch(jobs *JobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobs.get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "batch job not found"})
			return
		}
		c.JSON(http.StatusOK, job.Snapshot())
	}
}

func runBatch(runner BatchRunner, job *models.BatchJob, req models.BatchRequest) {
	start := time.Now()
	eventType := webhook.EventBatchCompleted

	result, err := runner.RunBatch(context.Background(), req.URLs)
	if err != nil {
		eventType = webhook.EventBatchFailed
		job.Fail(err.Error())
		slog.Error("batch job failed", "id", job.ID, "error", err)
	} else {
		job.Complete(result.Results)
		slog.Info("batch job finished",
			"id", job.ID,
			"total", job.Total,
			"results", len(result.Results),
			"duration", time.Since(start).String(),
		)
	}

	if req.WebhookURL != "" {
		webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
			Type:      eventType,
			JobID:     job.ID,
			Timestamp: time.Now().Unix(),
			Data:      job.Snapshot(),
		})
	}
}
