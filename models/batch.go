package models

import "sync"

// Batch job states.
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// BatchResponse is the immediate response for POST /api/v1/batch.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID      string       `json:"id"`
	Status  string       `json:"status"`
	Total   int          `json:"total"`
	Results []SiteRecord `json:"results"`
	Error   string       `json:"error,omitempty"`
}

// BatchJob tracks an asynchronous batch crawl. It is safe for concurrent use.
type BatchJob struct {
	ID        string
	Total     int
	CreatedAt int64 // unix timestamp

	mu      sync.RWMutex
	status  string
	results []SiteRecord
	err     string
}

// NewBatchJob creates a job in the processing state.
func NewBatchJob(id string, total int, createdAt int64) *BatchJob {
	return &BatchJob{
		ID:        id,
		Total:     total,
		CreatedAt: createdAt,
		status:    JobProcessing,
		results:   []SiteRecord{},
	}
}

// Complete records the final results.
func (j *BatchJob) Complete(results []SiteRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = JobCompleted
	j.results = results
}

// Fail records a batch-level failure.
func (j *BatchJob) Fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = JobFailed
	j.err = msg
}

// Snapshot returns a consistent view of the job for the API.
func (j *BatchJob) Snapshot() BatchStatusResponse {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return BatchStatusResponse{
		ID:      j.ID,
		Status:  j.status,
		Total:   j.Total,
		Results: j.results,
		Error:   j.err,
	}
}
