package scheduler

import (
	"sync"

	"github.com/use-agent/contactcrawl/models"
)

// Aggregator collects site records from concurrent crawls in completion
// order, dropping records that carry no contact data.
type Aggregator struct {
	mu      sync.Mutex
	results []models.SiteRecord
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{results: []models.SiteRecord{}}
}

// Add appends rec if it has an email, a phone or a social link.
// It reports whether the record was kept.
func (a *Aggregator) Add(rec models.SiteRecord) bool {
	if !rec.Data.HasData() {
		return false
	}
	a.mu.Lock()
	a.results = append(a.results, rec)
	a.mu.Unlock()
	return true
}

// Result returns the collected records. Call it after every Add has returned.
func (a *Aggregator) Result() *models.BatchResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.SiteRecord, len(a.results))
	copy(out, a.results)
	return &models.BatchResult{Results: out}
}
