package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/use-agent/contactcrawl/models"
	"golang.org/x/sync/errgroup"
)

// client sends one POST /api/scrape request per URL so a single slow site
// never holds up the rest, keeping at most concurrency requests in flight.
// A 429 answer is retried up to retries times after its Retry-After delay.
type client struct {
	baseURL     string
	apiKey      string
	http        *http.Client
	concurrency int
	retries     int
	progress    func(progress)
}

const (
	defaultRetryAfter = time.Second
	maxRetryAfter     = 30 * time.Second
)

type progress struct {
	Processed int
	Total     int
	Fetched   int
}

type failure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

type report struct {
	Total    int
	Records  []models.SiteRecord
	Failures []failure
}

// run scrapes every URL and collects records with contact data in
// completion order. Request failures are recorded, never fatal.
func (c *client) run(ctx context.Context, urls []string) report {
	rep := report{Total: len(urls), Records: []models.SiteRecord{}}
	var mu sync.Mutex
	processed := 0

	limit := c.concurrency
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	for _, u := range urls {
		g.Go(func() error {
			records, err := c.scrape(ctx, u)

			mu.Lock()
			defer mu.Unlock()
			processed++
			if err != nil {
				rep.Failures = append(rep.Failures, failure{URL: u, Error: err.Error()})
			}
			for _, rec := range records {
				if rec.Data.HasData() {
					rep.Records = append(rep.Records, rec)
				}
			}
			if c.progress != nil {
				c.progress(progress{Processed: processed, Total: len(urls), Fetched: len(rep.Records)})
			}
			return nil
		})
	}
	_ = g.Wait()
	return rep
}

// scrape posts one URL, waiting out 429 answers up to c.retries times.
func (c *client) scrape(ctx context.Context, url string) ([]models.SiteRecord, error) {
	for attempt := 0; ; attempt++ {
		records, wait, err := c.post(ctx, url)
		if wait == 0 || attempt >= c.retries {
			return records, err
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// post sends a single request. wait is non-zero only for a 429 answer.
func (c *client) post(ctx context.Context, url string) (records []models.SiteRecord, wait time.Duration, err error) {
	body, err := json.Marshal(models.ScrapeRequest{URLs: []string{url}})
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			wait = retryAfter(resp.Header.Get("Retry-After"))
		}
		var apiErr models.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return nil, wait, fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, wait, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result models.BatchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}
	return result.Results, 0, nil
}

// retryAfter reads a Retry-After header given in seconds. Missing or
// unparsable values fall back to one second.
func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	d := time.Duration(secs) * time.Second
	if d == 0 {
		// Zero still means "try again", not "give up".
		d = time.Millisecond
	}
	return min(d, maxRetryAfter)
}
