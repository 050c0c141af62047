package models

// ScrapeRequest is the payload for POST /api/scrape.
//
// URLs is validated by hand rather than with binding tags so that every
// malformed body (missing field, wrong type, empty array) produces the same
// error message.
type ScrapeRequest struct {
	URLs []string `json:"urls"`
}

// BatchRequest is the payload for POST /api/v1/batch.
type BatchRequest struct {
	// URLs is the list of sites to crawl. Required.
	URLs []string `json:"urls"`

	// WebhookURL receives a batch.completed event when the job settles.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs the webhook body with HMAC-SHA256 when set.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}
