package models

// Social platform keys. SocialLinks never carries any other key.
const (
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformLinkedIn  = "linkedin"
)

// SocialLinks stores one profile URL per supported network.
type SocialLinks struct {
	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
}

// Set stores value under platform. Unknown platforms and empty values are ignored.
func (s *SocialLinks) Set(platform, value string) {
	if value == "" {
		return
	}
	switch platform {
	case PlatformFacebook:
		s.Facebook = value
	case PlatformInstagram:
		s.Instagram = value
	case PlatformLinkedIn:
		s.LinkedIn = value
	}
}

// Merge overwrites s with every non-empty link in other (later writer wins).
func (s *SocialLinks) Merge(other SocialLinks) {
	s.Set(PlatformFacebook, other.Facebook)
	s.Set(PlatformInstagram, other.Instagram)
	s.Set(PlatformLinkedIn, other.LinkedIn)
}

// IsEmpty reports whether no platform has a link.
func (s SocialLinks) IsEmpty() bool {
	return s.Facebook == "" && s.Instagram == "" && s.LinkedIn == ""
}

// ContactData is the normalized contact information for one site.
type ContactData struct {
	// Emails holds the primary email, if any (0 or 1 entries).
	Emails []string `json:"emails"`

	// Phones holds the validated phone in international format (0 or 1 entries).
	Phones []string `json:"phones"`

	Social SocialLinks `json:"social"`
}

// HasData reports whether at least one of email, phone or social is present.
func (d ContactData) HasData() bool {
	return len(d.Emails) > 0 || len(d.Phones) > 0 || !d.Social.IsEmpty()
}

// SiteRecord is the final per-site output.
type SiteRecord struct {
	URL string `json:"url"`

	// CompanyName is derived from the hostname; null when the URL is unparsable.
	CompanyName *string `json:"companyName"`

	Data ContactData `json:"data"`
}

// BatchResult is the response for POST /api/scrape. Results are in
// completion order, not input order.
type BatchResult struct {
	Results []SiteRecord `json:"results"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string         `json:"status"` // "healthy" or "degraded"
	Uptime  string         `json:"uptime"`
	Stats   SchedulerStats `json:"stats"`
	Version string         `json:"version"`
}

// SchedulerStats reports crawl activity across all running batches.
type SchedulerStats struct {
	Concurrency    int `json:"concurrency"`
	ActiveSites    int `json:"active_sites"`
	PeakSites      int `json:"peak_sites"`
	BatchesRunning int `json:"batches_running"`
}
