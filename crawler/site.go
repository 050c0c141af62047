package crawler

import (
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/use-agent/contactcrawl/extractor"
	"github.com/use-agent/contactcrawl/models"
	"github.com/use-agent/contactcrawl/normalize"
)

// SiteData accumulates raw candidates across every page of one site.
// It is owned by a single crawl and is not safe for concurrent use.
type SiteData struct {
	Emails []string
	Phones []string
	Social models.SocialLinks
}

// Merge appends a page's emails and phones and lets its non-empty social
// links overwrite earlier ones.
func (s *SiteData) Merge(page extractor.PageExtraction) {
	s.Emails = append(s.Emails, page.Emails...)
	s.Phones = append(s.Phones, page.Phones...)
	s.Social.Merge(page.Social)
}

// Input returns the accumulated candidates in normalizer form.
func (s *SiteData) Input() normalize.Input {
	return normalize.Input{Emails: s.Emails, Phones: s.Phones, Social: s.Social}
}

// CompanyName derives a display name from the site's hostname: "www." is
// dropped, the first label kept and its first letter upper-cased. It returns
// nil when the URL has no hostname.
func CompanyName(rawURL string) *string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host == "" {
		return nil
	}
	label, _, _ := strings.Cut(host, ".")
	if label == "" {
		return nil
	}
	r, size := utf8.DecodeRuneInString(label)
	name := string(unicode.ToUpper(r)) + label[size:]
	return &name
}

// ContactURL guesses the site's contact page by appending path to the site
// URL, inserting a slash when the URL lacks a trailing one. Query strings
// and fragments are not handled.
func ContactURL(siteURL, path string) string {
	if path == "" {
		path = "contact/"
	}
	if strings.HasSuffix(siteURL, "/") {
		return siteURL + path
	}
	return siteURL + "/" + path
}
