// Package extractor pulls raw contact candidates out of a page snapshot.
//
// Nothing here validates candidates; that is the normalizer's job. The
// extractor only decides what looks like an email, a phone or a social
// profile link on a single page.
package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/use-agent/contactcrawl/models"
)

// PageExtraction holds the raw candidates found on one page.
type PageExtraction struct {
	Emails []string
	Phones []string
	Social models.SocialLinks
}

// IsEmpty reports whether the page yielded no candidates at all.
func (p PageExtraction) IsEmpty() bool {
	return len(p.Emails) == 0 && len(p.Phones) == 0 && p.Social.IsEmpty()
}

var (
	emailPattern = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-()]{6,}`)

	facebookPattern  = regexp.MustCompile(`(?i)facebook\.com`)
	sharerPattern    = regexp.MustCompile(`(?i)sharer\.php`)
	instagramPattern = regexp.MustCompile(`(?i)instagram\.com`)
	linkedInPattern  = regexp.MustCompile(`(?i)linkedin\.com/(company|in)/`)
	sharePattern     = regexp.MustCompile(`(?i)shareArticle`)
)

const (
	mailtoScheme = "mailto:"
	telScheme    = "tel:"
)

// Extract scans a snapshot for email, phone and social candidates.
// A nil snapshot yields an empty extraction.
func Extract(snap *Snapshot) PageExtraction {
	var out PageExtraction
	if snap == nil {
		return out
	}

	for _, el := range snap.Elements {
		if strings.HasPrefix(el.Href, mailtoScheme) {
			out.Emails = append(out.Emails, strings.TrimSpace(strings.TrimPrefix(el.Href, mailtoScheme)))
		}
		if m := emailPattern.FindString(el.Text); m != "" {
			out.Emails = append(out.Emails, m)
		}

		// A tel: target beats whatever the element's text looks like.
		if strings.HasPrefix(el.Href, telScheme) {
			out.Phones = append(out.Phones, strings.TrimSpace(strings.TrimPrefix(el.Href, telScheme)))
		} else if m := phonePattern.FindString(foldSpaces(el.Text)); m != "" {
			out.Phones = append(out.Phones, strings.TrimSpace(m))
		}
	}

	for _, href := range snap.Anchors {
		classifySocial(&out.Social, href)
	}
	return out
}

// foldSpaces rewrites Unicode space separators (no-break, narrow and
// ideographic spaces) to ASCII spaces so phonePattern sees them as \s.
func foldSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\uFEFF' || (r != ' ' && unicode.Is(unicode.Zs, r)) {
			return ' '
		}
		return r
	}, s)
}

// classifySocial stores href under its platform when it looks like a
// profile link rather than a share widget. Later anchors overwrite earlier ones.
func classifySocial(social *models.SocialLinks, href string) {
	if href == "" {
		return
	}
	hasQuery := strings.Contains(href, "?")

	if facebookPattern.MatchString(href) && !sharerPattern.MatchString(href) && !hasQuery {
		social.Set(models.PlatformFacebook, href)
	}
	if instagramPattern.MatchString(href) && !hasQuery {
		social.Set(models.PlatformInstagram, href)
	}
	if linkedInPattern.MatchString(href) && !sharePattern.MatchString(href) {
		social.Set(models.PlatformLinkedIn, href)
	}
}

// DefaultLinkKeywords select contact, careers and privacy style pages.
var DefaultLinkKeywords = []string{"cont", "join", "care", "priv"}

// DiscoverLinks returns the anchor targets worth visiting for contact data,
// in document order. Duplicates are kept. limit <= 0 means no cap.
func DiscoverLinks(snap *Snapshot, keywords []string, limit int) []string {
	if snap == nil {
		return nil
	}
	if len(keywords) == 0 {
		keywords = DefaultLinkKeywords
	}

	var links []string
	for _, href := range snap.Anchors {
		if href == "" || strings.Contains(href, mailtoScheme) {
			continue
		}
		lower := strings.ToLower(href)
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				links = append(links, href)
				break
			}
		}
		if limit > 0 && len(links) >= limit {
			break
		}
	}
	return links
}
