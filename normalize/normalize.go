// Package normalize reduces a site's raw contact candidates to the single
// best email, the single best validated phone and canonical social links.
package normalize

import (
	"regexp"
	"strings"

	"github.com/use-agent/contactcrawl/models"
)

// Input is the aggregated candidate set for one site.
type Input struct {
	Emails []string
	Phones []string
	Social models.SocialLinks
}

// Result is the normalized contact data for one site.
type Result struct {
	// PrimaryEmail is empty when no usable email was found.
	PrimaryEmail string

	// Phones holds at most one validated, internationally formatted number.
	Phones []string

	Social models.SocialLinks
}

// ContactData converts the result to its wire shape.
func (r Result) ContactData() models.ContactData {
	data := models.ContactData{
		Emails: []string{},
		Phones: []string{},
		Social: r.Social,
	}
	if r.PrimaryEmail != "" {
		data.Emails = append(data.Emails, r.PrimaryEmail)
	}
	data.Phones = append(data.Phones, r.Phones...)
	return data
}

// EmailPriority lists the mailbox prefixes preferred as primary email, in order.
var EmailPriority = []string{"info@", "contact@", "support@"}

var (
	imageSuffixes = []string{".png", ".jpg"}

	linkedInCompanyPattern = regexp.MustCompile(`(?i)https?://www\.linkedin\.com/company/[A-Za-z0-9_-]+`)
)

// Normalizer applies the selection rules. It is safe for concurrent use.
type Normalizer struct {
	phones PhoneValidator
}

// New creates a Normalizer. A nil validator falls back to libphonenumber
// with RegionUnknown.
func New(phones PhoneValidator) *Normalizer {
	if phones == nil {
		phones = NewLibPhoneValidator(RegionUnknown)
	}
	return &Normalizer{phones: phones}
}

// Normalize selects the primary email and phone and canonicalizes social links.
func (n *Normalizer) Normalize(in Input) Result {
	return Result{
		PrimaryEmail: PrimaryEmail(in.Emails),
		Phones:       n.validPhones(in.Phones, 1),
		Social:       CanonicalSocial(in.Social),
	}
}

// CleanEmails lower-cases, trims and strips query fragments from the
// candidates, drops image filenames and strings without '@', and removes
// duplicates while keeping discovery order.
func CleanEmails(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	cleaned := make([]string, 0, len(candidates))
	for _, raw := range candidates {
		email := strings.ToLower(raw)
		if i := strings.IndexByte(email, '?'); i >= 0 {
			email = email[:i]
		}
		email = strings.TrimSpace(email)
		if !strings.Contains(email, "@") || hasImageSuffix(email) {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		cleaned = append(cleaned, email)
	}
	return cleaned
}

// PrimaryEmail returns the preferred email among the candidates, or "" when
// none survives cleaning.
func PrimaryEmail(candidates []string) string {
	emails := CleanEmails(candidates)
	for _, prefix := range EmailPriority {
		for _, e := range emails {
			if strings.HasPrefix(e, prefix) {
				return e
			}
		}
	}
	if len(emails) == 0 {
		return ""
	}
	return emails[0]
}

func hasImageSuffix(s string) bool {
	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

// validPhones canonicalizes candidates, drops invalid ones and duplicates,
// and keeps at most max numbers.
func (n *Normalizer) validPhones(candidates []string, max int) []string {
	seen := make(map[string]struct{}, len(candidates))
	valid := make([]string, 0, max)
	for _, raw := range candidates {
		phone, ok := n.phones.Canonical(raw)
		if !ok {
			continue
		}
		if _, dup := seen[phone]; dup {
			continue
		}
		seen[phone] = struct{}{}
		valid = append(valid, phone)
		if len(valid) == max {
			break
		}
	}
	return valid
}

// CanonicalSocial cuts a LinkedIn company URL down to its canonical
// https://www.linkedin.com/company/<name> form. Other shapes are kept as captured.
func CanonicalSocial(social models.SocialLinks) models.SocialLinks {
	if social.LinkedIn != "" {
		if m := linkedInCompanyPattern.FindString(social.LinkedIn); m != "" {
			social.LinkedIn = m
		}
	}
	return social
}
