package normalize

import (
	"reflect"
	"strings"
	"testing"

	"github.com/use-agent/contactcrawl/models"
)

func TestPrimaryEmail(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"empty", nil, ""},
		{"only junk", []string{"logo@2x.png", "banner@site.jpg", "not-an-email"}, ""},
		{"first in discovery order", []string{"jane@example.com", "bob@example.com"}, "jane@example.com"},
		{"info beats earlier candidates", []string{"jane@example.com", "Info@Example.com"}, "info@example.com"},
		{"contact beats support", []string{"support@example.com", "contact@example.com"}, "contact@example.com"},
		{"info beats contact", []string{"contact@example.com", "info@example.com"}, "info@example.com"},
		{"query fragment stripped", []string{" Sales@Example.com?subject=Hi "}, "sales@example.com"},
		{"image suffix never wins", []string{"info@company.png", "hello@example.com"}, "hello@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrimaryEmail(tt.candidates); got != tt.want {
				t.Errorf("PrimaryEmail(%q) = %q, want %q", tt.candidates, got, tt.want)
			}
		})
	}
}

func TestPrimaryEmail_IsMemberOfCleanedSet(t *testing.T) {
	candidates := []string{"B@x.io", "a@x.io?x=1", "pic@x.jpg", "b@x.io", "support@x.io"}
	cleaned := CleanEmails(candidates)
	got := PrimaryEmail(candidates)

	found := false
	for _, e := range cleaned {
		if e == got {
			found = true
		}
	}
	if !found {
		t.Fatalf("primary %q not in cleaned set %#v", got, cleaned)
	}
	if got != "support@x.io" {
		t.Errorf("expected priority prefix to win, got %q", got)
	}
	if want := []string{"b@x.io", "a@x.io", "support@x.io"}; !reflect.DeepEqual(cleaned, want) {
		t.Errorf("cleaned = %#v, want %#v", cleaned, want)
	}
}

func TestLibPhoneValidator(t *testing.T) {
	v := NewLibPhoneValidator("")

	got, ok := v.Canonical("+1 (415) 555-1234")
	if !ok {
		t.Fatal("expected +1 (415) 555-1234 to validate")
	}
	if got != "+1 415-555-1234" {
		t.Errorf("canonical = %q, want %q", got, "+1 415-555-1234")
	}

	for _, raw := range []string{"", "12345", "(415) 555-1234", "2019-2024 all rights"} {
		if got, ok := v.Canonical(raw); ok {
			t.Errorf("Canonical(%q) = %q, expected rejection", raw, got)
		}
	}
}

func TestLibPhoneValidator_PatternChecks(t *testing.T) {
	v := NewLibPhoneValidator(RegionUnknown)
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"+1 (555) 123-4567", "+1 555-123-4567", true},
		{"+15551234567", "+1 555-123-4567", true},
		{"+44 20 7946 0958", "+44 20 7946 0958", true},
		{"+1 555 123", "", false},
		{"+1 (055) 123-4567", "", false},
		{"+1 555 123 4567 8901", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := v.Canonical(tt.raw)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Canonical(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestNormalize_FictionalRangePhone(t *testing.T) {
	res := New(nil).Normalize(Input{Phones: []string{"+1 (555) 123-4567"}})
	if len(res.Phones) != 1 || res.Phones[0] != "+1 555-123-4567" {
		t.Errorf("phones = %#v, want [+1 555-123-4567]", res.Phones)
	}
}

func TestLibPhoneValidator_DefaultRegion(t *testing.T) {
	v := NewLibPhoneValidator("us")
	got, ok := v.Canonical("(415) 555-1234")
	if !ok || got != "+1 415-555-1234" {
		t.Errorf("Canonical with US region = %q, %v", got, ok)
	}
}

func TestNormalize_KeepsSingleValidPhone(t *testing.T) {
	n := New(nil)
	res := n.Normalize(Input{
		Phones: []string{"12345", "+14155551234", "+1 415 555 1234", "+1 (212) 555-0100"},
	})

	if len(res.Phones) != 1 {
		t.Fatalf("expected exactly one phone, got %#v", res.Phones)
	}
	if res.Phones[0] != "+1 415-555-1234" {
		t.Errorf("phone = %q", res.Phones[0])
	}
	if !strings.HasPrefix(res.Phones[0], "+") {
		t.Errorf("phone %q not in international format", res.Phones[0])
	}
}

func TestNormalize_NoValidPhones(t *testing.T) {
	res := New(nil).Normalize(Input{Phones: []string{"call us", "0000000"}})
	if len(res.Phones) != 0 {
		t.Errorf("expected no phones, got %#v", res.Phones)
	}
}

func TestCanonicalSocial(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.linkedin.com/company/example?trk=x", "https://www.linkedin.com/company/example"},
		{"https://www.linkedin.com/company/acme_co-1/about/", "https://www.linkedin.com/company/acme_co-1"},
		{"https://www.linkedin.com/in/jane-doe", "https://www.linkedin.com/in/jane-doe"},
		{"https://linkedin.com/company/no-www", "https://linkedin.com/company/no-www"},
	}
	for _, tt := range tests {
		got := CanonicalSocial(models.SocialLinks{LinkedIn: tt.in, Facebook: "https://facebook.com/x"})
		if got.LinkedIn != tt.want {
			t.Errorf("CanonicalSocial(%q) = %q, want %q", tt.in, got.LinkedIn, tt.want)
		}
		if got.Facebook != "https://facebook.com/x" {
			t.Errorf("facebook changed: %q", got.Facebook)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := New(nil)
	first := n.Normalize(Input{
		Emails: []string{"Jane@Example.com", "contact@example.com?subject=x", "logo@example.png"},
		Phones: []string{"tel", "+1 (415) 555-1234"},
		Social: models.SocialLinks{
			LinkedIn:  "https://www.linkedin.com/company/example?trk=x",
			Instagram: "https://instagram.com/example",
		},
	})

	second := n.Normalize(Input{
		Emails: []string{first.PrimaryEmail},
		Phones: first.Phones,
		Social: first.Social,
	})

	if !reflect.DeepEqual(first, second) {
		t.Errorf("normalize not idempotent:\nfirst  %#v\nsecond %#v", first, second)
	}
	if first.PrimaryEmail != "contact@example.com" {
		t.Errorf("primary email = %q", first.PrimaryEmail)
	}
}

type stubValidator map[string]string

func (s stubValidator) Canonical(raw string) (string, bool) {
	v, ok := s[raw]
	return v, ok
}

func TestNormalize_UsesInjectedValidator(t *testing.T) {
	n := New(stubValidator{"a": "+1", "b": "+1", "c": "+2"})
	res := n.Normalize(Input{Phones: []string{"x", "a", "b", "c"}})
	if !reflect.DeepEqual(res.Phones, []string{"+1"}) {
		t.Errorf("phones = %#v", res.Phones)
	}
}

func TestResult_ContactData(t *testing.T) {
	empty := Result{}.ContactData()
	if empty.Emails == nil || empty.Phones == nil {
		t.Fatal("expected non-nil slices so JSON renders []")
	}
	if empty.HasData() {
		t.Error("empty result should have no data")
	}

	data := Result{PrimaryEmail: "info@example.com"}.ContactData()
	if !reflect.DeepEqual(data.Emails, []string{"info@example.com"}) || !data.HasData() {
		t.Errorf("unexpected contact data %#v", data)
	}
}
