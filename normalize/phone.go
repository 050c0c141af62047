package normalize

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/nyaruka/phonenumbers"
)

// PhoneValidator turns a raw phone candidate into its canonical form.
// ok is false for anything that is not a valid phone number.
type PhoneValidator interface {
	Canonical(raw string) (canonical string, ok bool)
}

// RegionUnknown makes the parser accept only numbers that carry their own
// country code.
const RegionUnknown = "ZZ"

// LibPhoneValidator checks numbers against the length and general number
// pattern of their country and formats them in international notation,
// e.g. "+1 415-555-1234". Per-type ranges (fixed line, mobile, ...) are not
// consulted, so fictional ranges such as 555 still pass.
type LibPhoneValidator struct {
	region string
}

// NewLibPhoneValidator creates a validator. An empty region means RegionUnknown.
func NewLibPhoneValidator(region string) *LibPhoneValidator {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = RegionUnknown
	}
	return &LibPhoneValidator{region: region}
}

func (v *LibPhoneValidator) Canonical(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	number, err := phonenumbers.Parse(raw, v.region)
	if err != nil {
		return "", false
	}
	if phonenumbers.IsPossibleNumberWithReason(number) != phonenumbers.IS_POSSIBLE {
		return "", false
	}
	if !matchesGeneralPattern(number) {
		return "", false
	}
	return phonenumbers.Format(number, phonenumbers.INTERNATIONAL), true
}

// generalPatterns maps a country calling code to the general national
// number patterns of every region sharing it.
var generalPatterns = sync.OnceValue(func() map[int32][]*regexp.Regexp {
	patterns := make(map[int32][]*regexp.Regexp)
	coll, err := phonenumbers.MetadataCollection()
	if err != nil || coll == nil {
		slog.Error("load phone metadata", "error", err)
		return patterns
	}
	for _, md := range coll.GetMetadata() {
		p := md.GetGeneralDesc().GetNationalNumberPattern()
		if p == "" {
			continue
		}
		re, err := regexp.Compile(`^(?:` + p + `)$`)
		if err != nil {
			continue
		}
		patterns[md.GetCountryCode()] = append(patterns[md.GetCountryCode()], re)
	}
	return patterns
})

func matchesGeneralPattern(number *phonenumbers.PhoneNumber) bool {
	nsn := phonenumbers.GetNationalSignificantNumber(number)
	for _, re := range generalPatterns()[number.GetCountryCode()] {
		if re.MatchString(nsn) {
			return true
		}
	}
	return false
}
