package classify

import (
	"sort"
	"strings"
)

// Classifier maps a raw callee number to a geography/type label using
// layered numbering-plan heuristics. It is a pure lookup component:
// no persistence, no provider calls.
//
// The home numbering plan (mobile/landline shapes, country code) and the
// international calling-code table are injected so tests and future
// deployments can swap them without touching the decision order.
type Classifier struct {
	plan  Plan
	codes []callingCode
}

// Plan describes the home-country numbering plan.
type Plan struct {
	// CountryName is used to build the mobile/landline labels,
	// e.g. "Saudi Arabia" -> "Saudi Arabia Mobile".
	CountryName string

	// CountryCode is the international calling code without prefixes, e.g. "966".
	CountryCode string

	// MobilePrefix is the national mobile prefix, e.g. "05".
	MobilePrefix string

	// LandlineSecondDigits is the set of valid second digits for a
	// 9-digit national landline number starting with "0".
	LandlineSecondDigits string
}

// Labels that do not depend on the home plan.
const (
	LabelInternal           = "Internal Company Call"
	LabelUnknown            = "Unknown"
	LabelInternationalOther = "International - Unknown Country"
)

type callingCode struct {
	code    string
	country string
}

// New builds a Classifier. The calling-code table is flattened and ordered
// longest-code-first (ties broken lexically) so overlapping prefixes resolve
// deterministically to the most specific code.
func New(plan Plan, codes map[string]string) *Classifier {
	cc := make([]callingCode, 0, len(codes))
	for code, country := range codes {
		cc = append(cc, callingCode{code: code, country: country})
	}
	sort.Slice(cc, func(i, j int) bool {
		if len(cc[i].code) != len(cc[j].code) {
			return len(cc[i].code) > len(cc[j].code)
		}
		return cc[i].code < cc[j].code
	})
	return &Classifier{plan: plan, codes: cc}
}

// Default returns a Classifier for the Saudi numbering plan with the
// built-in calling-code table.
func Default() *Classifier {
	return New(Plan{
		CountryName:          "Saudi Arabia",
		CountryCode:          "966",
		MobilePrefix:         "05",
		LandlineSecondDigits: "123467",
	}, CountryCodes)
}

// Classify returns the geography/type label for a raw callee number.
//
// Decision order (first match wins):
//  1. exactly 4 digits            -> internal company call
//  2. 10 digits starting "05"     -> home mobile
//  3. home country code prefix    -> strip it, re-test mobile then landline
//  4. 9 digits, "0" + area digit  -> home landline
//  5. leading "00" or "+"         -> international, calling-code table lookup
//  6. anything else               -> unknown
//
// Non-digit characters are stripped for all length/prefix tests; the original
// string is only consulted for a leading "+".
func (c *Classifier) Classify(raw string) string {
	digits := digitsOnly(raw)

	if len(digits) == 4 {
		return LabelInternal
	}

	if len(digits) == 10 && strings.HasPrefix(digits, c.plan.MobilePrefix) {
		return c.plan.CountryName + " Mobile"
	}

	// Home numbers dialed with an international prefix: strip the country
	// code and re-test the national shapes against the remainder.
	if strings.HasPrefix(digits, "00"+c.plan.CountryCode) {
		digits = digits[2+len(c.plan.CountryCode):]
	} else if strings.HasPrefix(digits, c.plan.CountryCode) && len(digits) > 9 {
		digits = digits[len(c.plan.CountryCode):]
	}

	if len(digits) == 9 && strings.HasPrefix(digits, strings.TrimPrefix(c.plan.MobilePrefix, "0")) {
		return c.plan.CountryName + " Mobile"
	}

	if len(digits) == 9 && digits[0] == '0' && strings.ContainsRune(c.plan.LandlineSecondDigits, rune(digits[1])) {
		return c.plan.CountryName + " Landline"
	}

	if strings.HasPrefix(digits, "00") || strings.HasPrefix(raw, "+") {
		intl := digits
		if strings.HasPrefix(digits, "00") {
			intl = digits[2:]
		}
		for _, cc := range c.codes {
			if strings.HasPrefix(intl, cc.code) {
				return cc.country
			}
		}
		return LabelInternationalOther
	}

	return LabelUnknown
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
