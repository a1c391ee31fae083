package pattern

import (
	"log/slog"
	"regexp"
	"sort"

	"github.com/shopspring/decimal"
)

// Match is the outcome of evaluating a company's patterns against a callee.
type Match struct {
	CallType CallType
	Rate     decimal.Decimal

	// PatternID identifies the winning pattern, empty for the zero-rate
	// unknown fallback.
	PatternID string
}

// exactFourToken is the stored pattern text that matches exactly-4-digit
// callees (internal extensions).
const exactFourToken = `^\d{4}$`

// MatchCallee evaluates patterns against callee in descending lexical order
// of the pattern text and returns the first match.
//
// If nothing matches, the company's unknown-type pattern supplies the rate;
// companies without one get a zero-rate unknown result. A pattern that fails
// to compile is skipped and logged, never fatal.
func MatchCallee(log *slog.Logger, callee string, patterns []CallPattern) Match {
	ordered := make([]CallPattern, len(patterns))
	copy(ordered, patterns)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Pattern > ordered[j].Pattern
	})

	for _, p := range ordered {
		ok, err := p.Matches(callee)
		if err != nil {
			log.Warn("skipping malformed call pattern",
				"pattern_id", p.ID, "pattern", p.Pattern, "err", err)
			continue
		}
		if ok {
			return Match{CallType: p.CallType, Rate: p.RatePerMin, PatternID: p.ID}
		}
	}

	for _, p := range ordered {
		if p.CallType == CallTypeUnknown {
			return Match{CallType: CallTypeUnknown, Rate: p.RatePerMin, PatternID: p.ID}
		}
	}
	return Match{CallType: CallTypeUnknown, Rate: decimal.Zero}
}

// Matches reports whether the pattern's rule matches the callee number.
func (p CallPattern) Matches(callee string) (bool, error) {
	re, err := p.compile()
	if err != nil {
		return false, err
	}
	return re.MatchString(callee), nil
}

// compile translates the stored pattern text into its matching rule:
//
//	"+"            -> any "+" followed by digits
//	"00"           -> any "00" followed by digits
//	exactFourToken -> callee is exactly 4 digits
//	anything else  -> callee starts with the literal text
func (p CallPattern) compile() (*regexp.Regexp, error) {
	switch p.Pattern {
	case "+":
		return regexp.Compile(`^\+\d+`)
	case "00":
		return regexp.Compile(`^00\d+`)
	case exactFourToken:
		return regexp.Compile(p.Pattern)
	default:
		return regexp.Compile(`^` + regexp.QuoteMeta(p.Pattern))
	}
}
