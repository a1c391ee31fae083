package pattern

import (
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
)

func rate(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestMatchCalleePrefix(t *testing.T) {
	log := slog.Default()
	patterns := []CallPattern{
		{ID: "p1", Pattern: "05", CallType: CallTypeMobile, RatePerMin: rate("0.50")},
		{ID: "p2", Pattern: "01", CallType: CallTypeNational, RatePerMin: rate("0.25")},
	}

	m := MatchCallee(log, "0501234567", patterns)
	if m.CallType != CallTypeMobile || !m.Rate.Equal(rate("0.50")) {
		t.Fatalf("unexpected match: %+v", m)
	}

	m = MatchCallee(log, "011234567", patterns)
	if m.CallType != CallTypeNational {
		t.Fatalf("unexpected match: %+v", m)
	}
}

func TestMatchCalleeSpecialTokens(t *testing.T) {
	log := slog.Default()
	patterns := []CallPattern{
		{ID: "intl", Pattern: "00", CallType: CallTypeInternational, RatePerMin: rate("2.00")},
		{ID: "plus", Pattern: "+", CallType: CallTypeInternational, RatePerMin: rate("2.00")},
		{ID: "local", Pattern: `^\d{4}$`, CallType: CallTypeLocal, RatePerMin: rate("0.00")},
	}

	if m := MatchCallee(log, "00442071234567", patterns); m.CallType != CallTypeInternational {
		t.Fatalf("00 token: %+v", m)
	}
	if m := MatchCallee(log, "+442071234567", patterns); m.CallType != CallTypeInternational {
		t.Fatalf("+ token: %+v", m)
	}
	if m := MatchCallee(log, "1001", patterns); m.CallType != CallTypeLocal {
		t.Fatalf("4-digit token: %+v", m)
	}
	// 5 digits must not match the exact-4 token.
	if m := MatchCallee(log, "10012", patterns); m.CallType == CallTypeLocal {
		t.Fatalf("5-digit callee matched the 4-digit token")
	}
}

func TestMatchCalleeDeterministicPrecedence(t *testing.T) {
	log := slog.Default()

	// "059" is lexically greater than "05": it must win for numbers it
	// matches, regardless of input ordering.
	a := []CallPattern{
		{ID: "broad", Pattern: "05", CallType: CallTypeMobile, RatePerMin: rate("0.50")},
		{ID: "narrow", Pattern: "059", CallType: CallTypeMobile, RatePerMin: rate("0.30")},
	}
	b := []CallPattern{a[1], a[0]}

	for _, patterns := range [][]CallPattern{a, b} {
		m := MatchCallee(log, "0591234567", patterns)
		if m.PatternID != "narrow" {
			t.Fatalf("expected narrow pattern to win, got %+v", m)
		}
		m = MatchCallee(log, "0501234567", patterns)
		if m.PatternID != "broad" {
			t.Fatalf("expected broad pattern to win, got %+v", m)
		}
	}
}

func TestMatchCalleeUnknownFallback(t *testing.T) {
	log := slog.Default()

	patterns := []CallPattern{
		{ID: "p1", Pattern: "05", CallType: CallTypeMobile, RatePerMin: rate("0.50")},
		{ID: "u", Pattern: "zz-fallback", CallType: CallTypeUnknown, RatePerMin: rate("1.10")},
	}
	m := MatchCallee(log, "12345", patterns)
	if m.CallType != CallTypeUnknown || !m.Rate.Equal(rate("1.10")) {
		t.Fatalf("expected unknown fallback with its rate, got %+v", m)
	}

	// No unknown pattern configured: zero-rate unknown.
	m = MatchCallee(log, "12345", patterns[:1])
	if m.CallType != CallTypeUnknown || !m.Rate.IsZero() || m.PatternID != "" {
		t.Fatalf("expected zero-rate unknown, got %+v", m)
	}
}
