package quota

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRemainingBalance(t *testing.T) {
	uq := UserQuota{TotalAmount: dec("100.00"), UsedAmount: dec("42.50")}
	if got := uq.RemainingBalance(); !got.Equal(dec("57.50")) {
		t.Fatalf("RemainingBalance = %s, want 57.50", got)
	}
}

func TestResetDueDaily(t *testing.T) {
	anchor := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	uq := UserQuota{
		LastReset: anchor,
		Policy:    &Quota{Amount: dec("100"), Frequency: FrequencyDaily},
	}

	if uq.resetDue(anchor.Add(23 * time.Hour)) {
		t.Fatalf("reset must not be due before one day has passed")
	}
	if !uq.resetDue(anchor.Add(24 * time.Hour)) {
		t.Fatalf("reset must be due exactly one day later")
	}
	if !uq.resetDue(anchor.Add(48 * time.Hour)) {
		t.Fatalf("reset must be due after the period elapsed")
	}
}

func TestResetDueWeeklyAndMonthly(t *testing.T) {
	anchor := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	weekly := UserQuota{LastReset: anchor, Policy: &Quota{Frequency: FrequencyWeekly}}
	if weekly.resetDue(anchor.AddDate(0, 0, 6)) {
		t.Fatalf("weekly reset before 7 days")
	}
	if !weekly.resetDue(anchor.AddDate(0, 0, 7)) {
		t.Fatalf("weekly reset at 7 days")
	}

	// Calendar-month arithmetic: Jan 31 + 1 month normalizes to Mar 3.
	monthly := UserQuota{LastReset: anchor, Policy: &Quota{Frequency: FrequencyMonthly}}
	if monthly.resetDue(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("monthly reset fired too early")
	}
	if !monthly.resetDue(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("monthly reset did not fire")
	}
}

func TestResetDueNoPolicyOrNone(t *testing.T) {
	now := time.Now().UTC()

	uq := UserQuota{LastReset: now.AddDate(0, -1, 0)}
	if uq.resetDue(now) {
		t.Fatalf("quota without policy must never reset")
	}

	uq.Policy = &Quota{Frequency: FrequencyNone}
	if uq.resetDue(now) {
		t.Fatalf("frequency none must never reset")
	}
}

func TestShouldSendAlert(t *testing.T) {
	policy := &Quota{Amount: dec("100")}

	cases := []struct {
		used string
		want bool
	}{
		{"89.99", false},
		{"90.00", true},
		{"95.00", true},
	}
	for _, c := range cases {
		uq := UserQuota{TotalAmount: dec("100"), UsedAmount: dec(c.used), Policy: policy}
		if got := uq.ShouldSendAlert(); got != c.want {
			t.Fatalf("used=%s: ShouldSendAlert = %v, want %v", c.used, got, c.want)
		}
	}

	// No policy, or zero policy amount: never alert.
	uq := UserQuota{TotalAmount: dec("100"), UsedAmount: dec("99")}
	if uq.ShouldSendAlert() {
		t.Fatalf("alert without policy")
	}
	uq.Policy = &Quota{Amount: decimal.Zero}
	if uq.ShouldSendAlert() {
		t.Fatalf("alert with zero policy amount")
	}
}
