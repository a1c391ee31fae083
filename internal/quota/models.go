package quota

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quota is a billing allowance policy owned by a company: an amount plus a
// reset frequency. It is a pure policy object; the live balance lives in
// UserQuota.
type Quota struct {
	ID        string `json:"id" db:"id"`
	CompanyID string `json:"company_id" db:"company_id"`
	Name      string `json:"name" db:"name"`

	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Frequency Frequency       `json:"frequency" db:"frequency"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Frequency string

const (
	FrequencyNone    Frequency = "none"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ValidFrequency reports whether v is a known reset frequency.
func ValidFrequency(v Frequency) bool {
	switch v {
	case FrequencyNone, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

// UserQuota is the live prepaid balance for one extension against its
// assigned policy.
//
// Money invariants:
//   - UsedAmount never exceeds TotalAmount after a successful debit; a debit
//     that would overdraw is rejected without mutating state.
//   - RemainingBalance is always derived, never stored.
//   - All balance mutations run as row-locked read-modify-write updates.
type UserQuota struct {
	ID          string  `json:"id" db:"id"`
	ExtensionID string  `json:"extension_id" db:"extension_id"`
	QuotaID     *string `json:"quota_id,omitempty" db:"quota_id"`

	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`
	UsedAmount  decimal.Decimal `json:"used_amount" db:"used_amount"`

	// LastReset anchors the next scheduled reset for the policy frequency.
	LastReset time.Time `json:"last_reset" db:"last_reset"`

	// Policy is the joined quota policy, nil when QuotaID is unset.
	Policy *Quota `json:"policy,omitempty" db:"-"`
}

// RemainingBalance is TotalAmount - UsedAmount.
func (q UserQuota) RemainingBalance() decimal.Decimal {
	return q.TotalAmount.Sub(q.UsedAmount)
}

// ShouldSendAlert reports whether the consumed share of the quota has
// reached 90%. Only quotas with a positive policy amount alert.
func (q UserQuota) ShouldSendAlert() bool {
	if q.Policy == nil || !q.Policy.Amount.IsPositive() {
		return false
	}
	if !q.TotalAmount.IsPositive() {
		return false
	}
	ratio := q.UsedAmount.Div(q.TotalAmount)
	return ratio.GreaterThanOrEqual(decimal.NewFromFloat(0.90))
}

// resetDue reports whether the policy period has elapsed since LastReset.
func (q UserQuota) resetDue(now time.Time) bool {
	if q.Policy == nil {
		return false
	}
	var next time.Time
	switch q.Policy.Frequency {
	case FrequencyDaily:
		next = q.LastReset.AddDate(0, 0, 1)
	case FrequencyWeekly:
		next = q.LastReset.AddDate(0, 0, 7)
	case FrequencyMonthly:
		next = q.LastReset.AddDate(0, 1, 0)
	default:
		return false
	}
	return !now.Before(next)
}

// QuotaAdjustment records a privileged manual balance change for audit.
// It is append-only; the adjustment itself still goes through the normal
// balance mutation path.
type QuotaAdjustment struct {
	ID          string `json:"id" db:"id"`
	ExtensionID string `json:"extension_id" db:"extension_id"`

	ActorUserID string `json:"actor_user_id" db:"actor_user_id"`
	ActorRole   string `json:"actor_role" db:"actor_role"`

	Amount decimal.Decimal `json:"amount" db:"amount"`
	Reason string          `json:"reason,omitempty" db:"reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
