package pattern

import (
	"time"

	"github.com/shopspring/decimal"
)

// CallPattern is a company-defined rule mapping a callee-number prefix or
// shape to a call type and a per-minute rate.
//
// Multi-tenant invariant: CompanyID is required on every row.
//
// Pattern text is not unique per company; overlapping patterns are resolved
// by evaluating them in descending lexical order of the pattern text
// (most specific first).
type CallPattern struct {
	ID        string `json:"id" db:"id"`
	CompanyID string `json:"company_id" db:"company_id"`

	// Pattern is a callee prefix (e.g. "05", "9200") or one of the special
	// tokens "+", "00", or the exact-4-digits token.
	Pattern string `json:"pattern" db:"pattern"`

	CallType CallType `json:"call_type" db:"call_type"`

	// RatePerMin is the price per started minute.
	RatePerMin decimal.Decimal `json:"rate_per_min" db:"rate_per_min"`

	Description string `json:"description,omitempty" db:"description"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallType string

const (
	CallTypeMobile        CallType = "mobile"
	CallTypeNational      CallType = "national"
	CallTypeInternational CallType = "international"
	CallTypeLocal         CallType = "local"
	CallTypeUnknown       CallType = "unknown"
)

// ValidCallType reports whether v is a known call type.
func ValidCallType(v CallType) bool {
	switch v {
	case CallTypeMobile, CallTypeNational, CallTypeInternational, CallTypeLocal, CallTypeUnknown:
		return true
	default:
		return false
	}
}
