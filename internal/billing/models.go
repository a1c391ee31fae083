package billing

import (
	"time"

	"cdr-platform/internal/pattern"

	"github.com/shopspring/decimal"
)

// CallRecord is one priced call-detail record.
//
// Derived fields (Country, CallCategory, CallRate, TotalCost) are computed
// by the pricing pipeline inside the same transaction that persists the
// row. On edit they are recomputed and the quota is adjusted by the cost
// delta, never by the absolute new cost.
//
// CompanyID is a weak reference: nulled when the company is deleted, the
// record is retained for audit.
type CallRecord struct {
	ID        string  `json:"id" db:"id"`
	CompanyID *string `json:"company_id,omitempty" db:"company_id"`

	Caller string `json:"caller" db:"caller"`
	Callee string `json:"callee" db:"callee"`

	CallTime time.Time `json:"call_time" db:"call_time"`

	// ExternalNumber mirrors the callee as reported by the PBX.
	ExternalNumber string `json:"external_number" db:"external_number"`

	// DurationSeconds is nil when the PBX did not report a duration.
	DurationSeconds *int `json:"duration,omitempty" db:"duration"`

	TimeAnswered *time.Time `json:"time_answered,omitempty" db:"time_answered"`
	TimeEnd      *time.Time `json:"time_end,omitempty" db:"time_end"`

	ReasonTerminated string `json:"reason_terminated,omitempty" db:"reason_terminated"`
	ReasonChanged    string `json:"reason_changed,omitempty" db:"reason_changed"`
	MissedQueueCalls string `json:"missed_queue_calls,omitempty" db:"missed_queue_calls"`

	FromNo        string `json:"from_no,omitempty" db:"from_no"`
	FromType      string `json:"from_type,omitempty" db:"from_type"`
	FromDispname  string `json:"from_dispname,omitempty" db:"from_dispname"`
	ToNo          string `json:"to_no,omitempty" db:"to_no"`
	ToDN          string `json:"to_dn,omitempty" db:"to_dn"`
	ToType        string `json:"to_type,omitempty" db:"to_type"`
	ToDispname    string `json:"to_dispname,omitempty" db:"to_dispname"`
	FinalNumber   string `json:"final_number,omitempty" db:"final_number"`
	FinalDN       string `json:"final_dn,omitempty" db:"final_dn"`
	FinalType     string `json:"final_type,omitempty" db:"final_type"`
	FinalDispname string `json:"final_dispname,omitempty" db:"final_dispname"`

	Country      string           `json:"country" db:"country"`
	CallCategory pattern.CallType `json:"call_category" db:"call_category"`

	CallRate  decimal.Decimal `json:"call_rate" db:"call_rate"`
	TotalCost decimal.Decimal `json:"total_cost" db:"total_cost"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TotalCostFor computes the call cost with minute rounding: any started
// minute is billed in full, so one second of talk time costs one minute.
// A nil or non-positive duration yields zero.
func TotalCostFor(durationSeconds *int, ratePerMin decimal.Decimal) decimal.Decimal {
	if durationSeconds == nil || *durationSeconds <= 0 {
		return decimal.Zero
	}
	minutes := int64((*durationSeconds + 59) / 60)
	return ratePerMin.Mul(decimal.NewFromInt(minutes))
}
