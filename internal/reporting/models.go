package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallRow is the slice of a call record that reporting aggregates over.
type CallRow struct {
	Callee          string
	CallTime        time.Time
	DurationSeconds int
	TotalCost       decimal.Decimal
}

// CallsSummaryRequest requests aggregated call metrics.
// CompanyID empty means the whole platform (admin dashboard).
type CallsSummaryRequest struct {
	CompanyID string    `json:"company_id,omitempty"`
	Range     TimeRange `json:"range"`
}

type CallsSummary struct {
	CompanyID string `json:"company_id,omitempty"`

	TotalCalls         int `json:"total_calls"`
	InternalCalls      int `json:"internal_calls"`
	InternationalCalls int `json:"international_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	TotalCost decimal.Decimal `json:"total_cost"`
}

// UsageSeriesRequest requests bucketed call counts over a preset window.
// Period is one of "1m" (weekly buckets), "6m", "1y" (monthly buckets);
// anything else falls back to "1m".
type UsageSeriesRequest struct {
	CompanyID string `json:"company_id,omitempty"`
	Period    string `json:"period"`
}

type UsageBucket struct {
	Period time.Time `json:"period"`

	TotalCalls         int `json:"total_calls"`
	InternalCalls      int `json:"internal_calls"`
	InternationalCalls int `json:"international_calls"`
}
