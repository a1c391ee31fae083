package reporting

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts call-record access for reporting. Implementations
// must apply the company filter when one is given; reporting itself never
// widens a tenant's view.
type Repository interface {
	ListCallRows(ctx context.Context, companyID string, from, to time.Time) ([]CallRow, error)
}

type Service struct {
	repo Repository

	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCallRows(ctx, req.CompanyID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{CompanyID: req.CompanyID, TotalCost: decimal.Zero}
	for _, r := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += r.DurationSeconds
		out.TotalCost = out.TotalCost.Add(r.TotalCost)
		if isInternalCallee(r.Callee) {
			out.InternalCalls++
		}
		if isInternationalCallee(r.Callee) {
			out.InternationalCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

// UsageSeries buckets call counts over a preset trailing window: the one
// month view uses weekly buckets, the longer views use monthly buckets.
func (s *Service) UsageSeries(ctx context.Context, req UsageSeriesRequest) ([]UsageBucket, error) {
	if s.repo == nil {
		return nil, errors.New("reporting: repository not configured")
	}

	now := s.clock().UTC()
	var from time.Time
	var trunc func(time.Time) time.Time
	switch req.Period {
	case "6m":
		from, trunc = now.AddDate(0, 0, -182), truncMonth
	case "1y":
		from, trunc = now.AddDate(0, 0, -365), truncMonth
	default:
		from, trunc = now.AddDate(0, 0, -30), truncWeek
	}

	rows, err := s.repo.ListCallRows(ctx, req.CompanyID, from, now)
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Time]*UsageBucket)
	for _, r := range rows {
		p := trunc(r.CallTime.UTC())
		b, ok := buckets[p]
		if !ok {
			b = &UsageBucket{Period: p}
			buckets[p] = b
		}
		b.TotalCalls++
		if isInternalCallee(r.Callee) {
			b.InternalCalls++
		}
		if isInternationalCallee(r.Callee) {
			b.InternationalCalls++
		}
	}

	out := make([]UsageBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

// isInternalCallee matches four-digit extension-to-extension calls.
func isInternalCallee(callee string) bool {
	if len(callee) != 4 {
		return false
	}
	for _, r := range callee {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isInternationalCallee(callee string) bool {
	return strings.HasPrefix(callee, "00") || strings.HasPrefix(callee, "+")
}

func truncWeek(t time.Time) time.Time {
	// ISO week: Monday starts the bucket.
	day := truncDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func truncMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func truncDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
