package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestReporting_CompanyIsolation(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Add("c1", CallRow{Callee: "0501234567", CallTime: now, DurationSeconds: 30, TotalCost: decimal.NewFromInt(1)})
	repo.Add("c2", CallRow{Callee: "0501234567", CallTime: now, DurationSeconds: 50, TotalCost: decimal.NewFromInt(2)})
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{CompanyID: "c1", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 {
		t.Fatalf("expected 1 call, got %d", out.TotalCalls)
	}
	if !out.TotalCost.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected cost 1, got %s", out.TotalCost)
	}
}

func TestReporting_SummaryAggregates(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Add("c1", CallRow{Callee: "1002", CallTime: now, DurationSeconds: 10, TotalCost: decimal.Zero})
	repo.Add("c1", CallRow{Callee: "0044123456789", CallTime: now, DurationSeconds: 120, TotalCost: decimal.NewFromInt(8)})
	repo.Add("c1", CallRow{Callee: "+14155550100", CallTime: now, DurationSeconds: 50, TotalCost: decimal.NewFromInt(4)})
	repo.Add("c1", CallRow{Callee: "0501234567", CallTime: now, DurationSeconds: 60, TotalCost: decimal.NewFromInt(1)})
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{CompanyID: "c1", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 4 || out.InternalCalls != 1 || out.InternationalCalls != 2 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	if out.TotalDurationSeconds != 240 || out.AverageDurationSeconds != 60 {
		t.Fatalf("unexpected durations: %+v", out)
	}
	if !out.TotalCost.Equal(decimal.NewFromInt(13)) {
		t.Fatalf("expected total cost 13, got %s", out.TotalCost)
	}
}

func TestReporting_InvalidRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Now().UTC()

	_, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{Range: TimeRange{From: now, To: now.Add(-time.Hour)}})
	if err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestReporting_UsageSeriesWeeklyBuckets(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Date(2025, 7, 26, 12, 0, 0, 0, time.UTC) // Saturday

	// Two calls in the current ISO week, one in the previous week.
	repo.Add("c1", CallRow{Callee: "0501234567", CallTime: now.AddDate(0, 0, -1)})
	repo.Add("c1", CallRow{Callee: "0044123456", CallTime: now.AddDate(0, 0, -2)})
	repo.Add("c1", CallRow{Callee: "1002", CallTime: now.AddDate(0, 0, -8)})

	svc := NewService(repo)
	svc.clock = func() time.Time { return now }

	buckets, err := svc.UsageSeries(context.Background(), UsageSeriesRequest{CompanyID: "c1", Period: "1m"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d: %+v", len(buckets), buckets)
	}
	if !buckets[0].Period.Before(buckets[1].Period) {
		t.Fatalf("buckets out of order: %+v", buckets)
	}
	prev, cur := buckets[0], buckets[1]
	if prev.TotalCalls != 1 || prev.InternalCalls != 1 {
		t.Fatalf("previous week: %+v", prev)
	}
	if cur.TotalCalls != 2 || cur.InternationalCalls != 1 {
		t.Fatalf("current week: %+v", cur)
	}
	// Week buckets start on Monday.
	for _, b := range buckets {
		if b.Period.Weekday() != time.Monday {
			t.Fatalf("bucket not aligned to Monday: %v", b.Period)
		}
	}
}

func TestReporting_UsageSeriesMonthlyBuckets(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Date(2025, 7, 26, 12, 0, 0, 0, time.UTC)

	repo.Add("c1", CallRow{Callee: "0501234567", CallTime: time.Date(2025, 7, 3, 9, 0, 0, 0, time.UTC)})
	repo.Add("c1", CallRow{Callee: "0501234567", CallTime: time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)})

	svc := NewService(repo)
	svc.clock = func() time.Time { return now }

	buckets, err := svc.UsageSeries(context.Background(), UsageSeriesRequest{CompanyID: "c1", Period: "6m"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	if buckets[0].Period.Day() != 1 || buckets[1].Period.Day() != 1 {
		t.Fatalf("month buckets must start on day 1: %+v", buckets)
	}
}
