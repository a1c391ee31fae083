package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cdr-platform/internal/auth"
	"cdr-platform/internal/billing"
	"cdr-platform/internal/config"
	"cdr-platform/internal/reporting"

	"github.com/gin-gonic/gin"
)

type fakeBilling struct {
	record    billing.CallRecord
	recordErr error

	processed *billing.CallRecord
	recatN    int
}

func (f *fakeBilling) Record(context.Context, string) (billing.CallRecord, error) {
	return f.record, f.recordErr
}

func (f *fakeBilling) ListRecords(context.Context, string, int, int) ([]billing.CallRecord, error) {
	return []billing.CallRecord{f.record}, nil
}

func (f *fakeBilling) Process(_ context.Context, rec billing.CallRecord) (billing.CallRecord, error) {
	f.processed = &rec
	return rec, nil
}

func (f *fakeBilling) Reprocess(context.Context, string) (billing.CallRecord, error) {
	return f.record, f.recordErr
}

func (f *fakeBilling) RecategorizeCompany(context.Context, string, string) (int, error) {
	return f.recatN, nil
}

type fakeReports struct{}

func (fakeReports) CallsSummary(_ context.Context, req reporting.CallsSummaryRequest) (reporting.CallsSummary, error) {
	if !req.Range.To.After(req.Range.From) {
		return reporting.CallsSummary{}, reporting.ErrInvalidRequest
	}
	return reporting.CallsSummary{CompanyID: req.CompanyID, TotalCalls: 3}, nil
}

func (fakeReports) UsageSeries(context.Context, reporting.UsageSeriesRequest) ([]reporting.UsageBucket, error) {
	return nil, nil
}

func newAuthManager(t *testing.T) *auth.Manager {
	t.Helper()
	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}
	return m
}

func TestLoginIssuesTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := Handlers{Auth: newAuthManager(t)}
	r := gin.New()
	r.POST("/login", h.Login)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"user_id":"u1","company_id":"c1","role":"admin"}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login: code=%d body=%q", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "access_token") {
		t.Fatalf("missing access token: %q", w.Body.String())
	}
}

func TestLoginRejectsIncomplete(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := Handlers{Auth: newAuthManager(t)}
	r := gin.New()
	r.POST("/login", h.Login)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"user_id":"u1"}`))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUpdateRecordAppliesEditAndReprocesses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dur := 60
	fb := &fakeBilling{record: billing.CallRecord{
		ID:              "r1",
		Caller:          "1001",
		Callee:          "0501234567",
		DurationSeconds: &dur,
	}}
	h := Handlers{Billing: fb}
	r := gin.New()
	r.PUT("/records/:record_id", h.UpdateRecord)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/records/r1",
		strings.NewReader(`{"duration_seconds":330,"callee":"0509999999"}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("update: code=%d body=%q", w.Code, w.Body.String())
	}
	if fb.processed == nil {
		t.Fatalf("pipeline not invoked")
	}
	if fb.processed.ID != "r1" {
		t.Fatalf("edit must keep the record identity, got %q", fb.processed.ID)
	}
	if fb.processed.DurationSeconds == nil || *fb.processed.DurationSeconds != 330 {
		t.Fatalf("duration not applied: %v", fb.processed.DurationSeconds)
	}
	if fb.processed.Callee != "0509999999" || fb.processed.ExternalNumber != "0509999999" {
		t.Fatalf("callee not applied: %q/%q", fb.processed.Callee, fb.processed.ExternalNumber)
	}
	if fb.processed.Caller != "1001" {
		t.Fatalf("unedited field changed: %q", fb.processed.Caller)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := Handlers{Billing: &fakeBilling{recordErr: billing.ErrNotFound}}
	r := gin.New()
	r.GET("/records/:record_id", h.GetRecord)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/records/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCallsSummaryReportValidatesRange(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := Handlers{Reports: fakeReports{}}
	r := gin.New()
	r.GET("/reports/summary", h.CallsSummaryReport)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reports/summary?from=bad&to=worse", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timestamps, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/reports/summary?from=2025-07-01T00:00:00Z&to=2025-07-26T00:00:00Z&company_id=c1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%q", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"total_calls":3`) {
		t.Fatalf("unexpected body: %q", w.Body.String())
	}
}
