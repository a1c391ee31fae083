package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cdr-platform/internal/auth"
	"cdr-platform/internal/billing"
	"cdr-platform/internal/quota"
	"cdr-platform/internal/reporting"
	"cdr-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// BillingAPI is the slice of the pricing pipeline the HTTP layer needs.
type BillingAPI interface {
	Record(ctx context.Context, id string) (billing.CallRecord, error)
	ListRecords(ctx context.Context, companyID string, limit, offset int) ([]billing.CallRecord, error)
	Process(ctx context.Context, rec billing.CallRecord) (billing.CallRecord, error)
	Reprocess(ctx context.Context, recordID string) (billing.CallRecord, error)
	RecategorizeCompany(ctx context.Context, companyID, patternText string) (int, error)
}

// ReportsAPI is the reporting surface exposed over HTTP.
type ReportsAPI interface {
	CallsSummary(ctx context.Context, req reporting.CallsSummaryRequest) (reporting.CallsSummary, error)
	UsageSeries(ctx context.Context, req reporting.UsageSeriesRequest) ([]reporting.UsageBucket, error)
}

// --- Call records ---

func (h Handlers) ListRecords(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	recs, err := h.Billing.ListRecords(c.Request.Context(), c.Query("company_id"), limit, offset)
	if err != nil {
		logger.FromGin(c).Error("record list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "record list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

func (h Handlers) GetRecord(c *gin.Context) {
	rec, err := h.Billing.Record(c.Request.Context(), c.Param("record_id"))
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		logger.FromGin(c).Error("record lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "record lookup failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

type updateRecordRequest struct {
	Caller          *string    `json:"caller,omitempty"`
	Callee          *string    `json:"callee,omitempty"`
	CallTime        *time.Time `json:"call_time,omitempty"`
	DurationSeconds *int       `json:"duration_seconds,omitempty"`
}

// UpdateRecord edits a stored record and re-runs the pricing pipeline.
// The quota moves by the cost delta, not the absolute new cost, so
// repeated edits never double-charge.
func (h Handlers) UpdateRecord(c *gin.Context) {
	log := logger.FromGin(c)

	var req updateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	rec, err := h.Billing.Record(c.Request.Context(), c.Param("record_id"))
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		log.Error("record lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "record lookup failed"})
		return
	}

	if req.Caller != nil {
		rec.Caller = *req.Caller
	}
	if req.Callee != nil {
		rec.Callee = *req.Callee
		rec.ExternalNumber = *req.Callee
	}
	if req.CallTime != nil {
		rec.CallTime = *req.CallTime
	}
	if req.DurationSeconds != nil {
		rec.DurationSeconds = req.DurationSeconds
	}

	updated, err := h.Billing.Process(c.Request.Context(), rec)
	if err != nil {
		log.Error("record update failed", "record_id", rec.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "record update failed"})
		return
	}

	h.auditLog(c, func(companyID, userID, role, ip string) error {
		return h.Audit.LogRecordEdit(c.Request.Context(), companyID, userID, role, ip, updated.ID, "")
	})
	c.JSON(http.StatusOK, updated)
}

func (h Handlers) ReprocessRecord(c *gin.Context) {
	rec, err := h.Billing.Reprocess(c.Request.Context(), c.Param("record_id"))
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		logger.FromGin(c).Error("record reprocess failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "record reprocess failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// --- Quota policies and balances ---

type createQuotaRequest struct {
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Frequency string          `json:"frequency"`
}

func (h Handlers) CreateQuotaPolicy(c *gin.Context) {
	log := logger.FromGin(c)

	var req createQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	q, err := h.Ledger.CreatePolicy(c.Request.Context(), c.Param("company_id"), req.Name, req.Amount, quota.Frequency(req.Frequency))
	if err != nil {
		if errors.Is(err, quota.ErrInvalidPolicy) || errors.Is(err, quota.ErrInvalidAmount) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error("quota policy create failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "quota policy create failed"})
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h Handlers) ListQuotaPolicies(c *gin.Context) {
	policies, err := h.Ledger.ListPolicies(c.Request.Context(), c.Param("company_id"))
	if err != nil {
		logger.FromGin(c).Error("quota policy list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "quota policy list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotas": policies})
}

func (h Handlers) GetUserQuota(c *gin.Context) {
	uq, err := h.Ledger.Get(c.Request.Context(), c.Param("extension_id"))
	if err != nil {
		if errors.Is(err, quota.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "quota not found"})
			return
		}
		logger.FromGin(c).Error("quota lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "quota lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"quota":             uq,
		"remaining_balance": uq.RemainingBalance(),
	})
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// TopUpUserQuota performs an admin balance grant and leaves an audit row.
func (h Handlers) TopUpUserQuota(c *gin.Context) {
	log := logger.FromGin(c)

	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	actorID, _ := auth.UserID(c.Request.Context())
	actorRole, _ := auth.Role(c.Request.Context())

	uq, err := h.Ledger.AddCustomBalance(c.Request.Context(), c.Param("extension_id"), req.Amount, actorID, actorRole, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, quota.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "quota not found"})
		case errors.Is(err, quota.ErrInvalidAmount):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Error("top-up failed", "extension_id", c.Param("extension_id"), "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "top-up failed"})
		}
		return
	}

	h.auditLog(c, func(companyID, userID, role, ip string) error {
		return h.Audit.LogQuotaTopUp(c.Request.Context(), companyID, userID, role, ip,
			c.Param("extension_id"), "granted "+req.Amount.String())
	})
	c.JSON(http.StatusOK, gin.H{
		"quota":             uq,
		"remaining_balance": uq.RemainingBalance(),
	})
}

// --- Reports ---

func (h Handlers) CallsSummaryReport(c *gin.Context) {
	from, err1 := time.Parse(time.RFC3339, c.Query("from"))
	to, err2 := time.Parse(time.RFC3339, c.Query("to"))
	if err1 != nil || err2 != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to must be RFC3339 timestamps"})
		return
	}

	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		CompanyID: c.Query("company_id"),
		Range:     reporting.TimeRange{From: from, To: to},
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.FromGin(c).Error("summary report failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) UsageSeriesReport(c *gin.Context) {
	out, err := h.Reports.UsageSeries(c.Request.Context(), reporting.UsageSeriesRequest{
		CompanyID: c.Query("company_id"),
		Period:    c.Query("period"),
	})
	if err != nil {
		logger.FromGin(c).Error("usage report failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "usage report failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"buckets": out})
}

// --- Maintenance sweeps ---

// ResetSweep eagerly applies any due quota resets. The ledger also resets
// lazily on first touch; this endpoint exists for the nightly cron.
func (h Handlers) ResetSweep(c *gin.Context) {
	n, err := h.Ledger.ResetDue(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("reset sweep failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reset sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quotas_reset": n})
}

func (h Handlers) LowBalanceSweep(c *gin.Context) {
	if h.Alerts == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "notifications not configured"})
		return
	}
	n, err := h.Alerts.LowBalanceSweep(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("low balance sweep failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "low balance sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts_sent": n})
}

func (h Handlers) ListNotifications(c *gin.Context) {
	if h.Alerts == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "notifications not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	out, err := h.Alerts.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.FromGin(c).Error("notification list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "notification list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}
