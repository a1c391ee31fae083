package httpapi

import (
	"errors"
	"net/http"
	"time"

	"cdr-platform/internal/audit"
	"cdr-platform/internal/auth"
	"cdr-platform/internal/directory"
	"cdr-platform/internal/ingest"
	"cdr-platform/internal/notify"
	"cdr-platform/internal/pattern"
	"cdr-platform/internal/quota"
	"cdr-platform/internal/rbac"
	"cdr-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth       *auth.Manager
	Directory  *directory.Service
	Patterns   *pattern.Store
	Billing    BillingAPI
	Ledger     *quota.Ledger
	Reports    ReportsAPI
	Alerts     *notify.Service
	Audit      *audit.Service
	Supervisor *ingest.Supervisor
}

// auditLog appends a best-effort audit event; failures are logged and
// never surfaced to the client.
func (h Handlers) auditLog(c *gin.Context, fn func(companyID, userID, role, ip string) error) {
	if h.Audit == nil {
		return
	}
	companyID, _ := auth.CompanyID(c.Request.Context())
	userID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	if err := fn(companyID, userID, role, c.ClientIP()); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

// --- Auth ---

type loginRequest struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.CompanyID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, company_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.CompanyID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	cid, _ := auth.CompanyID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "company_id": cid, "role": role})
}

// --- Companies ---

type createCompanyRequest struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	ListeningPort *int   `json:"listening_port,omitempty"`
}

func (h Handlers) CreateCompany(c *gin.Context) {
	log := logger.FromGin(c)

	var req createCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	company, err := h.Directory.CreateCompany(c.Request.Context(), req.Name, req.Address, req.Phone, req.ListeningPort)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error("company create failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "company create failed"})
		return
	}

	// A new listening port means a new PBX feed; bring the listener up
	// without a restart.
	if h.Supervisor != nil && company.ListeningPort != nil {
		if err := h.Supervisor.AddPort(*company.ListeningPort); err != nil {
			log.Error("listener start failed for new company", "port", *company.ListeningPort, "err", err)
		}
	}

	c.JSON(http.StatusCreated, company)
}

func (h Handlers) ListCompanies(c *gin.Context) {
	companies, err := h.Directory.ListCompanies(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("company list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "company list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"companies": companies})
}

func (h Handlers) GetCompany(c *gin.Context) {
	company, err := h.Directory.Company(c.Request.Context(), c.Param("company_id"))
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "company not found"})
			return
		}
		logger.FromGin(c).Error("company lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "company lookup failed"})
		return
	}
	c.JSON(http.StatusOK, company)
}

// --- Extensions ---

type createExtensionRequest struct {
	Number    string `json:"number"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// CreateExtension provisions the extension together with its user quota,
// seeded from the company's first quota policy.
func (h Handlers) CreateExtension(c *gin.Context) {
	log := logger.FromGin(c)

	var req createExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ext, err := h.Directory.CreateExtension(c.Request.Context(), c.Param("company_id"), req.Number, req.FirstName, req.LastName, req.Email)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error("extension create failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "extension create failed"})
		return
	}
	c.JSON(http.StatusCreated, ext)
}

func (h Handlers) ListExtensions(c *gin.Context) {
	exts, err := h.Directory.ListExtensions(c.Request.Context(), c.Param("company_id"))
	if err != nil {
		logger.FromGin(c).Error("extension list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "extension list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"extensions": exts})
}

// --- Call patterns ---

type createPatternRequest struct {
	Pattern     string          `json:"pattern"`
	CallType    string          `json:"call_type"`
	RatePerMin  decimal.Decimal `json:"rate_per_min"`
	Description string          `json:"description"`
}

func (h Handlers) CreatePattern(c *gin.Context) {
	log := logger.FromGin(c)

	var req createPatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	p, err := h.Patterns.Create(c.Request.Context(), c.Param("company_id"), req.Pattern, pattern.CallType(req.CallType), req.RatePerMin, req.Description)
	if err != nil {
		if errors.Is(err, pattern.ErrInvalidPattern) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error("pattern create failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "pattern create failed"})
		return
	}

	h.auditLog(c, func(companyID, userID, role, ip string) error {
		return h.Audit.LogPatternChange(c.Request.Context(), companyID, userID, role, ip, p.ID, "pattern created")
	})
	c.JSON(http.StatusCreated, p)
}

func (h Handlers) ListPatterns(c *gin.Context) {
	patterns, err := h.Patterns.ListForCompany(c.Request.Context(), c.Param("company_id"))
	if err != nil {
		logger.FromGin(c).Error("pattern list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "pattern list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": patterns})
}

func (h Handlers) DeletePattern(c *gin.Context) {
	err := h.Patterns.Delete(c.Request.Context(), c.Param("pattern_id"))
	if err != nil {
		if errors.Is(err, pattern.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "pattern not found"})
			return
		}
		logger.FromGin(c).Error("pattern delete failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "pattern delete failed"})
		return
	}

	h.auditLog(c, func(companyID, userID, role, ip string) error {
		return h.Audit.LogPatternChange(c.Request.Context(), companyID, userID, role, ip, c.Param("pattern_id"), "pattern deleted")
	})
	c.Status(http.StatusNoContent)
}

// RecomputePattern re-runs the pricing pipeline over every stored record
// whose callee matches the pattern, so a rate change reaches history.
// Delta accounting keeps quotas correct across the rerun.
func (h Handlers) RecomputePattern(c *gin.Context) {
	log := logger.FromGin(c)

	p, err := h.Patterns.Get(c.Request.Context(), c.Param("pattern_id"))
	if err != nil {
		if errors.Is(err, pattern.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "pattern not found"})
			return
		}
		log.Error("pattern lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "pattern lookup failed"})
		return
	}

	n, err := h.Billing.RecategorizeCompany(c.Request.Context(), p.CompanyID, p.Pattern)
	if err != nil {
		log.Error("recategorization failed", "pattern_id", p.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "recategorization failed"})
		return
	}

	h.auditLog(c, func(companyID, userID, role, ip string) error {
		return h.Audit.LogPatternChange(c.Request.Context(), companyID, userID, role, ip, p.ID, "pattern recompute")
	})
	c.JSON(http.StatusOK, gin.H{"records_reprocessed": n})
}

// --- Ingest operations ---

func (h Handlers) ListIngestPorts(c *gin.Context) {
	if h.Supervisor == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ingest supervisor not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ports": h.Supervisor.Ports()})
}

// Convenience middleware bundles.

func RequireCompanyAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireCompany(), rbac.RequireAnyRole(roles...)}
}
