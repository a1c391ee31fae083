package main

import (
	"database/sql"
	"time"

	"cdr-platform/internal/httpapi"
	"cdr-platform/internal/ingest"
	"cdr-platform/internal/rbac"
	"cdr-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, cdr ingest.HTTPHandler, authMW gin.HandlerFunc, db *sql.DB) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// PBX CDR feed (public by design: the PBX cannot authenticate).
	// Registered with Any so the handler can answer non-POST with 405.
	r.Any("/cdr", cdr.HandleCDR)

	// Token issuance sits outside the auth middleware.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", h.Me)

		// ADMIN routes: tenant and billing administration.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireCompany())
		admin.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAdmin, rbac.RoleSuperAdmin))
		{
			admin.POST("/companies", h.CreateCompany)
			admin.GET("/companies", h.ListCompanies)
			admin.GET("/companies/:company_id", h.GetCompany)

			admin.POST("/companies/:company_id/extensions", h.CreateExtension)
			admin.GET("/companies/:company_id/extensions", h.ListExtensions)

			admin.POST("/companies/:company_id/patterns", h.CreatePattern)
			admin.GET("/companies/:company_id/patterns", h.ListPatterns)
			admin.DELETE("/patterns/:pattern_id", h.DeletePattern)
			admin.POST("/patterns/:pattern_id/recompute", h.RecomputePattern)

			admin.POST("/companies/:company_id/quotas", h.CreateQuotaPolicy)
			admin.GET("/companies/:company_id/quotas", h.ListQuotaPolicies)

			admin.GET("/ingest/ports", h.ListIngestPorts)
		}

		// BILLING routes: record inspection, edits, quota balances, reports.
		billing := v1.Group("/admin")
		billing.Use(rbac.RequireCompany())
		billing.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAdmin, rbac.RoleBilling, rbac.RoleSuperAdmin))
		{
			billing.GET("/records", h.ListRecords)
			billing.GET("/records/:record_id", h.GetRecord)
			billing.PUT("/records/:record_id", h.UpdateRecord)
			billing.POST("/records/:record_id/reprocess", h.ReprocessRecord)

			billing.GET("/extensions/:extension_id/quota", h.GetUserQuota)
			billing.POST("/extensions/:extension_id/quota/topup", h.TopUpUserQuota)

			billing.GET("/reports/summary", h.CallsSummaryReport)
			billing.GET("/reports/usage", h.UsageSeriesReport)

			billing.GET("/notifications", h.ListNotifications)
		}

		// Maintenance sweeps, intended for the scheduler.
		maint := v1.Group("/admin/maintenance")
		maint.Use(rbac.RequireCompany())
		maint.Use(rbac.RequireAnyRole(rbac.RoleSuperAdmin, rbac.RoleProvisioner))
		{
			maint.POST("/quotas/reset-sweep", h.ResetSweep)
			maint.POST("/quotas/low-balance-sweep", h.LowBalanceSweep)
		}
	}
}
