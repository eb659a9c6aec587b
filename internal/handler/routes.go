package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/vertragio/clm-api/internal/middleware"
	"github.com/vertragio/clm-api/internal/models"
	"github.com/vertragio/clm-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth        *AuthHandler
	Contracts   *ContractHandler
	Workflow    *WorkflowHandler
	Rules       *RuleHandler
	Duplicates  *DuplicateHandler
	Aggregation *AggregationHandler
	Archive     *ArchiveHandler
	Deletion    *DeletionHandler
	Tenants     *TenantHandler
	Metrics     *MetricsHandler
}

const (
	roleAdmin    = string(models.RoleAdmin)
	roleOperator = string(models.RoleOperator)
	roleApprover = string(models.RoleApprover)
	roleViewer   = string(models.RoleViewer)
)

// RegisterRoutes mounts the API surface onto the router.
func RegisterRoutes(r *gin.Engine, h Handlers, auth *service.AuthService) {
	r.POST("/auth/login", h.Auth.Login)

	api := r.Group("/api/v1")
	api.Use(middleware.JWT(auth))

	api.GET("/auth/me", h.Auth.Me)

	contracts := api.Group("/contracts")
	{
		contracts.POST("", middleware.RBAC(roleAdmin, roleOperator), h.Contracts.Create)
		contracts.GET("", h.Contracts.List)
		contracts.GET("/:id", h.Contracts.Get)
		contracts.PATCH("/:id", middleware.RBAC(roleAdmin, roleOperator), h.Contracts.Update)
		contracts.GET("/:id/history", h.Contracts.History)

		contracts.POST("/:id/transitions", middleware.RBAC(roleAdmin, roleOperator), h.Workflow.Transition)
		contracts.GET("/:id/transitions", h.Workflow.Transitions)
		contracts.POST("/:id/approvals", middleware.RBAC(roleAdmin, roleOperator), h.Workflow.RequestApproval)
		contracts.GET("/:id/approvals/open", h.Workflow.OpenApproval)
		contracts.POST("/:id/slas", middleware.RBAC(roleAdmin, roleOperator), h.Workflow.CreateSLA)
		contracts.GET("/:id/slas", h.Workflow.SLAs)

		contracts.POST("/:id/archive", middleware.RBAC(roleAdmin, roleOperator), h.Archive.ArchiveContract)
	}

	api.POST("/approvals/:id/resolve", middleware.RBAC(roleAdmin, roleApprover), h.Workflow.ResolveApproval)

	rules := api.Group("/rules", middleware.RBAC(roleAdmin))
	{
		rules.POST("", h.Rules.Create)
		rules.GET("", h.Rules.List)
		rules.PUT("/:id", h.Rules.Update)
		rules.DELETE("/:id", h.Rules.Delete)
	}

	duplicates := api.Group("/duplicates")
	{
		duplicates.POST("/scan", middleware.RBAC(roleAdmin, roleOperator), h.Duplicates.Scan)
		duplicates.GET("", h.Duplicates.List)
		duplicates.GET("/:id", h.Duplicates.Get)
		duplicates.POST("/:id/resolve", middleware.RBAC(roleAdmin, roleOperator), h.Duplicates.Resolve)
	}

	metrics := api.Group("/metrics")
	{
		metrics.GET("/daily", h.Aggregation.Daily)
		metrics.POST("/recompute", middleware.RBAC(roleAdmin, roleOperator), h.Aggregation.Recompute)
		metrics.GET("/range", h.Aggregation.Range)
		metrics.GET("/export", h.Aggregation.Export)
	}

	archives := api.Group("/archives")
	{
		archives.POST("/sweep", middleware.RBAC(roleAdmin), h.Archive.Sweep)
		archives.GET("", h.Archive.List)
		archives.GET("/:id", h.Archive.Get)
	}

	deletions := api.Group("/deletions", middleware.RBAC(roleAdmin))
	{
		deletions.POST("", h.Deletion.Submit)
		deletions.GET("", h.Deletion.List)
		deletions.GET("/:id", h.Deletion.Get)
		deletions.POST("/:id/process", h.Deletion.Process)
	}

	tenants := api.Group("/tenants", middleware.RBAC(roleAdmin))
	{
		tenants.POST("", h.Tenants.Create)
		tenants.GET("", h.Tenants.List)
		tenants.GET("/:id", h.Tenants.Get)
		tenants.PUT("/:id/settings", h.Tenants.UpdateSettings)
		tenants.DELETE("/:id", h.Tenants.Deactivate)
	}

	api.GET("/system/metrics", middleware.RBAC(roleAdmin), h.Metrics.Snapshot)
}
