package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/opl-api/internal/middleware"
	"github.com/noah-isme/opl-api/internal/models"
	"github.com/noah-isme/opl-api/internal/service"
)

// Handlers groups everything the router needs.
type Handlers struct {
	Auth     *service.AuthService
	Requests *RequestHandler
	Admin    *AdminHandler
	Metrics  *MetricsHandler
}

// RegisterRoutes wires the full API surface onto the engine. Role gates here
// screen the role class only; ownership checks live in the service layer.
func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group("/api/v1")
	api.Use(middleware.JWT(h.Auth))

	student := middleware.RequireRoles(models.RoleStudent)
	teacher := middleware.RequireRoles(models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleAdmin)

	requests := api.Group("/requests")
	{
		requests.GET("", h.Requests.List)
		requests.GET("/:id", h.Requests.Get)
		requests.POST("", student, h.Requests.Create)
		requests.POST("/:id/fund", student, h.Requests.Fund)
		requests.POST("/:id/dispatch", student, h.Requests.Dispatch)
		requests.POST("/:id/clarification/answer", student, h.Requests.AnswerClarification)
		requests.POST("/:id/complete", student, h.Requests.Complete)
		requests.POST("/:id/dispute", student, h.Requests.Dispute)

		requests.POST("/:id/accept", teacher, h.Requests.Accept)
		requests.POST("/:id/decline", teacher, h.Requests.Decline)
		requests.POST("/:id/clarification", teacher, h.Requests.RaiseClarification)
		requests.POST("/:id/feedback", teacher, h.Requests.Submit)
	}

	adminGroup := api.Group("/admin")
	adminGroup.Use(admin)
	{
		adminGroup.GET("/disputes", h.Admin.ListDisputes)
		adminGroup.POST("/disputes/:id/resolve", h.Admin.ResolveDispute)
		adminGroup.POST("/requests/:id/decline", h.Admin.DeclineRequest)
		adminGroup.GET("/settlements/export", h.Admin.ExportSettlements)
		adminGroup.GET("/stats", h.Admin.Stats)
	}
}
