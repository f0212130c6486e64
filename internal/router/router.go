package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"spedflow/internal/domain"
	"spedflow/internal/handler"
	"spedflow/internal/middleware"
	"spedflow/internal/observability"
	"spedflow/internal/service"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	logger *zap.Logger,
	metrics *observability.Metrics,
	allowedOrigins []string,
	tokens service.TokenService,
	pipelineH *handler.PipelineHandler,
	rateH *handler.RateHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks and scraping
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	// Protected routes - require valid JWT
	v1 := r.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(tokens))

	operator := middleware.RequireRole(domain.RoleOperator)
	anyRole := middleware.RequireRole(domain.RoleOperator, domain.RoleViewer)

	imports := v1.Group("/imports")
	imports.POST("", operator, pipelineH.Import)
	imports.POST("/restore", operator, pipelineH.Restore)

	pipeline := v1.Group("/pipeline")
	pipeline.GET("/state", anyRole, pipelineH.State)
	pipeline.POST("/prepare", operator, pipelineH.Prepare)
	pipeline.POST("/finalize", operator, pipelineH.Finalize)

	rates := v1.Group("/rates")
	rates.GET("/pending", anyRole, rateH.Pending)
	rates.PUT("/:id", operator, rateH.SetRate)

	v1.GET("/ledger.csv", anyRole, pipelineH.ExportLedger)

	return r
}
