package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// RegistryStatus exposes the supplier registry circuit breaker.
type RegistryStatus interface {
	BreakerState() string
}

// PipelineStatus exposes how many pipeline calls are in flight.
type PipelineStatus interface {
	Running() int
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db       *sqlx.DB
	registry RegistryStatus
	pipeline PipelineStatus
}

// NewHealthHandler creates a new HealthHandler. registry and pipeline may be nil.
func NewHealthHandler(db *sqlx.DB, registry RegistryStatus, pipeline PipelineStatus) *HealthHandler {
	return &HealthHandler{db: db, registry: registry, pipeline: pipeline}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz. Only the database gates readiness; an open
// registry breaker degrades enrichment, so it is reported without failing.
func (h *HealthHandler) Readiness(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database not reachable"})
		return
	}

	status := "ok"
	checks := gin.H{"database": "ok"}
	if h.registry != nil {
		state := h.registry.BreakerState()
		checks["registry"] = state
		if state == "open" {
			status = "degraded"
		}
	}
	if h.pipeline != nil {
		checks["pipelines_running"] = h.pipeline.Running()
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "checks": checks})
}
