package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"spedflow/internal/csvexport"
	"spedflow/internal/service"
)

// RateHandler exposes the rate catalog to the operator.
type RateHandler struct {
	pipeline service.Pipeline
	catalog  service.RateCatalogService
	logger   *zap.Logger
}

// NewRateHandler creates a new RateHandler.
func NewRateHandler(pipeline service.Pipeline, catalog service.RateCatalogService, logger *zap.Logger) *RateHandler {
	return &RateHandler{pipeline: pipeline, catalog: catalog, logger: logger}
}

// Pending handles GET /api/v1/rates/pending. With ?format=csv the list is
// returned as a spreadsheet for offline editing.
func (h *RateHandler) Pending(c *gin.Context) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return
	}

	items, err := h.pipeline.PendingRates(c.Request.Context(), companyID, queryPeriods(c))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	if c.Query("format") != "csv" {
		RespondOK(c, gin.H{"pending_items": items, "total": len(items)})
		return
	}

	writeCSVHeaders(c, "aliquotas_pendentes")
	w := csvexport.NewWriter(c.Writer)
	if err := w.WritePending(items); err != nil {
		h.logger.Error("writing pending csv", zap.Error(err))
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.logger.Error("flushing pending csv", zap.Error(err))
	}
}

// SetRate handles PUT /api/v1/rates/:id
func (h *RateHandler) SetRate(c *gin.Context) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return
	}

	entryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || entryID <= 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid catalog entry ID")
		return
	}

	var req struct {
		Rate   *string `json:"rate" binding:"required"`
		Legacy bool    `json:"legacy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "rate is required (send an empty string to clear it)")
		return
	}

	entry, err := h.catalog.SetRate(c.Request.Context(), &service.SetRateInput{
		CompanyID: companyID,
		EntryID:   entryID,
		Value:     *req.Rate,
		Legacy:    req.Legacy,
	})
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, entry)
}
