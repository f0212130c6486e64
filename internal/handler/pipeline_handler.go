package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"spedflow/internal/csvexport"
	"spedflow/internal/domain"
	"spedflow/internal/ingest"
	"spedflow/internal/service"
)

// PipelineHandler handles import and post-processing endpoints.
type PipelineHandler struct {
	pipeline   service.Pipeline
	importRoot string
	logger     *zap.Logger
}

// NewPipelineHandler creates a new PipelineHandler. Local import paths must
// resolve inside importRoot; an empty root accepts only s3:// sources.
func NewPipelineHandler(pipeline service.Pipeline, importRoot string, logger *zap.Logger) *PipelineHandler {
	return &PipelineHandler{pipeline: pipeline, importRoot: importRoot, logger: logger}
}

type periodsRequest struct {
	Periods []string `json:"periods"`
}

// Import handles POST /api/v1/imports
func (h *PipelineHandler) Import(c *gin.Context) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Paths []string `json:"paths" binding:"required,min=1"`
		Force bool     `json:"force"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "paths is required")
		return
	}

	paths, err := h.confinePaths(req.Paths)
	if err != nil {
		h.logger.Warn("rejected import path", zap.String("company_id", companyID.String()), zap.Error(err))
		RespondError(c, http.StatusBadRequest, "PATH_NOT_ALLOWED", err.Error())
		return
	}

	res := h.pipeline.ImportFiles(c.Request.Context(), companyID, paths, req.Force)
	switch res.Status {
	case domain.ImportStatusOK:
		respondResult(c, http.StatusOK, true, "", "", res)
	case domain.ImportStatusConflict:
		respondResult(c, http.StatusConflict, false, "PERIOD_CONFLICT", res.Message, res)
	default:
		respondResult(c, http.StatusUnprocessableEntity, false, "IMPORT_FAILED", res.Message, res)
	}
}

// confinePaths keeps s3:// sources as given and pins local paths under the import root.
func (h *PipelineHandler) confinePaths(paths []string) ([]string, error) {
	out := make([]string, len(paths))
	for i, p := range paths {
		if strings.HasPrefix(p, "s3://") {
			out[i] = p
			continue
		}
		if h.importRoot == "" {
			return nil, fmt.Errorf("%w: local paths are disabled, use s3:// sources", domain.ErrPathOutsideRoot)
		}
		resolved, err := ingest.ConfineLocalPath(h.importRoot, p)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

// Restore handles POST /api/v1/imports/restore
func (h *PipelineHandler) Restore(c *gin.Context) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Period string `json:"period" binding:"required"`
		RunID  string `json:"run_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "period and run_id are required")
		return
	}
	runID, err := uuid.Parse(req.RunID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid run ID")
		return
	}

	restored, err := h.pipeline.RestoreRun(c.Request.Context(), companyID, req.Period, runID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, gin.H{"period": req.Period, "run_id": runID, "restored": restored})
}

// Prepare handles POST /api/v1/pipeline/prepare
func (h *PipelineHandler) Prepare(c *gin.Context) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return
	}
	req, ok := bindPeriods(c)
	if !ok {
		return
	}

	res := h.pipeline.Prepare(c.Request.Context(), companyID, req.Periods)
	if res.Status == domain.PrepareStatusError {
		respondResult(c, http.StatusUnprocessableEntity, false, "PREPARE_FAILED", res.Message, res)
		return
	}
	RespondOK(c, res)
}

// Finalize handles POST /api/v1/pipeline/finalize
func (h *PipelineHandler) Finalize(c *gin.Context) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return
	}
	req, ok := bindPeriods(c)
	if !ok {
		return
	}

	res := h.pipeline.Finalize(c.Request.Context(), companyID, req.Periods)
	if res.Status == domain.FinalizeStatusError {
		respondResult(c, http.StatusUnprocessableEntity, false, "FINALIZE_FAILED", res.Message, res)
		return
	}
	RespondOK(c, res)
}

// State handles GET /api/v1/pipeline/state
func (h *PipelineHandler) State(c *gin.Context) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return
	}
	RespondOK(c, h.pipeline.State(companyID))
}

// ExportLedger handles GET /api/v1/ledger.csv
func (h *PipelineHandler) ExportLedger(c *gin.Context) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return
	}

	periods := queryPeriods(c)
	lines, err := h.pipeline.WorkingLedger(c.Request.Context(), companyID, periods)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	writeCSVHeaders(c, "apuracao_"+strings.Join(periods, "_"))
	w := csvexport.NewWriter(c.Writer)
	if err := w.WriteLedger(lines); err != nil {
		h.logger.Error("writing ledger csv", zap.Error(err))
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.logger.Error("flushing ledger csv", zap.Error(err))
	}
}

// bindPeriods accepts an empty body as "all active periods".
func bindPeriods(c *gin.Context) (periodsRequest, bool) {
	var req periodsRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "periods must be a list of MM/YYYY strings")
		return req, false
	}
	return req, true
}

// queryPeriods reads ?period=01/2024&period=02/2024 or ?periods=01/2024,02/2024.
func queryPeriods(c *gin.Context) []string {
	out := c.QueryArray("period")
	if joined := c.Query("periods"); joined != "" {
		for _, p := range strings.Split(joined, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func writeCSVHeaders(c *gin.Context, name string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, csvexport.BuildFilename(name)))
	c.Status(http.StatusOK)
	_, _ = c.Writer.Write(csvexport.BOM)
}
