package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"spedflow/internal/domain"
	"spedflow/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// respondResult sends a boundary result. Failed results keep their payload so
// callers can read the status and message.
func respondResult(c *gin.Context, status int, ok bool, code, msg string, data interface{}) {
	resp := APIResponse{Success: ok, Data: data}
	if !ok {
		resp.Error = &APIError{Code: code, Message: msg}
	}
	c.JSON(status, resp)
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "forbidden"
	case errors.Is(err, domain.ErrInvalidRate):
		return http.StatusBadRequest, "INVALID_RATE", "rate must be blank, ST, ISENTO, PAUTA or a percentage between 0 and 100"
	case errors.Is(err, domain.ErrPeriodConflict):
		return http.StatusConflict, "PERIOD_CONFLICT", "period already imported; retry with force to replace it"
	case errors.Is(err, domain.ErrPipelineBusy):
		return http.StatusConflict, "PIPELINE_BUSY", "post-processing already running for this company"
	case errors.Is(err, domain.ErrNoActivePeriods):
		return http.StatusUnprocessableEntity, "NO_ACTIVE_PERIODS", "no active periods for this company"
	case errors.Is(err, domain.ErrNoSourceFiles):
		return http.StatusBadRequest, "NO_SOURCE_FILES", "no readable source files given"
	case errors.Is(err, domain.ErrUnsupportedSource):
		return http.StatusBadRequest, "UNSUPPORTED_SOURCE", "unsupported import source"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error()
	case errors.Is(err, domain.ErrUploadFailed):
		return http.StatusInternalServerError, "UPLOAD_FAILED", "file upload to storage failed"
	case errors.Is(err, domain.ErrRegistryUnavailable):
		return http.StatusServiceUnavailable, "REGISTRY_UNAVAILABLE", "supplier registry unavailable"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// companyFromContext extracts the company ID set by the auth middleware.
// Returns false if it is missing (error response already written).
func companyFromContext(c *gin.Context) (uuid.UUID, bool) {
	companyID, err := middleware.GetCompanyID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing company context")
		return uuid.Nil, false
	}
	return companyID, true
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, logger *zap.Logger, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		requestID, _ := c.Get("request_id")
		logger.Error("internal error", zap.Any("request_id", requestID), zap.Error(err))
	}
	RespondError(c, status, code, msg)
}
