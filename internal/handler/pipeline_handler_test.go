package handler_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"spedflow/internal/csvexport"
	"spedflow/internal/domain"
	"spedflow/internal/handler"
	"spedflow/internal/middleware"
	"spedflow/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setAuthContext(c *gin.Context, companyID uuid.UUID, role domain.Role) {
	c.Set(middleware.ContextKeyCompanyID, companyID)
	c.Set(middleware.ContextKeySubject, "ana@acme.com.br")
	c.Set(middleware.ContextKeyRole, string(role))
}

func newJSONContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if body == "" {
		c.Request, _ = http.NewRequest(method, target, http.NoBody)
	} else {
		c.Request, _ = http.NewRequest(method, target, bytes.NewBufferString(body))
		c.Request.Header.Set("Content-Type", "application/json")
	}
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestPipelineHandler_Import(t *testing.T) {
	companyID := uuid.New()

	tests := []struct {
		name       string
		result     domain.ImportResult
		wantStatus int
		wantOK     bool
	}{
		{name: "ok", result: domain.ImportResult{Status: domain.ImportStatusOK, Period: "01/2024"}, wantStatus: http.StatusOK, wantOK: true},
		{name: "conflict", result: domain.ImportResult{Status: domain.ImportStatusConflict, Message: "01/2024 already imported"}, wantStatus: http.StatusConflict},
		{name: "error", result: domain.ImportResult{Status: domain.ImportStatusError, Message: "missing 0000"}, wantStatus: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := new(mocks.MockPipeline)
			pipeline.On("ImportFiles", mock.Anything, companyID, []string{"s3://sped/jan.txt"}, true).Return(tt.result)
			h := handler.NewPipelineHandler(pipeline, "", zap.NewNop())

			c, w := newJSONContext(http.MethodPost, "/api/v1/imports", `{"paths":["s3://sped/jan.txt"],"force":true}`)
			setAuthContext(c, companyID, domain.RoleOperator)
			h.Import(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode(t, w)
			assert.Equal(t, tt.wantOK, resp.Success)
			if !tt.wantOK {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.result.Message, resp.Error.Message)
			}
			pipeline.AssertExpectations(t)
		})
	}

	t.Run("missing_paths", func(t *testing.T) {
		pipeline := new(mocks.MockPipeline)
		h := handler.NewPipelineHandler(pipeline, "", zap.NewNop())

		c, w := newJSONContext(http.MethodPost, "/api/v1/imports", `{"paths":[]}`)
		setAuthContext(c, companyID, domain.RoleOperator)
		h.Import(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		pipeline.AssertNotCalled(t, "ImportFiles", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing_company", func(t *testing.T) {
		h := handler.NewPipelineHandler(new(mocks.MockPipeline), "", zap.NewNop())
		c, w := newJSONContext(http.MethodPost, "/api/v1/imports", `{"paths":["a"]}`)
		h.Import(c)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("local_paths_need_import_root", func(t *testing.T) {
		pipeline := new(mocks.MockPipeline)
		h := handler.NewPipelineHandler(pipeline, "", zap.NewNop())

		c, w := newJSONContext(http.MethodPost, "/api/v1/imports", `{"paths":["/etc/passwd"]}`)
		setAuthContext(c, companyID, domain.RoleOperator)
		h.Import(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "PATH_NOT_ALLOWED", decode(t, w).Error.Code)
		pipeline.AssertNotCalled(t, "ImportFiles", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("local_paths_resolve_inside_root", func(t *testing.T) {
		root, err := filepath.EvalSymlinks(t.TempDir())
		require.NoError(t, err)
		pipeline := new(mocks.MockPipeline)
		pipeline.On("ImportFiles", mock.Anything, companyID, []string{filepath.Join(root, "jan.txt")}, false).
			Return(domain.ImportResult{Status: domain.ImportStatusOK})
		h := handler.NewPipelineHandler(pipeline, root, zap.NewNop())

		c, w := newJSONContext(http.MethodPost, "/api/v1/imports", `{"paths":["jan.txt"]}`)
		setAuthContext(c, companyID, domain.RoleOperator)
		h.Import(c)

		assert.Equal(t, http.StatusOK, w.Code)
		pipeline.AssertExpectations(t)
	})

	t.Run("escaping_root_is_rejected", func(t *testing.T) {
		pipeline := new(mocks.MockPipeline)
		h := handler.NewPipelineHandler(pipeline, t.TempDir(), zap.NewNop())

		c, w := newJSONContext(http.MethodPost, "/api/v1/imports", `{"paths":["../../etc/passwd"]}`)
		setAuthContext(c, companyID, domain.RoleOperator)
		h.Import(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		pipeline.AssertNotCalled(t, "ImportFiles", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPipelineHandler_Prepare(t *testing.T) {
	companyID := uuid.New()

	t.Run("empty_body_means_all_periods", func(t *testing.T) {
		pipeline := new(mocks.MockPipeline)
		pipeline.On("Prepare", mock.Anything, companyID, []string(nil)).Return(domain.PrepareResult{
			Status:       domain.PrepareStatusNeedsInput,
			Periods:      []string{"01/2024"},
			PendingItems: []domain.PendingItem{{ID: 3, Product: "PARAFUSO"}},
		})
		h := handler.NewPipelineHandler(pipeline, "", zap.NewNop())

		c, w := newJSONContext(http.MethodPost, "/api/v1/pipeline/prepare", "")
		setAuthContext(c, companyID, domain.RoleOperator)
		h.Prepare(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"needsInput"`)
		assert.Contains(t, w.Body.String(), `"PARAFUSO"`)
	})

	t.Run("error_status", func(t *testing.T) {
		pipeline := new(mocks.MockPipeline)
		pipeline.On("Prepare", mock.Anything, companyID, []string{"01/2024"}).Return(domain.PrepareResult{
			Status:  domain.PrepareStatusError,
			Message: "registry unavailable",
		})
		h := handler.NewPipelineHandler(pipeline, "", zap.NewNop())

		c, w := newJSONContext(http.MethodPost, "/api/v1/pipeline/prepare", `{"periods":["01/2024"]}`)
		setAuthContext(c, companyID, domain.RoleOperator)
		h.Prepare(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decode(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, "PREPARE_FAILED", resp.Error.Code)
	})
}

func TestPipelineHandler_Finalize(t *testing.T) {
	companyID := uuid.New()
	pipeline := new(mocks.MockPipeline)
	pipeline.On("Finalize", mock.Anything, companyID, []string{"01/2024"}).Return(domain.FinalizeResult{
		Status:           domain.FinalizeStatusOK,
		Periods:          []string{"01/2024"},
		InsertedRowCount: 42,
	})
	h := handler.NewPipelineHandler(pipeline, "", zap.NewNop())

	c, w := newJSONContext(http.MethodPost, "/api/v1/pipeline/finalize", `{"periods":["01/2024"]}`)
	setAuthContext(c, companyID, domain.RoleOperator)
	h.Finalize(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"inserted_row_count":42`)
}

func TestPipelineHandler_Restore(t *testing.T) {
	companyID := uuid.New()
	runID := uuid.New()

	t.Run("ok", func(t *testing.T) {
		pipeline := new(mocks.MockPipeline)
		pipeline.On("RestoreRun", mock.Anything, companyID, "01/2024", runID).Return(int64(120), nil)
		h := handler.NewPipelineHandler(pipeline, "", zap.NewNop())

		c, w := newJSONContext(http.MethodPost, "/api/v1/imports/restore", `{"period":"01/2024","run_id":"`+runID.String()+`"}`)
		setAuthContext(c, companyID, domain.RoleOperator)
		h.Restore(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"restored":120`)
	})

	t.Run("busy", func(t *testing.T) {
		pipeline := new(mocks.MockPipeline)
		pipeline.On("RestoreRun", mock.Anything, companyID, "01/2024", runID).Return(int64(0), domain.ErrPipelineBusy)
		h := handler.NewPipelineHandler(pipeline, "", zap.NewNop())

		c, w := newJSONContext(http.MethodPost, "/api/v1/imports/restore", `{"period":"01/2024","run_id":"`+runID.String()+`"}`)
		setAuthContext(c, companyID, domain.RoleOperator)
		h.Restore(c)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "PIPELINE_BUSY", decode(t, w).Error.Code)
	})

	t.Run("invalid_run_id", func(t *testing.T) {
		h := handler.NewPipelineHandler(new(mocks.MockPipeline), "", zap.NewNop())
		c, w := newJSONContext(http.MethodPost, "/api/v1/imports/restore", `{"period":"01/2024","run_id":"nope"}`)
		setAuthContext(c, companyID, domain.RoleOperator)
		h.Restore(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPipelineHandler_State(t *testing.T) {
	companyID := uuid.New()
	pipeline := new(mocks.MockPipeline)
	pipeline.On("State", companyID).Return(domain.PipelineSnapshot{CompanyID: companyID, State: domain.StateAwaitingInput, Pending: 2})
	h := handler.NewPipelineHandler(pipeline, "", zap.NewNop())

	c, w := newJSONContext(http.MethodGet, "/api/v1/pipeline/state", "")
	setAuthContext(c, companyID, domain.RoleViewer)
	h.State(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"awaiting_input"`)
}

func TestPipelineHandler_ExportLedger(t *testing.T) {
	companyID := uuid.New()

	t.Run("writes_bom_and_rows", func(t *testing.T) {
		pipeline := new(mocks.MockPipeline)
		pipeline.On("WorkingLedger", mock.Anything, companyID, []string{"01/2024"}).Return([]domain.WorkingLedgerLine{
			{Period: "01/2024", BranchCode: "0001", Product: "PARAFUSO", Value: "100,00", Rate: "10,00%", Result: decimal.RequireFromString("9")},
		}, nil)
		h := handler.NewPipelineHandler(pipeline, "", zap.NewNop())

		c, w := newJSONContext(http.MethodGet, "/api/v1/ledger.csv?period=01/2024", "")
		setAuthContext(c, companyID, domain.RoleViewer)
		h.ExportLedger(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "apuracao_01_2024_")

		body := w.Body.Bytes()
		require.True(t, len(body) >= 3)
		assert.Equal(t, csvexport.BOM, body[:3])

		r := csv.NewReader(strings.NewReader(string(body[3:])))
		r.Comma = ';'
		records, err := r.ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "PARAFUSO", records[1][4])
		assert.Equal(t, "9,00", records[1][11])
	})

	t.Run("no_active_periods", func(t *testing.T) {
		pipeline := new(mocks.MockPipeline)
		pipeline.On("WorkingLedger", mock.Anything, companyID, []string(nil)).Return(nil, domain.ErrNoActivePeriods)
		h := handler.NewPipelineHandler(pipeline, "", zap.NewNop())

		c, w := newJSONContext(http.MethodGet, "/api/v1/ledger.csv", "")
		setAuthContext(c, companyID, domain.RoleViewer)
		h.ExportLedger(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
