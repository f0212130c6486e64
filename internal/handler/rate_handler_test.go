package handler_test

import (
	"encoding/csv"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"spedflow/internal/domain"
	"spedflow/internal/handler"
	"spedflow/internal/service"
	"spedflow/mocks"
)

func TestRateHandler_Pending(t *testing.T) {
	companyID := uuid.New()
	items := []domain.PendingItem{
		{ID: 7, Code: "P-01", Product: "PARAFUSO; SEXTAVADO", TaxCode: "7318"},
		{ID: 9, Code: "P-02", Product: "PORCA", TaxCode: "7318"},
	}

	t.Run("json", func(t *testing.T) {
		pipeline := new(mocks.MockPipeline)
		pipeline.On("PendingRates", mock.Anything, companyID, []string{"01/2024", "02/2024"}).Return(items, nil)
		h := handler.NewRateHandler(pipeline, new(mocks.MockRateCatalogService), zap.NewNop())

		c, w := newJSONContext(http.MethodGet, "/api/v1/rates/pending?periods=01/2024,02/2024", "")
		setAuthContext(c, companyID, domain.RoleViewer)
		h.Pending(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"total":2`)
	})

	t.Run("csv", func(t *testing.T) {
		pipeline := new(mocks.MockPipeline)
		pipeline.On("PendingRates", mock.Anything, companyID, []string(nil)).Return(items, nil)
		h := handler.NewRateHandler(pipeline, new(mocks.MockRateCatalogService), zap.NewNop())

		c, w := newJSONContext(http.MethodGet, "/api/v1/rates/pending?format=csv", "")
		setAuthContext(c, companyID, domain.RoleViewer)
		h.Pending(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "aliquotas_pendentes_")

		r := csv.NewReader(strings.NewReader(string(w.Body.Bytes()[3:])))
		r.Comma = ';'
		records, err := r.ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, []string{"7", "P-01", "PARAFUSO; SEXTAVADO", "7318", ""}, records[1])
	})
}

func TestRateHandler_SetRate(t *testing.T) {
	companyID := uuid.New()

	t.Run("ok", func(t *testing.T) {
		catalog := new(mocks.MockRateCatalogService)
		rate := "18,00%"
		catalog.On("SetRate", mock.Anything, &service.SetRateInput{CompanyID: companyID, EntryID: 7, Value: "18"}).
			Return(&domain.RateCatalogEntry{ID: 7, Product: "PARAFUSO", Rate: &rate}, nil)
		h := handler.NewRateHandler(new(mocks.MockPipeline), catalog, zap.NewNop())

		c, w := newJSONContext(http.MethodPut, "/api/v1/rates/7", `{"rate":"18"}`)
		c.Params = []gin.Param{{Key: "id", Value: "7"}}
		setAuthContext(c, companyID, domain.RoleOperator)
		h.SetRate(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"rate":"18,00%"`)
	})

	t.Run("blank_clears_rate", func(t *testing.T) {
		catalog := new(mocks.MockRateCatalogService)
		catalog.On("SetRate", mock.Anything, &service.SetRateInput{CompanyID: companyID, EntryID: 7, Value: "", Legacy: true}).
			Return(&domain.RateCatalogEntry{ID: 7}, nil)
		h := handler.NewRateHandler(new(mocks.MockPipeline), catalog, zap.NewNop())

		c, w := newJSONContext(http.MethodPut, "/api/v1/rates/7", `{"rate":"","legacy":true}`)
		c.Params = []gin.Param{{Key: "id", Value: "7"}}
		setAuthContext(c, companyID, domain.RoleOperator)
		h.SetRate(c)

		assert.Equal(t, http.StatusOK, w.Code)
		catalog.AssertExpectations(t)
	})

	t.Run("invalid_rate", func(t *testing.T) {
		catalog := new(mocks.MockRateCatalogService)
		catalog.On("SetRate", mock.Anything, mock.Anything).Return(nil, domain.ErrInvalidRate)
		h := handler.NewRateHandler(new(mocks.MockPipeline), catalog, zap.NewNop())

		c, w := newJSONContext(http.MethodPut, "/api/v1/rates/7", `{"rate":"abc"}`)
		c.Params = []gin.Param{{Key: "id", Value: "7"}}
		setAuthContext(c, companyID, domain.RoleOperator)
		h.SetRate(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_RATE", decode(t, w).Error.Code)
	})

	t.Run("unknown_entry", func(t *testing.T) {
		catalog := new(mocks.MockRateCatalogService)
		catalog.On("SetRate", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
		h := handler.NewRateHandler(new(mocks.MockPipeline), catalog, zap.NewNop())

		c, w := newJSONContext(http.MethodPut, "/api/v1/rates/99", `{"rate":"5"}`)
		c.Params = []gin.Param{{Key: "id", Value: "99"}}
		setAuthContext(c, companyID, domain.RoleOperator)
		h.SetRate(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad_id", func(t *testing.T) {
		h := handler.NewRateHandler(new(mocks.MockPipeline), new(mocks.MockRateCatalogService), zap.NewNop())
		c, w := newJSONContext(http.MethodPut, "/api/v1/rates/x", `{"rate":"5"}`)
		c.Params = []gin.Param{{Key: "id", Value: "x"}}
		setAuthContext(c, companyID, domain.RoleOperator)
		h.SetRate(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
