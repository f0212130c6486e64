package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"spedflow/internal/config"
	"spedflow/internal/domain"
	"spedflow/internal/service"
	"spedflow/mocks"
)

func strPtr(s string) *string { return &s }

func newCatalog(cands *mocks.MockCandidateRepo, catalog *mocks.MockRateCatalogRepo) service.RateCatalogService {
	return service.NewRateCatalogService(cands, catalog, config.RatesConfig{
		HomeState:     "CE",
		CFOPWhitelist: []string{"1102", "2102"},
	}, zap.NewNop())
}

func TestRateCatalogService_Sync(t *testing.T) {
	companyID := uuid.New()
	scope := domain.Scope{CompanyID: companyID, Periods: []string{"01/2024"}}

	cands := new(mocks.MockCandidateRepo)
	catalog := new(mocks.MockRateCatalogRepo)
	cands.On("ListCandidates", mock.Anything, scope, "CE", []string{"1102", "2102"}).Return([]domain.Candidate{
		{SourceItemID: 1, Product: "PARAFUSO", NCM: "7318"},
		{SourceItemID: 2, Product: "PARAFUSO", NCM: "7318"},
		{SourceItemID: 3, Product: "PORCA", NCM: "7318"},
	}, nil)
	catalog.On("InsertMissing", mock.Anything, companyID, []domain.CatalogKey{
		{Product: "PARAFUSO", NCM: "7318"},
		{Product: "PORCA", NCM: "7318"},
	}).Return(int64(1), nil)

	out, err := newCatalog(cands, catalog).Sync(context.Background(), scope)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	catalog.AssertExpectations(t)
}

func TestRateCatalogService_PendingList(t *testing.T) {
	companyID := uuid.New()
	scope := domain.Scope{CompanyID: companyID, Periods: []string{"12/2023", "01/2024"}}

	setup := func() (*mocks.MockCandidateRepo, *mocks.MockRateCatalogRepo) {
		cands := new(mocks.MockCandidateRepo)
		catalog := new(mocks.MockRateCatalogRepo)
		cands.On("ListCandidates", mock.Anything, scope, "CE", mock.Anything).Return([]domain.Candidate{
			{SourceItemID: 1, Period: "01/2024", ProductCode: "A", Product: "PARAFUSO", NCM: "7318"},
			{SourceItemID: 2, Period: "12/2023", ProductCode: "B", Product: "PORCA", NCM: "7318"},
			{SourceItemID: 3, Period: "01/2024", ProductCode: "C", Product: "ARRUELA", NCM: "7318"},
		}, nil)
		catalog.On("ListByKeys", mock.Anything, companyID, mock.Anything).Return([]domain.RateCatalogEntry{
			{ID: 30, Product: "ARRUELA", NCM: "7318", Rate: strPtr("ISENTO")},
			{ID: 20, Product: "PORCA", NCM: "7318", Rate: strPtr("12,00%")},
			{ID: 10, Product: "PARAFUSO", NCM: "7318", RateLegacy: strPtr("18,00%"), Rate: strPtr("  ")},
		}, nil)
		return cands, catalog
	}

	t.Run("returns_blank_rates_for_the_period_column", func(t *testing.T) {
		cands, catalog := setup()
		items, err := newCatalog(cands, catalog).PendingList(context.Background(), scope, 0)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, domain.PendingItem{ID: 10, Code: "A", Product: "PARAFUSO", TaxCode: "7318"}, items[0])
		assert.Equal(t, int64(20), items[1].ID)
	})

	t.Run("limit", func(t *testing.T) {
		cands, catalog := setup()
		items, err := newCatalog(cands, catalog).PendingList(context.Background(), scope, 1)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("count", func(t *testing.T) {
		cands, catalog := setup()
		n, err := newCatalog(cands, catalog).PendingCount(context.Background(), scope)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("no_candidates", func(t *testing.T) {
		cands := new(mocks.MockCandidateRepo)
		catalog := new(mocks.MockRateCatalogRepo)
		cands.On("ListCandidates", mock.Anything, scope, "CE", mock.Anything).Return([]domain.Candidate{}, nil)

		items, err := newCatalog(cands, catalog).PendingList(context.Background(), scope, 0)
		require.NoError(t, err)
		assert.Empty(t, items)
		catalog.AssertNotCalled(t, "ListByKeys", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRateCatalogService_SetRate(t *testing.T) {
	companyID := uuid.New()

	t.Run("normalizes_value", func(t *testing.T) {
		catalog := new(mocks.MockRateCatalogRepo)
		catalog.On("SetRate", mock.Anything, companyID, int64(10), strPtr("7,50%"), false).Return(nil)
		catalog.On("GetByID", mock.Anything, companyID, int64(10)).
			Return(&domain.RateCatalogEntry{ID: 10, Rate: strPtr("7,50%")}, nil)

		entry, err := newCatalog(new(mocks.MockCandidateRepo), catalog).SetRate(context.Background(),
			&service.SetRateInput{CompanyID: companyID, EntryID: 10, Value: "7.5"})
		require.NoError(t, err)
		assert.Equal(t, "7,50%", *entry.Rate)
	})

	t.Run("blank_clears_legacy_column", func(t *testing.T) {
		catalog := new(mocks.MockRateCatalogRepo)
		catalog.On("SetRate", mock.Anything, companyID, int64(10), (*string)(nil), true).Return(nil)
		catalog.On("GetByID", mock.Anything, companyID, int64(10)).Return(&domain.RateCatalogEntry{ID: 10}, nil)

		_, err := newCatalog(new(mocks.MockCandidateRepo), catalog).SetRate(context.Background(),
			&service.SetRateInput{CompanyID: companyID, EntryID: 10, Value: " ", Legacy: true})
		require.NoError(t, err)
	})

	t.Run("invalid_value", func(t *testing.T) {
		catalog := new(mocks.MockRateCatalogRepo)
		_, err := newCatalog(new(mocks.MockCandidateRepo), catalog).SetRate(context.Background(),
			&service.SetRateInput{CompanyID: companyID, EntryID: 10, Value: "abc"})
		assert.ErrorIs(t, err, domain.ErrInvalidRate)
		catalog.AssertNotCalled(t, "SetRate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown_entry", func(t *testing.T) {
		catalog := new(mocks.MockRateCatalogRepo)
		catalog.On("SetRate", mock.Anything, companyID, int64(99), strPtr("ST"), false).Return(domain.ErrNotFound)

		_, err := newCatalog(new(mocks.MockCandidateRepo), catalog).SetRate(context.Background(),
			&service.SetRateInput{CompanyID: companyID, EntryID: 99, Value: "st"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
