package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"spedflow/internal/domain"
)

// MockSupplierRepo is a mock implementation of port.SupplierRepository.
type MockSupplierRepo struct {
	mock.Mock
}

func (m *MockSupplierRepo) InsertMissing(ctx context.Context, scope domain.Scope) (int64, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSupplierRepo) ListUnenriched(ctx context.Context, companyID uuid.UUID) ([]domain.Supplier, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Supplier), args.Error(1)
}

func (m *MockSupplierRepo) UpdateEnrichment(ctx context.Context, suppliers []domain.Supplier) error {
	args := m.Called(ctx, suppliers)
	return args.Error(0)
}

// MockCandidateRepo is a mock implementation of port.CandidateRepository.
type MockCandidateRepo struct {
	mock.Mock
}

func (m *MockCandidateRepo) ListCandidates(ctx context.Context, scope domain.Scope, homeState string, cfops []string) ([]domain.Candidate, error) {
	args := m.Called(ctx, scope, homeState, cfops)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Candidate), args.Error(1)
}

// MockRateCatalogRepo is a mock implementation of port.RateCatalogRepository.
type MockRateCatalogRepo struct {
	mock.Mock
}

func (m *MockRateCatalogRepo) InsertMissing(ctx context.Context, companyID uuid.UUID, keys []domain.CatalogKey) (int64, error) {
	args := m.Called(ctx, companyID, keys)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRateCatalogRepo) ListByKeys(ctx context.Context, companyID uuid.UUID, keys []domain.CatalogKey) ([]domain.RateCatalogEntry, error) {
	args := m.Called(ctx, companyID, keys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RateCatalogEntry), args.Error(1)
}

func (m *MockRateCatalogRepo) GetByID(ctx context.Context, companyID uuid.UUID, id int64) (*domain.RateCatalogEntry, error) {
	args := m.Called(ctx, companyID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateCatalogEntry), args.Error(1)
}

func (m *MockRateCatalogRepo) SetRate(ctx context.Context, companyID uuid.UUID, id int64, rate *string, legacy bool) error {
	args := m.Called(ctx, companyID, id, rate, legacy)
	return args.Error(0)
}

// MockWorkingLedgerRepo is a mock implementation of port.WorkingLedgerRepository.
type MockWorkingLedgerRepo struct {
	mock.Mock
}

func (m *MockWorkingLedgerRepo) DeleteScope(ctx context.Context, scope domain.Scope) (int64, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWorkingLedgerRepo) InsertBatch(ctx context.Context, lines []domain.WorkingLedgerLine) error {
	args := m.Called(ctx, lines)
	return args.Error(0)
}

func (m *MockWorkingLedgerRepo) ListScope(ctx context.Context, scope domain.Scope) ([]domain.WorkingLedgerLine, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WorkingLedgerLine), args.Error(1)
}

func (m *MockWorkingLedgerRepo) UpdateResults(ctx context.Context, lines []domain.WorkingLedgerLine) error {
	args := m.Called(ctx, lines)
	return args.Error(0)
}

// MockTxManager runs the callback inline after recording the call.
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

// MockSupplierRegistry is a mock implementation of port.SupplierRegistry.
type MockSupplierRegistry struct {
	mock.Mock
}

func (m *MockSupplierRegistry) Lookup(ctx context.Context, cnpj string) (*domain.RegistryInfo, error) {
	args := m.Called(ctx, cnpj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RegistryInfo), args.Error(1)
}
