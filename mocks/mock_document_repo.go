package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"spedflow/internal/domain"
)

// MockLedgerRepo implements the soft-delete methods shared by the ledger repositories.
type MockLedgerRepo struct {
	mock.Mock
}

func (m *MockLedgerRepo) CountActive(ctx context.Context, companyID uuid.UUID, period string) (int, error) {
	args := m.Called(ctx, companyID, period)
	return args.Int(0), args.Error(1)
}

func (m *MockLedgerRepo) Deactivate(ctx context.Context, companyID uuid.UUID, period string) (int64, error) {
	args := m.Called(ctx, companyID, period)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepo) Reactivate(ctx context.Context, companyID uuid.UUID, period string, runID uuid.UUID) (int64, error) {
	args := m.Called(ctx, companyID, period, runID)
	return args.Get(0).(int64), args.Error(1)
}

// MockDocumentRepo is a mock implementation of port.DocumentRepository.
type MockDocumentRepo struct {
	MockLedgerRepo
}

func (m *MockDocumentRepo) InsertBatch(ctx context.Context, docs []*domain.Document) error {
	args := m.Called(ctx, docs)
	return args.Error(0)
}

func (m *MockDocumentRepo) ListActivePeriods(ctx context.Context, companyID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockLineItemRepo is a mock implementation of port.LineItemRepository.
type MockLineItemRepo struct {
	MockLedgerRepo
}

func (m *MockLineItemRepo) InsertBatch(ctx context.Context, items []domain.LineItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

// MockPartnerRepo is a mock implementation of port.PartnerRepository.
type MockPartnerRepo struct {
	MockLedgerRepo
}

func (m *MockPartnerRepo) InsertBatch(ctx context.Context, partners []domain.Partner) error {
	args := m.Called(ctx, partners)
	return args.Error(0)
}

// MockProductRepo is a mock implementation of port.ProductRepository.
type MockProductRepo struct {
	MockLedgerRepo
}

func (m *MockProductRepo) InsertBatch(ctx context.Context, products []domain.Product) error {
	args := m.Called(ctx, products)
	return args.Error(0)
}
