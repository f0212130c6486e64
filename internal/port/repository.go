package port

import (
	"context"

	"github.com/google/uuid"

	"spedflow/internal/domain"
)

// TxManager runs a function inside a database transaction carried by the context.
// Repositories called with that context join the transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// LedgerRepository is the soft-delete contract shared by every period-scoped ledger table.
type LedgerRepository interface {
	CountActive(ctx context.Context, companyID uuid.UUID, period string) (int, error)
	Deactivate(ctx context.Context, companyID uuid.UUID, period string) (int64, error)
	Reactivate(ctx context.Context, companyID uuid.UUID, period string, runID uuid.UUID) (int64, error)
}

// DocumentRepository persists C100 headers.
type DocumentRepository interface {
	LedgerRepository
	// InsertBatch writes the headers and sets each document's generated ID.
	InsertBatch(ctx context.Context, docs []*domain.Document) error
	ListActivePeriods(ctx context.Context, companyID uuid.UUID) ([]string, error)
}

// LineItemRepository persists C170 lines.
type LineItemRepository interface {
	LedgerRepository
	InsertBatch(ctx context.Context, items []domain.LineItem) error
}

// PartnerRepository persists 0150 participant records.
type PartnerRepository interface {
	LedgerRepository
	InsertBatch(ctx context.Context, partners []domain.Partner) error
}

// ProductRepository persists 0200 item records.
type ProductRepository interface {
	LedgerRepository
	InsertBatch(ctx context.Context, products []domain.Product) error
}

// SupplierRepository manages the company's supplier registry table.
type SupplierRepository interface {
	// InsertMissing adds placeholder suppliers for active partners in scope not yet registered.
	InsertMissing(ctx context.Context, scope domain.Scope) (int64, error)
	ListUnenriched(ctx context.Context, companyID uuid.UUID) ([]domain.Supplier, error)
	UpdateEnrichment(ctx context.Context, suppliers []domain.Supplier) error
}

// CandidateRepository selects the line items eligible for rate resolution.
type CandidateRepository interface {
	ListCandidates(ctx context.Context, scope domain.Scope, homeState string, cfops []string) ([]domain.Candidate, error)
}

// RateCatalogRepository manages the (product, NCM) rate catalog.
type RateCatalogRepository interface {
	InsertMissing(ctx context.Context, companyID uuid.UUID, keys []domain.CatalogKey) (int64, error)
	ListByKeys(ctx context.Context, companyID uuid.UUID, keys []domain.CatalogKey) ([]domain.RateCatalogEntry, error)
	GetByID(ctx context.Context, companyID uuid.UUID, id int64) (*domain.RateCatalogEntry, error)
	SetRate(ctx context.Context, companyID uuid.UUID, id int64, rate *string, legacy bool) error
}

// WorkingLedgerRepository manages the derived working ledger.
type WorkingLedgerRepository interface {
	DeleteScope(ctx context.Context, scope domain.Scope) (int64, error)
	InsertBatch(ctx context.Context, lines []domain.WorkingLedgerLine) error
	ListScope(ctx context.Context, scope domain.Scope) ([]domain.WorkingLedgerLine, error)
	UpdateResults(ctx context.Context, lines []domain.WorkingLedgerLine) error
}
