package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"spedflow/internal/domain"
	"spedflow/internal/port"
)

const workingLedgerChunk = 500

// CloneService rebuilds the working ledger of a scope from its candidate set.
type CloneService interface {
	Clone(ctx context.Context, scope domain.Scope, candidates []domain.Candidate) (int, error)
}

type cloneService struct {
	ledger port.WorkingLedgerRepository
	logger *zap.Logger
}

// NewCloneService creates a new CloneService implementation.
func NewCloneService(ledger port.WorkingLedgerRepository, logger *zap.Logger) CloneService {
	return &cloneService{ledger: ledger, logger: logger.With(zap.String("component", "clone"))}
}

// Clone deletes the scope's working lines and inserts one fresh line per
// source item, with an empty rate and a zero result. Callers run it inside
// the finalize transaction.
func (s *cloneService) Clone(ctx context.Context, scope domain.Scope, candidates []domain.Candidate) (int, error) {
	deleted, err := s.ledger.DeleteScope(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("cloneService.Clone: %w", err)
	}

	seen := make(map[int64]bool, len(candidates))
	lines := make([]domain.WorkingLedgerLine, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		if seen[c.SourceItemID] {
			continue
		}
		seen[c.SourceItemID] = true
		lines = append(lines, domain.WorkingLedgerLine{
			CompanyID:    scope.CompanyID,
			SourceItemID: c.SourceItemID,
			DocumentID:   c.DocumentID,
			Period:       c.Period,
			BranchCode:   c.BranchCode,
			PartnerCode:  c.PartnerCode,
			ProductCode:  c.ProductCode,
			Product:      c.Product,
			NCM:          c.NCM,
			CFOP:         c.CFOP,
			Value:        c.Value,
			Discount:     c.Discount,
			Simples:      c.Simples,
			Result:       decimal.Zero,
		})
	}

	for start := 0; start < len(lines); start += workingLedgerChunk {
		end := min(start+workingLedgerChunk, len(lines))
		if err := s.ledger.InsertBatch(ctx, lines[start:end]); err != nil {
			return 0, fmt.Errorf("cloneService.Clone: %w", err)
		}
	}

	s.logger.Info("working ledger rebuilt",
		zap.String("company_id", scope.CompanyID.String()),
		zap.Strings("periods", scope.Periods),
		zap.Int64("deleted", deleted),
		zap.Int("inserted", len(lines)))
	return len(lines), nil
}
