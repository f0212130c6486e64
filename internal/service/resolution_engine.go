package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"spedflow/internal/domain"
	"spedflow/internal/fiscal"
	"spedflow/internal/port"
)

// ResolutionReport counts the outcome of a resolution pass.
type ResolutionReport struct {
	Lines      int `json:"lines"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
}

// ResolutionEngine assigns catalog rates to working lines and computes their results.
type ResolutionEngine interface {
	Resolve(ctx context.Context, scope domain.Scope) (*ResolutionReport, error)
}

type resolutionEngine struct {
	ledger  port.WorkingLedgerRepository
	catalog port.RateCatalogRepository
	logger  *zap.Logger
}

// NewResolutionEngine creates a new ResolutionEngine implementation.
func NewResolutionEngine(ledger port.WorkingLedgerRepository, catalog port.RateCatalogRepository, logger *zap.Logger) ResolutionEngine {
	return &resolutionEngine{ledger: ledger, catalog: catalog, logger: logger.With(zap.String("component", "resolution"))}
}

// Resolve reads the rate column matching each line's period, applies the
// Simples surcharge and writes back rate and result. Lines without a catalog
// rate keep a blank rate and a zero result.
func (e *resolutionEngine) Resolve(ctx context.Context, scope domain.Scope) (*ResolutionReport, error) {
	lines, err := e.ledger.ListScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("resolutionEngine.Resolve: %w", err)
	}
	report := &ResolutionReport{Lines: len(lines)}
	if len(lines) == 0 {
		return report, nil
	}

	seen := make(map[domain.CatalogKey]bool)
	keys := make([]domain.CatalogKey, 0)
	for i := range lines {
		k := domain.CatalogKey{Product: lines[i].Product, NCM: lines[i].NCM}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	entries, err := e.catalog.ListByKeys(ctx, scope.CompanyID, keys)
	if err != nil {
		return nil, fmt.Errorf("resolutionEngine.Resolve: %w", err)
	}
	byKey := make(map[domain.CatalogKey]*domain.RateCatalogEntry, len(entries))
	for i := range entries {
		byKey[entries[i].Key()] = &entries[i]
	}

	for i := range lines {
		l := &lines[i]
		rate := ""
		if entry, ok := byKey[domain.CatalogKey{Product: l.Product, NCM: l.NCM}]; ok {
			rate = fiscal.SelectRate(entry, l.Period)
		}
		if rate == "" {
			report.Unresolved++
		} else {
			report.Resolved++
		}
		l.Rate = fiscal.ApplySimples(rate, l.Simples)
		l.Result = fiscal.ComputeResult(l.Value, l.Discount, l.Rate)
	}

	for start := 0; start < len(lines); start += workingLedgerChunk {
		end := min(start+workingLedgerChunk, len(lines))
		if err := e.ledger.UpdateResults(ctx, lines[start:end]); err != nil {
			return nil, fmt.Errorf("resolutionEngine.Resolve: %w", err)
		}
	}

	if report.Unresolved > 0 {
		e.logger.Warn("working lines left without a rate",
			zap.String("company_id", scope.CompanyID.String()),
			zap.Int("unresolved", report.Unresolved))
	}
	return report, nil
}
