package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spedflow/internal/config"
	"spedflow/internal/domain"
	"spedflow/internal/fiscal"
	"spedflow/internal/port"
)

// SetRateInput is the DTO for writing a user-supplied catalog rate.
type SetRateInput struct {
	CompanyID uuid.UUID
	EntryID   int64
	Value     string
	// Legacy writes the pre-cutoff column used by periods before the rate change.
	Legacy bool
}

// RateCatalogService keeps the (product, NCM) catalog in step with the
// candidate set and exposes the entries still waiting for a rate.
type RateCatalogService interface {
	Candidates(ctx context.Context, scope domain.Scope) ([]domain.Candidate, error)
	Sync(ctx context.Context, scope domain.Scope) ([]domain.Candidate, error)
	PendingCount(ctx context.Context, scope domain.Scope) (int, error)
	PendingList(ctx context.Context, scope domain.Scope, limit int) ([]domain.PendingItem, error)
	SetRate(ctx context.Context, input *SetRateInput) (*domain.RateCatalogEntry, error)
}

type rateCatalogService struct {
	candidates port.CandidateRepository
	catalog    port.RateCatalogRepository
	rules      config.RatesConfig
	logger     *zap.Logger
}

// NewRateCatalogService creates a new RateCatalogService implementation.
func NewRateCatalogService(
	candidates port.CandidateRepository,
	catalog port.RateCatalogRepository,
	rules config.RatesConfig,
	logger *zap.Logger,
) RateCatalogService {
	if len(rules.CFOPWhitelist) == 0 {
		rules.CFOPWhitelist = config.DefaultCFOPWhitelist
	}
	return &rateCatalogService{
		candidates: candidates,
		catalog:    catalog,
		rules:      rules,
		logger:     logger.With(zap.String("component", "rate_catalog")),
	}
}

// Candidates returns the scoped line items eligible for rate resolution.
func (s *rateCatalogService) Candidates(ctx context.Context, scope domain.Scope) ([]domain.Candidate, error) {
	out, err := s.candidates.ListCandidates(ctx, scope, s.rules.HomeState, s.rules.CFOPWhitelist)
	if err != nil {
		return nil, fmt.Errorf("rateCatalogService.Candidates: %w", err)
	}
	return out, nil
}

// Sync inserts a blank catalog entry for every candidate key not yet in the catalog.
func (s *rateCatalogService) Sync(ctx context.Context, scope domain.Scope) ([]domain.Candidate, error) {
	cands, err := s.Candidates(ctx, scope)
	if err != nil {
		return nil, err
	}
	keys := uniqueKeys(cands)
	if len(keys) == 0 {
		return cands, nil
	}
	inserted, err := s.catalog.InsertMissing(ctx, scope.CompanyID, keys)
	if err != nil {
		return nil, fmt.Errorf("rateCatalogService.Sync: %w", err)
	}
	s.logger.Info("rate catalog synced",
		zap.String("company_id", scope.CompanyID.String()),
		zap.Int("candidates", len(cands)),
		zap.Int("keys", len(keys)),
		zap.Int64("inserted", inserted))
	return cands, nil
}

func (s *rateCatalogService) PendingCount(ctx context.Context, scope domain.Scope) (int, error) {
	items, err := s.PendingList(ctx, scope, 0)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// PendingList returns catalog entries referenced by the scoped candidates whose
// rate column for a candidate period is blank, ordered by id. limit <= 0 means no limit.
func (s *rateCatalogService) PendingList(ctx context.Context, scope domain.Scope, limit int) ([]domain.PendingItem, error) {
	cands, err := s.Candidates(ctx, scope)
	if err != nil {
		return nil, err
	}
	items, err := s.pending(ctx, scope.CompanyID, cands)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *rateCatalogService) pending(ctx context.Context, companyID uuid.UUID, cands []domain.Candidate) ([]domain.PendingItem, error) {
	keys := uniqueKeys(cands)
	if len(keys) == 0 {
		return []domain.PendingItem{}, nil
	}
	entries, err := s.catalog.ListByKeys(ctx, companyID, keys)
	if err != nil {
		return nil, fmt.Errorf("rateCatalogService.pending: %w", err)
	}
	byKey := make(map[domain.CatalogKey]*domain.RateCatalogEntry, len(entries))
	for i := range entries {
		byKey[entries[i].Key()] = &entries[i]
	}

	seen := make(map[int64]bool)
	items := make([]domain.PendingItem, 0)
	for i := range cands {
		c := &cands[i]
		entry, ok := byKey[c.CatalogKey()]
		if !ok || seen[entry.ID] {
			continue
		}
		if fiscal.SelectRate(entry, c.Period) != "" {
			continue
		}
		seen[entry.ID] = true
		items = append(items, domain.PendingItem{
			ID:      entry.ID,
			Code:    c.ProductCode,
			Product: entry.Product,
			TaxCode: entry.NCM,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// SetRate validates and stores a rate for one catalog entry. A blank value clears it.
func (s *rateCatalogService) SetRate(ctx context.Context, input *SetRateInput) (*domain.RateCatalogEntry, error) {
	normalized, err := fiscal.NormalizeRate(input.Value)
	if err != nil {
		return nil, fmt.Errorf("rateCatalogService.SetRate: %q: %w", input.Value, err)
	}
	var value *string
	if normalized != "" {
		value = &normalized
	}
	if err := s.catalog.SetRate(ctx, input.CompanyID, input.EntryID, value, input.Legacy); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("rateCatalogService.SetRate: %w", err)
	}
	entry, err := s.catalog.GetByID(ctx, input.CompanyID, input.EntryID)
	if err != nil {
		return nil, fmt.Errorf("rateCatalogService.SetRate: %w", err)
	}
	s.logger.Info("catalog rate set",
		zap.String("company_id", input.CompanyID.String()),
		zap.Int64("entry_id", input.EntryID),
		zap.String("rate", normalized),
		zap.Bool("legacy", input.Legacy))
	return entry, nil
}

func uniqueKeys(cands []domain.Candidate) []domain.CatalogKey {
	seen := make(map[domain.CatalogKey]bool, len(cands))
	keys := make([]domain.CatalogKey, 0, len(cands))
	for i := range cands {
		k := cands[i].CatalogKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}
