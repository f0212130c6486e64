package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"spedflow/internal/config"
	"spedflow/internal/domain"
	"spedflow/internal/observability"
	"spedflow/internal/port"
)

// EnrichmentReport summarises one enrichment pass.
type EnrichmentReport struct {
	Inserted int64 `json:"inserted"`
	Pending  int   `json:"pending"`
	Enriched int   `json:"enriched"`
	NotFound int   `json:"not_found"`
	Failed   int   `json:"failed"`
}

// EnrichmentService fills supplier state, CNAE and Simples flags from the registry.
type EnrichmentService interface {
	Enrich(ctx context.Context, scope domain.Scope) (*EnrichmentReport, error)
}

type lookupOutcome int

const (
	outcomeFailed lookupOutcome = iota
	outcomeFound
	outcomeNotFound
)

type enrichmentService struct {
	suppliers port.SupplierRepository
	registry  port.SupplierRegistry
	cfg       config.EnrichmentConfig
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewEnrichmentService creates a new EnrichmentService implementation.
func NewEnrichmentService(
	suppliers port.SupplierRepository,
	registry port.SupplierRegistry,
	cfg config.EnrichmentConfig,
	logger *zap.Logger,
	metrics *observability.Metrics,
) EnrichmentService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.WriteBatchSize <= 0 {
		cfg.WriteBatchSize = 200
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &enrichmentService{
		suppliers: suppliers,
		registry:  registry,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "enrichment")),
		metrics:   metrics,
	}
}

// Enrich registers partners seen in scope and looks up every supplier still
// missing registry data. Lookup outcomes are cached for the duration of the
// call only, keyed by the CNPJ digits. Lookup failures leave the fields null
// and never fail the call; only repository errors are returned.
func (s *enrichmentService) Enrich(ctx context.Context, scope domain.Scope) (*EnrichmentReport, error) {
	inserted, err := s.suppliers.InsertMissing(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("enrichmentService.Enrich: %w", err)
	}
	pending, err := s.suppliers.ListUnenriched(ctx, scope.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("enrichmentService.Enrich: %w", err)
	}
	report := &EnrichmentReport{Inserted: inserted, Pending: len(pending)}
	if len(pending) == 0 {
		return report, nil
	}

	byCNPJ := make(map[string][]int)
	for i := range pending {
		byCNPJ[pending[i].CNPJ] = append(byCNPJ[pending[i].CNPJ], i)
	}

	var (
		mu       sync.Mutex
		outcomes = make(map[string]*domain.RegistryInfo, len(byCNPJ))
		runCache = gocache.New(s.cfg.CacheTTL, 0)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for cnpj := range byCNPJ {
		g.Go(func() error {
			info, outcome := s.lookup(gctx, runCache, cnpj)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeFound:
				outcomes[cnpj] = info
				report.Enriched += len(byCNPJ[cnpj])
			case outcomeNotFound:
				report.NotFound += len(byCNPJ[cnpj])
			default:
				report.Failed += len(byCNPJ[cnpj])
			}
			return nil
		})
	}
	_ = g.Wait()

	updates := make([]domain.Supplier, 0, report.Enriched)
	for cnpj, info := range outcomes {
		for _, i := range byCNPJ[cnpj] {
			sup := pending[i]
			applyRegistryInfo(&sup, info)
			updates = append(updates, sup)
		}
	}
	for start := 0; start < len(updates); start += s.cfg.WriteBatchSize {
		end := min(start+s.cfg.WriteBatchSize, len(updates))
		if err := s.suppliers.UpdateEnrichment(ctx, updates[start:end]); err != nil {
			return nil, fmt.Errorf("enrichmentService.Enrich: %w", err)
		}
	}

	s.logger.Info("supplier enrichment complete",
		zap.String("company_id", scope.CompanyID.String()),
		zap.Int64("inserted", report.Inserted),
		zap.Int("pending", report.Pending),
		zap.Int("enriched", report.Enriched),
		zap.Int("not_found", report.NotFound),
		zap.Int("failed", report.Failed))
	return report, nil
}

// notFound marks a cached registry miss.
type notFound struct{}

func (s *enrichmentService) lookup(ctx context.Context, cache *gocache.Cache, cnpj string) (*domain.RegistryInfo, lookupOutcome) {
	key := cnpjDigits(cnpj)
	if cached, ok := cache.Get(key); ok {
		s.metrics.IncrCacheHit()
		if info, ok := cached.(*domain.RegistryInfo); ok {
			return info, outcomeFound
		}
		return nil, outcomeNotFound
	}
	s.metrics.IncrCacheMiss()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	info, err := s.registry.Lookup(ctx, key)
	if err != nil {
		s.metrics.IncrLookup("error")
		s.logger.Warn("registry lookup failed", zap.String("cnpj", cnpj), zap.Error(err))
		return nil, outcomeFailed
	}
	if info == nil {
		s.metrics.IncrLookup("not_found")
		cache.SetDefault(key, notFound{})
		return nil, outcomeNotFound
	}
	s.metrics.IncrLookup("found")
	cache.SetDefault(key, info)
	return info, outcomeFound
}

func cnpjDigits(cnpj string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, cnpj)
}

func applyRegistryInfo(sup *domain.Supplier, info *domain.RegistryInfo) {
	if info.State != "" {
		state := info.State
		sup.State = &state
	}
	if info.CNAE != "" {
		cnae := info.CNAE
		sup.CNAE = &cnae
	}
	simples := info.Simples
	sup.Simples = &simples
	eligible := info.DecreeEligible
	sup.DecreeEligible = &eligible
}
