package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"spedflow/internal/domain"
	"spedflow/internal/ingest"
	"spedflow/internal/service"
)

// MockImportService is a mock implementation of service.ImportService.
type MockImportService struct {
	mock.Mock
}

func (m *MockImportService) Import(ctx context.Context, input *service.ImportInput) (uuid.UUID, *ingest.Outcome, error) {
	args := m.Called(ctx, input)
	var out *ingest.Outcome
	if v := args.Get(1); v != nil {
		out = v.(*ingest.Outcome)
	}
	return args.Get(0).(uuid.UUID), out, args.Error(2)
}

// MockPipelineRunner is a mock implementation of service.PipelineRunner.
type MockPipelineRunner struct {
	mock.Mock
}

func (m *MockPipelineRunner) Run(ctx context.Context, req ingest.Request) (*ingest.Outcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingest.Outcome), args.Error(1)
}

// MockEnrichmentService is a mock implementation of service.EnrichmentService.
type MockEnrichmentService struct {
	mock.Mock
}

func (m *MockEnrichmentService) Enrich(ctx context.Context, scope domain.Scope) (*service.EnrichmentReport, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EnrichmentReport), args.Error(1)
}

// MockRateCatalogService is a mock implementation of service.RateCatalogService.
type MockRateCatalogService struct {
	mock.Mock
}

func (m *MockRateCatalogService) Candidates(ctx context.Context, scope domain.Scope) ([]domain.Candidate, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Candidate), args.Error(1)
}

func (m *MockRateCatalogService) Sync(ctx context.Context, scope domain.Scope) ([]domain.Candidate, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Candidate), args.Error(1)
}

func (m *MockRateCatalogService) PendingCount(ctx context.Context, scope domain.Scope) (int, error) {
	args := m.Called(ctx, scope)
	return args.Int(0), args.Error(1)
}

func (m *MockRateCatalogService) PendingList(ctx context.Context, scope domain.Scope, limit int) ([]domain.PendingItem, error) {
	args := m.Called(ctx, scope, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PendingItem), args.Error(1)
}

func (m *MockRateCatalogService) SetRate(ctx context.Context, input *service.SetRateInput) (*domain.RateCatalogEntry, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateCatalogEntry), args.Error(1)
}

// MockCloneService is a mock implementation of service.CloneService.
type MockCloneService struct {
	mock.Mock
}

func (m *MockCloneService) Clone(ctx context.Context, scope domain.Scope, candidates []domain.Candidate) (int, error) {
	args := m.Called(ctx, scope, candidates)
	return args.Int(0), args.Error(1)
}

// MockResolutionEngine is a mock implementation of service.ResolutionEngine.
type MockResolutionEngine struct {
	mock.Mock
}

func (m *MockResolutionEngine) Resolve(ctx context.Context, scope domain.Scope) (*service.ResolutionReport, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ResolutionReport), args.Error(1)
}

// MockPipeline is a mock implementation of service.Pipeline.
type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) ImportFiles(ctx context.Context, companyID uuid.UUID, paths []string, force bool) domain.ImportResult {
	args := m.Called(ctx, companyID, paths, force)
	return args.Get(0).(domain.ImportResult)
}

func (m *MockPipeline) Prepare(ctx context.Context, companyID uuid.UUID, periods []string) domain.PrepareResult {
	args := m.Called(ctx, companyID, periods)
	return args.Get(0).(domain.PrepareResult)
}

func (m *MockPipeline) Finalize(ctx context.Context, companyID uuid.UUID, periods []string) domain.FinalizeResult {
	args := m.Called(ctx, companyID, periods)
	return args.Get(0).(domain.FinalizeResult)
}

func (m *MockPipeline) RestoreRun(ctx context.Context, companyID uuid.UUID, period string, runID uuid.UUID) (int64, error) {
	args := m.Called(ctx, companyID, period, runID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPipeline) WorkingLedger(ctx context.Context, companyID uuid.UUID, periods []string) ([]domain.WorkingLedgerLine, error) {
	args := m.Called(ctx, companyID, periods)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WorkingLedgerLine), args.Error(1)
}

func (m *MockPipeline) PendingRates(ctx context.Context, companyID uuid.UUID, periods []string) ([]domain.PendingItem, error) {
	args := m.Called(ctx, companyID, periods)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PendingItem), args.Error(1)
}

func (m *MockPipeline) State(companyID uuid.UUID) domain.PipelineSnapshot {
	args := m.Called(companyID)
	return args.Get(0).(domain.PipelineSnapshot)
}

// MockTokenService is a mock implementation of service.TokenService.
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) IssueToken(subject string, companyID uuid.UUID, role domain.Role, ttl time.Duration) (string, error) {
	args := m.Called(subject, companyID, role, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) ValidateToken(token string) (*service.Claims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Claims), args.Error(1)
}
