package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"spedflow/internal/domain"
	"spedflow/internal/ingest"
	"spedflow/internal/observability"
	"spedflow/internal/port"
	"spedflow/internal/service"
	"spedflow/mocks"
)

type orchestratorFixture struct {
	tx         *mocks.MockTxManager
	docs       *mocks.MockDocumentRepo
	items      *mocks.MockLineItemRepo
	partners   *mocks.MockPartnerRepo
	products   *mocks.MockProductRepo
	importer   *mocks.MockImportService
	enrichment *mocks.MockEnrichmentService
	catalog    *mocks.MockRateCatalogService
	clone      *mocks.MockCloneService
	resolution *mocks.MockResolutionEngine
	ledger     *mocks.MockWorkingLedgerRepo
	email      *mocks.MockEmailSender
	orch       *service.Orchestrator
}

func newOrchestratorFixture() *orchestratorFixture {
	f := &orchestratorFixture{
		tx:         new(mocks.MockTxManager),
		docs:       new(mocks.MockDocumentRepo),
		items:      new(mocks.MockLineItemRepo),
		partners:   new(mocks.MockPartnerRepo),
		products:   new(mocks.MockProductRepo),
		importer:   new(mocks.MockImportService),
		enrichment: new(mocks.MockEnrichmentService),
		catalog:    new(mocks.MockRateCatalogService),
		clone:      new(mocks.MockCloneService),
		resolution: new(mocks.MockResolutionEngine),
		ledger:     new(mocks.MockWorkingLedgerRepo),
		email:      new(mocks.MockEmailSender),
	}
	f.orch = service.NewOrchestrator(service.OrchestratorDeps{
		Tx:         f.tx,
		Ledgers:    ingest.Repositories{Documents: f.docs, Items: f.items, Partners: f.partners, Products: f.products},
		Importer:   f.importer,
		Enrichment: f.enrichment,
		Catalog:    f.catalog,
		Clone:      f.clone,
		Resolution: f.resolution,
		Ledger:     f.ledger,
		Email:      f.email,
		Recipients: []string{"fiscal@example.com"},
		Logger:     zap.NewNop(),
		Metrics:    observability.NewMetrics(),
	})
	return f
}

func TestOrchestrator_ImportFiles(t *testing.T) {
	companyID := uuid.New()
	runID := uuid.New()

	t.Run("ok", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.importer.On("Import", mock.Anything, &service.ImportInput{CompanyID: companyID, Paths: []string{"a.txt"}}).
			Return(runID, &ingest.Outcome{
				Opening: domain.OpeningContext{Period: "01/2024", BranchCode: "0001"},
				Counts:  domain.ImportCounts{Files: 1, Documents: 3},
			}, nil)

		res := f.orch.ImportFiles(context.Background(), companyID, []string{"a.txt"}, false)
		assert.Equal(t, domain.ImportStatusOK, res.Status)
		assert.Equal(t, runID, res.RunID)
		assert.Equal(t, "01/2024", res.Period)
		assert.Equal(t, 3, res.Counts.Documents)
		assert.Equal(t, domain.StateIdle, f.orch.State(companyID).State)
	})

	t.Run("conflict", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.importer.On("Import", mock.Anything, mock.Anything).
			Return(runID, nil, fmt.Errorf("persister.Guard: %w: 01/2024 has 4 active rows", domain.ErrPeriodConflict))

		res := f.orch.ImportFiles(context.Background(), companyID, []string{"a.txt"}, false)
		assert.Equal(t, domain.ImportStatusConflict, res.Status)
		assert.Contains(t, res.Message, "01/2024")
	})

	t.Run("error", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.importer.On("Import", mock.Anything, mock.Anything).
			Return(runID, nil, &domain.ValidationError{File: "a.txt", Line: 1, Reason: domain.ErrMissingOpening})

		res := f.orch.ImportFiles(context.Background(), companyID, []string{"a.txt"}, false)
		assert.Equal(t, domain.ImportStatusError, res.Status)
		assert.NotEmpty(t, res.Message)
	})
}

func TestOrchestrator_Prepare(t *testing.T) {
	companyID := uuid.New()
	scope := domain.Scope{CompanyID: companyID, Periods: []string{"01/2024"}}

	t.Run("ready_when_nothing_pending", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.enrichment.On("Enrich", mock.Anything, scope).Return(&service.EnrichmentReport{}, nil)
		f.catalog.On("Sync", mock.Anything, scope).Return([]domain.Candidate{}, nil)
		f.catalog.On("PendingList", mock.Anything, scope, 0).Return([]domain.PendingItem{}, nil)

		res := f.orch.Prepare(context.Background(), companyID, []string{"01/2024"})
		assert.Equal(t, domain.PrepareStatusReadyToFinalize, res.Status)
		assert.Empty(t, res.PendingItems)
		assert.Equal(t, domain.StateReady, f.orch.State(companyID).State)
		f.email.AssertNotCalled(t, "SendPendingRatesNotification", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("needs_input_returns_pending_and_notifies", func(t *testing.T) {
		f := newOrchestratorFixture()
		pending := []domain.PendingItem{{ID: 10, Code: "A", Product: "PARAFUSO", TaxCode: "7318"}}
		f.enrichment.On("Enrich", mock.Anything, scope).Return(&service.EnrichmentReport{}, nil)
		f.catalog.On("Sync", mock.Anything, scope).Return([]domain.Candidate{{SourceItemID: 1}}, nil)
		f.catalog.On("PendingList", mock.Anything, scope, 0).Return(pending, nil)
		f.email.On("SendPendingRatesNotification", mock.Anything, []string{"fiscal@example.com"}, port.PendingRatesNotice{
			CompanyID: companyID, Periods: scope.Periods, Pending: 1, Sample: []string{"PARAFUSO"},
		}).Return(errors.New("smtp down"))

		res := f.orch.Prepare(context.Background(), companyID, []string{"01/2024"})
		assert.Equal(t, domain.PrepareStatusNeedsInput, res.Status)
		assert.Equal(t, pending, res.PendingItems)

		snap := f.orch.State(companyID)
		assert.Equal(t, domain.StateAwaitingInput, snap.State)
		assert.Equal(t, 1, snap.Pending)
		f.email.AssertExpectations(t)
	})

	t.Run("empty_periods_use_active_periods", func(t *testing.T) {
		f := newOrchestratorFixture()
		all := domain.Scope{CompanyID: companyID, Periods: []string{"12/2023", "01/2024"}}
		f.docs.On("ListActivePeriods", mock.Anything, companyID).Return(all.Periods, nil)
		f.enrichment.On("Enrich", mock.Anything, all).Return(&service.EnrichmentReport{}, nil)
		f.catalog.On("Sync", mock.Anything, all).Return([]domain.Candidate{}, nil)
		f.catalog.On("PendingList", mock.Anything, all, 0).Return([]domain.PendingItem{}, nil)

		res := f.orch.Prepare(context.Background(), companyID, nil)
		assert.Equal(t, domain.PrepareStatusReadyToFinalize, res.Status)
		assert.Equal(t, all.Periods, res.Periods)
	})

	t.Run("no_active_periods", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.docs.On("ListActivePeriods", mock.Anything, companyID).Return([]string{}, nil)

		res := f.orch.Prepare(context.Background(), companyID, nil)
		assert.Equal(t, domain.PrepareStatusError, res.Status)
		assert.Equal(t, domain.StateFailed, f.orch.State(companyID).State)
	})

	t.Run("enrichment_error_fails", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.enrichment.On("Enrich", mock.Anything, scope).Return(nil, errors.New("db down"))

		res := f.orch.Prepare(context.Background(), companyID, []string{"01/2024"})
		assert.Equal(t, domain.PrepareStatusError, res.Status)
		assert.Contains(t, res.Message, "db down")
		f.catalog.AssertNotCalled(t, "Sync", mock.Anything, mock.Anything)
	})
}

func TestOrchestrator_Finalize(t *testing.T) {
	companyID := uuid.New()
	scope := domain.Scope{CompanyID: companyID, Periods: []string{"01/2024"}}
	cands := []domain.Candidate{{SourceItemID: 1}, {SourceItemID: 2}}

	t.Run("ok", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.tx.On("WithinTx", mock.Anything).Return(nil)
		f.catalog.On("Sync", mock.Anything, scope).Return(cands, nil)
		f.clone.On("Clone", mock.Anything, scope, cands).Return(2, nil)
		f.resolution.On("Resolve", mock.Anything, scope).Return(&service.ResolutionReport{Lines: 2, Resolved: 2}, nil)

		res := f.orch.Finalize(context.Background(), companyID, []string{"01/2024"})
		assert.Equal(t, domain.FinalizeStatusOK, res.Status)
		assert.Equal(t, 2, res.InsertedRowCount)
		assert.Empty(t, res.Message)
		assert.Equal(t, domain.StateDone, f.orch.State(companyID).State)
	})

	t.Run("unresolved_lines_are_reported", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.tx.On("WithinTx", mock.Anything).Return(nil)
		f.catalog.On("Sync", mock.Anything, scope).Return(cands, nil)
		f.clone.On("Clone", mock.Anything, scope, cands).Return(2, nil)
		f.resolution.On("Resolve", mock.Anything, scope).Return(&service.ResolutionReport{Lines: 2, Resolved: 1, Unresolved: 1}, nil)

		res := f.orch.Finalize(context.Background(), companyID, []string{"01/2024"})
		assert.Equal(t, domain.FinalizeStatusOK, res.Status)
		assert.Contains(t, res.Message, "1 lines have no rate")
	})

	t.Run("persistence_error_fails", func(t *testing.T) {
		f := newOrchestratorFixture()
		f.tx.On("WithinTx", mock.Anything).Return(nil)
		f.catalog.On("Sync", mock.Anything, scope).Return(cands, nil)
		f.clone.On("Clone", mock.Anything, scope, cands).Return(0, errors.New("disk full"))

		res := f.orch.Finalize(context.Background(), companyID, []string{"01/2024"})
		assert.Equal(t, domain.FinalizeStatusError, res.Status)
		assert.Contains(t, res.Message, "disk full")
		assert.Equal(t, domain.StateFailed, f.orch.State(companyID).State)
		f.resolution.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	})
}

func TestOrchestrator_RestoreRun(t *testing.T) {
	companyID := uuid.New()
	runID := uuid.New()

	f := newOrchestratorFixture()
	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.docs.On("Reactivate", mock.Anything, companyID, "01/2024", runID).Return(int64(3), nil)
	f.items.On("Reactivate", mock.Anything, companyID, "01/2024", runID).Return(int64(7), nil)
	f.partners.On("Reactivate", mock.Anything, companyID, "01/2024", runID).Return(int64(1), nil)
	f.products.On("Reactivate", mock.Anything, companyID, "01/2024", runID).Return(int64(2), nil)

	n, err := f.orch.RestoreRun(context.Background(), companyID, "01/2024", runID)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)
}

func TestOrchestrator_WorkingLedger(t *testing.T) {
	companyID := uuid.New()
	f := newOrchestratorFixture()
	scope := domain.Scope{CompanyID: companyID, Periods: []string{"01/2024"}}
	f.docs.On("ListActivePeriods", mock.Anything, companyID).Return(scope.Periods, nil)
	f.ledger.On("ListScope", mock.Anything, scope).Return([]domain.WorkingLedgerLine{{ID: 1}}, nil)

	lines, err := f.orch.WorkingLedger(context.Background(), companyID, nil)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestOrchestrator_State(t *testing.T) {
	f := newOrchestratorFixture()
	snap := f.orch.State(uuid.New())
	assert.Equal(t, domain.StateIdle, snap.State)
	assert.Empty(t, snap.Periods)
}

func TestOrchestrator_Running(t *testing.T) {
	f := newOrchestratorFixture()
	companyID := uuid.New()
	assert.Equal(t, 0, f.orch.Running())

	var during int
	f.importer.On("Import", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		during = f.orch.Running()
	}).Return(uuid.New(), &ingest.Outcome{Opening: domain.OpeningContext{Period: "01/2024"}}, nil)

	res := f.orch.ImportFiles(context.Background(), companyID, []string{"a.txt"}, false)
	require.Equal(t, domain.ImportStatusOK, res.Status)
	assert.Equal(t, 1, during)
	assert.Equal(t, 0, f.orch.Running())
}
