package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"spedflow/internal/domain"
	"spedflow/internal/ingest"
	"spedflow/internal/observability"
	"spedflow/internal/port"
)

var tracer = otel.Tracer("spedflow/service")

// noticeSampleSize bounds the product names listed in a pending-rate email.
const noticeSampleSize = 10

// Pipeline is the boundary API served over HTTP and the CLI.
type Pipeline interface {
	ImportFiles(ctx context.Context, companyID uuid.UUID, paths []string, force bool) domain.ImportResult
	Prepare(ctx context.Context, companyID uuid.UUID, periods []string) domain.PrepareResult
	Finalize(ctx context.Context, companyID uuid.UUID, periods []string) domain.FinalizeResult
	RestoreRun(ctx context.Context, companyID uuid.UUID, period string, runID uuid.UUID) (int64, error)
	WorkingLedger(ctx context.Context, companyID uuid.UUID, periods []string) ([]domain.WorkingLedgerLine, error)
	PendingRates(ctx context.Context, companyID uuid.UUID, periods []string) ([]domain.PendingItem, error)
	State(companyID uuid.UUID) domain.PipelineSnapshot
}

var _ Pipeline = (*Orchestrator)(nil)

// OrchestratorDeps groups the collaborators of the Orchestrator.
type OrchestratorDeps struct {
	Tx         port.TxManager
	Ledgers    ingest.Repositories
	Importer   ImportService
	Enrichment EnrichmentService
	Catalog    RateCatalogService
	Clone      CloneService
	Resolution ResolutionEngine
	Ledger     port.WorkingLedgerRepository
	Email      port.EmailSender
	Recipients []string
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Orchestrator is the boundary of the post-processing pipeline. Every call
// returns a status and a message; errors are logged and never returned.
type Orchestrator struct {
	deps   OrchestratorDeps
	logger *zap.Logger

	mu     sync.Mutex
	states map[uuid.UUID]*domain.PipelineSnapshot
	busy   map[uuid.UUID]bool
}

// NewOrchestrator creates the pipeline orchestrator.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{
		deps:   deps,
		logger: deps.Logger.With(zap.String("component", "orchestrator")),
		states: make(map[uuid.UUID]*domain.PipelineSnapshot),
		busy:   make(map[uuid.UUID]bool),
	}
}

// ImportFiles ingests SPED files for a company.
func (o *Orchestrator) ImportFiles(ctx context.Context, companyID uuid.UUID, paths []string, force bool) domain.ImportResult {
	ctx, span := tracer.Start(ctx, "orchestrator.ImportFiles")
	defer span.End()
	span.SetAttributes(attribute.String("company_id", companyID.String()), attribute.Int("files", len(paths)))

	if err := o.acquire(companyID); err != nil {
		return domain.ImportResult{Status: domain.ImportStatusError, Message: err.Error()}
	}
	defer o.release(companyID)

	start := time.Now()
	runID, out, err := o.deps.Importer.Import(ctx, &ImportInput{CompanyID: companyID, Paths: paths, Force: force})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res := domain.ImportResult{Status: domain.ImportStatusError, RunID: runID, Message: err.Error()}
		if errors.Is(err, domain.ErrPeriodConflict) {
			res.Status = domain.ImportStatusConflict
		}
		o.deps.Metrics.ObservePhase("import", string(res.Status), time.Since(start))
		o.logger.Warn("import failed", zap.String("company_id", companyID.String()),
			zap.String("run_id", runID.String()), zap.Error(err))
		return res
	}

	o.setState(companyID, domain.StateIdle, nil, 0, "imported "+out.Opening.Period)
	o.deps.Metrics.ObservePhase("import", string(domain.ImportStatusOK), time.Since(start))
	return domain.ImportResult{
		Status: domain.ImportStatusOK,
		RunID:  runID,
		Period: out.Opening.Period,
		Branch: out.Opening.BranchCode,
		Counts: out.Counts,
	}
}

// Prepare enriches suppliers, syncs the rate catalog and reports the entries
// still waiting for a rate. Empty periods select every active period.
func (o *Orchestrator) Prepare(ctx context.Context, companyID uuid.UUID, periods []string) domain.PrepareResult {
	ctx, span := tracer.Start(ctx, "orchestrator.Prepare")
	defer span.End()
	span.SetAttributes(attribute.String("company_id", companyID.String()))

	fail := func(scope []string, err error) domain.PrepareResult {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("prepare failed", zap.String("company_id", companyID.String()), zap.Error(err))
		return domain.PrepareResult{Status: domain.PrepareStatusError, Periods: scope, PendingItems: []domain.PendingItem{}, Message: err.Error()}
	}

	if err := o.acquire(companyID); err != nil {
		return fail(periods, err)
	}
	defer o.release(companyID)

	start := time.Now()
	scope, err := o.scope(ctx, companyID, periods)
	if err != nil {
		o.setState(companyID, domain.StateFailed, periods, 0, err.Error())
		o.deps.Metrics.ObservePhase("prepare", string(domain.PrepareStatusError), time.Since(start))
		return fail(periods, err)
	}
	o.setState(companyID, domain.StatePreparing, scope.Periods, 0, "")

	pending, err := o.prepare(ctx, scope)
	if err != nil {
		o.setState(companyID, domain.StateFailed, scope.Periods, 0, err.Error())
		o.deps.Metrics.ObservePhase("prepare", string(domain.PrepareStatusError), time.Since(start))
		return fail(scope.Periods, err)
	}
	o.deps.Metrics.SetPendingRates(len(pending))

	if len(pending) == 0 {
		o.setState(companyID, domain.StateReady, scope.Periods, 0, "")
		o.deps.Metrics.ObservePhase("prepare", string(domain.PrepareStatusReadyToFinalize), time.Since(start))
		return domain.PrepareResult{Status: domain.PrepareStatusReadyToFinalize, Periods: scope.Periods, PendingItems: pending}
	}

	msg := fmt.Sprintf("%d catalog entries need a rate", len(pending))
	o.setState(companyID, domain.StateAwaitingInput, scope.Periods, len(pending), msg)
	o.notify(ctx, scope, pending)
	o.deps.Metrics.ObservePhase("prepare", string(domain.PrepareStatusNeedsInput), time.Since(start))
	return domain.PrepareResult{Status: domain.PrepareStatusNeedsInput, Periods: scope.Periods, PendingItems: pending, Message: msg}
}

func (o *Orchestrator) prepare(ctx context.Context, scope domain.Scope) ([]domain.PendingItem, error) {
	if _, err := o.deps.Enrichment.Enrich(ctx, scope); err != nil {
		return nil, err
	}
	if _, err := o.deps.Catalog.Sync(ctx, scope); err != nil {
		return nil, err
	}
	return o.deps.Catalog.PendingList(ctx, scope, 0)
}

// Finalize rebuilds the working ledger of the scope and resolves rates and
// results in one transaction. Entries still pending resolve to a blank rate.
func (o *Orchestrator) Finalize(ctx context.Context, companyID uuid.UUID, periods []string) domain.FinalizeResult {
	ctx, span := tracer.Start(ctx, "orchestrator.Finalize")
	defer span.End()
	span.SetAttributes(attribute.String("company_id", companyID.String()))

	fail := func(scope []string, err error) domain.FinalizeResult {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("finalize failed", zap.String("company_id", companyID.String()), zap.Error(err))
		return domain.FinalizeResult{Status: domain.FinalizeStatusError, Periods: scope, Message: err.Error()}
	}

	if err := o.acquire(companyID); err != nil {
		return fail(periods, err)
	}
	defer o.release(companyID)

	start := time.Now()
	scope, err := o.scope(ctx, companyID, periods)
	if err != nil {
		o.setState(companyID, domain.StateFailed, periods, 0, err.Error())
		o.deps.Metrics.ObservePhase("finalize", string(domain.FinalizeStatusError), time.Since(start))
		return fail(periods, err)
	}
	o.setState(companyID, domain.StateFinalizing, scope.Periods, 0, "")

	var inserted int
	var report *ResolutionReport
	err = o.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		cands, err := o.deps.Catalog.Sync(ctx, scope)
		if err != nil {
			return err
		}
		if inserted, err = o.deps.Clone.Clone(ctx, scope, cands); err != nil {
			return err
		}
		report, err = o.deps.Resolution.Resolve(ctx, scope)
		return err
	})
	if err != nil {
		o.setState(companyID, domain.StateFailed, scope.Periods, 0, err.Error())
		o.deps.Metrics.ObservePhase("finalize", string(domain.FinalizeStatusError), time.Since(start))
		return fail(scope.Periods, err)
	}

	msg := ""
	if report.Unresolved > 0 {
		msg = fmt.Sprintf("%d lines have no rate", report.Unresolved)
	}
	o.setState(companyID, domain.StateDone, scope.Periods, 0, msg)
	o.deps.Metrics.ObservePhase("finalize", string(domain.FinalizeStatusOK), time.Since(start))
	o.logger.Info("finalize complete",
		zap.String("company_id", companyID.String()),
		zap.Strings("periods", scope.Periods),
		zap.Int("inserted", inserted),
		zap.Int("resolved", report.Resolved),
		zap.Int("unresolved", report.Unresolved))
	return domain.FinalizeResult{Status: domain.FinalizeStatusOK, Periods: scope.Periods, InsertedRowCount: inserted, Message: msg}
}

// RestoreRun reactivates the rows of a previous import run for a period and
// deactivates every other run of that period.
func (o *Orchestrator) RestoreRun(ctx context.Context, companyID uuid.UUID, period string, runID uuid.UUID) (int64, error) {
	if err := o.acquire(companyID); err != nil {
		return 0, err
	}
	defer o.release(companyID)

	var total int64
	err := o.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, repo := range []port.LedgerRepository{o.deps.Ledgers.Documents, o.deps.Ledgers.Items, o.deps.Ledgers.Partners, o.deps.Ledgers.Products} {
			n, err := repo.Reactivate(ctx, companyID, period, runID)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("orchestrator.RestoreRun: %w", err)
	}
	o.setState(companyID, domain.StateIdle, []string{period}, 0, "restored run "+runID.String())
	o.logger.Info("import run restored",
		zap.String("company_id", companyID.String()),
		zap.String("period", period),
		zap.String("run_id", runID.String()),
		zap.Int64("rows", total))
	return total, nil
}

// WorkingLedger returns the finalized lines of the scope.
func (o *Orchestrator) WorkingLedger(ctx context.Context, companyID uuid.UUID, periods []string) ([]domain.WorkingLedgerLine, error) {
	scope, err := o.scope(ctx, companyID, periods)
	if err != nil {
		return nil, err
	}
	lines, err := o.deps.Ledger.ListScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("orchestrator.WorkingLedger: %w", err)
	}
	return lines, nil
}

// PendingRates lists catalog entries of the scope that still lack a rate.
func (o *Orchestrator) PendingRates(ctx context.Context, companyID uuid.UUID, periods []string) ([]domain.PendingItem, error) {
	scope, err := o.scope(ctx, companyID, periods)
	if err != nil {
		return nil, err
	}
	return o.deps.Catalog.PendingList(ctx, scope, 0)
}

// State returns the last known pipeline state of a company.
func (o *Orchestrator) State(companyID uuid.UUID) domain.PipelineSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.states[companyID]; ok {
		return *s
	}
	return domain.PipelineSnapshot{CompanyID: companyID, State: domain.StateIdle, Periods: []string{}}
}

func (o *Orchestrator) scope(ctx context.Context, companyID uuid.UUID, periods []string) (domain.Scope, error) {
	if len(periods) == 0 {
		active, err := o.deps.Ledgers.Documents.ListActivePeriods(ctx, companyID)
		if err != nil {
			return domain.Scope{}, fmt.Errorf("orchestrator.scope: %w", err)
		}
		periods = active
	}
	if len(periods) == 0 {
		return domain.Scope{}, domain.ErrNoActivePeriods
	}
	return domain.Scope{CompanyID: companyID, Periods: periods}, nil
}

func (o *Orchestrator) notify(ctx context.Context, scope domain.Scope, pending []domain.PendingItem) {
	if o.deps.Email == nil || len(o.deps.Recipients) == 0 {
		return
	}
	sample := make([]string, 0, noticeSampleSize)
	for i := 0; i < len(pending) && i < noticeSampleSize; i++ {
		sample = append(sample, pending[i].Product)
	}
	notice := port.PendingRatesNotice{
		CompanyID: scope.CompanyID,
		Periods:   scope.Periods,
		Pending:   len(pending),
		Sample:    sample,
	}
	if err := o.deps.Email.SendPendingRatesNotification(ctx, o.deps.Recipients, notice); err != nil {
		o.logger.Warn("pending-rate notification failed", zap.Error(err))
	}
}

// Running returns the number of companies with a pipeline call in flight.
func (o *Orchestrator) Running() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.busy)
}

func (o *Orchestrator) acquire(companyID uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy[companyID] {
		return domain.ErrPipelineBusy
	}
	o.busy[companyID] = true
	return nil
}

func (o *Orchestrator) release(companyID uuid.UUID) {
	o.mu.Lock()
	delete(o.busy, companyID)
	o.mu.Unlock()
}

func (o *Orchestrator) setState(companyID uuid.UUID, state domain.PipelineState, periods []string, pending int, msg string) {
	if periods == nil {
		periods = []string{}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states[companyID] = &domain.PipelineSnapshot{
		CompanyID: companyID,
		State:     state,
		Periods:   periods,
		Pending:   pending,
		Message:   msg,
		UpdatedAt: time.Now().UTC(),
	}
}
