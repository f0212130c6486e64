// Package app assembles repositories, services and adapters from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"spedflow/internal/config"
	"spedflow/internal/email/noop"
	"spedflow/internal/email/ses"
	"spedflow/internal/ingest"
	"spedflow/internal/observability"
	"spedflow/internal/port"
	"spedflow/internal/registry"
	"spedflow/internal/repository/postgres"
	"spedflow/internal/service"
	s3storage "spedflow/internal/storage/s3"
)

// App holds the wired services shared by the HTTP server and the CLI.
type App struct {
	DB       *sqlx.DB
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Pipeline *service.Orchestrator
	Catalog  service.RateCatalogService
	Tokens   service.TokenService
	Registry *registry.Client

	shutdownTracer func(context.Context) error
}

// New connects to the database and builds the service graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	shutdownTracer, err := observability.InitTracer(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		_ = shutdownTracer(ctx)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	metrics := observability.NewMetrics()

	// Initialize repositories
	txManager := postgres.NewTxManager(db)
	ledgers := ingest.Repositories{
		Documents: postgres.NewDocumentRepo(db),
		Items:     postgres.NewLineItemRepo(db),
		Partners:  postgres.NewPartnerRepo(db),
		Products:  postgres.NewProductRepo(db),
	}
	supplierRepo := postgres.NewSupplierRepo(db)
	candidateRepo := postgres.NewCandidateRepo(db)
	catalogRepo := postgres.NewRateCatalogRepo(db)
	ledgerRepo := postgres.NewWorkingLedgerRepo(db)

	// Initialize adapters
	storage, err := s3storage.NewS3Client(ctx, &cfg.S3)
	if err != nil {
		db.Close()
		_ = shutdownTracer(ctx)
		return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	emailSender, err := newEmailSender(&cfg.Email, logger)
	if err != nil {
		db.Close()
		_ = shutdownTracer(ctx)
		return nil, err
	}

	registryClient := registry.NewClient(&http.Client{Timeout: cfg.Enrichment.Timeout}, cfg.Enrichment)

	// Initialize services
	coordinator := ingest.NewCoordinator(txManager, ledgers, ingest.OptionsFromConfig(&cfg.Pipeline), logger, metrics)
	importSvc := service.NewImportService(coordinator, storage, cfg.S3.ArchiveBucket, logger)
	enrichmentSvc := service.NewEnrichmentService(supplierRepo, registryClient, cfg.Enrichment, logger, metrics)
	catalogSvc := service.NewRateCatalogService(candidateRepo, catalogRepo, cfg.Rates, logger)
	cloneSvc := service.NewCloneService(ledgerRepo, logger)
	resolution := service.NewResolutionEngine(ledgerRepo, catalogRepo, logger)

	orchestrator := service.NewOrchestrator(service.OrchestratorDeps{
		Tx:         txManager,
		Ledgers:    ledgers,
		Importer:   importSvc,
		Enrichment: enrichmentSvc,
		Catalog:    catalogSvc,
		Clone:      cloneSvc,
		Resolution: resolution,
		Ledger:     ledgerRepo,
		Email:      emailSender,
		Recipients: cfg.Email.Recipients,
		Logger:     logger,
		Metrics:    metrics,
	})

	return &App{
		DB:             db,
		Logger:         logger,
		Metrics:        metrics,
		Pipeline:       orchestrator,
		Catalog:        catalogSvc,
		Tokens:         service.NewTokenService(cfg.JWT),
		Registry:       registryClient,
		shutdownTracer: shutdownTracer,
	}, nil
}

// Close releases the database pool and flushes pending spans.
func (a *App) Close(ctx context.Context) {
	if err := a.shutdownTracer(ctx); err != nil {
		a.Logger.Warn("tracer shutdown failed", zap.Error(err))
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn("closing database failed", zap.Error(err))
	}
}

func newEmailSender(cfg *config.EmailConfig, logger *zap.Logger) (port.EmailSender, error) {
	switch cfg.Provider {
	case "ses":
		sender, err := ses.NewSESSender(cfg.Region, cfg.FromAddress, cfg.FromName, cfg.FrontendURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SES sender: %w", err)
		}
		return sender, nil
	case "", "noop":
		return noop.NewNoopSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
