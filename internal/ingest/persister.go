package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"spedflow/internal/domain"
	"spedflow/internal/observability"
	"spedflow/internal/port"
)

// Repositories groups the ledger repositories the persister writes to.
type Repositories struct {
	Documents port.DocumentRepository
	Items     port.LineItemRepository
	Partners  port.PartnerRepository
	Products  port.ProductRepository
}

func (r Repositories) ledgers() []port.LedgerRepository {
	return []port.LedgerRepository{r.Documents, r.Items, r.Partners, r.Products}
}

// Persister writes buffered records in per-flush transactions. Documents are
// written first so their generated ids can be assigned to line items.
type Persister struct {
	tx      port.TxManager
	repos   Repositories
	chunk   int
	logger  *zap.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	docIDs   map[domain.DocumentKey]int64
	deferred []domain.LineItem
	counts   domain.ImportCounts
}

// MaxInsertChunk caps rows per INSERT. sped_documents has 22 columns, and
// PostgreSQL rejects statements with more than 65535 bind parameters.
const MaxInsertChunk = 2000

// NewPersister creates a persister inserting at most chunk rows per statement.
// chunk is clamped to (0, MaxInsertChunk].
func NewPersister(tx port.TxManager, repos Repositories, chunk int, logger *zap.Logger, metrics *observability.Metrics) *Persister {
	if chunk <= 0 {
		chunk = 500
	}
	if chunk > MaxInsertChunk {
		logger.Warn("insert chunk above limit, clamping",
			zap.Int("requested", chunk), zap.Int("max", MaxInsertChunk))
		chunk = MaxInsertChunk
	}
	return &Persister{
		tx:      tx,
		repos:   repos,
		chunk:   chunk,
		logger:  logger,
		metrics: metrics,
		docIDs:  make(map[domain.DocumentKey]int64),
	}
}

// Guard enforces period idempotency before any write of the run. An active
// period without force is a conflict; with force every ledger table is
// soft-deleted for the period in one transaction.
func (p *Persister) Guard(ctx context.Context, companyID uuid.UUID, period string, force bool) error {
	active := 0
	for _, repo := range p.repos.ledgers() {
		n, err := repo.CountActive(ctx, companyID, period)
		if err != nil {
			return fmt.Errorf("persister.Guard: %w", err)
		}
		active += n
	}
	if active == 0 {
		return nil
	}
	if !force {
		return fmt.Errorf("%w: %s has %d active rows", domain.ErrPeriodConflict, period, active)
	}

	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, repo := range p.repos.ledgers() {
			if _, err := repo.Deactivate(ctx, companyID, period); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persister.Guard: %w", err)
	}
	p.logger.Info("deactivated previous import", zap.String("period", period), zap.Int("rows", active))
	return nil
}

// Flush persists a snapshot in one transaction. Items whose header is not yet
// persisted wait for a later flush; on the final flush they are discarded.
func (p *Persister) Flush(ctx context.Context, snap Snapshot, final bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Len() == 0 && len(p.deferred) == 0 {
		return nil
	}

	start := time.Now()
	pending := append(p.deferred, snap.Items...)
	newIDs := make(map[domain.DocumentKey]int64, len(snap.Documents))
	var ready, waiting []domain.LineItem

	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := chunked(snap.Partners, p.chunk, func(b []domain.Partner) error {
			return p.repos.Partners.InsertBatch(ctx, b)
		}); err != nil {
			return err
		}
		if err := chunked(snap.Products, p.chunk, func(b []domain.Product) error {
			return p.repos.Products.InsertBatch(ctx, b)
		}); err != nil {
			return err
		}
		if err := chunked(snap.Documents, p.chunk, func(b []*domain.Document) error {
			if err := p.repos.Documents.InsertBatch(ctx, b); err != nil {
				return err
			}
			for _, d := range b {
				newIDs[d.DocumentKey] = d.ID
			}
			return nil
		}); err != nil {
			return err
		}

		ready, waiting = p.resolve(pending, newIDs)
		return chunked(ready, p.chunk, func(b []domain.LineItem) error {
			return p.repos.Items.InsertBatch(ctx, b)
		})
	})
	if err != nil {
		return fmt.Errorf("persister.Flush: %w", err)
	}

	for k, id := range newIDs {
		p.docIDs[k] = id
	}
	p.counts.Documents += len(snap.Documents)
	p.counts.Partners += len(snap.Partners)
	p.counts.Products += len(snap.Products)
	p.counts.Items += len(ready)

	p.metrics.AddRecordsWritten("documents", len(snap.Documents))
	p.metrics.AddRecordsWritten("items", len(ready))
	p.metrics.AddRecordsWritten("partners", len(snap.Partners))
	p.metrics.AddRecordsWritten("products", len(snap.Products))
	p.metrics.ObserveFlush(time.Since(start))

	if final && len(waiting) > 0 {
		p.logger.Warn("discarding line items whose document was never persisted",
			zap.Int("count", len(waiting)))
		p.metrics.AddItemsDiscarded("unresolved_parent", len(waiting))
		p.counts.Discarded += len(waiting)
		waiting = nil
	}
	p.deferred = waiting

	p.logger.Debug("flush committed",
		zap.Int("documents", len(snap.Documents)),
		zap.Int("items", len(ready)),
		zap.Int("deferred", len(p.deferred)),
		zap.Bool("final", final),
		zap.Duration("took", time.Since(start)))
	return nil
}

// resolve assigns document ids to items from committed and in-flight headers.
func (p *Persister) resolve(items []domain.LineItem, inflight map[domain.DocumentKey]int64) (ready, waiting []domain.LineItem) {
	for _, it := range items {
		id, ok := inflight[it.Parent]
		if !ok {
			id, ok = p.docIDs[it.Parent]
		}
		if !ok {
			waiting = append(waiting, it)
			continue
		}
		it.DocumentID = id
		ready = append(ready, it)
	}
	return ready, waiting
}

// Discard records line items dropped before reaching the persister.
func (p *Persister) Discard(n int) {
	p.mu.Lock()
	p.counts.Discarded += n
	p.mu.Unlock()
}

// Counts returns the running totals of the run.
func (p *Persister) Counts() domain.ImportCounts {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts
}

func chunked[T any](rows []T, size int, fn func([]T) error) error {
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		if err := fn(rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}
