package ingest_test

import (
	"context"
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
)

func TestPersister_Flush(t *testing.T) {
	key := domain.DocumentKey{FileOrdinal: 1, LineNumber: 4, Number: "7"}
	item := func(n string) domain.LineItem {
		return domain.LineItem{ItemNumber: n, Parent: key}
	}

	t.Run("defers_items_until_header_is_persisted", func(t *testing.T) {
		f := newFixture()
		p := ingest.NewPersister(f.tx, f.repos(), 10, zap.NewNop(), observability.NewMetrics())
		ctx := context.Background()

		require.NoError(t, p.Flush(ctx, ingest.Snapshot{Items: []domain.LineItem{item("1"), item("2")}}, false))
		assert.Empty(t, f.inserted)
		assert.Equal(t, 0, p.Counts().Items)

		doc := &domain.Document{DocumentKey: key}
		require.NoError(t, p.Flush(ctx, ingest.Snapshot{Documents: []*domain.Document{doc}}, false))
		require.Len(t, f.inserted, 2)
		assert.Equal(t, int64(700), f.inserted[0].DocumentID)
		assert.Equal(t, int64(700), f.inserted[1].DocumentID)
		assert.Equal(t, 2, p.Counts().Items)
		assert.Equal(t, 1, p.Counts().Documents)
	})

	t.Run("later_items_use_committed_header", func(t *testing.T) {
		f := newFixture()
		p := ingest.NewPersister(f.tx, f.repos(), 10, zap.NewNop(), observability.NewMetrics())
		ctx := context.Background()

		require.NoError(t, p.Flush(ctx, ingest.Snapshot{Documents: []*domain.Document{{DocumentKey: key}}}, false))
		require.NoError(t, p.Flush(ctx, ingest.Snapshot{Items: []domain.LineItem{item("1")}}, true))
		require.Len(t, f.inserted, 1)
		assert.Equal(t, int64(700), f.inserted[0].DocumentID)
	})

	t.Run("final_flush_discards_orphans", func(t *testing.T) {
		f := newFixture()
		p := ingest.NewPersister(f.tx, f.repos(), 10, zap.NewNop(), observability.NewMetrics())

		require.NoError(t, p.Flush(context.Background(), ingest.Snapshot{Items: []domain.LineItem{item("1")}}, true))
		assert.Empty(t, f.inserted)
		assert.Equal(t, 1, p.Counts().Discarded)
		f.items.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
	})

	t.Run("chunks_inserts", func(t *testing.T) {
		f := newFixture()
		p := ingest.NewPersister(f.tx, f.repos(), 2, zap.NewNop(), observability.NewMetrics())

		partners := []domain.Partner{{Code: "A"}, {Code: "B"}, {Code: "C"}}
		require.NoError(t, p.Flush(context.Background(), ingest.Snapshot{Partners: partners}, false))
		f.partners.AssertNumberOfCalls(t, "InsertBatch", 2)
		assert.Equal(t, 3, p.Counts().Partners)
	})

	t.Run("oversized_chunk_is_clamped", func(t *testing.T) {
		f := newFixture()
		p := ingest.NewPersister(f.tx, f.repos(), 50000, zap.NewNop(), observability.NewMetrics())

		partners := make([]domain.Partner, ingest.MaxInsertChunk+1)
		for i := range partners {
			partners[i] = domain.Partner{Code: fmt.Sprintf("P%d", i)}
		}
		require.NoError(t, p.Flush(context.Background(), ingest.Snapshot{Partners: partners}, false))
		f.partners.AssertNumberOfCalls(t, "InsertBatch", 2)
		assert.Equal(t, len(partners), p.Counts().Partners)
	})

	t.Run("empty_snapshot_skips_transaction", func(t *testing.T) {
		f := newFixture()
		p := ingest.NewPersister(f.tx, f.repos(), 10, zap.NewNop(), observability.NewMetrics())

		require.NoError(t, p.Flush(context.Background(), ingest.Snapshot{}, true))
		f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
	})
}

func TestPersister_Guard(t *testing.T) {
	companyID := uuid.New()

	t.Run("inactive_period_passes", func(t *testing.T) {
		f := newFixture()
		f.activeRows(companyID, 0)
		p := ingest.NewPersister(f.tx, f.repos(), 10, zap.NewNop(), observability.NewMetrics())

		assert.NoError(t, p.Guard(context.Background(), companyID, "01/2024", false))
		f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
	})

	t.Run("active_period_conflicts", func(t *testing.T) {
		f := newFixture()
		f.activeRows(companyID, 3)
		p := ingest.NewPersister(f.tx, f.repos(), 10, zap.NewNop(), observability.NewMetrics())

		err := p.Guard(context.Background(), companyID, "01/2024", false)
		assert.ErrorIs(t, err, domain.ErrPeriodConflict)
	})

	t.Run("force_deactivates_every_ledger", func(t *testing.T) {
		f := newFixture()
		f.activeRows(companyID, 3)
		f.docs.On("Deactivate", mock.Anything, companyID, "01/2024").Return(int64(3), nil)
		f.items.On("Deactivate", mock.Anything, companyID, "01/2024").Return(int64(0), nil)
		f.partners.On("Deactivate", mock.Anything, companyID, "01/2024").Return(int64(0), nil)
		f.products.On("Deactivate", mock.Anything, companyID, "01/2024").Return(int64(0), nil)
		p := ingest.NewPersister(f.tx, f.repos(), 10, zap.NewNop(), observability.NewMetrics())

		require.NoError(t, p.Guard(context.Background(), companyID, "01/2024", true))
		f.tx.AssertNumberOfCalls(t, "WithinTx", 1)
		f.docs.AssertCalled(t, "Deactivate", mock.Anything, companyID, "01/2024")
		f.products.AssertCalled(t, "Deactivate", mock.Anything, companyID, "01/2024")
	})
}

func TestBufferAggregator_Ready(t *testing.T) {
	agg := ingest.NewBufferAggregator(2)

	agg.AddPartner(domain.Partner{Code: "A"})
	select {
	case <-agg.Ready():
		t.Fatal("signalled below threshold")
	default:
	}

	agg.AddProduct(domain.Product{Code: "X"})
	select {
	case <-agg.Ready():
	default:
		t.Fatal("expected signal at threshold")
	}

	snap := agg.Drain()
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, 0, agg.Len())
}
