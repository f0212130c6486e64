package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"spedflow/internal/domain"
	"spedflow/internal/port"
)

type rateCatalogRepo struct {
	db *sqlx.DB
}

// NewRateCatalogRepo creates a new PostgreSQL-backed RateCatalogRepository.
func NewRateCatalogRepo(db *sqlx.DB) port.RateCatalogRepository {
	return &rateCatalogRepo{db: db}
}

func (r *rateCatalogRepo) InsertMissing(ctx context.Context, companyID uuid.UUID, keys []domain.CatalogKey) (int64, error) {
	var inserted int64
	for start := 0; start < len(keys); start += catalogInsertChunk {
		end := min(start+catalogInsertChunk, len(keys))
		chunk := keys[start:end]

		args := make([]interface{}, 0, len(chunk)*3)
		for _, k := range chunk {
			args = append(args, companyID, k.Product, k.NCM)
		}
		query := insertQuery("rate_catalog", []string{"company_id", "product", "ncm"}, len(chunk),
			"ON CONFLICT (company_id, product, ncm) DO NOTHING")

		res, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("rateCatalogRepo.InsertMissing: %w", err)
		}
		n, _ := res.RowsAffected()
		inserted += n
	}
	return inserted, nil
}

func (r *rateCatalogRepo) ListByKeys(ctx context.Context, companyID uuid.UUID, keys []domain.CatalogKey) ([]domain.RateCatalogEntry, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	products := make([]string, len(keys))
	ncms := make([]string, len(keys))
	for i, k := range keys {
		products[i] = k.Product
		ncms[i] = k.NCM
	}

	var entries []domain.RateCatalogEntry
	err := conn(ctx, r.db).SelectContext(ctx, &entries,
		`SELECT c.id, c.company_id, c.product, c.ncm, c.rate, c.rate_legacy, c.created_at, c.updated_at
		 FROM rate_catalog c
		 JOIN unnest($2::text[], $3::text[]) AS k(product, ncm)
		   ON k.product = c.product AND k.ncm = c.ncm
		 WHERE c.company_id = $1
		 ORDER BY c.product, c.ncm`,
		companyID, products, ncms)
	if err != nil {
		return nil, fmt.Errorf("rateCatalogRepo.ListByKeys: %w", err)
	}
	return entries, nil
}

func (r *rateCatalogRepo) GetByID(ctx context.Context, companyID uuid.UUID, id int64) (*domain.RateCatalogEntry, error) {
	var entry domain.RateCatalogEntry
	err := conn(ctx, r.db).GetContext(ctx, &entry,
		`SELECT id, company_id, product, ncm, rate, rate_legacy, created_at, updated_at
		 FROM rate_catalog WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("rateCatalogRepo.GetByID: %w", err)
	}
	return &entry, nil
}

// SetRate writes the current column, or rate_legacy when legacy is set. A nil rate clears it.
func (r *rateCatalogRepo) SetRate(ctx context.Context, companyID uuid.UUID, id int64, rate *string, legacy bool) error {
	query := `UPDATE rate_catalog SET rate = $3, updated_at = NOW() WHERE company_id = $1 AND id = $2`
	if legacy {
		query = `UPDATE rate_catalog SET rate_legacy = $3, updated_at = NOW() WHERE company_id = $1 AND id = $2`
	}
	res, err := conn(ctx, r.db).ExecContext(ctx, query, companyID, id, rate)
	if err != nil {
		return fmt.Errorf("rateCatalogRepo.SetRate: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
