package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Ledger table names. Queries only ever interpolate these constants.
const (
	tableDocuments = "sped_documents"
	tableItems     = "sped_document_items"
	tablePartners  = "sped_partners"
	tableProducts  = "sped_products"
)

// ledgerTable implements the soft-delete contract for one period-scoped table.
type ledgerTable struct {
	db    *sqlx.DB
	table string
	name  string
}

func (l ledgerTable) CountActive(ctx context.Context, companyID uuid.UUID, period string) (int, error) {
	var n int
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE company_id = $1 AND period = $2 AND is_active`, l.table)
	if err := conn(ctx, l.db).GetContext(ctx, &n, query, companyID, period); err != nil {
		return 0, fmt.Errorf("%s.CountActive: %w", l.name, err)
	}
	return n, nil
}

func (l ledgerTable) Deactivate(ctx context.Context, companyID uuid.UUID, period string) (int64, error) {
	query := fmt.Sprintf(
		`UPDATE %s SET is_active = FALSE WHERE company_id = $1 AND period = $2 AND is_active`, l.table)
	res, err := conn(ctx, l.db).ExecContext(ctx, query, companyID, period)
	if err != nil {
		return 0, fmt.Errorf("%s.Deactivate: %w", l.name, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Reactivate makes runID the only active run of the period.
func (l ledgerTable) Reactivate(ctx context.Context, companyID uuid.UUID, period string, runID uuid.UUID) (int64, error) {
	query := fmt.Sprintf(
		`UPDATE %s SET is_active = (run_id = $3)
		 WHERE company_id = $1 AND period = $2 AND (is_active OR run_id = $3)`, l.table)
	res, err := conn(ctx, l.db).ExecContext(ctx, query, companyID, period, runID)
	if err != nil {
		return 0, fmt.Errorf("%s.Reactivate: %w", l.name, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
