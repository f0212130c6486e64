package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"spedflow/internal/domain"
	"spedflow/internal/port"
)

var lineItemColumns = []string{
	"document_id", "company_id", "run_id", "period", "branch_code", "num_item", "cod_item",
	"descr_compl", "qtd", "unid", "vl_item", "vl_desc", "ind_mov", "cst_icms", "cfop", "cod_nat",
	"vl_bc_icms", "aliq_icms", "vl_icms", "is_active",
}

type lineItemRepo struct {
	ledgerTable
}

// NewLineItemRepo creates a new PostgreSQL-backed LineItemRepository.
func NewLineItemRepo(db *sqlx.DB) port.LineItemRepository {
	return &lineItemRepo{ledgerTable{db: db, table: tableItems, name: "lineItemRepo"}}
}

func (r *lineItemRepo) InsertBatch(ctx context.Context, items []domain.LineItem) error {
	if len(items) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(items)*len(lineItemColumns))
	for i := range items {
		it := &items[i]
		args = append(args,
			it.DocumentID, it.CompanyID, it.RunID, it.Period, it.BranchCode, it.ItemNumber, it.ItemCode,
			it.Description, it.Quantity, it.Unit, it.Value, it.Discount, it.Movement, it.CSTICMS, it.CFOP,
			it.NatureCode, it.ICMSBase, it.ICMSRate, it.ICMSValue, it.IsActive,
		)
	}

	query := insertQuery(tableItems, lineItemColumns, len(items), "")
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("lineItemRepo.InsertBatch: %w", err)
	}
	return nil
}
