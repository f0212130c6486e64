package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"spedflow/internal/domain"
	"spedflow/internal/port"
)

var workingLedgerColumns = []string{
	"company_id", "source_item_id", "document_id", "period", "branch_code", "cod_part", "cod_item",
	"product", "ncm", "cfop", "vl_item", "vl_desc", "simples", "aliquota", "resultado",
}

type workingLedgerRepo struct {
	db *sqlx.DB
}

// NewWorkingLedgerRepo creates a new PostgreSQL-backed WorkingLedgerRepository.
func NewWorkingLedgerRepo(db *sqlx.DB) port.WorkingLedgerRepository {
	return &workingLedgerRepo{db: db}
}

func (r *workingLedgerRepo) DeleteScope(ctx context.Context, scope domain.Scope) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM working_ledger WHERE company_id = $1 AND period = ANY($2)`,
		scope.CompanyID, scope.Periods)
	if err != nil {
		return 0, fmt.Errorf("workingLedgerRepo.DeleteScope: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *workingLedgerRepo) InsertBatch(ctx context.Context, lines []domain.WorkingLedgerLine) error {
	if len(lines) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(lines)*len(workingLedgerColumns))
	for i := range lines {
		l := &lines[i]
		args = append(args, l.CompanyID, l.SourceItemID, l.DocumentID, l.Period, l.BranchCode,
			l.PartnerCode, l.ProductCode, l.Product, l.NCM, l.CFOP, l.Value, l.Discount,
			l.Simples, l.Rate, l.Result)
	}
	query := insertQuery("working_ledger", workingLedgerColumns, len(lines), "")
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("workingLedgerRepo.InsertBatch: %w", err)
	}
	return nil
}

func (r *workingLedgerRepo) ListScope(ctx context.Context, scope domain.Scope) ([]domain.WorkingLedgerLine, error) {
	var lines []domain.WorkingLedgerLine
	err := conn(ctx, r.db).SelectContext(ctx, &lines,
		`SELECT id, company_id, source_item_id, document_id, period, branch_code, cod_part, cod_item,
		        product, ncm, cfop, vl_item, vl_desc, simples, aliquota, resultado
		 FROM working_ledger
		 WHERE company_id = $1 AND period = ANY($2)
		 ORDER BY source_item_id`,
		scope.CompanyID, scope.Periods)
	if err != nil {
		return nil, fmt.Errorf("workingLedgerRepo.ListScope: %w", err)
	}
	return lines, nil
}

// UpdateResults writes the resolved rate and result of each line by id.
func (r *workingLedgerRepo) UpdateResults(ctx context.Context, lines []domain.WorkingLedgerLine) error {
	if len(lines) == 0 {
		return nil
	}

	rows := make([]string, 0, len(lines))
	args := make([]interface{}, 0, len(lines)*3)
	for i := range lines {
		base := i * 3
		rows = append(rows, fmt.Sprintf("($%d::bigint, $%d::text, $%d::numeric)", base+1, base+2, base+3))
		args = append(args, lines[i].ID, lines[i].Rate, lines[i].Result)
	}
	query := fmt.Sprintf(
		`UPDATE working_ledger AS w SET aliquota = v.aliquota, resultado = v.resultado
		 FROM (VALUES %s) AS v(id, aliquota, resultado)
		 WHERE w.id = v.id`, strings.Join(rows, ", "))

	if _, err := conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("workingLedgerRepo.UpdateResults: %w", err)
	}
	return nil
}
