package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"spedflow/internal/domain"
	"spedflow/internal/port"
)

var documentColumns = []string{
	"company_id", "run_id", "period", "branch_code", "file_ordinal", "line_number", "doc_number",
	"ind_oper", "ind_emit", "cod_part", "cod_mod", "cod_sit", "series", "access_key",
	"issue_date", "entry_date", "vl_doc", "vl_desc", "vl_merc", "vl_bc_icms", "vl_icms", "is_active",
}

type documentRepo struct {
	ledgerTable
}

// NewDocumentRepo creates a new PostgreSQL-backed DocumentRepository.
func NewDocumentRepo(db *sqlx.DB) port.DocumentRepository {
	return &documentRepo{ledgerTable{db: db, table: tableDocuments, name: "documentRepo"}}
}

type insertedDocument struct {
	ID          int64 `db:"id"`
	FileOrdinal int   `db:"file_ordinal"`
	LineNumber  int   `db:"line_number"`
}

func (r *documentRepo) InsertBatch(ctx context.Context, docs []*domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(docs)*len(documentColumns))
	for _, d := range docs {
		args = append(args,
			d.CompanyID, d.RunID, d.Period, d.BranchCode, d.FileOrdinal, d.LineNumber, d.Number,
			d.Operation, d.Issuer, d.PartnerCode, d.Model, d.Situation, d.Series, d.AccessKey,
			d.IssueDate, d.EntryDate, d.TotalValue, d.DiscountValue, d.MerchandiseValue,
			d.ICMSBase, d.ICMSValue, d.IsActive,
		)
	}
	query := insertQuery(tableDocuments, documentColumns, len(docs), "RETURNING id, file_ordinal, line_number")

	var rows []insertedDocument
	if err := conn(ctx, r.db).SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("documentRepo.InsertBatch: %w", err)
	}
	if len(rows) != len(docs) {
		return fmt.Errorf("documentRepo.InsertBatch: inserted %d of %d rows", len(rows), len(docs))
	}

	type pos struct{ file, line int }
	ids := make(map[pos]int64, len(rows))
	for _, row := range rows {
		ids[pos{row.FileOrdinal, row.LineNumber}] = row.ID
	}
	for _, d := range docs {
		id, ok := ids[pos{d.FileOrdinal, d.LineNumber}]
		if !ok {
			return fmt.Errorf("documentRepo.InsertBatch: no id returned for line %d of file %d", d.LineNumber, d.FileOrdinal)
		}
		d.ID = id
	}
	return nil
}

func (r *documentRepo) ListActivePeriods(ctx context.Context, companyID uuid.UUID) ([]string, error) {
	var periods []string
	err := conn(ctx, r.db).SelectContext(ctx, &periods,
		`SELECT period FROM sped_documents WHERE company_id = $1 AND is_active
		 GROUP BY period
		 ORDER BY RIGHT(period, 4), LEFT(period, 2)`, companyID)
	if err != nil {
		return nil, fmt.Errorf("documentRepo.ListActivePeriods: %w", err)
	}
	return periods, nil
}
