package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"spedflow/internal/domain"
	"spedflow/internal/port"
)

type candidateRepo struct {
	db *sqlx.DB
}

// NewCandidateRepo creates a new PostgreSQL-backed CandidateRepository.
func NewCandidateRepo(db *sqlx.DB) port.CandidateRepository {
	return &candidateRepo{db: db}
}

// ListCandidates returns one row per active purchase line whose supplier is
// eligible: state known and either out of homeState or not decree-eligible.
// Product description and NCM come from the latest 0200 record of the period,
// falling back to the line's complementary description.
func (r *candidateRepo) ListCandidates(ctx context.Context, scope domain.Scope, homeState string, cfops []string) ([]domain.Candidate, error) {
	var out []domain.Candidate
	err := conn(ctx, r.db).SelectContext(ctx, &out,
		`SELECT i.id AS source_item_id, i.document_id, i.period, i.branch_code,
		        d.cod_part, i.cod_item,
		        COALESCE(NULLIF(pr.descr_item, ''), i.descr_compl) AS product,
		        COALESCE(pr.cod_ncm, '') AS ncm,
		        i.cfop, i.vl_item, i.vl_desc,
		        COALESCE(s.simples, FALSE) AS simples
		 FROM sped_document_items i
		 JOIN sped_documents d ON d.id = i.document_id
		 JOIN suppliers s ON s.company_id = i.company_id AND s.cod_part = d.cod_part
		 LEFT JOIN LATERAL (
		     SELECT p.descr_item, p.cod_ncm
		     FROM sped_products p
		     WHERE p.company_id = i.company_id AND p.period = i.period
		       AND p.cod_item = i.cod_item AND p.is_active
		     ORDER BY p.id DESC
		     LIMIT 1
		 ) pr ON TRUE
		 WHERE i.company_id = $1 AND i.is_active
		   AND i.period = ANY($2)
		   AND i.cfop = ANY($3)
		   AND s.uf IS NOT NULL
		   AND (s.uf <> $4 OR s.decree_eligible IS NOT TRUE)
		 ORDER BY i.id`,
		scope.CompanyID, scope.Periods, cfops, homeState)
	if err != nil {
		return nil, fmt.Errorf("candidateRepo.ListCandidates: %w", err)
	}
	return out, nil
}
