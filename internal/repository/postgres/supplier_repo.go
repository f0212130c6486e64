package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"spedflow/internal/domain"
	"spedflow/internal/port"
)

type supplierRepo struct {
	db *sqlx.DB
}

// NewSupplierRepo creates a new PostgreSQL-backed SupplierRepository.
func NewSupplierRepo(db *sqlx.DB) port.SupplierRepository {
	return &supplierRepo{db: db}
}

func (r *supplierRepo) InsertMissing(ctx context.Context, scope domain.Scope) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO suppliers (company_id, cod_part, cnpj, name)
		 SELECT DISTINCT ON (p.cod_part) p.company_id, p.cod_part, p.cnpj, p.name
		 FROM sped_partners p
		 WHERE p.company_id = $1 AND p.period = ANY($2) AND p.is_active
		 ORDER BY p.cod_part, p.id DESC
		 ON CONFLICT (company_id, cod_part) DO NOTHING`,
		scope.CompanyID, scope.Periods)
	if err != nil {
		return 0, fmt.Errorf("supplierRepo.InsertMissing: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *supplierRepo) ListUnenriched(ctx context.Context, companyID uuid.UUID) ([]domain.Supplier, error) {
	var suppliers []domain.Supplier
	err := conn(ctx, r.db).SelectContext(ctx, &suppliers,
		`SELECT id, company_id, cod_part, cnpj, name, uf, cnae, simples, decree_eligible, enriched_at
		 FROM suppliers
		 WHERE company_id = $1 AND cnpj <> ''
		   AND (uf IS NULL OR cnae IS NULL OR simples IS NULL OR decree_eligible IS NULL)
		 ORDER BY id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("supplierRepo.ListUnenriched: %w", err)
	}
	return suppliers, nil
}

// UpdateEnrichment writes back registry data in one statement per call.
func (r *supplierRepo) UpdateEnrichment(ctx context.Context, suppliers []domain.Supplier) error {
	if len(suppliers) == 0 {
		return nil
	}

	const cols = 5
	rows := make([]string, 0, len(suppliers))
	args := make([]interface{}, 0, len(suppliers)*cols)
	for i, s := range suppliers {
		base := i * cols
		rows = append(rows, fmt.Sprintf("($%d::bigint, $%d::text, $%d::text, $%d::boolean, $%d::boolean)",
			base+1, base+2, base+3, base+4, base+5))
		args = append(args, s.ID, s.State, s.CNAE, s.Simples, s.DecreeEligible)
	}

	query := fmt.Sprintf(
		`UPDATE suppliers AS s SET
		   uf = COALESCE(v.uf, s.uf),
		   cnae = COALESCE(v.cnae, s.cnae),
		   simples = COALESCE(v.simples, s.simples),
		   decree_eligible = COALESCE(v.decree_eligible, s.decree_eligible),
		   enriched_at = NOW()
		 FROM (VALUES %s) AS v(id, uf, cnae, simples, decree_eligible)
		 WHERE s.id = v.id`, strings.Join(rows, ", "))

	if _, err := conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("supplierRepo.UpdateEnrichment: %w", err)
	}
	return nil
}
