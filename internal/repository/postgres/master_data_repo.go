package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"spedflow/internal/domain"
	"spedflow/internal/port"
)

var partnerColumns = []string{
	"company_id", "run_id", "period", "branch_code", "cod_part", "name", "cod_pais",
	"cnpj", "cpf", "ie", "cod_mun", "is_active",
}

var productColumns = []string{
	"company_id", "run_id", "period", "branch_code", "cod_item", "descr_item", "cod_barra",
	"unid_inv", "tipo_item", "cod_ncm", "aliq_icms", "cest", "is_active",
}

type partnerRepo struct {
	ledgerTable
}

// NewPartnerRepo creates a new PostgreSQL-backed PartnerRepository.
func NewPartnerRepo(db *sqlx.DB) port.PartnerRepository {
	return &partnerRepo{ledgerTable{db: db, table: tablePartners, name: "partnerRepo"}}
}

func (r *partnerRepo) InsertBatch(ctx context.Context, partners []domain.Partner) error {
	if len(partners) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(partners)*len(partnerColumns))
	for i := range partners {
		p := &partners[i]
		args = append(args, p.CompanyID, p.RunID, p.Period, p.BranchCode, p.Code, p.Name,
			p.CountryCode, p.CNPJ, p.CPF, p.IE, p.CityCode, p.IsActive)
	}
	query := insertQuery(tablePartners, partnerColumns, len(partners), "")
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("partnerRepo.InsertBatch: %w", err)
	}
	return nil
}

type productRepo struct {
	ledgerTable
}

// NewProductRepo creates a new PostgreSQL-backed ProductRepository.
func NewProductRepo(db *sqlx.DB) port.ProductRepository {
	return &productRepo{ledgerTable{db: db, table: tableProducts, name: "productRepo"}}
}

func (r *productRepo) InsertBatch(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(products)*len(productColumns))
	for i := range products {
		p := &products[i]
		args = append(args, p.CompanyID, p.RunID, p.Period, p.BranchCode, p.Code, p.Description,
			p.Barcode, p.Unit, p.ItemType, p.NCM, p.ICMSRate, p.CEST, p.IsActive)
	}
	query := insertQuery(tableProducts, productColumns, len(products), "")
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("productRepo.InsertBatch: %w", err)
	}
	return nil
}
