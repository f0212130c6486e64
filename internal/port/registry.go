package port

import (
	"context"

	"spedflow/internal/domain"
)

// SupplierRegistry looks up a company's registry record by CNPJ.
// A nil result with nil error means the registry has no record.
type SupplierRegistry interface {
	Lookup(ctx context.Context, cnpj string) (*domain.RegistryInfo, error)
}
