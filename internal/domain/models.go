package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpeningContext is derived from the 0000 record and scopes every row of an import run.
type OpeningContext struct {
	Period      string    `json:"period"`
	BranchCode  string    `json:"branch_code"`
	StartDate   time.Time `json:"start_date"`
	CompanyName string    `json:"company_name"`
	CNPJ        string    `json:"cnpj"`
	State       string    `json:"state"`
}

// DocumentKey is the natural key of a C100 header within one import run.
type DocumentKey struct {
	FileOrdinal int    `db:"file_ordinal"`
	LineNumber  int    `db:"line_number"`
	Number      string `db:"doc_number"`
}

// IsZero reports whether the key was never assigned.
func (k DocumentKey) IsZero() bool {
	return k.LineNumber == 0 && k.Number == ""
}

// RunScope identifies the rows written by one import run.
type RunScope struct {
	CompanyID  uuid.UUID `db:"company_id"`
	RunID      uuid.UUID `db:"run_id"`
	Period     string    `db:"period"`
	BranchCode string    `db:"branch_code"`
}

// Document is a fiscal document header (C100).
type Document struct {
	ID int64 `db:"id" json:"id"`
	RunScope
	DocumentKey
	Operation        string `db:"ind_oper" json:"ind_oper"`
	Issuer           string `db:"ind_emit" json:"ind_emit"`
	PartnerCode      string `db:"cod_part" json:"cod_part"`
	Model            string `db:"cod_mod" json:"cod_mod"`
	Situation        string `db:"cod_sit" json:"cod_sit"`
	Series           string `db:"series" json:"series"`
	AccessKey        string `db:"access_key" json:"access_key"`
	IssueDate        string `db:"issue_date" json:"issue_date"`
	EntryDate        string `db:"entry_date" json:"entry_date"`
	TotalValue       string `db:"vl_doc" json:"vl_doc"`
	DiscountValue    string `db:"vl_desc" json:"vl_desc"`
	MerchandiseValue string `db:"vl_merc" json:"vl_merc"`
	ICMSBase         string `db:"vl_bc_icms" json:"vl_bc_icms"`
	ICMSValue        string `db:"vl_icms" json:"vl_icms"`
	IsActive         bool   `db:"is_active" json:"is_active"`
}

// LineItem is a merchandise line (C170) belonging to a Document.
type LineItem struct {
	ID         int64 `db:"id" json:"id"`
	DocumentID int64 `db:"document_id" json:"document_id"`
	RunScope
	// Parent is the natural key of the owning header, resolved to DocumentID at flush time.
	Parent      DocumentKey `db:"-" json:"-"`
	ItemNumber  string      `db:"num_item" json:"num_item"`
	ItemCode    string      `db:"cod_item" json:"cod_item"`
	Description string      `db:"descr_compl" json:"descr_compl"`
	Quantity    string      `db:"qtd" json:"qtd"`
	Unit        string      `db:"unid" json:"unid"`
	Value       string      `db:"vl_item" json:"vl_item"`
	Discount    string      `db:"vl_desc" json:"vl_desc"`
	Movement    string      `db:"ind_mov" json:"ind_mov"`
	CSTICMS     string      `db:"cst_icms" json:"cst_icms"`
	CFOP        string      `db:"cfop" json:"cfop"`
	NatureCode  string      `db:"cod_nat" json:"cod_nat"`
	ICMSBase    string      `db:"vl_bc_icms" json:"vl_bc_icms"`
	ICMSRate    string      `db:"aliq_icms" json:"aliq_icms"`
	ICMSValue   string      `db:"vl_icms" json:"vl_icms"`
	IsActive    bool        `db:"is_active" json:"is_active"`
}

// Partner is a participant master record (0150).
type Partner struct {
	ID int64 `db:"id" json:"id"`
	RunScope
	Code        string `db:"cod_part" json:"cod_part"`
	Name        string `db:"name" json:"name"`
	CountryCode string `db:"cod_pais" json:"cod_pais"`
	CNPJ        string `db:"cnpj" json:"cnpj"`
	CPF         string `db:"cpf" json:"cpf"`
	IE          string `db:"ie" json:"ie"`
	CityCode    string `db:"cod_mun" json:"cod_mun"`
	IsActive    bool   `db:"is_active" json:"is_active"`
}

// Product is an item master record (0200).
type Product struct {
	ID int64 `db:"id" json:"id"`
	RunScope
	Code        string `db:"cod_item" json:"cod_item"`
	Description string `db:"descr_item" json:"descr_item"`
	Barcode     string `db:"cod_barra" json:"cod_barra"`
	Unit        string `db:"unid_inv" json:"unid_inv"`
	ItemType    string `db:"tipo_item" json:"tipo_item"`
	NCM         string `db:"cod_ncm" json:"cod_ncm"`
	ICMSRate    string `db:"aliq_icms" json:"aliq_icms"`
	CEST        string `db:"cest" json:"cest"`
	IsActive    bool   `db:"is_active" json:"is_active"`
}

// Supplier is a company's partner enriched with registry data. Enrichment fields stay nil until known.
type Supplier struct {
	ID             int64      `db:"id" json:"id"`
	CompanyID      uuid.UUID  `db:"company_id" json:"company_id"`
	PartnerCode    string     `db:"cod_part" json:"cod_part"`
	CNPJ           string     `db:"cnpj" json:"cnpj"`
	Name           string     `db:"name" json:"name"`
	State          *string    `db:"uf" json:"uf"`
	CNAE           *string    `db:"cnae" json:"cnae"`
	Simples        *bool      `db:"simples" json:"simples"`
	DecreeEligible *bool      `db:"decree_eligible" json:"decree_eligible"`
	EnrichedAt     *time.Time `db:"enriched_at" json:"enriched_at"`
}

// RegistryInfo is the subset of a registry response used for enrichment.
type RegistryInfo struct {
	State          string
	CNAE           string
	Simples        bool
	DecreeEligible bool
}

// CatalogKey identifies a rate catalog row within a company.
type CatalogKey struct {
	Product string `db:"product"`
	NCM     string `db:"ncm"`
}

// RateCatalogEntry holds the user-maintained rate for a (product, NCM) pair.
// A nil or blank rate means the entry still needs input.
type RateCatalogEntry struct {
	ID         int64     `db:"id" json:"id"`
	CompanyID  uuid.UUID `db:"company_id" json:"company_id"`
	Product    string    `db:"product" json:"product"`
	NCM        string    `db:"ncm" json:"ncm"`
	Rate       *string   `db:"rate" json:"rate"`
	RateLegacy *string   `db:"rate_legacy" json:"rate_legacy"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Key returns the catalog key of the entry.
func (e *RateCatalogEntry) Key() CatalogKey {
	return CatalogKey{Product: e.Product, NCM: e.NCM}
}

// Candidate is a C170 line eligible for rate resolution, joined with its product and supplier data.
type Candidate struct {
	SourceItemID int64  `db:"source_item_id"`
	DocumentID   int64  `db:"document_id"`
	Period       string `db:"period"`
	BranchCode   string `db:"branch_code"`
	PartnerCode  string `db:"cod_part"`
	ProductCode  string `db:"cod_item"`
	Product      string `db:"product"`
	NCM          string `db:"ncm"`
	CFOP         string `db:"cfop"`
	Value        string `db:"vl_item"`
	Discount     string `db:"vl_desc"`
	Simples      bool   `db:"simples"`
}

// CatalogKey returns the catalog key this candidate resolves against.
func (c *Candidate) CatalogKey() CatalogKey {
	return CatalogKey{Product: c.Product, NCM: c.NCM}
}

// WorkingLedgerLine is the mutable copy of a candidate that receives a rate and a result.
type WorkingLedgerLine struct {
	ID           int64           `db:"id" json:"id"`
	CompanyID    uuid.UUID       `db:"company_id" json:"company_id"`
	SourceItemID int64           `db:"source_item_id" json:"source_item_id"`
	DocumentID   int64           `db:"document_id" json:"document_id"`
	Period       string          `db:"period" json:"period"`
	BranchCode   string          `db:"branch_code" json:"branch_code"`
	PartnerCode  string          `db:"cod_part" json:"cod_part"`
	ProductCode  string          `db:"cod_item" json:"cod_item"`
	Product      string          `db:"product" json:"product"`
	NCM          string          `db:"ncm" json:"ncm"`
	CFOP         string          `db:"cfop" json:"cfop"`
	Value        string          `db:"vl_item" json:"vl_item"`
	Discount     string          `db:"vl_desc" json:"vl_desc"`
	Simples      bool            `db:"simples" json:"simples"`
	Rate         string          `db:"aliquota" json:"aliquota"`
	Result       decimal.Decimal `db:"resultado" json:"resultado"`
}

// Scope selects a company's rows for a set of periods.
type Scope struct {
	CompanyID uuid.UUID
	Periods   []string
}

// PendingItem is a catalog entry awaiting a user-supplied rate.
type PendingItem struct {
	ID      int64  `json:"id"`
	Code    string `json:"code"`
	Product string `json:"product"`
	TaxCode string `json:"tax_code"`
}

// ImportCounts summarises what one import run wrote.
type ImportCounts struct {
	Files     int `json:"files"`
	Lines     int `json:"lines"`
	Documents int `json:"documents"`
	Items     int `json:"items"`
	Partners  int `json:"partners"`
	Products  int `json:"products"`
	Discarded int `json:"discarded"`
}

// ImportResult is the boundary response of an import.
type ImportResult struct {
	Status  ImportStatus `json:"status"`
	RunID   uuid.UUID    `json:"run_id"`
	Period  string       `json:"period,omitempty"`
	Branch  string       `json:"branch,omitempty"`
	Counts  ImportCounts `json:"counts"`
	Message string       `json:"message,omitempty"`
}

// PrepareResult is the boundary response of Phase A.
type PrepareResult struct {
	Status       PrepareStatus `json:"status"`
	Periods      []string      `json:"periods"`
	PendingItems []PendingItem `json:"pending_items"`
	Message      string        `json:"message,omitempty"`
}

// FinalizeResult is the boundary response of Phase B.
type FinalizeResult struct {
	Status           FinalizeStatus `json:"status"`
	Periods          []string       `json:"periods"`
	InsertedRowCount int            `json:"inserted_row_count"`
	Message          string         `json:"message,omitempty"`
}

// PipelineSnapshot reports the post-processing state of a company.
type PipelineSnapshot struct {
	CompanyID uuid.UUID     `json:"company_id"`
	State     PipelineState `json:"state"`
	Periods   []string      `json:"periods"`
	Pending   int           `json:"pending"`
	Message   string        `json:"message,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}
