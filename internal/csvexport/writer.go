package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"spedflow/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// pendingColumns is the header row of the pending-rate export.
var pendingColumns = []string{
	"ID",
	"Código",
	"Produto",
	"NCM",
	"Alíquota",
}

// ledgerColumns is the header row of the working ledger export.
var ledgerColumns = []string{
	"Período",
	"Filial",
	"Participante",
	"Item",
	"Produto",
	"NCM",
	"CFOP",
	"Valor",
	"Desconto",
	"Simples",
	"Alíquota",
	"Resultado",
}

// Writer wraps csv.Writer with a semicolon separator, the delimiter Brazilian
// spreadsheet locales expect.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return &Writer{csv: cw}
}

// WritePending writes the header and one row per pending catalog entry. The
// rate column is left blank for the user to fill in.
func (w *Writer) WritePending(items []domain.PendingItem) error {
	if err := w.csv.Write(pendingColumns); err != nil {
		return err
	}
	for _, it := range items {
		row := []string{strconv.FormatInt(it.ID, 10), it.Code, it.Product, it.TaxCode, ""}
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteLedger writes the header and one row per working ledger line.
func (w *Writer) WriteLedger(lines []domain.WorkingLedgerLine) error {
	if err := w.csv.Write(ledgerColumns); err != nil {
		return err
	}
	for i := range lines {
		if err := w.csv.Write(ledgerToRow(&lines[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func ledgerToRow(l *domain.WorkingLedgerLine) []string {
	return []string{
		l.Period,
		l.BranchCode,
		l.PartnerCode,
		l.ProductCode,
		l.Product,
		l.NCM,
		l.CFOP,
		l.Value,
		l.Discount,
		formatBool(l.Simples),
		l.Rate,
		formatMoney(l.Result.StringFixed(2)),
	}
}

// formatMoney renders a fixed-point amount with a decimal comma.
func formatMoney(v string) string {
	return strings.Replace(v, ".", ",", 1)
}

func formatBool(v bool) string {
	if v {
		return "Sim"
	}
	return "Não"
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_name}_{YYYY-MM-DD}.csv
func BuildFilename(name string) string {
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s.csv", SanitizeFilename(name), date)
}
