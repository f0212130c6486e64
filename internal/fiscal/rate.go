// Package fiscal holds the rate and tax result rules applied to the working ledger.
package fiscal

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"spedflow/internal/domain"
)

var (
	hundred          = decimal.NewFromInt(100)
	simplesSurcharge = decimal.RequireFromString(domain.SimplesSurcharge)
)

// ParseDecimal converts Brazilian or plain numeric text to a decimal.
// "%" and spaces are ignored; with both separators present "." groups
// thousands and "," is the decimal mark. Unparsable text yields zero.
func ParseDecimal(s string) decimal.Decimal {
	d, ok := parseNumber(s)
	if !ok {
		return decimal.Zero
	}
	return d
}

func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.NewReplacer("%", "", " ", "", "\u00a0", "").Replace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if strings.Contains(s, ".") && strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// NormalizeToken returns the canonical token for s, or "" when s is not a token.
func NormalizeToken(s string) string {
	switch t := strings.ToUpper(strings.TrimSpace(s)); t {
	case domain.RateTokenST, domain.RateTokenExempt, domain.RateTokenPauta:
		return t
	default:
		return ""
	}
}

// IsNumericRate reports whether s is a plain percentage such as "10", "10,00" or "10,00%".
func IsNumericRate(s string) bool {
	if NormalizeToken(s) != "" {
		return false
	}
	_, ok := parseNumber(s)
	return ok
}

// FormatRate renders a percentage as "13,00%".
func FormatRate(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1) + "%"
}

// NormalizeRate validates user input for a catalog rate. It returns the stored
// form: a canonical token, a formatted percentage, or "" for a blank value.
func NormalizeRate(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	if tok := NormalizeToken(s); tok != "" {
		return tok, nil
	}
	d, ok := parseNumber(s)
	if !ok || d.IsNegative() || d.GreaterThan(hundred) {
		return "", domain.ErrInvalidRate
	}
	return FormatRate(d), nil
}

// ApplySimples raises a numeric rate by the Simples surcharge for Simples suppliers.
// Tokens and blank rates are returned unchanged.
func ApplySimples(rate string, simples bool) string {
	if !simples || !IsNumericRate(rate) {
		return rate
	}
	d, _ := parseNumber(rate)
	return FormatRate(d.Add(simplesSurcharge))
}

// ComputeResult returns round(max(0, value - discount) * rate / 100, 2).
// Exempt and tax-substitution rates yield zero.
func ComputeResult(value, discount, rate string) decimal.Decimal {
	switch NormalizeToken(rate) {
	case domain.RateTokenExempt, domain.RateTokenST:
		return decimal.Zero.Round(2)
	}
	base := ParseDecimal(value).Sub(ParseDecimal(discount))
	if base.IsNegative() {
		base = decimal.Zero
	}
	return base.Mul(ParseDecimal(rate)).Div(hundred).Round(2)
}

// UsesLegacyColumn reports whether a "MM/YYYY" period reads the pre-cutoff rate column.
func UsesLegacyColumn(period string) bool {
	i := strings.LastIndexByte(period, '/')
	if i < 0 {
		return false
	}
	year, err := strconv.Atoi(period[i+1:])
	if err != nil {
		return false
	}
	return year < domain.RateColumnCutoffYear
}

// SelectRate picks the catalog column applicable to the period. Nil columns read as "".
func SelectRate(entry *domain.RateCatalogEntry, period string) string {
	col := entry.Rate
	if UsesLegacyColumn(period) {
		col = entry.RateLegacy
	}
	if col == nil {
		return ""
	}
	return strings.TrimSpace(*col)
}
