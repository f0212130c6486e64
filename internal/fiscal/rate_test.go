package fiscal_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spedflow/internal/domain"
	"spedflow/internal/fiscal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseDecimal(t *testing.T) {
	cases := map[string]string{
		"10,00%":   "10",
		"1.234,56": "1234.56",
		"1234.56":  "1234.56",
		" 7 , 5 ":  "7.5",
		"ISENTO":   "0",
		"":         "0",
		"abc":      "0",
	}
	for in, want := range cases {
		assert.True(t, dec(want).Equal(fiscal.ParseDecimal(in)), "input %q", in)
	}
}

func TestComputeResult(t *testing.T) {
	t.Run("numeric_rate", func(t *testing.T) {
		got := fiscal.ComputeResult("100,00", "10,00", "10,00%")
		assert.Equal(t, "9.00", got.StringFixed(2))
	})

	t.Run("exempt_is_zero", func(t *testing.T) {
		got := fiscal.ComputeResult("100,00", "10,00", "ISENTO")
		assert.True(t, got.IsZero())
	})

	t.Run("substitution_is_zero", func(t *testing.T) {
		assert.True(t, fiscal.ComputeResult("100", "0", "st").IsZero())
	})

	t.Run("discount_above_value_floors_at_zero", func(t *testing.T) {
		assert.True(t, fiscal.ComputeResult("10,00", "25,00", "18%").IsZero())
	})

	t.Run("rounds_half_away_from_zero", func(t *testing.T) {
		got := fiscal.ComputeResult("0,25", "0", "10%")
		assert.Equal(t, "0.03", got.StringFixed(2))
	})

	t.Run("blank_rate_is_zero", func(t *testing.T) {
		assert.True(t, fiscal.ComputeResult("100", "0", "").IsZero())
	})
}

func TestApplySimples(t *testing.T) {
	assert.Equal(t, "13,00%", fiscal.ApplySimples("10,00", true))
	assert.Equal(t, "20,50%", fiscal.ApplySimples("17,5%", true))
	assert.Equal(t, "ST", fiscal.ApplySimples("ST", true))
	assert.Equal(t, "", fiscal.ApplySimples("", true))
	assert.Equal(t, "10,00", fiscal.ApplySimples("10,00", false))
}

func TestNormalizeRate(t *testing.T) {
	got, err := fiscal.NormalizeRate("12")
	require.NoError(t, err)
	assert.Equal(t, "12,00%", got)

	got, err = fiscal.NormalizeRate(" isento ")
	require.NoError(t, err)
	assert.Equal(t, domain.RateTokenExempt, got)

	got, err = fiscal.NormalizeRate("")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = fiscal.NormalizeRate("abc")
	assert.ErrorIs(t, err, domain.ErrInvalidRate)

	_, err = fiscal.NormalizeRate("150")
	assert.ErrorIs(t, err, domain.ErrInvalidRate)
}

func TestSelectRate(t *testing.T) {
	current, legacy := "18,00%", "12,00%"
	entry := &domain.RateCatalogEntry{Rate: &current, RateLegacy: &legacy}

	assert.Equal(t, "18,00%", fiscal.SelectRate(entry, "01/2024"))
	assert.Equal(t, "12,00%", fiscal.SelectRate(entry, "12/2023"))

	entry.RateLegacy = nil
	assert.Equal(t, "", fiscal.SelectRate(entry, "06/2022"))
}

func TestDecreeEligible(t *testing.T) {
	assert.True(t, fiscal.DecreeEligible("1091101"))
	assert.True(t, fiscal.DecreeEligible("33.14-7-01"))
	assert.False(t, fiscal.DecreeEligible("4711302"))
	assert.False(t, fiscal.DecreeEligible(""))
}
