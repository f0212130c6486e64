package sped

import (
	"fmt"
	"time"
	"unicode"

	"spedflow/internal/domain"
)

// 0000 layout positions.
const (
	openingStartDate = 3
	openingName      = 5
	openingCNPJ      = 6
	openingState     = 8
)

// ParseOpening derives the run context from a 0000 record.
// The start date is read as YYYYMMDD first and as the SPED-native DDMMYYYY otherwise.
func ParseOpening(rec Record) (domain.OpeningContext, error) {
	if rec.Tag != TagOpening {
		return domain.OpeningContext{}, fmt.Errorf("expected %s record, got %q", TagOpening, rec.Tag)
	}

	start, err := parseStartDate(rec.At(openingStartDate))
	if err != nil {
		return domain.OpeningContext{}, err
	}

	cnpj := digitsOnly(rec.At(openingCNPJ))
	if len(cnpj) < 12 {
		return domain.OpeningContext{}, fmt.Errorf("cnpj %q too short for branch code", rec.At(openingCNPJ))
	}

	return domain.OpeningContext{
		Period:      start.Format("01/2006"),
		BranchCode:  cnpj[8:12],
		StartDate:   start,
		CompanyName: rec.At(openingName),
		CNPJ:        cnpj,
		State:       rec.At(openingState),
	}, nil
}

func parseStartDate(raw string) (time.Time, error) {
	if len(raw) != 8 {
		return time.Time{}, fmt.Errorf("start date %q: expected 8 digits", raw)
	}
	if t, err := time.Parse("20060102", raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("02012006", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("start date %q: unrecognized format", raw)
	}
	return t, nil
}

func digitsOnly(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, r)
		}
	}
	return string(out)
}
