package main

import (
	"errors"

	"spedflow/internal/domain"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
	exitUsage      = 3
	exitDB         = 4
	exitConflict   = 5
	exitNeedsInput = 6
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// exitCode prefers an explicit code and otherwise classifies domain errors.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	switch {
	case errors.Is(err, domain.ErrPeriodConflict), errors.Is(err, domain.ErrPipelineBusy):
		return exitConflict
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidRate),
		errors.Is(err, domain.ErrNoSourceFiles),
		errors.Is(err, domain.ErrUnsupportedSource),
		errors.Is(err, domain.ErrNoActivePeriods),
		errors.Is(err, domain.ErrNotFound):
		return exitValidation
	default:
		return exitFailure
	}
}
