package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrValidation          = errors.New("validation failed")
	ErrMissingOpening      = errors.New("opening record 0000 missing or not first")
	ErrContextMismatch     = errors.New("opening record differs from the run's period or branch")
	ErrPeriodConflict      = errors.New("period already imported and active")
	ErrNoSourceFiles       = errors.New("no source files given")
	ErrUnsupportedSource   = errors.New("unsupported import source")
	ErrPathOutsideRoot     = errors.New("import path outside the allowed root")
	ErrPipelineBusy        = errors.New("post-processing already running for company")
	ErrNoActivePeriods     = errors.New("no active periods for company")
	ErrInvalidRate         = errors.New("invalid rate value")
	ErrUploadFailed        = errors.New("file upload to storage failed")
	ErrRegistryUnavailable = errors.New("supplier registry unavailable")
)

// ValidationError pins a validation failure to a source file and line.
type ValidationError struct {
	File   string
	Line   int
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Reason}
}
