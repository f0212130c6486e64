package domain

// ImportStatus is the outcome of an import call.
type ImportStatus string

const (
	ImportStatusOK       ImportStatus = "ok"
	ImportStatusConflict ImportStatus = "conflict"
	ImportStatusError    ImportStatus = "error"
)

// PrepareStatus is the outcome of Phase A.
type PrepareStatus string

const (
	PrepareStatusNeedsInput      PrepareStatus = "needsInput"
	PrepareStatusReadyToFinalize PrepareStatus = "readyToFinalize"
	PrepareStatusError           PrepareStatus = "error"
)

// FinalizeStatus is the outcome of Phase B.
type FinalizeStatus string

const (
	FinalizeStatusOK    FinalizeStatus = "ok"
	FinalizeStatusError FinalizeStatus = "error"
)

// PipelineState tracks a company's position in post-processing.
type PipelineState string

const (
	StateIdle          PipelineState = "idle"
	StatePreparing     PipelineState = "preparing"
	StateAwaitingInput PipelineState = "awaiting_input"
	StateReady         PipelineState = "ready"
	StateFinalizing    PipelineState = "finalizing"
	StateDone          PipelineState = "done"
	StateFailed        PipelineState = "failed"
)

// Rate tokens stored in the catalog instead of a percentage.
const (
	RateTokenST     = "ST"
	RateTokenExempt = "ISENTO"
	RateTokenPauta  = "PAUTA"
)

// RateColumnCutoffYear is the first year whose periods read the current rate column.
const RateColumnCutoffYear = 2024

// SimplesSurcharge is the percentage-point increase applied to Simples suppliers.
const SimplesSurcharge = "3.00"

// Role is the access level carried in a token.
type Role string

const (
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOperator || r == RoleViewer
}
