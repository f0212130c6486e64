package port

import (
	"context"

	"github.com/google/uuid"
)

// PendingRatesNotice describes a post-processing run paused for rate input.
type PendingRatesNotice struct {
	CompanyID uuid.UUID
	Periods   []string
	Pending   int
	Sample    []string
}

// EmailSender defines the contract for sending notifications.
type EmailSender interface {
	SendPendingRatesNotification(ctx context.Context, to []string, notice PendingRatesNotice) error
}
