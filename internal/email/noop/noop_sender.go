package noop

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"spedflow/internal/port"
)

type noopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates a no-op EmailSender that logs notices instead of sending them.
func NewNoopSender(logger *zap.Logger) port.EmailSender {
	return &noopSender{logger: logger.With(zap.String("component", "email"))}
}

func (s *noopSender) SendPendingRatesNotification(_ context.Context, to []string, notice port.PendingRatesNotice) error {
	s.logger.Info("pending rates notice (not sent)",
		zap.Strings("to", to),
		zap.String("company_id", notice.CompanyID.String()),
		zap.String("periods", strings.Join(notice.Periods, ",")),
		zap.Int("pending", notice.Pending),
		zap.Strings("sample", notice.Sample),
	)
	return nil
}
