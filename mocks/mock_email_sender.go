package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"spedflow/internal/port"
)

// MockEmailSender is a mock implementation of port.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendPendingRatesNotification(ctx context.Context, to []string, notice port.PendingRatesNotice) error {
	args := m.Called(ctx, to, notice)
	return args.Error(0)
}
