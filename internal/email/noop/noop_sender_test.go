package noop_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"spedflow/internal/email/noop"
	"spedflow/internal/port"
)

func TestNoopSender_LogsNotice(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sender := noop.NewNoopSender(zap.New(core))

	err := sender.SendPendingRatesNotification(context.Background(), []string{"fiscal@acme.com.br"}, port.PendingRatesNotice{
		CompanyID: uuid.New(),
		Periods:   []string{"01/2024"},
		Pending:   3,
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("pending rates notice (not sent)").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].ContextMap()["pending"])
	assert.Equal(t, "01/2024", entries[0].ContextMap()["periods"])
}
