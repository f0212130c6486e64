package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spedflow/internal/config"
	"spedflow/internal/domain"
	"spedflow/internal/service"
)

func TestTokenService(t *testing.T) {
	svc := service.NewTokenService(config.JWTConfig{Secret: "test-secret", Issuer: "spedflow-test"})
	companyID := uuid.New()

	t.Run("round_trip", func(t *testing.T) {
		tok, err := svc.IssueToken("ana", companyID, domain.RoleOperator, time.Hour)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(tok)
		require.NoError(t, err)
		assert.Equal(t, companyID, claims.CompanyID)
		assert.Equal(t, domain.RoleOperator, claims.Role)
		assert.Equal(t, "ana", claims.Subject)
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := svc.IssueToken("ana", companyID, domain.RoleViewer, -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(tok)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("wrong_secret", func(t *testing.T) {
		other := service.NewTokenService(config.JWTConfig{Secret: "other", Issuer: "spedflow-test"})
		tok, err := other.IssueToken("ana", companyID, domain.RoleViewer, time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(tok)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("unknown_role", func(t *testing.T) {
		_, err := svc.IssueToken("ana", companyID, domain.Role("root"), time.Hour)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}
