package registry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spedflow/internal/config"
	"spedflow/internal/domain"
	"spedflow/internal/registry"
)

func newClient(t *testing.T, h http.HandlerFunc) *registry.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return registry.NewClient(srv.Client(), config.EnrichmentConfig{
		BaseURL:       srv.URL + "/api/",
		Timeout:       time.Second,
		RatePerSecond: 100,
		Burst:         10,
	})
}

func TestClient_Lookup(t *testing.T) {
	t.Run("decodes_registry_record", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/cnpj/v1/11222333000181", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"uf":"sp","cnae_fiscal":1091101,"opcao_pelo_simples":true}`))
		})

		info, err := c.Lookup(context.Background(), "11222333000181")
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "SP", info.State)
		assert.Equal(t, "1091101", info.CNAE)
		assert.True(t, info.Simples)
		assert.True(t, info.DecreeEligible)
	})

	t.Run("pads_short_cnae_and_handles_null_simples", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"uf":"CE","cnae_fiscal":111301,"opcao_pelo_simples":null}`))
		})

		info, err := c.Lookup(context.Background(), "11222333000181")
		require.NoError(t, err)
		assert.Equal(t, "0111301", info.CNAE)
		assert.False(t, info.Simples)
		assert.False(t, info.DecreeEligible)
	})

	t.Run("not_found_returns_nil", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		info, err := c.Lookup(context.Background(), "00000000000000")
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("server_error_is_returned", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := c.Lookup(context.Background(), "11222333000181")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("cancelled_context", func(t *testing.T) {
		c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := c.Lookup(ctx, "11222333000181")
		assert.Error(t, err)
	})
}

func TestClient_BreakerState(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	assert.Equal(t, "closed", c.BreakerState())

	for i := 0; i < 10; i++ {
		_, err := c.Lookup(context.Background(), "11222333000181")
		require.Error(t, err)
	}
	assert.Equal(t, "open", c.BreakerState())

	_, err := c.Lookup(context.Background(), "11222333000181")
	assert.ErrorIs(t, err, domain.ErrRegistryUnavailable)
}
