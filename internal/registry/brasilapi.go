// Package registry looks up supplier data in the federal company registry.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"spedflow/internal/config"
	"spedflow/internal/domain"
	"spedflow/internal/fiscal"
)

var tracer = otel.Tracer("spedflow/registry")

// Client queries the BrasilAPI CNPJ endpoint. Calls are rate limited and
// guarded by a circuit breaker; the caller owns timeouts through ctx.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker
}

// NewClient creates a registry client from enrichment settings.
func NewClient(httpClient *http.Client, cfg config.EnrichmentConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    rate.NewLimiter(limit, burst),
		cb:         newBreaker("registry"),
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && ratio >= 0.6
		},
	})
}

// BreakerState reports the circuit breaker state: closed, half-open or open.
func (c *Client) BreakerState() string {
	return c.cb.State().String()
}

type cnpjResponse struct {
	UF               string      `json:"uf"`
	CNAEFiscal       json.Number `json:"cnae_fiscal"`
	OpcaoPeloSimples *bool       `json:"opcao_pelo_simples"`
}

// Lookup returns registry data for a CNPJ, or nil when the registry has no record.
func (c *Client) Lookup(ctx context.Context, cnpj string) (*domain.RegistryInfo, error) {
	ctx, span := tracer.Start(ctx, "registry.Lookup")
	defer span.End()
	span.SetAttributes(attribute.String("cnpj", cnpj))

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("registry.Lookup: %w", err)
	}

	result, err := c.cb.Execute(func() (any, error) {
		return c.fetch(ctx, cnpj)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("registry.Lookup: %w: %v", domain.ErrRegistryUnavailable, err)
		}
		return nil, fmt.Errorf("registry.Lookup: %w", err)
	}
	info, _ := result.(*domain.RegistryInfo)
	return info, nil
}

func (c *Client) fetch(ctx context.Context, cnpj string) (*domain.RegistryInfo, error) {
	url := fmt.Sprintf("%s/cnpj/v1/%s", c.baseURL, cnpj)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var body cnpjResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding registry response: %w", err)
	}

	cnae := body.CNAEFiscal.String()
	if cnae != "" && len(cnae) < 7 {
		cnae = strings.Repeat("0", 7-len(cnae)) + cnae
	}
	info := &domain.RegistryInfo{
		State:          strings.ToUpper(strings.TrimSpace(body.UF)),
		CNAE:           cnae,
		Simples:        body.OpcaoPeloSimples != nil && *body.OpcaoPeloSimples,
		DecreeEligible: fiscal.DecreeEligible(cnae),
	}
	return info, nil
}
