// Package bankfeed implements the HTTP client for the external bank-data
// feed, plus an in-memory stub for local development.
package bankfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/infra/resilience"
)

var tracer = otel.Tracer("infra/bankfeed")

// Client fetches transaction records from the feed API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewClient creates a feed client with retry and circuit-breaker
// protection.
func NewClient(httpClient *http.Client, baseURL, token string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      token,
		cb:         cb,
		cfg:        cfg,
	}
}

type feedResponse struct {
	Transactions []domain.FeedTransaction `json:"transactions"`
}

// FetchRecentTransactions fetches the feed's recent transactions with
// retry, circuit breaker, and tracing.
func (c *Client) FetchRecentTransactions(ctx context.Context) ([]domain.FeedTransaction, error) {
	ctx, span := tracer.Start(ctx, "Client.FetchRecentTransactions")
	defer span.End()

	var payload feedResponse

	result, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/v1/transactions/recent", c.baseURL)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			if c.token != "" {
				req.Header.Set("Authorization", "Bearer "+c.token)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("feed API returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&payload)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return payload.Transactions, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &domain.ErrCircuitOpen{Service: "bankfeed"}
		}
		return nil, &domain.ErrExternalService{Service: "bankfeed", Err: err}
	}

	txns := result.([]domain.FeedTransaction)
	span.SetAttributes(attribute.Int("feed.transactions", len(txns)))
	return txns, nil
}
