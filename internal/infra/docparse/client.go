// Package docparse implements the invoice document-analysis client. The
// heavy lifting (OCR, field extraction) happens in an external service;
// this package only ships bytes out and maps the response.
package docparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/infra/resilience"
)

var tracer = otel.Tracer("infra/docparse")

// Client sends invoice documents to the document-analysis API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

func NewClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

// ParseInvoice uploads the document and returns the extracted fields.
func (c *Client) ParseInvoice(ctx context.Context, filename string, data []byte) (*domain.ParsedInvoice, error) {
	ctx, span := tracer.Start(ctx, "Client.ParseInvoice")
	defer span.End()
	span.SetAttributes(
		attribute.String("invoice.filename", filename),
		attribute.Int("invoice.bytes", len(data)),
	)

	var parsed domain.ParsedInvoice

	_, err := c.cb.Execute(func() (any, error) {
		innerErr := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			part, err := writer.CreateFormFile("file", filename)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
				return err
			}
			if err := writer.Close(); err != nil {
				return err
			}

			url := fmt.Sprintf("%s/v1/invoices/analyze", c.baseURL)
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", writer.FormDataContentType())

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("docparse API returned status %d", resp.StatusCode)
			}

			return json.NewDecoder(resp.Body).Decode(&parsed)
		})
		if innerErr != nil {
			return nil, innerErr
		}
		return &parsed, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &domain.ErrCircuitOpen{Service: "docparse"}
		}
		return nil, &domain.ErrExternalService{Service: "docparse", Err: err}
	}

	return &parsed, nil
}
