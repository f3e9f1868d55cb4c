package docparse

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/subtrack/subtrack-go/internal/domain"
)

// Mock returns a fixed extraction result, for local development without
// the document-analysis service.
type Mock struct{}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) ParseInvoice(ctx context.Context, filename string, data []byte) (*domain.ParsedInvoice, error) {
	total, _ := decimal.NewFromString("29.99")
	return &domain.ParsedInvoice{
		Vendor:      "Adobe Inc.",
		Total:       decimal.NullDecimal{Decimal: total, Valid: true},
		InvoiceDate: "2026-08-01",
		Raw: map[string]any{
			"mock":     true,
			"filename": filename,
			"bytes":    len(data),
		},
	}, nil
}
