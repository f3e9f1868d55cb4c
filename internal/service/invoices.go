package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/infra/observability"
	"github.com/subtrack/subtrack-go/internal/port"
)

var invoiceTracer = otel.Tracer("service/invoices")

// InvoiceService handles invoice uploads: parse the document, resolve
// the vendor, persist the invoice.
type InvoiceService struct {
	store   port.Store
	parser  port.InvoiceParser
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewInvoiceService(store port.Store, parser port.InvoiceParser, metrics *observability.Metrics, logger *zap.Logger) *InvoiceService {
	return &InvoiceService{
		store:   store,
		parser:  parser,
		metrics: metrics,
		logger:  logger,
	}
}

// Upload parses an invoice document and stores it linked to its vendor.
// The vendor is resolved case-insensitively and created when absent,
// same as the detection merge path.
func (s *InvoiceService) Upload(ctx context.Context, filename string, data []byte) (*domain.Invoice, error) {
	ctx, span := invoiceTracer.Start(ctx, "InvoiceService.Upload")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("invoice_upload", time.Since(start)) }()

	if len(data) == 0 {
		return nil, &domain.ErrValidation{Field: "file", Message: "empty upload"}
	}

	parsed, err := s.parser.ParseInvoice(ctx, filename, data)
	if err != nil {
		s.metrics.IncrExternalError("docparse")
		return nil, err
	}
	if parsed.Vendor == "" {
		return nil, &domain.ErrValidation{Field: "vendor", Message: "document did not yield a vendor name"}
	}

	vendor, err := s.store.GetOrCreateVendor(ctx, parsed.Vendor)
	if err != nil {
		return nil, err
	}

	inv := &domain.Invoice{
		VendorID:      vendor.ID,
		Total:         parsed.Total,
		InvoiceDate:   parsed.InvoiceDate,
		BillingPeriod: parsed.BillingPeriod,
		Raw:           parsed.Raw,
	}
	if err := s.store.InsertInvoice(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("invoice stored",
		zap.String("vendor", vendor.Name),
		zap.String("invoice_id", inv.ID),
	)
	return inv, nil
}
