package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/infra/observability"
	"github.com/subtrack/subtrack-go/internal/port"
)

var txnTracer = otel.Tracer("service/transactions")

// TransactionService serves the transaction and vendor read surface plus
// the demo tooling (seed and reset).
type TransactionService struct {
	store   port.Store
	cache   port.Cache[[]domain.SubscriptionView]
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewTransactionService(
	store port.Store,
	cache port.Cache[[]domain.SubscriptionView],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *TransactionService {
	return &TransactionService{
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// List returns persisted transaction records, optionally filtered by
// vendor.
func (s *TransactionService) List(ctx context.Context, filter port.TransactionFilter) ([]domain.TransactionRecord, error) {
	ctx, span := txnTracer.Start(ctx, "TransactionService.List")
	defer span.End()

	return s.store.ListTransactions(ctx, filter)
}

// ListVendors returns all known vendors.
func (s *TransactionService) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	ctx, span := txnTracer.Start(ctx, "TransactionService.ListVendors")
	defer span.End()

	return s.store.ListVendors(ctx)
}

// PingStore verifies the store is reachable, for health checks.
func (s *TransactionService) PingStore(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Reset wipes all data. Demo tooling only.
func (s *TransactionService) Reset(ctx context.Context) error {
	ctx, span := txnTracer.Start(ctx, "TransactionService.Reset")
	defer span.End()

	if err := s.store.Reset(ctx); err != nil {
		return err
	}
	s.cache.Delete(subscriptionsCacheKey)
	s.logger.Warn("store reset")
	return nil
}

// seedMerchant describes one demo merchant's synthetic charge history as
// day offsets back from the seed time.
type seedMerchant struct {
	name       string
	amount     string
	dayOffsets []int
}

// Three clean monthly subscriptions plus an irregular coffee shop that
// detection must reject.
var demoMerchants = []seedMerchant{
	{name: "Netflix", amount: "15.99", dayOffsets: []int{0, 30, 60}},
	{name: "Adobe Inc.", amount: "29.99", dayOffsets: []int{5, 35, 65}},
	{name: "Spotify", amount: "9.99", dayOffsets: []int{2, 32, 62}},
	{name: "Blue Bottle Coffee", amount: "5.50", dayOffsets: []int{3, 11, 20}},
}

func seedSlug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// SeedDemo inserts the synthetic demo transaction set. Seeded rows carry
// deterministic external ids, so re-seeding is idempotent.
func (s *TransactionService) SeedDemo(ctx context.Context, asOf time.Time) (int, error) {
	ctx, span := txnTracer.Start(ctx, "TransactionService.SeedDemo")
	defer span.End()

	var records []domain.TransactionRecord
	for _, m := range demoMerchants {
		amount, err := decimal.NewFromString(m.amount)
		if err != nil {
			return 0, &domain.ErrValidation{Field: "amount", Message: err.Error()}
		}
		for i, offset := range m.dayOffsets {
			records = append(records, domain.TransactionRecord{
				ExternalID:   fmt.Sprintf("seed-%s-%d", seedSlug(m.name), i),
				MerchantName: m.name,
				Amount:       decimal.NullDecimal{Decimal: amount, Valid: true},
				CurrencyCode: "USD",
				Date:         asOf.AddDate(0, 0, -offset).Format(domain.DateLayout),
				Metadata:     &domain.RecordMetadata{Seed: true},
			})
		}
	}

	saved, err := s.store.InsertTransactions(ctx, records)
	if err != nil {
		return 0, err
	}

	s.metrics.AddRecordsIngested(saved)
	s.logger.Info("demo data seeded", zap.Int("saved", saved))
	return saved, nil
}
