package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/infra/observability"
	"github.com/subtrack/subtrack-go/internal/port"
)

var syncTracer = otel.Tracer("service/sync")

// SyncService pulls recent records from the bank feed and persists the
// ones not seen before.
type SyncService struct {
	store   port.Store
	feed    port.BankFeed
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewSyncService(store port.Store, feed port.BankFeed, metrics *observability.Metrics, logger *zap.Logger) *SyncService {
	return &SyncService{
		store:   store,
		feed:    feed,
		metrics: metrics,
		logger:  logger,
	}
}

// Run fetches the feed and the set of already-persisted external ids
// concurrently, then inserts only the new records. Records are keyed by
// the feed's transaction id, so repeated syncs never duplicate rows.
func (s *SyncService) Run(ctx context.Context) (*domain.SyncResult, error) {
	ctx, span := syncTracer.Start(ctx, "SyncService.Run")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("feed_sync", time.Since(start)) }()

	var (
		feedTxns []domain.FeedTransaction
		existing map[string]bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		feedTxns, err = s.feed.FetchRecentTransactions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		existing, err = s.store.ListExternalIDs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := make([]domain.TransactionRecord, 0, len(feedTxns))
	for i := range feedTxns {
		ft := &feedTxns[i]
		if ft.TransactionID != "" && existing[ft.TransactionID] {
			continue
		}
		records = append(records, mapFeedTransaction(ft))
	}

	saved := 0
	if len(records) > 0 {
		var err error
		saved, err = s.store.InsertTransactions(ctx, records)
		if err != nil {
			return nil, err
		}
	}

	s.metrics.AddRecordsIngested(saved)
	s.logger.Info("feed sync complete",
		zap.Int("fetched", len(feedTxns)),
		zap.Int("saved", saved),
	)
	return &domain.SyncResult{Fetched: len(feedTxns), Saved: saved}, nil
}

// mapFeedTransaction converts a raw feed record into a persisted
// transaction record. The feed's category path is retained in metadata
// for the noise filter.
func mapFeedTransaction(ft *domain.FeedTransaction) domain.TransactionRecord {
	rec := domain.TransactionRecord{
		ExternalID:   ft.TransactionID,
		MerchantName: ft.MerchantName,
		Amount:       ft.Amount,
		CurrencyCode: ft.CurrencyCode,
		Date:         ft.Date,
	}
	if ft.Name != "" || len(ft.Category) > 0 {
		meta := &domain.RecordMetadata{Name: ft.Name, Categories: ft.Category}
		if len(ft.Category) > 0 {
			meta.PrimaryCategory = ft.Category[0]
		}
		rec.Metadata = meta
	}
	return rec
}
