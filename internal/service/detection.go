// Package service implements the application services of the tracker:
// detection runs, feed sync, demo seeding, and the read/update surfaces
// the handlers expose.
package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/subtrack/subtrack-go/internal/detect"
	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/infra/observability"
	"github.com/subtrack/subtrack-go/internal/port"
)

var detectTracer = otel.Tracer("service/detection")

// inferredConfidence is the confidence assigned to a freshly inferred
// subscription. Refreshes only ever raise confidence, never lower it.
const inferredConfidence = 0.7

// DetectionService runs the subscription inference pipeline over
// persisted transaction records.
type DetectionService struct {
	store    port.Store
	detector *detect.Detector
	cache    port.Cache[[]domain.SubscriptionView]
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func NewDetectionService(
	store port.Store,
	detector *detect.Detector,
	cache port.Cache[[]domain.SubscriptionView],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *DetectionService {
	return &DetectionService{
		store:    store,
		detector: detector,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run executes one full detection pass as of now. Re-running over
// unchanged data is a no-op apart from refreshed last_seen/next_expected.
func (s *DetectionService) Run(ctx context.Context) (*domain.DetectionResult, error) {
	return s.RunAt(ctx, time.Now().UTC())
}

// RunAt executes one detection pass with an explicit reference time for
// the trailing window. Each qualifying merchant group is merged inside
// its own transaction; a failed group rolls back and aborts the run,
// leaving previously committed groups in place.
func (s *DetectionService) RunAt(ctx context.Context, asOf time.Time) (*domain.DetectionResult, error) {
	ctx, span := detectTracer.Start(ctx, "DetectionService.Run")
	defer span.End()

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("detection_run", time.Since(start)) }()

	records, err := s.store.ListTransactions(ctx, port.TransactionFilter{MerchantOnly: true})
	if err != nil {
		s.metrics.IncrDetectionRun("error")
		return nil, err
	}

	groups := s.detector.Group(records, asOf)
	result := &domain.DetectionResult{GroupsConsidered: len(groups)}
	s.metrics.AddGroupsConsidered(len(groups))

	// Deterministic group order keeps runs reproducible.
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := groups[key]

		dates := make([]string, 0, len(group))
		amounts := make([]decimal.NullDecimal, 0, len(group))
		for i := range group {
			dates = append(dates, group[i].Date)
			amounts = append(amounts, group[i].Amount)
		}

		cls := s.detector.EstimateInterval(dates)
		if cls.Interval != domain.IntervalMonthly {
			continue
		}
		if !s.detector.AmountsConsistent(amounts) {
			s.logger.Debug("group rejected on amount spread", zap.String("merchant", key))
			continue
		}

		if err := s.mergeGroup(ctx, group, cls); err != nil {
			s.logger.Error("detection run aborted",
				zap.String("merchant", key),
				zap.Error(err),
			)
			s.metrics.IncrDetectionRun("error")
			return nil, err
		}
		result.SubscriptionsUpserted++
	}

	s.cache.Delete(subscriptionsCacheKey)
	s.metrics.IncrDetectionRun("success")
	s.logger.Info("detection run complete",
		zap.Int("groups_considered", result.GroupsConsidered),
		zap.Int("subscriptions_upserted", result.SubscriptionsUpserted),
	)
	return result, nil
}

// mergeGroup persists one qualifying group: resolve the vendor, link the
// group's records to it, then create or refresh the vendor's
// subscription. Everything runs in a single transaction.
func (s *DetectionService) mergeGroup(ctx context.Context, group []domain.TransactionRecord, cls detect.Classification) error {
	first, last, ok := groupDateRange(group)
	if !ok {
		return nil
	}

	return s.store.WithDetectionTx(ctx, func(tx port.DetectionTx) error {
		// The first record's display form becomes the vendor name when
		// the vendor does not exist yet.
		vendor, err := tx.GetOrCreateVendor(ctx, vendorDisplayName(group))
		if err != nil {
			return err
		}

		for i := range group {
			if err := tx.LinkTransactionVendor(ctx, group[i].ID, vendor.ID); err != nil {
				return err
			}
		}

		existing, err := tx.FindSubscriptionByVendor(ctx, vendor.ID)
		if err != nil {
			return err
		}

		if existing == nil {
			sub := &domain.Subscription{
				VendorID:     vendor.ID,
				Status:       domain.StatusInferred,
				Interval:     cls.Interval,
				Confidence:   inferredConfidence,
				FirstSeen:    first,
				LastSeen:     last,
				NextExpected: cls.NextExpected,
			}
			err := tx.CreateSubscription(ctx, sub)
			if err == nil {
				s.metrics.IncrSubscriptionUpsert("created")
				s.logger.Info("subscription inferred",
					zap.String("vendor", vendor.Name),
					zap.String("next_expected", cls.NextExpected),
				)
				return nil
			}
			// Another writer can commit the vendor's subscription between
			// our read and the insert. Re-read and fall through to the
			// refresh path instead of failing the run.
			var conflict *domain.ErrConflict
			if !errors.As(err, &conflict) {
				return err
			}
			existing, err = tx.FindSubscriptionByVendor(ctx, vendor.ID)
			if err != nil {
				return err
			}
			if existing == nil {
				return &domain.ErrStorage{Op: "merge group", Err: conflict}
			}
		}

		confidence := existing.Confidence
		if inferredConfidence > confidence {
			confidence = inferredConfidence
		}
		if err := tx.RefreshSubscription(ctx, existing.ID, cls.Interval, confidence, cls.NextExpected, last); err != nil {
			return err
		}
		s.metrics.IncrSubscriptionUpsert("refreshed")
		return nil
	})
}

// vendorDisplayName picks the display form for a group's vendor: the
// first record's merchant name, falling back to its metadata name.
func vendorDisplayName(group []domain.TransactionRecord) string {
	for i := range group {
		if group[i].MerchantName != "" {
			return group[i].MerchantName
		}
		if group[i].Metadata != nil && group[i].Metadata.Name != "" {
			return group[i].Metadata.Name
		}
	}
	return ""
}

// groupDateRange returns the earliest and latest parseable dates in the
// group.
func groupDateRange(group []domain.TransactionRecord) (first, last time.Time, ok bool) {
	for i := range group {
		t, err := time.Parse(domain.DateLayout, group[i].Date)
		if err != nil {
			continue
		}
		if !ok {
			first, last, ok = t, t, true
			continue
		}
		if t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	return first, last, ok
}
