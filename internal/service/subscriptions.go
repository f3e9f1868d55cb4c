package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/infra/observability"
	"github.com/subtrack/subtrack-go/internal/port"
)

var subTracer = otel.Tracer("service/subscriptions")

// subscriptionsCacheKey is the cache key for the joined subscription
// list. Any write path (detection, patch, reset) invalidates it.
const subscriptionsCacheKey = "subscriptions"

// SubscriptionService serves the subscription read and edit surface.
type SubscriptionService struct {
	store   port.Store
	cache   port.Cache[[]domain.SubscriptionView]
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewSubscriptionService(
	store port.Store,
	cache port.Cache[[]domain.SubscriptionView],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		store:   store,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// List returns all subscriptions joined with vendor names, served from
// cache when fresh.
func (s *SubscriptionService) List(ctx context.Context) ([]domain.SubscriptionView, error) {
	ctx, span := subTracer.Start(ctx, "SubscriptionService.List")
	defer span.End()

	if views, ok := s.cache.Get(subscriptionsCacheKey); ok {
		s.metrics.IncrCacheHit(subscriptionsCacheKey)
		return views, nil
	}
	s.metrics.IncrCacheMiss(subscriptionsCacheKey)

	views, err := s.store.ListSubscriptionViews(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(subscriptionsCacheKey, views)
	return views, nil
}

// Update applies a user edit to a subscription. Status and interval are
// validated against the known enumerations; unknown values reject the
// whole request before anything is written.
func (s *SubscriptionService) Update(ctx context.Context, id string, update port.SubscriptionUpdate) (*domain.Subscription, error) {
	ctx, span := subTracer.Start(ctx, "SubscriptionService.Update")
	defer span.End()

	if id == "" {
		return nil, &domain.ErrValidation{Field: "id", Message: "required"}
	}
	if update.Status != nil && !domain.ValidStatus(*update.Status) {
		return nil, &domain.ErrValidation{Field: "status", Message: "must be one of inferred, active, cancelled"}
	}
	if update.Interval != nil && !domain.ValidInterval(*update.Interval) {
		return nil, &domain.ErrValidation{Field: "interval", Message: "must be one of monthly, yearly, unknown"}
	}

	sub, err := s.store.UpdateSubscription(ctx, id, update)
	if err != nil {
		return nil, err
	}

	s.cache.Delete(subscriptionsCacheKey)
	s.logger.Info("subscription updated", zap.String("subscription_id", id))
	return sub, nil
}
