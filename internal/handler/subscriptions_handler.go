package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/port"
	"github.com/subtrack/subtrack-go/internal/service"
)

// ============================================================
// Subscriptions — GET /v1/subscriptions, PATCH /v1/subscriptions/{id}
// ============================================================

func listSubscriptionsHandler(svc *service.SubscriptionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/subscriptions")
		defer span.End()

		views, err := svc.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if views == nil {
			views = []domain.SubscriptionView{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"subscriptions": views})
	}
}

func updateSubscriptionHandler(svc *service.SubscriptionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/subscriptions/{subscriptionId}")
		defer span.End()

		subscriptionID := chi.URLParam(r, "subscriptionId")
		if subscriptionID == "" {
			writeError(w, http.StatusBadRequest, "subscriptionId is required")
			return
		}
		span.SetAttributes(attribute.String("subscription.id", subscriptionID))

		var body struct {
			Status       *domain.SubscriptionStatus `json:"status"`
			Interval     *domain.BillingInterval    `json:"interval"`
			NextExpected *string                    `json:"nextExpected"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sub, err := svc.Update(ctx, subscriptionID, port.SubscriptionUpdate{
			Status:       body.Status,
			Interval:     body.Interval,
			NextExpected: body.NextExpected,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}
