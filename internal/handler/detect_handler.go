package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/service"
)

// ============================================================
// Detection — POST /v1/detect
// ============================================================

func detectHandler(svc *service.DetectionService, subs *service.SubscriptionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/detect")
		defer span.End()

		// ?as_of=YYYY-MM-DD pins the detection window end, mainly for
		// reproducing runs against historical data.
		asOf := time.Now().UTC()
		if raw := r.URL.Query().Get("as_of"); raw != "" {
			parsed, err := time.Parse(domain.DateLayout, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
				return
			}
			asOf = parsed
		}

		result, err := svc.RunAt(ctx, asOf)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		views, err := subs.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if views == nil {
			views = []domain.SubscriptionView{}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"groups_considered":      result.GroupsConsidered,
			"subscriptions_upserted": result.SubscriptionsUpserted,
			"subscriptions":          views,
		})
	}
}

// ============================================================
// Feed sync — POST /v1/sync
// ============================================================

func syncHandler(svc *service.SyncService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/sync")
		defer span.End()

		result, err := svc.Run(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
