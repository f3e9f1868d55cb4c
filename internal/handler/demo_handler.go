package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/subtrack/subtrack-go/internal/service"
)

// ============================================================
// Demo tooling — POST /v1/demo/seed, POST /v1/demo/reset
// ============================================================

func demoSeedHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/demo/seed")
		defer span.End()

		saved, err := svc.SeedDemo(ctx, time.Now().UTC())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"seeded": saved})
	}
}

func demoResetHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/demo/reset")
		defer span.End()

		if err := svc.Reset(ctx); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	}
}
