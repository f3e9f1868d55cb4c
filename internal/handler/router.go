// Package handler wires the HTTP surface of the tracker: detection,
// subscriptions, transactions, vendors, invoices and demo tooling.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/subtrack/subtrack-go/internal/infra/observability"
	"github.com/subtrack/subtrack-go/internal/service"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router needs.
type Services struct {
	Detection     *service.DetectionService
	Subscriptions *service.SubscriptionService
	Transactions  *service.TransactionService
	Sync          *service.SyncService
	Invoices      *service.InvoiceService
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.Transactions, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		// Detection
		r.Post("/detect", detectHandler(svcs.Detection, svcs.Subscriptions, logger))

		// Subscriptions
		r.Get("/subscriptions", listSubscriptionsHandler(svcs.Subscriptions, logger))
		r.Patch("/subscriptions/{subscriptionId}", updateSubscriptionHandler(svcs.Subscriptions, logger))

		// Transactions & vendors
		r.Get("/transactions", listTransactionsHandler(svcs.Transactions, logger))
		r.Get("/vendors", listVendorsHandler(svcs.Transactions, logger))

		// Feed sync
		r.Post("/sync", syncHandler(svcs.Sync, logger))

		// Invoices
		r.Post("/invoices", uploadInvoiceHandler(svcs.Invoices, logger))

		// Metrics snapshot
		r.Get("/metrics/detection", detectionMetricsHandler(metrics))

		// Demo tooling
		r.Post("/demo/seed", demoSeedHandler(svcs.Transactions, logger))
		r.Post("/demo/reset", demoResetHandler(svcs.Transactions, logger))
	})

	return r
}

// ============================================================
// Health & metrics
// ============================================================

func healthzHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.PingStore(r.Context()); err != nil {
			logger.Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func detectionMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetDetectionSnapshot())
	}
}
