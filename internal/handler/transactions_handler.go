package handler

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/port"
	"github.com/subtrack/subtrack-go/internal/service"
)

// ============================================================
// Transactions & vendors
// ============================================================

func listTransactionsHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		filter := port.TransactionFilter{
			VendorID: r.URL.Query().Get("vendor_id"),
		}
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
				filter.Limit = limit
			}
		}

		records, err := svc.List(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if records == nil {
			records = []domain.TransactionRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": records})
	}
}

func listVendorsHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/vendors")
		defer span.End()

		vendors, err := svc.ListVendors(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if vendors == nil {
			vendors = []domain.Vendor{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"vendors": vendors})
	}
}
