package handler

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/subtrack/subtrack-go/internal/service"
)

// maxInvoiceUploadBytes caps invoice uploads at 10 MiB.
const maxInvoiceUploadBytes = 10 << 20

// ============================================================
// Invoices — POST /v1/invoices (multipart)
// ============================================================

func uploadInvoiceHandler(svc *service.InvoiceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/invoices")
		defer span.End()

		r.Body = http.MaxBytesReader(w, r.Body, maxInvoiceUploadBytes)
		if err := r.ParseMultipartForm(maxInvoiceUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read upload")
			return
		}

		inv, err := svc.Upload(ctx, header.Filename, data)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	}
}
