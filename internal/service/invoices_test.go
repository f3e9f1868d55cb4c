package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/infra/docparse"
	"github.com/subtrack/subtrack-go/internal/infra/observability"
	"github.com/subtrack/subtrack-go/internal/infra/store/sqlite"
)

func TestInvoiceUploadCreatesVendor(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := NewInvoiceService(store, docparse.NewMock(), observability.NewMetrics(), zap.NewNop())
	ctx := context.Background()

	inv, err := svc.Upload(ctx, "invoice.pdf", []byte("%PDF-fake"))
	require.NoError(t, err)
	assert.NotEmpty(t, inv.ID)
	assert.NotEmpty(t, inv.VendorID)
	assert.True(t, inv.Total.Valid)

	vendor, err := store.FindVendorByName(ctx, "adobe inc.")
	require.NoError(t, err)
	require.NotNil(t, vendor, "vendor resolution is case-insensitive")
	assert.Equal(t, vendor.ID, inv.VendorID)
}

func TestInvoiceUploadReusesExistingVendor(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	existing, err := store.GetOrCreateVendor(ctx, "ADOBE INC.")
	require.NoError(t, err)

	svc := NewInvoiceService(store, docparse.NewMock(), observability.NewMetrics(), zap.NewNop())
	inv, err := svc.Upload(ctx, "invoice.pdf", []byte("%PDF-fake"))
	require.NoError(t, err)
	assert.Equal(t, existing.ID, inv.VendorID)

	vendors, err := store.ListVendors(ctx)
	require.NoError(t, err)
	assert.Len(t, vendors, 1)
}

func TestInvoiceUploadRejectsEmptyFile(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := NewInvoiceService(store, docparse.NewMock(), observability.NewMetrics(), zap.NewNop())

	_, err = svc.Upload(context.Background(), "empty.pdf", nil)
	var validation *domain.ErrValidation
	require.ErrorAs(t, err, &validation)
}
