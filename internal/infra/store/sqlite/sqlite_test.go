package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/port"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func amount(t *testing.T, v string) decimal.NullDecimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func TestInsertTransactionsDeduplicatesExternalID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []domain.TransactionRecord{
		{ExternalID: "ext-1", MerchantName: "Netflix", Amount: amount(t, "15.99"), Date: "2026-08-01"},
		{ExternalID: "ext-2", MerchantName: "Netflix", Amount: amount(t, "15.99"), Date: "2026-07-02"},
	}
	saved, err := s.InsertTransactions(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	// Same external ids again: nothing new.
	saved, err = s.InsertTransactions(ctx, []domain.TransactionRecord{
		{ExternalID: "ext-1", MerchantName: "Netflix", Date: "2026-08-01"},
		{ExternalID: "ext-3", MerchantName: "Spotify", Date: "2026-08-02"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	ids, err := s.ListExternalIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.True(t, ids["ext-1"])
}

func TestListTransactionsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertTransactions(ctx, []domain.TransactionRecord{
		{
			MerchantName: "Adobe Inc.",
			Amount:       amount(t, "29.99"),
			CurrencyCode: "USD",
			Date:         "2026-08-05",
			Metadata:     &domain.RecordMetadata{PrimaryCategory: "software", Seed: true},
		},
	})
	require.NoError(t, err)

	records, err := s.ListTransactions(ctx, port.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "Adobe Inc.", got.MerchantName)
	assert.True(t, got.Amount.Valid)
	assert.Equal(t, "29.99", got.Amount.Decimal.String())
	require.NotNil(t, got.Metadata)
	assert.Equal(t, "software", got.Metadata.PrimaryCategory)
	assert.True(t, got.Metadata.Seed)
}

func TestListTransactionsMerchantOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertTransactions(ctx, []domain.TransactionRecord{
		{MerchantName: "Netflix", Date: "2026-08-01"},
		{Date: "2026-08-02"}, // no merchant
	})
	require.NoError(t, err)

	records, err := s.ListTransactions(ctx, port.TransactionFilter{MerchantOnly: true})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Netflix", records[0].MerchantName)
}

func TestGetOrCreateVendorCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v1, err := s.GetOrCreateVendor(ctx, "Netflix")
	require.NoError(t, err)
	require.NotNil(t, v1)

	v2, err := s.GetOrCreateVendor(ctx, "NETFLIX")
	require.NoError(t, err)
	require.NotNil(t, v2)

	assert.Equal(t, v1.ID, v2.ID)
	assert.Equal(t, "Netflix", v2.Name, "first-created display form wins")

	vendors, err := s.ListVendors(ctx)
	require.NoError(t, err)
	assert.Len(t, vendors, 1)
}

func TestFindVendorByNameAbsent(t *testing.T) {
	s := newTestStore(t)

	v, err := s.FindVendorByName(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDetectionTxCreatesAndRefreshesSubscription(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertTransactions(ctx, []domain.TransactionRecord{
		{ExternalID: "n-1", MerchantName: "Netflix", Date: "2026-08-01"},
	})
	require.NoError(t, err)

	inserted, err := s.ListTransactions(ctx, port.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, inserted, 1)

	var vendorID, subID string
	err = s.WithDetectionTx(ctx, func(tx port.DetectionTx) error {
		vendor, err := tx.GetOrCreateVendor(ctx, "Netflix")
		if err != nil {
			return err
		}
		vendorID = vendor.ID

		if err := tx.LinkTransactionVendor(ctx, inserted[0].ID, vendor.ID); err != nil {
			return err
		}

		sub := &domain.Subscription{
			VendorID:     vendor.ID,
			Status:       domain.StatusInferred,
			Interval:     domain.IntervalMonthly,
			Confidence:   0.7,
			FirstSeen:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			LastSeen:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			NextExpected: "2026-08-31",
		}
		if err := tx.CreateSubscription(ctx, sub); err != nil {
			return err
		}
		subID = sub.ID
		return nil
	})
	require.NoError(t, err)

	sub, err := s.GetSubscription(ctx, subID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, domain.StatusInferred, sub.Status)
	assert.Equal(t, "2026-08-31", sub.NextExpected)

	records, err := s.ListTransactions(ctx, port.TransactionFilter{VendorID: vendorID})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// Refresh must not touch status.
	_, err = s.UpdateSubscription(ctx, subID, port.SubscriptionUpdate{
		Status: statusPtr(domain.StatusCancelled),
	})
	require.NoError(t, err)

	err = s.WithDetectionTx(ctx, func(tx port.DetectionTx) error {
		return tx.RefreshSubscription(ctx, subID, domain.IntervalMonthly, 0.9, "2026-09-30",
			time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	})
	require.NoError(t, err)

	sub, err = s.GetSubscription(ctx, subID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, sub.Status)
	assert.Equal(t, 0.9, sub.Confidence)
	assert.Equal(t, "2026-09-30", sub.NextExpected)
}

func TestDetectionTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithDetectionTx(ctx, func(tx port.DetectionTx) error {
		if _, err := tx.GetOrCreateVendor(ctx, "Doomed Vendor"); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	v, err := s.FindVendorByName(ctx, "Doomed Vendor")
	require.NoError(t, err)
	assert.Nil(t, v, "rolled-back vendor must not persist")
}

func TestCreateSubscriptionEnforcesOnePerVendor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vendor, err := s.GetOrCreateVendor(ctx, "Spotify")
	require.NoError(t, err)

	mk := func() error {
		return s.WithDetectionTx(ctx, func(tx port.DetectionTx) error {
			return tx.CreateSubscription(ctx, &domain.Subscription{
				VendorID:  vendor.ID,
				Status:    domain.StatusInferred,
				Interval:  domain.IntervalMonthly,
				FirstSeen: time.Now().UTC(),
				LastSeen:  time.Now().UTC(),
			})
		})
	}

	require.NoError(t, mk())
	err = mk()
	var conflict *domain.ErrConflict
	require.ErrorAs(t, err, &conflict)
}

func TestUpdateSubscriptionNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.UpdateSubscription(context.Background(), "missing", port.SubscriptionUpdate{
		Status: statusPtr(domain.StatusActive),
	})
	var notFound *domain.ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestListSubscriptionViewsJoinsVendorNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vendor, err := s.GetOrCreateVendor(ctx, "Netflix")
	require.NoError(t, err)

	err = s.WithDetectionTx(ctx, func(tx port.DetectionTx) error {
		return tx.CreateSubscription(ctx, &domain.Subscription{
			VendorID:     vendor.ID,
			Status:       domain.StatusInferred,
			Interval:     domain.IntervalMonthly,
			Confidence:   0.7,
			FirstSeen:    time.Now().UTC(),
			LastSeen:     time.Now().UTC(),
			NextExpected: "2026-08-31",
		})
	})
	require.NoError(t, err)

	views, err := s.ListSubscriptionViews(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Netflix", views[0].VendorName)
	assert.Equal(t, domain.IntervalMonthly, views[0].Interval)
	assert.Equal(t, "2026-08-31", views[0].NextExpected)
}

func TestInsertInvoice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vendor, err := s.GetOrCreateVendor(ctx, "Adobe Inc.")
	require.NoError(t, err)

	inv := &domain.Invoice{
		VendorID:    vendor.ID,
		Total:       amount(t, "29.99"),
		InvoiceDate: "2026-08-01",
		Raw:         map[string]any{"source": "upload"},
	}
	require.NoError(t, s.InsertInvoice(ctx, inv))
	assert.NotEmpty(t, inv.ID)
}

func TestResetWipesEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertTransactions(ctx, []domain.TransactionRecord{
		{MerchantName: "Netflix", Date: "2026-08-01"},
	})
	require.NoError(t, err)
	_, err = s.GetOrCreateVendor(ctx, "Netflix")
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))

	records, err := s.ListTransactions(ctx, port.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)

	vendors, err := s.ListVendors(ctx)
	require.NoError(t, err)
	assert.Empty(t, vendors)
}

func statusPtr(s domain.SubscriptionStatus) *domain.SubscriptionStatus {
	return &s
}
