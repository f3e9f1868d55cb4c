package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/infra/observability"
	"github.com/subtrack/subtrack-go/internal/infra/store/sqlite"
	"github.com/subtrack/subtrack-go/internal/port"
)

type fakeFeed struct {
	txns []domain.FeedTransaction
	err  error
}

func (f *fakeFeed) FetchRecentTransactions(ctx context.Context) ([]domain.FeedTransaction, error) {
	return f.txns, f.err
}

func feedTxn(id, merchant, amount, date string, category ...string) domain.FeedTransaction {
	d, _ := decimal.NewFromString(amount)
	return domain.FeedTransaction{
		TransactionID: id,
		MerchantName:  merchant,
		Amount:        decimal.NullDecimal{Decimal: d, Valid: true},
		CurrencyCode:  "USD",
		Date:          date,
		Category:      category,
	}
}

func TestSyncPersistsNewRecordsOnly(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	feed := &fakeFeed{txns: []domain.FeedTransaction{
		feedTxn("ext-1", "Netflix", "15.99", "2026-08-01", "entertainment"),
		feedTxn("ext-2", "Spotify", "9.99", "2026-08-02"),
	}}
	svc := NewSyncService(store, feed, observability.NewMetrics(), zap.NewNop())
	ctx := context.Background()

	result, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 2, result.Saved)

	// Second sync with one overlapping and one new record.
	feed.txns = append(feed.txns, feedTxn("ext-3", "Netflix", "15.99", "2026-08-31"))
	result, err = svc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 1, result.Saved)

	records, err := store.ListTransactions(ctx, port.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestSyncMapsCategoryIntoMetadata(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	feed := &fakeFeed{txns: []domain.FeedTransaction{
		{
			TransactionID: "ext-pay",
			Name:          "ACME Corp Payroll",
			Date:          "2026-08-02",
			Category:      []string{"income", "payroll"},
		},
	}}
	svc := NewSyncService(store, feed, observability.NewMetrics(), zap.NewNop())

	_, err = svc.Run(context.Background())
	require.NoError(t, err)

	records, err := store.ListTransactions(context.Background(), port.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Metadata)
	assert.Equal(t, "income", records[0].Metadata.PrimaryCategory)
	assert.Equal(t, "ACME Corp Payroll", records[0].Metadata.Name)
}

func TestSyncPropagatesFeedError(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	feed := &fakeFeed{err: &domain.ErrExternalService{Service: "bankfeed", Err: assert.AnError}}
	svc := NewSyncService(store, feed, observability.NewMetrics(), zap.NewNop())

	_, err = svc.Run(context.Background())
	var external *domain.ErrExternalService
	require.ErrorAs(t, err, &external)
}
