package bankfeed

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/subtrack/subtrack-go/internal/domain"
)

// Stub is an in-memory feed for local development. It returns a small
// deterministic batch of recent charges so sync and detection can be
// exercised without feed credentials.
type Stub struct{}

func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) FetchRecentTransactions(ctx context.Context) ([]domain.FeedTransaction, error) {
	now := time.Now().UTC()
	amount := func(v string) decimal.NullDecimal {
		d, _ := decimal.NewFromString(v)
		return decimal.NullDecimal{Decimal: d, Valid: true}
	}
	date := func(daysAgo int) string {
		return now.AddDate(0, 0, -daysAgo).Format(domain.DateLayout)
	}

	var txns []domain.FeedTransaction
	for i, daysAgo := range []int{1, 31, 61} {
		txns = append(txns, domain.FeedTransaction{
			TransactionID: fmt.Sprintf("stub-netflix-%d", i),
			MerchantName:  "Netflix",
			Amount:        amount("15.99"),
			CurrencyCode:  "USD",
			Date:          date(daysAgo),
			Category:      []string{"entertainment"},
		})
	}
	txns = append(txns, domain.FeedTransaction{
		TransactionID: "stub-payroll-0",
		Name:          "ACME Corp Payroll",
		Amount:        amount("-2400.00"),
		CurrencyCode:  "USD",
		Date:          date(2),
		Category:      []string{"income"},
	})
	return txns, nil
}
