// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/subtrack/subtrack-go/internal/domain"
)

// BankFeed retrieves recent transaction records from the external
// bank-data source. The detection core never talks to the feed directly;
// it only sees records already persisted by the sync service.
type BankFeed interface {
	FetchRecentTransactions(ctx context.Context) ([]domain.FeedTransaction, error)
}

// InvoiceParser extracts vendor/total/date from an uploaded invoice
// document. Implemented by the document-analysis HTTP client and by a
// fixed-output mock for local development.
type InvoiceParser interface {
	ParseInvoice(ctx context.Context, filename string, data []byte) (*domain.ParsedInvoice, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	VendorID string
	// MerchantOnly restricts to records with a non-empty merchant name
	// (the detection pipeline's input set).
	MerchantOnly bool
	Limit        int
}

// SubscriptionUpdate carries the user-editable subscription fields for a
// PATCH. Nil pointers mean "leave unchanged".
type SubscriptionUpdate struct {
	Status       *domain.SubscriptionStatus
	Interval     *domain.BillingInterval
	NextExpected *string
}

// DetectionTx is the per-group transactional surface the subscription
// merger runs against. All calls inside one DetectionTx commit or roll
// back together.
type DetectionTx interface {
	// GetOrCreateVendor resolves a vendor by case-insensitive name,
	// creating it with the given display name when absent. The returned
	// vendor always has a durable id. A concurrent-create uniqueness
	// violation is resolved internally by re-reading.
	GetOrCreateVendor(ctx context.Context, name string) (*domain.Vendor, error)

	// LinkTransactionVendor sets a record's vendor id. Idempotent.
	LinkTransactionVendor(ctx context.Context, transactionID, vendorID string) error

	FindSubscriptionByVendor(ctx context.Context, vendorID string) (*domain.Subscription, error)
	CreateSubscription(ctx context.Context, sub *domain.Subscription) error

	// RefreshSubscription updates the detection-owned fields of an
	// existing subscription: interval, confidence, next_expected and
	// last_seen. It must never touch status.
	RefreshSubscription(ctx context.Context, id string, interval domain.BillingInterval, confidence float64, nextExpected string, lastSeen time.Time) error
}

// Store defines all persistence operations for the tracker.
// Implemented by the SQLite adapter (or any other persistence layer).
type Store interface {
	// Transactions
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]domain.TransactionRecord, error)
	InsertTransactions(ctx context.Context, records []domain.TransactionRecord) (int, error)
	ListExternalIDs(ctx context.Context) (map[string]bool, error)

	// Vendors
	ListVendors(ctx context.Context) ([]domain.Vendor, error)
	FindVendorByName(ctx context.Context, name string) (*domain.Vendor, error)
	GetOrCreateVendor(ctx context.Context, name string) (*domain.Vendor, error)

	// Subscriptions
	ListSubscriptionViews(ctx context.Context) ([]domain.SubscriptionView, error)
	GetSubscription(ctx context.Context, id string) (*domain.Subscription, error)
	UpdateSubscription(ctx context.Context, id string, update SubscriptionUpdate) (*domain.Subscription, error)

	// Invoices
	InsertInvoice(ctx context.Context, inv *domain.Invoice) error

	// WithDetectionTx runs fn inside a single database transaction.
	// fn returning an error rolls the transaction back.
	WithDetectionTx(ctx context.Context, fn func(tx DetectionTx) error) error

	// Ping verifies the store is reachable (health checks).
	Ping(ctx context.Context) error

	// Reset drops all rows and recreates the schema (demo tooling).
	Reset(ctx context.Context) error
}
