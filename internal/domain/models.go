// Package domain holds the core types for the subscription tracker:
// transaction records, vendors, subscriptions and invoices.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionStatus is the lifecycle state of a subscription.
// Detection only ever writes StatusInferred; the other two states are set
// by explicit user edits and are never overwritten automatically.
type SubscriptionStatus string

const (
	StatusInferred  SubscriptionStatus = "inferred"
	StatusActive    SubscriptionStatus = "active"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// ValidStatus reports whether s is a known subscription status.
func ValidStatus(s SubscriptionStatus) bool {
	switch s {
	case StatusInferred, StatusActive, StatusCancelled:
		return true
	}
	return false
}

// BillingInterval is the detected (or edited) charge cadence.
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "monthly"
	IntervalYearly  BillingInterval = "yearly"
	IntervalUnknown BillingInterval = "unknown"
)

// ValidInterval reports whether i is a known billing interval.
func ValidInterval(i BillingInterval) bool {
	switch i {
	case IntervalMonthly, IntervalYearly, IntervalUnknown:
		return true
	}
	return false
}

// DateLayout is the calendar-date format used throughout: dates carry no
// time component.
const DateLayout = "2006-01-02"

// RecordMetadata is the typed view of the raw payload attached to a
// transaction record. Only the fields the noise filters actually read are
// named; everything else from the feed is dropped at ingestion.
type RecordMetadata struct {
	// Name is the fallback merchant descriptor some feeds supply when
	// merchant_name is absent.
	Name string `json:"name,omitempty"`
	// PrimaryCategory is the feed's top-level category classification.
	PrimaryCategory string `json:"primary_category,omitempty"`
	// Categories is the full category path, most general first.
	Categories []string `json:"categories,omitempty"`
	// Seed marks records inserted by the demo seeder.
	Seed bool `json:"seed,omitempty"`
}

// TransactionRecord is a single ingested payment record. The detection
// core treats records as immutable input; VendorID is the only field it
// ever sets.
type TransactionRecord struct {
	ID           string              `json:"id"`
	ExternalID   string              `json:"external_id,omitempty"`
	VendorID     string              `json:"vendor_id,omitempty"`
	MerchantName string              `json:"merchant_name,omitempty"`
	Amount       decimal.NullDecimal `json:"amount"`
	CurrencyCode string              `json:"currency_code,omitempty"`
	// Date is the calendar date as received. It may be unparseable for
	// dirty feed data; such records are silently excluded from grouping.
	Date      string          `json:"date"`
	Metadata  *RecordMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Vendor is a merchant identity. Name is unique under case-insensitive
// collation and never changes once created: the first grouped record's
// display form wins.
type Vendor struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Subscription is the inferred (or confirmed) recurring charge for a
// vendor. At most one subscription exists per vendor.
type Subscription struct {
	ID           string             `json:"id"`
	VendorID     string             `json:"vendor_id"`
	Status       SubscriptionStatus `json:"status"`
	Interval     BillingInterval    `json:"interval"`
	Confidence   float64            `json:"confidence"`
	FirstSeen    time.Time          `json:"first_seen"`
	LastSeen     time.Time          `json:"last_seen"`
	NextExpected string             `json:"next_expected,omitempty"`
}

// Invoice is a parsed invoice document linked to a vendor.
type Invoice struct {
	ID            string              `json:"id"`
	VendorID      string              `json:"vendor_id"`
	Total         decimal.NullDecimal `json:"total"`
	InvoiceDate   string              `json:"invoice_date,omitempty"`
	BillingPeriod string              `json:"billing_period,omitempty"`
	Raw           map[string]any      `json:"raw,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// ParsedInvoice is what the document-analysis collaborator returns for an
// uploaded invoice file.
type ParsedInvoice struct {
	Vendor        string              `json:"vendor"`
	Total         decimal.NullDecimal `json:"total"`
	InvoiceDate   string              `json:"invoice_date,omitempty"`
	BillingPeriod string              `json:"billing_period,omitempty"`
	Raw           map[string]any      `json:"raw,omitempty"`
}

// FeedTransaction is a raw record from the bank-data feed, before it is
// mapped into a TransactionRecord.
type FeedTransaction struct {
	TransactionID string              `json:"transaction_id"`
	MerchantName  string              `json:"merchant_name,omitempty"`
	Name          string              `json:"name,omitempty"`
	Amount        decimal.NullDecimal `json:"amount"`
	CurrencyCode  string              `json:"iso_currency_code,omitempty"`
	Date          string              `json:"date"`
	Category      []string            `json:"category,omitempty"`
}

// DetectionResult summarizes a detection run.
type DetectionResult struct {
	GroupsConsidered      int `json:"groups_considered"`
	SubscriptionsUpserted int `json:"subscriptions_upserted"`
}

// SyncResult summarizes a feed sync run.
type SyncResult struct {
	Fetched int `json:"fetched"`
	Saved   int `json:"saved"`
}

// DetectionMetrics is a cumulative counter snapshot for the detection
// pipeline, served by the metrics snapshot endpoint.
type DetectionMetrics struct {
	TotalRuns            int64   `json:"total_runs"`
	ErrorRate            float64 `json:"error_rate"`
	SubscriptionsCreated int64   `json:"subscriptions_created"`
	SubscriptionsUpdated int64   `json:"subscriptions_updated"`
	RecordsIngested      int64   `json:"records_ingested"`
	GroupsConsidered     int64   `json:"groups_considered"`
	CacheHitRate         float64 `json:"cache_hit_rate"`
	Period               string  `json:"period"`
}

// SubscriptionView is the API-facing shape of a subscription joined with
// its vendor name.
type SubscriptionView struct {
	ID           string             `json:"id"`
	VendorName   string             `json:"vendorName"`
	Interval     BillingInterval    `json:"interval"`
	Status       SubscriptionStatus `json:"status"`
	NextExpected string             `json:"nextExpected,omitempty"`
	Confidence   float64            `json:"confidence"`
}
