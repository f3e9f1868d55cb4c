// Package sqlite provides the SQLite-backed implementation of port.Store.
//
// SQLite gives the tracker real transactional isolation plus the unique
// constraints the merge path relies on: vendor names are unique under
// NOCASE collation, a subscription's vendor_id is unique, and feed
// records carry a unique external_id for de-duplication. The database is
// opened in WAL mode with foreign keys on; the schema is auto-migrated on
// New().
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/subtrack/subtrack-go/internal/domain"
	"github.com/subtrack/subtrack-go/internal/port"
)

// Store implements port.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database in tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The sqlite3 driver serializes writers; a single connection avoids
	// SQLITE_BUSY between concurrent API calls.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
	CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL COLLATE NOCASE UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		external_id TEXT UNIQUE,
		vendor_id TEXT REFERENCES vendors(id),
		merchant_name TEXT,
		amount TEXT,
		currency_code TEXT,
		date TEXT,
		raw_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_vendor
		ON transactions(vendor_id) WHERE vendor_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_merchant
		ON transactions(merchant_name) WHERE merchant_name IS NOT NULL;

	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL UNIQUE REFERENCES vendors(id),
		status TEXT NOT NULL DEFAULT 'inferred',
		interval TEXT NOT NULL DEFAULT 'unknown',
		confidence REAL NOT NULL DEFAULT 0,
		first_seen TEXT NOT NULL,
		last_seen TEXT NOT NULL,
		next_expected TEXT
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		vendor_id TEXT REFERENCES vendors(id),
		total TEXT,
		invoice_date TEXT,
		billing_period TEXT,
		raw_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_vendor
		ON invoices(vendor_id) WHERE vendor_id IS NOT NULL;
`

// migrate creates the database schema.
func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &domain.ErrStorage{Op: "ping", Err: err}
	}
	return nil
}

// Reset drops all data and recreates the schema (demo tooling).
func (s *Store) Reset(ctx context.Context) error {
	drop := `
		DROP TABLE IF EXISTS invoices;
		DROP TABLE IF EXISTS subscriptions;
		DROP TABLE IF EXISTS transactions;
		DROP TABLE IF EXISTS vendors;
	`
	if _, err := s.db.ExecContext(ctx, drop); err != nil {
		return &domain.ErrStorage{Op: "reset", Err: err}
	}
	if err := s.migrate(); err != nil {
		return &domain.ErrStorage{Op: "reset", Err: err}
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// InsertTransactions persists records, assigning ids where missing and
// skipping rows whose external_id is already present. Returns the number
// of rows actually inserted.
func (s *Store) InsertTransactions(ctx context.Context, records []domain.TransactionRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &domain.ErrStorage{Op: "insert transactions", Err: err}
	}
	defer tx.Rollback()

	query := `
		INSERT OR IGNORE INTO transactions
		(id, external_id, vendor_id, merchant_name, amount, currency_code, date, raw_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	inserted := 0
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}

		var rawJSON sql.NullString
		if rec.Metadata != nil {
			b, err := json.Marshal(rec.Metadata)
			if err != nil {
				return inserted, &domain.ErrStorage{Op: "insert transactions", Err: err}
			}
			rawJSON = sql.NullString{String: string(b), Valid: true}
		}

		res, err := tx.ExecContext(ctx, query,
			rec.ID,
			nullString(rec.ExternalID),
			nullString(rec.VendorID),
			nullString(rec.MerchantName),
			nullAmount(rec.Amount),
			nullString(rec.CurrencyCode),
			nullString(rec.Date),
			rawJSON,
			now.Format(time.RFC3339),
		)
		if err != nil {
			return inserted, &domain.ErrStorage{Op: "insert transactions", Err: err}
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &domain.ErrStorage{Op: "insert transactions", Err: err}
	}
	return inserted, nil
}

// ListTransactions returns records matching the filter, newest insert
// first.
func (s *Store) ListTransactions(ctx context.Context, filter port.TransactionFilter) ([]domain.TransactionRecord, error) {
	query := `
		SELECT id, external_id, vendor_id, merchant_name, amount, currency_code, date, raw_json, created_at
		FROM transactions
	`
	var clauses []string
	var args []any
	if filter.VendorID != "" {
		clauses = append(clauses, "vendor_id = ?")
		args = append(args, filter.VendorID)
	}
	if filter.MerchantOnly {
		clauses = append(clauses, "merchant_name IS NOT NULL AND merchant_name != ''")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list transactions", Err: err}
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, &domain.ErrStorage{Op: "list transactions", Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStorage{Op: "list transactions", Err: err}
	}
	return records, nil
}

// ListExternalIDs returns the set of external ids already persisted, for
// feed de-duplication.
func (s *Store) ListExternalIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT external_id FROM transactions WHERE external_id IS NOT NULL")
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list external ids", Err: err}
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &domain.ErrStorage{Op: "list external ids", Err: err}
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func scanTransaction(rows *sql.Rows) (domain.TransactionRecord, error) {
	var (
		rec          domain.TransactionRecord
		externalID   sql.NullString
		vendorID     sql.NullString
		merchantName sql.NullString
		amount       sql.NullString
		currencyCode sql.NullString
		date         sql.NullString
		rawJSON      sql.NullString
		createdAt    string
	)

	err := rows.Scan(&rec.ID, &externalID, &vendorID, &merchantName,
		&amount, &currencyCode, &date, &rawJSON, &createdAt)
	if err != nil {
		return rec, err
	}

	rec.ExternalID = externalID.String
	rec.VendorID = vendorID.String
	rec.MerchantName = merchantName.String
	rec.CurrencyCode = currencyCode.String
	rec.Date = date.String
	rec.Amount = parseAmount(amount)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	if rawJSON.Valid && rawJSON.String != "" {
		var meta domain.RecordMetadata
		if err := json.Unmarshal([]byte(rawJSON.String), &meta); err == nil {
			rec.Metadata = &meta
		}
	}

	return rec, nil
}

// =============================================================================
// VENDORS
// =============================================================================

// ListVendors returns all vendors ordered by name.
func (s *Store) ListVendors(ctx context.Context) ([]domain.Vendor, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM vendors ORDER BY name")
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list vendors", Err: err}
	}
	defer rows.Close()

	var vendors []domain.Vendor
	for rows.Next() {
		var v domain.Vendor
		var createdAt string
		if err := rows.Scan(&v.ID, &v.Name, &createdAt); err != nil {
			return nil, &domain.ErrStorage{Op: "list vendors", Err: err}
		}
		v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// FindVendorByName looks a vendor up by case-insensitive name match.
// Returns nil when absent.
func (s *Store) FindVendorByName(ctx context.Context, name string) (*domain.Vendor, error) {
	return findVendorByName(ctx, s.db, name)
}

// GetOrCreateVendor resolves or creates a vendor outside a detection
// transaction (used by the invoice path).
func (s *Store) GetOrCreateVendor(ctx context.Context, name string) (*domain.Vendor, error) {
	return getOrCreateVendor(ctx, s.db, name)
}

// querier abstracts *sql.DB and *sql.Tx so vendor/subscription helpers
// run both standalone and inside a detection transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findVendorByName(ctx context.Context, q querier, name string) (*domain.Vendor, error) {
	var v domain.Vendor
	var createdAt string
	err := q.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM vendors WHERE name = ? COLLATE NOCASE",
		name,
	).Scan(&v.ID, &v.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.ErrStorage{Op: "find vendor", Err: err}
	}
	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &v, nil
}

// getOrCreateVendor implements the atomic get-or-create: lookup, insert
// when absent, and on a uniqueness violation (concurrent creator won the
// race) re-read instead of failing.
func getOrCreateVendor(ctx context.Context, q querier, name string) (*domain.Vendor, error) {
	if v, err := findVendorByName(ctx, q, name); err != nil || v != nil {
		return v, err
	}

	v := &domain.Vendor{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := q.ExecContext(ctx,
		"INSERT INTO vendors (id, name, created_at) VALUES (?, ?, ?)",
		v.ID, v.Name, v.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return findVendorByName(ctx, q, name)
		}
		return nil, &domain.ErrStorage{Op: "create vendor", Err: err}
	}
	return v, nil
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// ListSubscriptionViews returns all subscriptions joined with their
// vendor name, highest confidence first.
func (s *Store) ListSubscriptionViews(ctx context.Context) ([]domain.SubscriptionView, error) {
	query := `
		SELECT sub.id, v.name, sub.interval, sub.status, sub.next_expected, sub.confidence
		FROM subscriptions sub
		JOIN vendors v ON v.id = sub.vendor_id
		ORDER BY sub.confidence DESC, v.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "list subscriptions", Err: err}
	}
	defer rows.Close()

	views := []domain.SubscriptionView{}
	for rows.Next() {
		var view domain.SubscriptionView
		var nextExpected sql.NullString
		if err := rows.Scan(&view.ID, &view.VendorName, &view.Interval,
			&view.Status, &nextExpected, &view.Confidence); err != nil {
			return nil, &domain.ErrStorage{Op: "list subscriptions", Err: err}
		}
		view.NextExpected = nextExpected.String
		views = append(views, view)
	}
	return views, rows.Err()
}

// GetSubscription returns a subscription by id, or ErrNotFound.
func (s *Store) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	return getSubscription(ctx, s.db, "id", id)
}

func getSubscription(ctx context.Context, q querier, column, value string) (*domain.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT id, vendor_id, status, interval, confidence, first_seen, last_seen, next_expected
		FROM subscriptions WHERE %s = ?`, column)

	var sub domain.Subscription
	var firstSeen, lastSeen string
	var nextExpected sql.NullString
	err := q.QueryRowContext(ctx, query, value).Scan(
		&sub.ID, &sub.VendorID, &sub.Status, &sub.Interval,
		&sub.Confidence, &firstSeen, &lastSeen, &nextExpected,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.ErrStorage{Op: "get subscription", Err: err}
	}

	sub.FirstSeen, _ = time.Parse(time.RFC3339, firstSeen)
	sub.LastSeen, _ = time.Parse(time.RFC3339, lastSeen)
	sub.NextExpected = nextExpected.String
	return &sub, nil
}

// UpdateSubscription applies a user edit (status/interval/next_expected)
// and returns the updated row. This is the only path that writes status.
func (s *Store) UpdateSubscription(ctx context.Context, id string, update port.SubscriptionUpdate) (*domain.Subscription, error) {
	existing, err := s.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, &domain.ErrNotFound{Resource: "subscription", ID: id}
	}

	var sets []string
	var args []any
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.Interval != nil {
		sets = append(sets, "interval = ?")
		args = append(args, string(*update.Interval))
	}
	if update.NextExpected != nil {
		sets = append(sets, "next_expected = ?")
		args = append(args, nullString(*update.NextExpected))
	}
	if len(sets) == 0 {
		return existing, nil
	}

	args = append(args, id)
	query := "UPDATE subscriptions SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, &domain.ErrStorage{Op: "update subscription", Err: err}
	}

	return s.GetSubscription(ctx, id)
}

// =============================================================================
// INVOICES
// =============================================================================

// InsertInvoice persists a parsed invoice, assigning an id when missing.
func (s *Store) InsertInvoice(ctx context.Context, inv *domain.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	var rawJSON sql.NullString
	if inv.Raw != nil {
		b, err := json.Marshal(inv.Raw)
		if err != nil {
			return &domain.ErrStorage{Op: "insert invoice", Err: err}
		}
		rawJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, vendor_id, total, invoice_date, billing_period, raw_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		nullString(inv.VendorID),
		nullAmount(inv.Total),
		nullString(inv.InvoiceDate),
		nullString(inv.BillingPeriod),
		rawJSON,
		inv.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return &domain.ErrStorage{Op: "insert invoice", Err: err}
	}
	return nil
}

// =============================================================================
// DETECTION TRANSACTION
// =============================================================================

// WithDetectionTx runs fn inside a single database transaction. An error
// from fn rolls everything back.
func (s *Store) WithDetectionTx(ctx context.Context, fn func(tx port.DetectionTx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.ErrStorage{Op: "begin detection tx", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&detectionTx{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &domain.ErrStorage{Op: "commit detection tx", Err: err}
	}
	return nil
}

type detectionTx struct {
	tx *sql.Tx
}

func (d *detectionTx) GetOrCreateVendor(ctx context.Context, name string) (*domain.Vendor, error) {
	return getOrCreateVendor(ctx, d.tx, name)
}

func (d *detectionTx) LinkTransactionVendor(ctx context.Context, transactionID, vendorID string) error {
	_, err := d.tx.ExecContext(ctx,
		"UPDATE transactions SET vendor_id = ? WHERE id = ?",
		vendorID, transactionID,
	)
	if err != nil {
		return &domain.ErrStorage{Op: "link transaction vendor", Err: err}
	}
	return nil
}

func (d *detectionTx) FindSubscriptionByVendor(ctx context.Context, vendorID string) (*domain.Subscription, error) {
	return getSubscription(ctx, d.tx, "vendor_id", vendorID)
}

func (d *detectionTx) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}

	_, err := d.tx.ExecContext(ctx, `
		INSERT INTO subscriptions (id, vendor_id, status, interval, confidence, first_seen, last_seen, next_expected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.VendorID, string(sub.Status), string(sub.Interval), sub.Confidence,
		sub.FirstSeen.Format(time.RFC3339),
		sub.LastSeen.Format(time.RFC3339),
		nullString(sub.NextExpected),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &domain.ErrConflict{Resource: "subscription", Key: sub.VendorID}
		}
		return &domain.ErrStorage{Op: "create subscription", Err: err}
	}
	return nil
}

func (d *detectionTx) RefreshSubscription(ctx context.Context, id string, interval domain.BillingInterval, confidence float64, nextExpected string, lastSeen time.Time) error {
	// Status is deliberately absent from the SET list: detection never
	// reverts a user-edited status.
	_, err := d.tx.ExecContext(ctx, `
		UPDATE subscriptions
		SET interval = ?, confidence = ?, next_expected = ?, last_seen = ?
		WHERE id = ?`,
		string(interval), confidence, nullString(nextExpected),
		lastSeen.Format(time.RFC3339), id,
	)
	if err != nil {
		return &domain.ErrStorage{Op: "refresh subscription", Err: err}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullAmount(a decimal.NullDecimal) sql.NullString {
	if !a.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: a.Decimal.String(), Valid: true}
}

func parseAmount(s sql.NullString) decimal.NullDecimal {
	if !s.Valid || s.String == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
