package detect

import (
	"time"

	"github.com/subtrack/subtrack-go/internal/domain"
)

// Group partitions records into per-merchant candidate groups within the
// trailing detection window ending at asOf. Records with no merchant
// name, an unparseable date, a date older than the window, or matching a
// noise filter are dropped. Input records are not mutated; insertion
// order within a group follows input order.
func (d *Detector) Group(records []domain.TransactionRecord, asOf time.Time) map[string][]domain.TransactionRecord {
	cutoff := asOf.AddDate(0, 0, -d.cfg.WindowDays)

	groups := make(map[string][]domain.TransactionRecord)
	for i := range records {
		rec := &records[i]

		key := NormalizeMerchant(displayName(rec))
		if key == "" {
			continue
		}

		date, err := time.Parse(domain.DateLayout, rec.Date)
		if err != nil {
			continue
		}
		if date.Before(cutoff) {
			continue
		}

		if d.IsNoise(rec) {
			continue
		}

		groups[key] = append(groups[key], *rec)
	}

	return groups
}
