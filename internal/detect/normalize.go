package detect

import (
	"strings"

	"github.com/subtrack/subtrack-go/internal/domain"
)

// NormalizeMerchant canonicalizes a merchant display name into a grouping
// key: lowercased, internal whitespace runs collapsed, trimmed.
func NormalizeMerchant(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// displayName returns the record's merchant descriptor, falling back to
// the metadata name field when merchant_name is absent.
func displayName(rec *domain.TransactionRecord) string {
	if rec.MerchantName != "" {
		return rec.MerchantName
	}
	if rec.Metadata != nil {
		return rec.Metadata.Name
	}
	return ""
}

// IsNoise reports whether a record should be excluded from candidate
// grouping: its normalized merchant name contains a blacklisted term, or
// its metadata carries an excluded primary category.
func (d *Detector) IsNoise(rec *domain.TransactionRecord) bool {
	key := NormalizeMerchant(displayName(rec))
	if key != "" {
		for _, term := range d.cfg.NoiseTerms {
			if strings.Contains(key, term) {
				return true
			}
		}
	}

	if rec.Metadata != nil && rec.Metadata.PrimaryCategory != "" {
		category := strings.ToLower(rec.Metadata.PrimaryCategory)
		for _, excluded := range d.cfg.ExcludedCategories {
			if category == excluded {
				return true
			}
		}
	}

	return false
}
