package detect

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtrack/subtrack-go/internal/domain"
)

func mustAmount(t *testing.T, v string) decimal.NullDecimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func rec(merchant, date string) domain.TransactionRecord {
	return domain.TransactionRecord{MerchantName: merchant, Date: date}
}

func TestNormalizeMerchant(t *testing.T) {
	assert.Equal(t, "netflix", NormalizeMerchant("Netflix"))
	assert.Equal(t, "netflix", NormalizeMerchant("  NETFLIX  "))
	assert.Equal(t, "adobe inc.", NormalizeMerchant("Adobe   Inc."))
	assert.Equal(t, "", NormalizeMerchant("   "))
}

func TestIsNoiseBlacklistedTerm(t *testing.T) {
	d := New(DefaultConfig())

	noisy := rec("Starbucks Store #1234", "2026-08-01")
	assert.True(t, d.IsNoise(&noisy))

	clean := rec("Netflix", "2026-08-01")
	assert.False(t, d.IsNoise(&clean))
}

func TestIsNoiseExcludedCategory(t *testing.T) {
	d := New(DefaultConfig())

	income := rec("ACME Corp Payroll", "2026-08-01")
	income.Metadata = &domain.RecordMetadata{PrimaryCategory: "INCOME"}
	assert.True(t, d.IsNoise(&income), "category match is case-insensitive")

	entertainment := rec("Netflix", "2026-08-01")
	entertainment.Metadata = &domain.RecordMetadata{PrimaryCategory: "entertainment"}
	assert.False(t, d.IsNoise(&entertainment))
}

func TestIsNoiseMetadataNameFallback(t *testing.T) {
	d := New(DefaultConfig())

	r := domain.TransactionRecord{
		Date:     "2026-08-01",
		Metadata: &domain.RecordMetadata{Name: "UBER TRIP 8831"},
	}
	assert.True(t, d.IsNoise(&r))
}

func TestGroupMergesCaseAndWhitespaceVariants(t *testing.T) {
	d := New(DefaultConfig())
	asOf := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	groups := d.Group([]domain.TransactionRecord{
		rec("Netflix", "2026-08-01"),
		rec("NETFLIX", "2026-07-02"),
		rec("netflix  ", "2026-06-02"),
	}, asOf)

	require.Len(t, groups, 1)
	assert.Len(t, groups["netflix"], 3)
}

func TestGroupWindowCutoff(t *testing.T) {
	d := New(DefaultConfig())
	asOf := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	cutoff := asOf.AddDate(0, 0, -d.Config().WindowDays)

	inside := rec("Netflix", cutoff.Format(domain.DateLayout))
	outside := rec("Netflix", cutoff.AddDate(0, 0, -1).Format(domain.DateLayout))

	groups := d.Group([]domain.TransactionRecord{inside, outside}, asOf)
	require.Len(t, groups["netflix"], 1, "a record exactly on the cutoff stays, one day older is dropped")
}

func TestGroupSkipsDirtyRecords(t *testing.T) {
	d := New(DefaultConfig())
	asOf := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	groups := d.Group([]domain.TransactionRecord{
		rec("", "2026-08-01"),
		rec("Netflix", "not-a-date"),
		rec("Netflix", ""),
	}, asOf)
	assert.Empty(t, groups)
}

func TestEstimateIntervalMonthly(t *testing.T) {
	d := New(DefaultConfig())

	cls := d.EstimateInterval([]string{"2026-06-01", "2026-07-01", "2026-08-01"})
	assert.Equal(t, domain.IntervalMonthly, cls.Interval)
	assert.InDelta(t, 30.5, cls.AvgGapDays, 1.0)
	assert.Equal(t, "2026-08-31", cls.NextExpected)
}

func TestEstimateIntervalBandEdges(t *testing.T) {
	d := New(DefaultConfig())

	cases := []struct {
		name    string
		gap     int
		monthly bool
	}{
		{"gap 26 below band", 26, false},
		{"gap 27 lower edge", 27, true},
		{"gap 33 upper edge", 33, true},
		{"gap 34 above band", 34, false},
	}
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dates := []string{
				base.Format(domain.DateLayout),
				base.AddDate(0, 0, tc.gap).Format(domain.DateLayout),
				base.AddDate(0, 0, 2*tc.gap).Format(domain.DateLayout),
			}
			cls := d.EstimateInterval(dates)
			if tc.monthly {
				assert.Equal(t, domain.IntervalMonthly, cls.Interval)
			} else {
				assert.Equal(t, domain.IntervalUnknown, cls.Interval)
			}
		})
	}
}

func TestEstimateIntervalRequiresDistinctDates(t *testing.T) {
	d := New(DefaultConfig())

	// Two distinct dates plus a duplicate do not qualify.
	cls := d.EstimateInterval([]string{"2026-06-01", "2026-07-01", "2026-07-01"})
	assert.Equal(t, domain.IntervalUnknown, cls.Interval)
}

func TestEstimateIntervalUnorderedInput(t *testing.T) {
	d := New(DefaultConfig())

	cls := d.EstimateInterval([]string{"2026-08-01", "2026-06-02", "2026-07-02"})
	assert.Equal(t, domain.IntervalMonthly, cls.Interval)
}

func TestAmountsConsistentTightSpread(t *testing.T) {
	d := New(DefaultConfig())

	amounts := []decimal.NullDecimal{
		mustAmount(t, "15.99"),
		mustAmount(t, "15.99"),
		mustAmount(t, "16.49"),
	}
	assert.True(t, d.AmountsConsistent(amounts))
}

func TestAmountsConsistentWideSpread(t *testing.T) {
	d := New(DefaultConfig())

	amounts := []decimal.NullDecimal{
		mustAmount(t, "5.50"),
		mustAmount(t, "45.00"),
		mustAmount(t, "5.75"),
	}
	assert.False(t, d.AmountsConsistent(amounts))
}

func TestAmountsConsistentRelativeTolerance(t *testing.T) {
	d := New(DefaultConfig())

	// Spread 20.00 exceeds the absolute threshold but stays within 25%
	// of the 100.00 median.
	amounts := []decimal.NullDecimal{
		mustAmount(t, "80.00"),
		mustAmount(t, "100.00"),
		mustAmount(t, "100.00"),
	}
	assert.True(t, d.AmountsConsistent(amounts))
}

func TestAmountsConsistentSmallSampleFailsOpen(t *testing.T) {
	d := New(DefaultConfig())

	amounts := []decimal.NullDecimal{
		mustAmount(t, "5.00"),
		mustAmount(t, "500.00"),
		{}, // unparseable amount drops out of the sample
	}
	assert.True(t, d.AmountsConsistent(amounts))
}

func TestAmountsConsistentZeroMedian(t *testing.T) {
	d := New(DefaultConfig())

	amounts := []decimal.NullDecimal{
		mustAmount(t, "-10.00"),
		mustAmount(t, "0.00"),
		mustAmount(t, "10.00"),
	}
	assert.True(t, d.AmountsConsistent(amounts))
}
