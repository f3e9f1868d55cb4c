package detect

import (
	"sort"
	"time"

	"github.com/subtrack/subtrack-go/internal/domain"
)

// Classification is the cadence estimator's verdict for a candidate
// group.
type Classification struct {
	Interval   domain.BillingInterval
	AvgGapDays float64
	// NextExpected is the projected next charge date, set only for
	// monthly classifications.
	NextExpected string
}

// Unclassified is the rejection verdict.
var Unclassified = Classification{Interval: domain.IntervalUnknown}

// EstimateInterval classifies the cadence of a group's charge dates.
// Dates are calendar-date strings; unparseable entries are skipped and
// duplicates are collapsed. Fewer than MinOccurrences distinct dates, or
// an average gap outside the monthly band, yields Unclassified.
func (d *Detector) EstimateInterval(dates []string) Classification {
	seen := make(map[string]bool, len(dates))
	parsed := make([]time.Time, 0, len(dates))
	for _, raw := range dates {
		if seen[raw] {
			continue
		}
		t, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			continue
		}
		seen[raw] = true
		parsed = append(parsed, t)
	}

	if len(parsed) < d.cfg.MinOccurrences {
		return Unclassified
	}

	sort.Slice(parsed, func(i, j int) bool { return parsed[i].Before(parsed[j]) })

	total := 0.0
	for i := 1; i < len(parsed); i++ {
		total += parsed[i].Sub(parsed[i-1]).Hours() / 24
	}
	avg := total / float64(len(parsed)-1)

	lo := float64(d.cfg.TargetIntervalDays - d.cfg.IntervalToleranceDays)
	hi := float64(d.cfg.TargetIntervalDays + d.cfg.IntervalToleranceDays)
	if avg < lo || avg > hi {
		return Unclassified
	}

	last := parsed[len(parsed)-1]
	return Classification{
		Interval:     domain.IntervalMonthly,
		AvgGapDays:   avg,
		NextExpected: last.AddDate(0, 0, d.cfg.TargetIntervalDays).Format(domain.DateLayout),
	}
}
