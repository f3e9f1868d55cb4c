package detect

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AmountsConsistent decides whether a group's charge amounts look like a
// repeating subscription price rather than coincidental same-merchant
// purchases. Records whose amount failed to parse are excluded from the
// sample; with fewer than MinOccurrences numeric amounts the check
// fails open (sample too small to judge).
//
// The gate is a dual threshold on the max deviation from the median:
// within AmountAbsTolerance currency units, or within AmountRelTolerance
// of the median. Either suffices, tolerating small fixed fees on both
// low- and high-value subscriptions.
func (d *Detector) AmountsConsistent(amounts []decimal.NullDecimal) bool {
	numeric := make([]decimal.Decimal, 0, len(amounts))
	for _, a := range amounts {
		if a.Valid {
			numeric = append(numeric, a.Decimal)
		}
	}
	if len(numeric) < d.cfg.MinOccurrences {
		return true
	}

	sort.Slice(numeric, func(i, j int) bool { return numeric[i].LessThan(numeric[j]) })
	mid := numeric[len(numeric)/2]
	if mid.IsZero() {
		return true
	}

	spread := decimal.Zero
	for _, a := range numeric {
		if dev := a.Sub(mid).Abs(); dev.GreaterThan(spread) {
			spread = dev
		}
	}

	if spread.LessThanOrEqual(decimal.NewFromFloat(d.cfg.AmountAbsTolerance)) {
		return true
	}
	relative := spread.Div(mid.Abs())
	return relative.LessThanOrEqual(decimal.NewFromFloat(d.cfg.AmountRelTolerance))
}
