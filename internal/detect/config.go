// Package detect implements the subscription inference core: merchant
// normalization, noise filtering, candidate grouping, cadence estimation
// and amount-consistency checks. Everything here is pure computation over
// in-memory records; persistence and merging live in the service layer.
package detect

// Config holds the detection heuristic's tunables. All thresholds are
// fixed at construction time rather than per call.
type Config struct {
	// NoiseTerms are case-insensitive substrings that disqualify a
	// merchant name (coffee shops, rideshare, marketplaces — places that
	// bill often but are not subscriptions).
	NoiseTerms []string

	// ExcludedCategories are feed primary categories whose records never
	// represent subscriptions (income, transfers, loan payments, ...).
	ExcludedCategories []string

	// WindowDays is the trailing window records must fall inside to be
	// considered.
	WindowDays int

	// MinOccurrences is the minimum group size (and minimum distinct
	// dates) required before a group is classified.
	MinOccurrences int

	// TargetIntervalDays and IntervalToleranceDays define the monthly
	// band: a group is monthly when its average gap lies within
	// target±tolerance. The 30±3 band absorbs calendar-month length
	// variance plus weekend/holiday drift.
	TargetIntervalDays    int
	IntervalToleranceDays int

	// AmountAbsTolerance and AmountRelTolerance gate amount consistency:
	// the max deviation from the median must stay within the absolute
	// tolerance (currency units) or the relative one (fraction of the
	// median). Either suffices.
	AmountAbsTolerance float64
	AmountRelTolerance float64
}

// DefaultConfig returns the production detection configuration.
func DefaultConfig() Config {
	return Config{
		NoiseTerms: []string{
			"starbucks",
			"uber",
			"lyft",
			"mcdonald",
			"amazon mktp",
			"7-eleven",
		},
		ExcludedCategories: []string{
			"income",
			"transfer_in",
			"transfer_out",
			"loan_payments",
			"bank_fees",
			"savings",
		},
		WindowDays:            150,
		MinOccurrences:        3,
		TargetIntervalDays:    30,
		IntervalToleranceDays: 3,
		AmountAbsTolerance:    5.0,
		AmountRelTolerance:    0.25,
	}
}

// Detector evaluates transaction records against a fixed Config.
type Detector struct {
	cfg Config
}

// New creates a Detector. Zero-valued config fields fall back to the
// defaults so partial overrides stay safe.
func New(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.NoiseTerms == nil {
		cfg.NoiseTerms = def.NoiseTerms
	}
	if cfg.ExcludedCategories == nil {
		cfg.ExcludedCategories = def.ExcludedCategories
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = def.WindowDays
	}
	if cfg.MinOccurrences <= 0 {
		cfg.MinOccurrences = def.MinOccurrences
	}
	if cfg.TargetIntervalDays <= 0 {
		cfg.TargetIntervalDays = def.TargetIntervalDays
	}
	if cfg.IntervalToleranceDays <= 0 {
		cfg.IntervalToleranceDays = def.IntervalToleranceDays
	}
	if cfg.AmountAbsTolerance <= 0 {
		cfg.AmountAbsTolerance = def.AmountAbsTolerance
	}
	if cfg.AmountRelTolerance <= 0 {
		cfg.AmountRelTolerance = def.AmountRelTolerance
	}
	return &Detector{cfg: cfg}
}

// Config returns the detector's effective configuration.
func (d *Detector) Config() Config {
	return d.cfg
}
