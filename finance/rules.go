package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPMFeePercentage is the commission rate substituted when a listing's
// configuration cannot be found while building a combined statement.
const DefaultPMFeePercentage = 15

// ListingConfig is a listing's financial configuration as owned by the
// listing record. Read-only to the engine.
type ListingConfig struct {
	PropertyID             uint
	PMFeePercentage        decimal.Decimal
	IsCohostOnAirbnb       bool
	DisregardTax           bool
	AirbnbPassThroughTax   bool
	CleaningFeePassThrough bool
	WaiveCommission        bool
	WaiveCommissionUntil   *time.Time
	CleaningFee            decimal.Decimal
}

// ResolvedRules is a ListingConfig evaluated against a statement period:
// the waiver flag is collapsed into whether it is active for that period.
type ResolvedRules struct {
	ListingConfig
	CommissionWaived bool
}

// DefaultConfig is the no-frills fallback rule-set: flat commission, no
// co-hosting, no pass-through, tax included.
func DefaultConfig(propertyID uint) ListingConfig {
	return ListingConfig{
		PropertyID:      propertyID,
		PMFeePercentage: decimal.NewFromInt(DefaultPMFeePercentage),
	}
}

// ResolveRules evaluates a listing's configuration for the statement ending
// at periodEnd. The waiver is active when commission waiving is on and either
// has no expiry or the period end (taken at start of day) falls on or before
// the expiry's end of day.
func ResolveRules(cfg ListingConfig, periodEnd time.Time) ResolvedRules {
	waived := cfg.WaiveCommission
	if waived && cfg.WaiveCommissionUntil != nil {
		waived = !dayStart(periodEnd).After(dayEnd(*cfg.WaiveCommissionUntil))
	}
	return ResolvedRules{ListingConfig: cfg, CommissionWaived: waived}
}

// ResolveAll resolves rules for every requested property. A property with no
// known configuration gets the default rule-set instead of failing: a
// combined statement must never abort wholesale because one member listing is
// misconfigured. Single-property callers check membership themselves before
// calling.
func ResolveAll(configs map[uint]ListingConfig, propertyIDs []uint, periodEnd time.Time) map[uint]ResolvedRules {
	resolved := make(map[uint]ResolvedRules, len(propertyIDs))
	for _, id := range propertyIDs {
		cfg, ok := configs[id]
		if !ok {
			cfg = DefaultConfig(id)
		}
		resolved[id] = ResolveRules(cfg, periodEnd)
	}
	return resolved
}
