package finance

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// cleaningCategories are expense categories already captured inside the
// per-reservation cleaning deduction when pass-through is on.
var cleaningCategories = []string{"cleaning", "supplies"}

func isCleaningCategory(category string) bool {
	return slices.Contains(cleaningCategories, strings.ToLower(category))
}

// AggregateTotals folds payout breakdowns and visible line items into
// statement totals. The fold is strictly sequential so the single terminal
// rounding step is deterministic; nothing in here may run concurrently.
func AggregateTotals(reservations []Reservation, items []LineItem, rules map[uint]ResolvedRules) Totals {
	var t Totals
	t.TotalRevenue = decimal.Zero
	t.PMCommission = decimal.Zero
	t.GrossPayoutSum = decimal.Zero
	t.TotalUpsells = decimal.Zero
	t.TotalExpenses = decimal.Zero

	for _, r := range reservations {
		if !r.InScope() {
			continue
		}
		b := CalculatePayout(r, ruleFor(rules, r.PropertyID))
		t.TotalRevenue = t.TotalRevenue.Add(b.ClientRevenue)
		t.PMCommission = t.PMCommission.Add(b.CommissionDeducted)
		t.GrossPayoutSum = t.GrossPayoutSum.Add(b.GrossPayout)
	}

	for _, item := range items {
		if item.Hidden {
			continue
		}
		switch item.Type {
		case ItemUpsell:
			t.TotalUpsells = t.TotalUpsells.Add(item.Amount.Abs())
		case ItemExpense:
			// Cleaning/supplies costs are already inside the per-reservation
			// cleaning deduction for pass-through listings; charging them
			// again would double-count.
			if isCleaningCategory(item.Category) && ruleFor(rules, item.PropertyID).CleaningFeePassThrough {
				continue
			}
			t.TotalExpenses = t.TotalExpenses.Add(item.Amount.Abs())
		}
	}

	// One rounding step per total, at the end of the fold. OwnerPayout is
	// derived from the unrounded sums first so large statements never
	// accumulate cent drift.
	t.OwnerPayout = RoundMoney(t.GrossPayoutSum.Add(t.TotalUpsells).Sub(t.TotalExpenses))
	t.TotalRevenue = RoundMoney(t.TotalRevenue)
	t.PMCommission = RoundMoney(t.PMCommission)
	t.GrossPayoutSum = RoundMoney(t.GrossPayoutSum)
	t.TotalUpsells = RoundMoney(t.TotalUpsells)
	t.TotalExpenses = RoundMoney(t.TotalExpenses)
	return t
}

// ruleFor falls back to the default rule-set for properties the resolver was
// never asked about, mirroring the combined-statement substitution rule.
func ruleFor(rules map[uint]ResolvedRules, propertyID uint) ResolvedRules {
	if r, ok := rules[propertyID]; ok {
		return r
	}
	return ResolvedRules{ListingConfig: DefaultConfig(propertyID)}
}
