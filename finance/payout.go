package finance

import "github.com/shopspring/decimal"

// CalculatePayout turns one reservation plus its listing's resolved rules
// into a payout breakdown. Pure: no I/O, no clock, no globals.
//
// Order matters: revenue selection, co-host exclusion, commission, cleaning
// pass-through, tax, then the gross payout composition.
func CalculatePayout(r Reservation, rules ResolvedRules) PayoutBreakdown {
	var b PayoutBreakdown

	// Raw revenue: the detailed finance figure when present, else the gross
	// booking amount. Calendar-mode proration happens upstream and arrives
	// already applied to ClientRevenue.
	rawRevenue := r.GrossAmount
	if r.HasDetailedFinance {
		rawRevenue = r.ClientRevenue
	}

	// Co-hosted Airbnb bookings pay the owner directly, so the property's
	// revenue here is zero. Commission is still computed against the raw
	// figure below.
	cohosted := r.IsAirbnb() && rules.IsCohostOnAirbnb
	if cohosted {
		b.ClientRevenue = decimal.Zero
	} else {
		b.ClientRevenue = rawRevenue
	}

	// Commission: an explicit luxury-lodging fee on a custom reservation is
	// taken verbatim; otherwise rate times raw revenue. An active waiver
	// zeroes the deduction but the fee stays visible on the breakdown.
	if r.IsCustom && r.LuxuryLodgingFee != nil {
		b.PMCommission = *r.LuxuryLodgingFee
	} else {
		b.PMCommission = rawRevenue.Mul(rules.PMFeePercentage).Div(hundred)
	}
	if rules.CommissionWaived {
		b.CommissionDeducted = decimal.Zero
	} else {
		b.CommissionDeducted = b.PMCommission
	}

	// Cleaning pass-through: reverse the markup out of the guest-paid fee.
	// Reservation-level override wins over the listing default.
	if rules.CleaningFeePassThrough {
		guestPaid := rules.CleaningFee
		if r.CleaningFee != nil {
			guestPaid = *r.CleaningFee
		}
		b.CleaningFeeDeducted = ReverseCleaningFee(guestPaid, rules.PMFeePercentage)
	}

	// Tax rides along unless the listing disregards it, and for Airbnb only
	// when the listing passes it through. Without detailed finance there is
	// no tax figure to add.
	taxIncluded := !rules.DisregardTax && (!r.IsAirbnb() || rules.AirbnbPassThroughTax)
	if taxIncluded && r.HasDetailedFinance {
		b.TaxAdded = r.ClientTaxResponsibility
	}

	switch {
	case r.IsCustom:
		// User-entered gross amount overrides all derived math.
		b.GrossPayout = r.GrossAmount
	case cohosted:
		// Revenue is zero; only the commission and cleaning debits remain.
		b.GrossPayout = b.CommissionDeducted.Neg().Sub(b.CleaningFeeDeducted)
	default:
		b.GrossPayout = b.ClientRevenue.
			Sub(b.CommissionDeducted).
			Add(b.TaxAdded).
			Sub(b.CleaningFeeDeducted)
	}

	return b
}
