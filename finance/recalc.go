package finance

import "github.com/shopspring/decimal"

// RecalcResult reports what a view-time recalculation changed.
type RecalcResult struct {
	Changed        bool
	PreviousPayout decimal.Decimal
	CurrentPayout  decimal.Decimal
}

// Recalculate re-derives a statement's totals from the listing rules as they
// are configured now, not as they were when the statement was generated, so
// rule changes made after generation show up without regenerating. Changed is
// set only when the owner payout moved by more than one cent, which is the
// caller's signal to write the statement back; smaller drift is ignored to
// avoid a write on every read.
func Recalculate(st *Statement, rules map[uint]ResolvedRules) RecalcResult {
	previous := st.OwnerPayout
	ensureAutoCleaningLines(st, rules)
	Refresh(st, rules)
	return RecalcResult{
		Changed:        st.OwnerPayout.Sub(previous).Abs().GreaterThan(WriteBackTolerance),
		PreviousPayout: previous,
		CurrentPayout:  st.OwnerPayout,
	}
}
