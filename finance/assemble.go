package finance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AutoCleaningPrefix marks auto-generated cleaning expense lines. Together
// with the reservation ID it forms the stable key that keeps re-assembly
// idempotent.
const AutoCleaningPrefix = "Cleaning fee - "

// minLongStayNights is the calendar-mode threshold for recommending that a
// boundary-spanning reservation stays in calendar accounting.
const minLongStayNights = 14

// ExpenseRecord is an expense/upsell row as fetched from its source, before
// it becomes a statement line item. Records with no property attribution are
// assumed pre-filtered for the statement's properties by the fetch
// collaborator; the engine cannot verify that and does not re-filter.
type ExpenseRecord struct {
	ID          uint
	PropertyID  uint
	Date        time.Time
	Description string
	Category    string
	Amount      decimal.Decimal
	Type        string
}

// Assemble builds a statement's canonical line items from its reservations
// and the fetched expense records, then refreshes warnings and totals. Safe
// to call on a fresh statement or on one that already has items: existing
// items are matched by their stable keys and never duplicated.
func Assemble(st *Statement, records []ExpenseRecord, rules map[uint]ResolvedRules) {
	ensureRevenueLines(st, rules)
	ensureExpenseLines(st, records)
	ensureAutoCleaningLines(st, rules)
	Refresh(st, rules)
}

// Refresh recomputes warnings and totals from the statement's current
// reservations and items. Every mutation path funnels through here; totals
// are never adjusted by delta arithmetic.
func Refresh(st *Statement, rules map[uint]ResolvedRules) {
	syncRevenueLines(st, rules)
	st.Totals = AggregateTotals(st.Reservations, st.Items, rules)
	st.CleaningMismatchWarning = cleaningMismatch(st, rules)
	st.ShouldConvertToCalendar, st.OverlappingReservations = calendarRecommendation(st)
}

// ensureRevenueLines adds one revenue line per in-scope reservation that does
// not already have one, keyed by reservation ID.
func ensureRevenueLines(st *Statement, rules map[uint]ResolvedRules) {
	existing := make(map[string]bool)
	for _, item := range st.Items {
		if item.Type == ItemRevenue && item.ReservationID != "" {
			existing[item.ReservationID] = true
		}
	}
	for _, r := range st.Reservations {
		if !r.InScope() || existing[r.ID] {
			continue
		}
		b := CalculatePayout(r, ruleFor(rules, r.PropertyID))
		st.Items = append(st.Items, LineItem{
			ID:            uuid.NewString(),
			PropertyID:    r.PropertyID,
			Type:          ItemRevenue,
			Date:          dayStart(r.CheckOut),
			Description:   fmt.Sprintf("%s (%s - %s)", r.GuestName, r.CheckIn.Format("Jan 2"), r.CheckOut.Format("Jan 2, 2006")),
			Amount:        RoundMoney(b.GrossPayout),
			ReservationID: r.ID,
		})
	}
}

// syncRevenueLines keeps existing revenue lines aligned with their
// reservations after edits, and drops lines whose reservation was removed.
func syncRevenueLines(st *Statement, rules map[uint]ResolvedRules) {
	kept := st.Items[:0]
	for _, item := range st.Items {
		if item.Type == ItemRevenue && item.ReservationID != "" {
			r := st.findReservation(item.ReservationID)
			if r == nil {
				continue
			}
			b := CalculatePayout(*r, ruleFor(rules, r.PropertyID))
			item.Amount = RoundMoney(b.GrossPayout)
		}
		kept = append(kept, item)
	}
	st.Items = kept
}

// ensureExpenseLines converts fetched expense records into line items, keyed
// by the source record ID so re-assembly never duplicates them.
func ensureExpenseLines(st *Statement, records []ExpenseRecord) {
	existing := make(map[uint]bool)
	for _, item := range st.Items {
		if item.ExpenseID != 0 {
			existing[item.ExpenseID] = true
		}
	}
	for _, rec := range records {
		if rec.ID != 0 && existing[rec.ID] {
			continue
		}
		itemType := rec.Type
		if itemType != ItemUpsell {
			itemType = ItemExpense
		}
		st.Items = append(st.Items, LineItem{
			ID:          uuid.NewString(),
			PropertyID:  rec.PropertyID,
			Type:        itemType,
			Date:        dayStart(rec.Date),
			Description: rec.Description,
			Category:    rec.Category,
			Amount:      rec.Amount.Abs(),
			ExpenseID:   rec.ID,
		})
	}
}

// ensureAutoCleaningLines synthesizes hidden-by-default cleaning expense
// lines for pass-through listings, one per in-scope reservation. The stable
// key (reservation ID + fixed description prefix) makes this idempotent.
func ensureAutoCleaningLines(st *Statement, rules map[uint]ResolvedRules) {
	existing := make(map[string]bool)
	for _, item := range st.Items {
		if item.AutoGenerated && item.ReservationID != "" {
			existing[item.ReservationID] = true
		}
	}
	for _, r := range st.Reservations {
		if !r.InScope() || existing[r.ID] {
			continue
		}
		rule := ruleFor(rules, r.PropertyID)
		if !rule.CleaningFeePassThrough {
			continue
		}
		b := CalculatePayout(r, rule)
		if b.CleaningFeeDeducted.IsZero() {
			continue
		}
		st.Items = append(st.Items, LineItem{
			ID:            uuid.NewString(),
			PropertyID:    r.PropertyID,
			Type:          ItemExpense,
			Date:          dayStart(r.CheckOut),
			Description:   AutoCleaningPrefix + r.GuestName,
			Category:      "cleaning",
			Amount:        b.CleaningFeeDeducted,
			Hidden:        true,
			HiddenReason:  HiddenLLCover,
			ReservationID: r.ID,
			AutoGenerated: true,
		})
	}
}

// cleaningMismatch flags a pass-through property whose cleaning expense line
// count differs from its in-scope reservation count, a proxy for missing or
// extra cleaning charges.
func cleaningMismatch(st *Statement, rules map[uint]ResolvedRules) bool {
	for _, propertyID := range st.PropertyIDs {
		if !ruleFor(rules, propertyID).CleaningFeePassThrough {
			continue
		}
		reservations := 0
		for _, r := range st.Reservations {
			if r.InScope() && r.PropertyID == propertyID {
				reservations++
			}
		}
		cleaningLines := 0
		for _, item := range st.Items {
			if item.PropertyID == propertyID && item.Type == ItemExpense && isCleaningCategory(item.Category) {
				cleaningLines++
			}
		}
		if cleaningLines != reservations {
			return true
		}
	}
	return false
}

// calendarRecommendation computes the calendar-conversion warning plus the
// list of period-overlapping reservation IDs.
//
// Checkout mode: guests were in the property during the period but none of
// them checked out inside it, so revenue would read $0 despite activity.
// Calendar mode: a boundary-spanning stay of 14+ nights suggests staying in
// calendar accounting rather than trimming at the boundary.
func calendarRecommendation(st *Statement) (bool, []string) {
	overlapping := []string{}
	flag := false

	anyCheckedOut := false
	for _, r := range st.Reservations {
		if r.Status == "cancelled" {
			continue
		}
		if !st.overlapsPeriod(r) {
			continue
		}
		overlapping = append(overlapping, r.ID)
		if st.CalculationType == CalculationCalendar {
			spansBoundary := dayStart(r.CheckIn).Before(dayStart(st.WeekStartDate)) ||
				dayStart(r.CheckOut).After(dayStart(st.WeekEndDate))
			if spansBoundary && r.Nights() >= minLongStayNights {
				flag = true
			}
		} else if st.checkedOutInPeriod(r) {
			anyCheckedOut = true
		}
	}
	if st.CalculationType == CalculationCheckout {
		flag = len(overlapping) > 0 && !anyCheckedOut
	}
	return flag, overlapping
}
