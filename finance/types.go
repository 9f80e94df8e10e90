package finance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// Calculation modes for a statement period.
const (
	CalculationCheckout = "checkout"
	CalculationCalendar = "calendar"
)

// Statement statuses.
const (
	StatusDraft = "draft"
	StatusFinal = "final"
	StatusSent  = "sent"
)

// Line item types.
const (
	ItemRevenue = "revenue"
	ItemExpense = "expense"
	ItemUpsell  = "upsell"
)

// Hidden reasons preserved instead of deleting items.
const (
	HiddenManual  = "manual"
	HiddenLLCover = "ll_cover"
)

// inScopeStatuses are reservation statuses that count toward totals.
var inScopeStatuses = []string{"confirmed", "accepted"}

// Reservation is a booking as consumed by the engine. Fetched reservations
// are immutable; custom reservations are created directly on a statement with
// IsCustom set and user-entered amounts that override all derived math.
type Reservation struct {
	ID         string    `json:"id"`
	PropertyID uint      `json:"propertyID"`
	GuestName  string    `json:"guestName"`
	CheckIn    time.Time `json:"checkInDate"`
	CheckOut   time.Time `json:"checkOutDate"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`

	GrossAmount decimal.Decimal `json:"grossAmount"`

	HasDetailedFinance      bool            `json:"hasDetailedFinance"`
	BaseRate                decimal.Decimal `json:"baseRate"`
	CleaningAndOtherFees    decimal.Decimal `json:"cleaningAndOtherFees"`
	PlatformFees            decimal.Decimal `json:"platformFees"`
	ClientRevenue           decimal.Decimal `json:"clientRevenue"`
	ClientTaxResponsibility decimal.Decimal `json:"clientTaxResponsibility"`

	IsCustom         bool             `json:"isCustom"`
	LuxuryLodgingFee *decimal.Decimal `json:"luxuryLodgingFee,omitempty"`

	// Guest-paid cleaning fee override for this stay; falls back to the
	// listing default when nil.
	CleaningFee *decimal.Decimal `json:"cleaningFee,omitempty"`
}

// InScope reports whether the reservation counts toward statement totals.
func (r Reservation) InScope() bool {
	return slices.Contains(inScopeStatuses, strings.ToLower(r.Status))
}

// IsAirbnb matches the source channel case-insensitively.
func (r Reservation) IsAirbnb() bool {
	return strings.Contains(strings.ToLower(r.Source), "airbnb")
}

// Nights is the stay length in whole nights.
func (r Reservation) Nights() int {
	return int(dayStart(r.CheckOut).Sub(dayStart(r.CheckIn)).Hours() / 24)
}

// LineItem is one row of a statement. Items are never deleted once created;
// hiding toggles Hidden/HiddenReason so history is preserved. Each item gets
// a stable ID at creation, never an array index.
type LineItem struct {
	ID            string          `json:"id"`
	PropertyID    uint            `json:"propertyID"`
	Type          string          `json:"type"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	Hidden        bool            `json:"hidden"`
	HiddenReason  string          `json:"hiddenReason,omitempty"`
	ReservationID string          `json:"reservationID,omitempty"`
	AutoGenerated bool            `json:"autoGenerated,omitempty"`
	ExpenseID     uint            `json:"expenseID,omitempty"`
}

// PayoutBreakdown is the per-reservation calculation result. Computed, never
// persisted.
type PayoutBreakdown struct {
	ClientRevenue       decimal.Decimal `json:"clientRevenue"`
	PMCommission        decimal.Decimal `json:"pmCommission"`
	CommissionDeducted  decimal.Decimal `json:"commissionDeducted"`
	TaxAdded            decimal.Decimal `json:"taxAdded"`
	CleaningFeeDeducted decimal.Decimal `json:"cleaningFeeDeducted"`
	GrossPayout         decimal.Decimal `json:"grossPayout"`
}

// Totals are the statement-level aggregates. Every field is derived; callers
// never patch them directly.
type Totals struct {
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	PMCommission   decimal.Decimal `json:"pmCommission"`
	GrossPayoutSum decimal.Decimal `json:"grossPayoutSum"`
	TotalUpsells   decimal.Decimal `json:"totalUpsells"`
	TotalExpenses  decimal.Decimal `json:"totalExpenses"`
	OwnerPayout    decimal.Decimal `json:"ownerPayout"`
}

// Statement is the aggregate the engine computes over. The HTTP layer maps it
// to and from its persisted form; the engine itself performs no I/O.
type Statement struct {
	PropertyIDs     []uint    `json:"propertyIDs"`
	WeekStartDate   time.Time `json:"weekStartDate"`
	WeekEndDate     time.Time `json:"weekEndDate"`
	CalculationType string    `json:"calculationType"`
	Status          string    `json:"status"`

	Reservations []Reservation `json:"reservations"`
	Items        []LineItem    `json:"items"`

	Totals

	CleaningMismatchWarning bool     `json:"cleaningMismatchWarning"`
	ShouldConvertToCalendar bool     `json:"shouldConvertToCalendar"`
	OverlappingReservations []string `json:"overlappingReservations"`
}

// Editable reports whether the operation is allowed in the statement's
// current status. Draft statements accept everything; final statements keep a
// narrow whitelist (visibility toggles and cleaning-fee corrections).
func (s *Statement) Editable(op string) bool {
	switch s.Status {
	case StatusDraft:
		return true
	case StatusFinal:
		return slices.Contains([]string{"hide_item", "show_item", "update_cleaning_fee"}, op)
	default:
		return false
	}
}

func (s *Statement) findItem(id string) *LineItem {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return &s.Items[i]
		}
	}
	return nil
}

func (s *Statement) findReservation(id string) *Reservation {
	for i := range s.Reservations {
		if s.Reservations[i].ID == id {
			return &s.Reservations[i]
		}
	}
	return nil
}

// overlapsPeriod is the canonical overlap test: check-in on or before the
// period end and check-out strictly after the period start.
func (s *Statement) overlapsPeriod(r Reservation) bool {
	return !dayStart(r.CheckIn).After(dayStart(s.WeekEndDate)) &&
		dayStart(r.CheckOut).After(dayStart(s.WeekStartDate))
}

// checkedOutInPeriod reports whether the reservation checks out inside the
// statement period (exclusive start, inclusive end).
func (s *Statement) checkedOutInPeriod(r Reservation) bool {
	out := dayStart(r.CheckOut)
	return out.After(dayStart(s.WeekStartDate)) && !out.After(dayStart(s.WeekEndDate))
}
