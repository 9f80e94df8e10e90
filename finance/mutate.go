package finance

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotEditable    = errors.New("statement cannot be edited in its current status")
	ErrItemNotFound   = errors.New("line item not found")
	ErrNoReservation  = errors.New("reservation not found")
	ErrDuplicateEntry = errors.New("an identical custom reservation already exists")
)

// ValidationError rejects a mutation synchronously with a descriptive
// reason; nothing partial is applied when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Mutator applies edit operations to a statement. Every operation that
// touches financially relevant data re-runs the aggregation before
// returning, so stored totals can never drift from the line data.
type Mutator struct {
	Statement *Statement
	Rules     map[uint]ResolvedRules
}

func NewMutator(st *Statement, rules map[uint]ResolvedRules) *Mutator {
	return &Mutator{Statement: st, Rules: rules}
}

func (m *Mutator) refresh() {
	Refresh(m.Statement, m.Rules)
}

func (m *Mutator) guard(op string) error {
	if !m.Statement.Editable(op) {
		return ErrNotEditable
	}
	return nil
}

// HideItem toggles an item invisible. Items are never deleted; the reason is
// kept so the history stays auditable.
func (m *Mutator) HideItem(itemID, reason string) error {
	if err := m.guard("hide_item"); err != nil {
		return err
	}
	item := m.Statement.findItem(itemID)
	if item == nil {
		return ErrItemNotFound
	}
	if reason != HiddenLLCover {
		reason = HiddenManual
	}
	item.Hidden = true
	item.HiddenReason = reason
	m.refresh()
	return nil
}

func (m *Mutator) ShowItem(itemID string) error {
	if err := m.guard("show_item"); err != nil {
		return err
	}
	item := m.Statement.findItem(itemID)
	if item == nil {
		return ErrItemNotFound
	}
	item.Hidden = false
	item.HiddenReason = ""
	m.refresh()
	return nil
}

// ItemEdit carries the editable fields of an expense/upsell line. Nil fields
// are left untouched.
type ItemEdit struct {
	Date        *time.Time
	Description *string
	Category    *string
	Amount      *decimal.Decimal
}

func (m *Mutator) EditItem(itemID string, edit ItemEdit) error {
	if err := m.guard("edit_item"); err != nil {
		return err
	}
	item := m.Statement.findItem(itemID)
	if item == nil {
		return ErrItemNotFound
	}
	if item.Type == ItemRevenue {
		return &ValidationError{Field: "type", Reason: "revenue lines are derived from reservations and cannot be edited directly"}
	}
	if edit.Amount != nil && edit.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "must not be negative; the item type determines its sign"}
	}
	if edit.Date != nil {
		item.Date = dayStart(*edit.Date)
	}
	if edit.Description != nil {
		item.Description = *edit.Description
	}
	if edit.Category != nil {
		item.Category = *edit.Category
	}
	if edit.Amount != nil {
		item.Amount = *edit.Amount
	}
	m.refresh()
	return nil
}

// AddReservation attaches a fetched reservation and its paired revenue line.
func (m *Mutator) AddReservation(r Reservation) error {
	if err := m.guard("add_reservation"); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if m.Statement.findReservation(r.ID) != nil {
		return ErrDuplicateEntry
	}
	m.Statement.Reservations = append(m.Statement.Reservations, r)
	ensureRevenueLines(m.Statement, m.Rules)
	ensureAutoCleaningLines(m.Statement, m.Rules)
	m.refresh()
	return nil
}

// RemoveReservation drops a reservation; its paired revenue line goes with it
// during refresh.
func (m *Mutator) RemoveReservation(reservationID string) error {
	if err := m.guard("remove_reservation"); err != nil {
		return err
	}
	kept := m.Statement.Reservations[:0]
	found := false
	for _, r := range m.Statement.Reservations {
		if r.ID == reservationID {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return ErrNoReservation
	}
	m.Statement.Reservations = kept
	m.refresh()
	return nil
}

// CustomReservationInput is a manually entered booking. Its gross amount and
// optional luxury-lodging fee override all derived calculation.
type CustomReservationInput struct {
	PropertyID       uint
	GuestName        string
	CheckIn          time.Time
	CheckOut         time.Time
	Source           string
	BaseRate         decimal.Decimal
	GrossAmount      decimal.Decimal
	LuxuryLodgingFee *decimal.Decimal
}

// InsertCustomReservation validates and attaches a custom reservation.
// Duplicate detection matches guest name, stay dates and payout.
func (m *Mutator) InsertCustomReservation(in CustomReservationInput) (*Reservation, error) {
	if err := m.guard("insert_custom_reservation"); err != nil {
		return nil, err
	}
	if in.GuestName == "" {
		return nil, &ValidationError{Field: "guestName", Reason: "required"}
	}
	if in.CheckIn.IsZero() || in.CheckOut.IsZero() {
		return nil, &ValidationError{Field: "checkInDate/checkOutDate", Reason: "required"}
	}
	if !dayStart(in.CheckIn).Before(dayStart(in.CheckOut)) {
		return nil, &ValidationError{Field: "checkOutDate", Reason: "must be after checkInDate"}
	}
	if in.BaseRate.IsZero() {
		return nil, &ValidationError{Field: "baseRate", Reason: "required"}
	}
	if in.GrossAmount.IsZero() {
		return nil, &ValidationError{Field: "grossAmount", Reason: "required"}
	}
	for _, r := range m.Statement.Reservations {
		if r.GuestName == in.GuestName &&
			dayStart(r.CheckIn).Equal(dayStart(in.CheckIn)) &&
			dayStart(r.CheckOut).Equal(dayStart(in.CheckOut)) &&
			r.GrossAmount.Equal(in.GrossAmount) {
			return nil, ErrDuplicateEntry
		}
	}

	source := in.Source
	if source == "" {
		source = "Manual"
	}
	propertyID := in.PropertyID
	if propertyID == 0 && len(m.Statement.PropertyIDs) == 1 {
		propertyID = m.Statement.PropertyIDs[0]
	}
	r := Reservation{
		ID:               uuid.NewString(),
		PropertyID:       propertyID,
		GuestName:        in.GuestName,
		CheckIn:          dayStart(in.CheckIn),
		CheckOut:         dayStart(in.CheckOut),
		Source:           source,
		Status:           "confirmed",
		BaseRate:         in.BaseRate,
		GrossAmount:      in.GrossAmount,
		IsCustom:         true,
		LuxuryLodgingFee: in.LuxuryLodgingFee,
	}
	m.Statement.Reservations = append(m.Statement.Reservations, r)
	ensureRevenueLines(m.Statement, m.Rules)
	m.refresh()
	return m.Statement.findReservation(r.ID), nil
}

// UpdateCleaningFee stores a new guest-paid cleaning fee on a reservation,
// which feeds back into the pass-through deduction on the next recompute.
// Allowed on final statements: it corrects money already owed to cleaners.
func (m *Mutator) UpdateCleaningFee(reservationID string, fee decimal.Decimal) error {
	if err := m.guard("update_cleaning_fee"); err != nil {
		return err
	}
	if fee.IsNegative() {
		return &ValidationError{Field: "cleaningFee", Reason: "must not be negative"}
	}
	r := m.Statement.findReservation(reservationID)
	if r == nil {
		return ErrNoReservation
	}
	r.CleaningFee = &fee
	// The paired auto-generated line tracks the new deduction.
	for i := range m.Statement.Items {
		item := &m.Statement.Items[i]
		if item.AutoGenerated && item.ReservationID == reservationID {
			b := CalculatePayout(*r, ruleFor(m.Rules, r.PropertyID))
			item.Amount = b.CleaningFeeDeducted
		}
	}
	m.refresh()
	return nil
}
