package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"owner-statements-server/finance"
)

// Statement is the persisted owner payout statement. Reservations and line
// items live in JSONB columns; every total is a derived value the engine
// recomputes from them, never patched directly.
type Statement struct {
	gorm.Model
	PropertyID  uint           `json:"propertyID" gorm:"index"`
	PropertyIDs datatypes.JSON `json:"propertyIDs"` // combined statements span several listings

	WeekStartDate   time.Time `json:"weekStartDate" gorm:"index"`
	WeekEndDate     time.Time `json:"weekEndDate"`
	CalculationType string    `json:"calculationType" gorm:"type:varchar(20);default:'checkout'"`
	Status          string    `json:"status" gorm:"type:varchar(20);default:'draft';index"`

	Reservations datatypes.JSON `json:"reservations"`
	Items        datatypes.JSON `json:"items"`

	TotalRevenue  decimal.Decimal `json:"totalRevenue" gorm:"type:decimal(12,2)"`
	TotalExpenses decimal.Decimal `json:"totalExpenses" gorm:"type:decimal(12,2)"`
	TotalUpsells  decimal.Decimal `json:"totalUpsells" gorm:"type:decimal(12,2)"`
	PMCommission  decimal.Decimal `json:"pmCommission" gorm:"type:decimal(12,2)"`
	OwnerPayout   decimal.Decimal `json:"ownerPayout" gorm:"type:decimal(12,2)"`

	CleaningMismatchWarning bool           `json:"cleaningMismatchWarning"`
	ShouldConvertToCalendar bool           `json:"shouldConvertToCalendar"`
	OverlappingReservations datatypes.JSON `json:"overlappingReservations"`
}

// ToEngine unpacks the persisted aggregate into the engine's working shape.
func (s *Statement) ToEngine() (*finance.Statement, error) {
	st := &finance.Statement{
		WeekStartDate:           s.WeekStartDate,
		WeekEndDate:             s.WeekEndDate,
		CalculationType:         s.CalculationType,
		Status:                  s.Status,
		CleaningMismatchWarning: s.CleaningMismatchWarning,
		ShouldConvertToCalendar: s.ShouldConvertToCalendar,
	}
	st.TotalRevenue = s.TotalRevenue
	st.TotalExpenses = s.TotalExpenses
	st.TotalUpsells = s.TotalUpsells
	st.PMCommission = s.PMCommission
	st.OwnerPayout = s.OwnerPayout

	if len(s.PropertyIDs) > 0 {
		if err := json.Unmarshal(s.PropertyIDs, &st.PropertyIDs); err != nil {
			return nil, err
		}
	}
	if len(st.PropertyIDs) == 0 && s.PropertyID != 0 {
		st.PropertyIDs = []uint{s.PropertyID}
	}
	if len(s.Reservations) > 0 {
		if err := json.Unmarshal(s.Reservations, &st.Reservations); err != nil {
			return nil, err
		}
	}
	if len(s.Items) > 0 {
		if err := json.Unmarshal(s.Items, &st.Items); err != nil {
			return nil, err
		}
	}
	if len(s.OverlappingReservations) > 0 {
		if err := json.Unmarshal(s.OverlappingReservations, &st.OverlappingReservations); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// ApplyEngine writes the engine's computed state back onto the persisted row.
func (s *Statement) ApplyEngine(st *finance.Statement) error {
	reservations, err := json.Marshal(st.Reservations)
	if err != nil {
		return err
	}
	items, err := json.Marshal(st.Items)
	if err != nil {
		return err
	}
	propertyIDs, err := json.Marshal(st.PropertyIDs)
	if err != nil {
		return err
	}
	overlapping, err := json.Marshal(st.OverlappingReservations)
	if err != nil {
		return err
	}

	s.Reservations = reservations
	s.Items = items
	s.PropertyIDs = propertyIDs
	s.OverlappingReservations = overlapping
	if len(st.PropertyIDs) == 1 {
		s.PropertyID = st.PropertyIDs[0]
	}
	s.Status = st.Status
	s.TotalRevenue = st.TotalRevenue
	s.TotalExpenses = st.TotalExpenses
	s.TotalUpsells = st.TotalUpsells
	s.PMCommission = st.PMCommission
	s.OwnerPayout = st.OwnerPayout
	s.CleaningMismatchWarning = st.CleaningMismatchWarning
	s.ShouldConvertToCalendar = st.ShouldConvertToCalendar
	return nil
}

// ListView is the flattened shape for statement tables: totals and warning
// flags without the full reservation/item arrays.
type ListView struct {
	ID                      uint            `json:"id"`
	PropertyID              uint            `json:"propertyID"`
	WeekStartDate           time.Time       `json:"weekStartDate"`
	WeekEndDate             time.Time       `json:"weekEndDate"`
	CalculationType         string          `json:"calculationType"`
	Status                  string          `json:"status"`
	TotalRevenue            decimal.Decimal `json:"totalRevenue"`
	TotalExpenses           decimal.Decimal `json:"totalExpenses"`
	PMCommission            decimal.Decimal `json:"pmCommission"`
	OwnerPayout             decimal.Decimal `json:"ownerPayout"`
	NegativePayout          bool            `json:"negativePayout"`
	CleaningMismatchWarning bool            `json:"cleaningMismatchWarning"`
	ShouldConvertToCalendar bool            `json:"shouldConvertToCalendar"`
}

// ListViewOf flattens a statement row. The negative-payout flag is a caution
// surfaced for callers; blocking sends on it is their policy, not ours.
func ListViewOf(s Statement) ListView {
	return ListView{
		ID:                      s.ID,
		PropertyID:              s.PropertyID,
		WeekStartDate:           s.WeekStartDate,
		WeekEndDate:             s.WeekEndDate,
		CalculationType:         s.CalculationType,
		Status:                  s.Status,
		TotalRevenue:            s.TotalRevenue,
		TotalExpenses:           s.TotalExpenses,
		PMCommission:            s.PMCommission,
		OwnerPayout:             s.OwnerPayout,
		NegativePayout:          s.OwnerPayout.IsNegative(),
		CleaningMismatchWarning: s.CleaningMismatchWarning,
		ShouldConvertToCalendar: s.ShouldConvertToCalendar,
	}
}
