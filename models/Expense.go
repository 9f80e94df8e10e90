package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Expense is a locally recorded cost or credit against a listing. Amount is
// stored as an absolute value; Type decides its sign in statement totals.
// Rows fetched from the channel manager carry PropertyID = nil and are
// assumed pre-filtered by the fetch collaborator.
type Expense struct {
	gorm.Model
	PropertyID  *uint           `json:"propertyID" gorm:"index"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Category    string          `json:"category" gorm:"type:varchar(50);index"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(12,2)"`
	Type        string          `json:"type" gorm:"type:varchar(20);default:'expense'"` // expense, upsell
}
