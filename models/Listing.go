package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"owner-statements-server/finance"
)

// Listing is a managed property. The financial configuration block is owned
// here and read by the statement engine; administrators mutate it through the
// listing routes.
type Listing struct {
	gorm.Model
	ExternalID string `json:"externalID" gorm:"index"` // channel-manager listing id
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`

	OwnerName  string `json:"ownerName"`
	OwnerEmail string `json:"ownerEmail"`

	// Financial configuration
	PMFeePercentage        float64    `json:"pmFeePercentage" gorm:"default:15"`
	IsCohostOnAirbnb       bool       `json:"isCohostOnAirbnb" gorm:"default:false"`
	DisregardTax           bool       `json:"disregardTax" gorm:"default:false"`
	AirbnbPassThroughTax   bool       `json:"airbnbPassThroughTax" gorm:"default:false"`
	CleaningFeePassThrough bool       `json:"cleaningFeePassThrough" gorm:"default:false"`
	WaiveCommission        bool       `json:"waiveCommission" gorm:"default:false"`
	WaiveCommissionUntil   *time.Time `json:"waiveCommissionUntil"`
	CleaningFee            float64    `json:"cleaningFee"` // guest-paid amount, informational default

	Active *bool `json:"active" gorm:"default:true"`
}

// FinancialConfig converts the listing's stored configuration into the
// engine's read-only rule input.
func (l *Listing) FinancialConfig() finance.ListingConfig {
	return finance.ListingConfig{
		PropertyID:             l.ID,
		PMFeePercentage:        decimal.NewFromFloat(l.PMFeePercentage),
		IsCohostOnAirbnb:       l.IsCohostOnAirbnb,
		DisregardTax:           l.DisregardTax,
		AirbnbPassThroughTax:   l.AirbnbPassThroughTax,
		CleaningFeePassThrough: l.CleaningFeePassThrough,
		WaiveCommission:        l.WaiveCommission,
		WaiveCommissionUntil:   l.WaiveCommissionUntil,
		CleaningFee:            decimal.NewFromFloat(l.CleaningFee),
	}
}
