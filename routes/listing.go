package routes

import (
	"time"

	"github.com/kataras/iris/v12"

	"owner-statements-server/models"
	"owner-statements-server/storage"
	"owner-statements-server/utils"
)

func GetListings(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 50)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	query := storage.DB.Model(&models.Listing{})
	if ctx.URLParamDefault("active", "") == "true" {
		query = query.Where("active IS NULL OR active = ?", true)
	}

	var total int64
	query.Count(&total)

	var listings []models.Listing
	if err := query.Order("name ASC").Offset((page - 1) * perPage).Limit(perPage).Find(&listings).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}
	utils.JSONPage(ctx, listings, page, perPage, total)
}

func GetListing(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var listing models.Listing
	if err := storage.DB.First(&listing, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Listing not found", ctx)
		return
	}
	ctx.JSON(listing)
}

type CreateListingInput struct {
	ExternalID string `json:"externalID"`
	Name       string `json:"name" validate:"required,max=256"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	OwnerName  string `json:"ownerName"`
	OwnerEmail string `json:"ownerEmail" validate:"omitempty,email"`
}

func CreateListing(ctx iris.Context) {
	var input CreateListingInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	listing := models.Listing{
		ExternalID: input.ExternalID,
		Name:       input.Name,
		Address:    input.Address,
		City:       input.City,
		State:      input.State,
		OwnerName:  input.OwnerName,
		OwnerEmail: input.OwnerEmail,
	}
	if err := storage.DB.Create(&listing).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}

	utils.Audit(ctx, "listing.create", "listing", listing.ID, nil, listing)
	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(listing)
}

type UpdateListingFinancialsInput struct {
	PMFeePercentage        *float64 `json:"pmFeePercentage" validate:"omitempty,gte=0,lte=100"`
	IsCohostOnAirbnb       *bool    `json:"isCohostOnAirbnb"`
	DisregardTax           *bool    `json:"disregardTax"`
	AirbnbPassThroughTax   *bool    `json:"airbnbPassThroughTax"`
	CleaningFeePassThrough *bool    `json:"cleaningFeePassThrough"`
	WaiveCommission        *bool    `json:"waiveCommission"`
	WaiveCommissionUntil   *string  `json:"waiveCommissionUntil" validate:"omitempty,datetime=2006-01-02"`
	ClearWaiverDate        bool     `json:"clearWaiverDate"`
	CleaningFee            *float64 `json:"cleaningFee" validate:"omitempty,gte=0"`
	Active                 *bool    `json:"active"`
}

// UpdateListingFinancials patches the financial configuration block. Only the
// fields present in the body change. Existing statements pick the new values
// up on their next read through the recalculator.
func UpdateListingFinancials(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var input UpdateListingFinancialsInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var listing models.Listing
	if err := storage.DB.First(&listing, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Listing not found", ctx)
		return
	}
	before := listing

	if input.PMFeePercentage != nil {
		listing.PMFeePercentage = *input.PMFeePercentage
	}
	if input.IsCohostOnAirbnb != nil {
		listing.IsCohostOnAirbnb = *input.IsCohostOnAirbnb
	}
	if input.DisregardTax != nil {
		listing.DisregardTax = *input.DisregardTax
	}
	if input.AirbnbPassThroughTax != nil {
		listing.AirbnbPassThroughTax = *input.AirbnbPassThroughTax
	}
	if input.CleaningFeePassThrough != nil {
		listing.CleaningFeePassThrough = *input.CleaningFeePassThrough
	}
	if input.WaiveCommission != nil {
		listing.WaiveCommission = *input.WaiveCommission
	}
	if input.WaiveCommissionUntil != nil {
		d, err := time.Parse(dateLayout, *input.WaiveCommissionUntil)
		if err != nil {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "waiveCommissionUntil must be YYYY-MM-DD", ctx)
			return
		}
		listing.WaiveCommissionUntil = &d
	} else if input.ClearWaiverDate {
		listing.WaiveCommissionUntil = nil
	}
	if input.CleaningFee != nil {
		listing.CleaningFee = *input.CleaningFee
	}
	if input.Active != nil {
		listing.Active = input.Active
	}

	if err := storage.DB.Save(&listing).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}

	utils.Audit(ctx, "listing.financials", "listing", listing.ID, before, listing)
	ctx.JSON(listing)
}
