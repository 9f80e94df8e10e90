package routes

import (
	"errors"
	"time"

	"github.com/kataras/iris/v12"
	"github.com/shopspring/decimal"

	"owner-statements-server/finance"
	"owner-statements-server/models"
	"owner-statements-server/storage"
	"owner-statements-server/utils"
)

// mutateStatement runs one statement edit: load the row, rebuild the engine
// state with the listings' current rules, apply the operation, persist.
func mutateStatement(ctx iris.Context, op func(m *finance.Mutator) error) {
	id := ctx.Params().Get("id")

	var row models.Statement
	if err := storage.DB.First(&row, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Statement not found", ctx)
		return
	}

	st, err := row.ToEngine()
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	rules, err := currentRules(st)
	if err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}

	mutator := finance.NewMutator(st, rules)
	if err := op(mutator); err != nil {
		writeMutationError(ctx, err)
		return
	}

	if err := row.ApplyEngine(st); err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}
	if err := storage.DB.Save(&row).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}

	ctx.JSON(iris.Map{
		"statement":      statementDetail(&row, st),
		"negativePayout": st.OwnerPayout.IsNegative(),
	})
}

func writeMutationError(ctx iris.Context, err error) {
	var vErr *finance.ValidationError
	switch {
	case errors.Is(err, finance.ErrNotEditable), errors.Is(err, finance.ErrDuplicateEntry):
		utils.CreateError(iris.StatusConflict, "Conflict", err.Error(), ctx)
	case errors.Is(err, finance.ErrItemNotFound), errors.Is(err, finance.ErrNoReservation):
		utils.CreateError(iris.StatusNotFound, "Not Found", err.Error(), ctx)
	case errors.As(err, &vErr):
		utils.CreateError(iris.StatusBadRequest, "Validation Error", err.Error(), ctx)
	default:
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
	}
}

type HideItemInput struct {
	Reason string `json:"reason" validate:"omitempty,oneof=manual ll_cover"`
}

func HideItem(ctx iris.Context) {
	itemID := ctx.Params().Get("itemID")

	var input HideItemInput
	ctx.ReadJSON(&input) // body optional, reason defaults to manual
	if input.Reason == "" {
		input.Reason = finance.HiddenManual
	}

	mutateStatement(ctx, func(m *finance.Mutator) error {
		return m.HideItem(itemID, input.Reason)
	})
}

func ShowItem(ctx iris.Context) {
	itemID := ctx.Params().Get("itemID")
	mutateStatement(ctx, func(m *finance.Mutator) error {
		return m.ShowItem(itemID)
	})
}

type EditItemInput struct {
	Date        *string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Amount      *float64 `json:"amount"`
}

func EditItem(ctx iris.Context) {
	itemID := ctx.Params().Get("itemID")

	var input EditItemInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	edit := finance.ItemEdit{
		Description: input.Description,
		Category:    input.Category,
	}
	if input.Date != nil {
		d, err := time.Parse(dateLayout, *input.Date)
		if err != nil {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "date must be YYYY-MM-DD", ctx)
			return
		}
		edit.Date = &d
	}
	if input.Amount != nil {
		a := decimal.NewFromFloat(*input.Amount)
		edit.Amount = &a
	}

	mutateStatement(ctx, func(m *finance.Mutator) error {
		return m.EditItem(itemID, edit)
	})
}

type AddReservationInput struct {
	ReservationID string `json:"reservationID" validate:"required"`
	PropertyID    uint   `json:"propertyID" validate:"required"`
}

// AddReservation pulls one reservation from the channel API into the
// statement, for stays the period query missed.
func AddReservation(ctx iris.Context) {
	var input AddReservationInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	reservation, err := generator().FetchReservation(ctx.Request().Context(), input.PropertyID, input.ReservationID)
	if err != nil {
		utils.CreateError(iris.StatusBadGateway, "Upstream Error", err.Error(), ctx)
		return
	}
	if reservation == nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Reservation not found", ctx)
		return
	}

	mutateStatement(ctx, func(m *finance.Mutator) error {
		return m.AddReservation(*reservation)
	})
}

func RemoveReservation(ctx iris.Context) {
	reservationID := ctx.Params().Get("reservationID")
	mutateStatement(ctx, func(m *finance.Mutator) error {
		return m.RemoveReservation(reservationID)
	})
}

type CustomReservationJSON struct {
	PropertyID       uint     `json:"propertyID"`
	GuestName        string   `json:"guestName" validate:"required"`
	CheckIn          string   `json:"checkIn" validate:"required,datetime=2006-01-02"`
	CheckOut         string   `json:"checkOut" validate:"required,datetime=2006-01-02"`
	Source           string   `json:"source"`
	BaseRate         float64  `json:"baseRate" validate:"required"`
	GrossAmount      float64  `json:"grossAmount" validate:"required"`
	LuxuryLodgingFee *float64 `json:"luxuryLodgingFee"`
}

// InsertCustomReservation adds a manually entered stay whose amounts pass
// through the calculator untouched.
func InsertCustomReservation(ctx iris.Context) {
	var input CustomReservationJSON
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	checkIn, err := time.Parse(dateLayout, input.CheckIn)
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "checkIn must be YYYY-MM-DD", ctx)
		return
	}
	checkOut, err := time.Parse(dateLayout, input.CheckOut)
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "checkOut must be YYYY-MM-DD", ctx)
		return
	}

	in := finance.CustomReservationInput{
		PropertyID:  input.PropertyID,
		GuestName:   input.GuestName,
		CheckIn:     checkIn,
		CheckOut:    checkOut,
		Source:      input.Source,
		BaseRate:    decimal.NewFromFloat(input.BaseRate),
		GrossAmount: decimal.NewFromFloat(input.GrossAmount),
	}
	if input.LuxuryLodgingFee != nil {
		fee := decimal.NewFromFloat(*input.LuxuryLodgingFee)
		in.LuxuryLodgingFee = &fee
	}

	mutateStatement(ctx, func(m *finance.Mutator) error {
		_, err := m.InsertCustomReservation(in)
		return err
	})
}

type UpdateCleaningFeeInput struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

// UpdateCleaningFee is allowed on finalized statements; the paired hidden
// cleaning line follows the new amount.
func UpdateCleaningFee(ctx iris.Context) {
	reservationID := ctx.Params().Get("reservationID")

	var input UpdateCleaningFeeInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	mutateStatement(ctx, func(m *finance.Mutator) error {
		return m.UpdateCleaningFee(reservationID, decimal.NewFromFloat(input.Amount))
	})
}
