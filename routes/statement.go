package routes

import (
	"errors"
	"sync"
	"time"

	"github.com/kataras/iris/v12"

	"owner-statements-server/finance"
	"owner-statements-server/models"
	"owner-statements-server/services"
	"owner-statements-server/storage"
	"owner-statements-server/utils"
)

const dateLayout = "2006-01-02"

var (
	generatorOnce sync.Once
	generatorInst *services.Generator
)

// generator is the shared statement generator. Built lazily so tests can run
// handlers that never touch it without initializing storage.
func generator() *services.Generator {
	generatorOnce.Do(func() {
		generatorInst = services.NewGenerator(
			storage.DB,
			services.NewChannelClient(),
			services.NewCancelledCountCache(storage.Redis, 0),
		)
	})
	return generatorInst
}

type GenerateStatementInput struct {
	PropertyID      uint   `json:"propertyID"`
	PropertyIDs     []uint `json:"propertyIDs"`
	WeekStartDate   string `json:"weekStartDate" validate:"required,datetime=2006-01-02"`
	WeekEndDate     string `json:"weekEndDate" validate:"required,datetime=2006-01-02"`
	CalculationType string `json:"calculationType" validate:"omitempty,oneof=checkout calendar"`
}

func (in *GenerateStatementInput) toService() (services.GenerateInput, error) {
	start, err := time.Parse(dateLayout, in.WeekStartDate)
	if err != nil {
		return services.GenerateInput{}, err
	}
	end, err := time.Parse(dateLayout, in.WeekEndDate)
	if err != nil {
		return services.GenerateInput{}, err
	}
	return services.GenerateInput{
		PropertyID:      in.PropertyID,
		PropertyIDs:     in.PropertyIDs,
		WeekStartDate:   start,
		WeekEndDate:     end,
		CalculationType: in.CalculationType,
	}, nil
}

// GenerateStatement builds a statement for one property, or a combined one
// when propertyIDs holds several.
func GenerateStatement(ctx iris.Context) {
	var input GenerateStatementInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}
	if input.PropertyID == 0 && len(input.PropertyIDs) == 0 {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "propertyID or propertyIDs is required", ctx)
		return
	}

	in, err := input.toService()
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", err.Error(), ctx)
		return
	}

	statement, err := generator().Generate(ctx.Request().Context(), in)
	switch {
	case errors.Is(err, services.ErrStatementExists):
		ctx.StatusCode(iris.StatusConflict)
		ctx.JSON(iris.Map{
			"message":   "A draft statement for this property and period already exists",
			"statement": statement,
		})
		return
	case errors.Is(err, services.ErrUnknownListing):
		utils.CreateError(iris.StatusNotFound, "Not Found", err.Error(), ctx)
		return
	case errors.Is(err, services.ErrInvalidPeriod):
		utils.CreateError(iris.StatusBadRequest, "Validation Error", err.Error(), ctx)
		return
	case err != nil:
		utils.CreateError(iris.StatusBadGateway, "Upstream Error", err.Error(), ctx)
		return
	}

	ctx.JSON(statement)
}

// ListStatements returns the flattened list-view shape, paginated.
func ListStatements(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 25)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	query := storage.DB.Model(&models.Statement{})
	if status := ctx.URLParamDefault("status", ""); status != "" {
		query = query.Where("status = ?", status)
	}
	if propertyID := ctx.URLParamIntDefault("propertyId", 0); propertyID > 0 {
		query = query.Where("property_id = ?", propertyID)
	}

	var total int64
	query.Count(&total)

	var statements []models.Statement
	res := query.Order("week_start_date DESC, id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&statements)
	if res.Error != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", res.Error.Error(), ctx)
		return
	}

	views := make([]models.ListView, 0, len(statements))
	for _, s := range statements {
		views = append(views, models.ListViewOf(s))
	}
	utils.JSONPage(ctx, views, page, perPage, total)
}

// GetStatement returns the full detail shape. Totals are re-derived from the
// listings' current configuration on every read; the row is written back only
// when the payout moved by more than a cent.
func GetStatement(ctx iris.Context) {
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

	if res := finance.Recalculate(st, rules); res.Changed {
		if err := row.ApplyEngine(st); err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
		if err := storage.DB.Save(&row).Error; err != nil {
			utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
			return
		}
	}

	response := iris.Map{
		"statement":      statementDetail(&row, st),
		"negativePayout": st.OwnerPayout.IsNegative(),
	}
	if len(st.PropertyIDs) == 1 {
		if n, err := generator().CancelledCount(ctx.Request().Context(), st.PropertyIDs[0], st.WeekStartDate, st.WeekEndDate); err == nil {
			response["cancelledCount"] = n
		}
	}
	ctx.JSON(response)
}

type UpdateStatementStatusInput struct {
	Status string `json:"status" validate:"required,oneof=draft final sent"`
}

// UpdateStatementStatus moves a statement through draft -> final -> sent.
func UpdateStatementStatus(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var input UpdateStatementStatusInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var row models.Statement
	if err := storage.DB.First(&row, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Statement not found", ctx)
		return
	}

	allowed := map[string][]string{
		finance.StatusDraft: {finance.StatusFinal},
		finance.StatusFinal: {finance.StatusDraft, finance.StatusSent},
	}
	ok := false
	for _, next := range allowed[row.Status] {
		if next == input.Status {
			ok = true
		}
	}
	if !ok {
		utils.CreateError(iris.StatusConflict, "Conflict",
			"cannot move statement from "+row.Status+" to "+input.Status, ctx)
		return
	}

	before := row.Status
	row.Status = input.Status
	if err := storage.DB.Save(&row).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}

	utils.Audit(ctx, "statement.status", "statement", row.ID,
		iris.Map{"status": before}, iris.Map{"status": row.Status})
	ctx.JSON(row)
}

// DeleteStatement removes a draft. Finalized statements are immutable
// history and cannot be deleted.
func DeleteStatement(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var row models.Statement
	if err := storage.DB.First(&row, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Statement not found", ctx)
		return
	}
	if row.Status != finance.StatusDraft {
		utils.CreateError(iris.StatusConflict, "Conflict", "only draft statements can be deleted", ctx)
		return
	}

	if err := storage.DB.Delete(&row).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}
	utils.Audit(ctx, "statement.delete", "statement", row.ID, row, nil)
	ctx.JSON(iris.Map{"ok": true})
}

// currentRules resolves every member listing's rule-set as configured right
// now. Missing listings fall back to defaults inside ResolveAll.
func currentRules(st *finance.Statement) (map[uint]finance.ResolvedRules, error) {
	var listings []models.Listing
	if err := storage.DB.Where("id IN ?", st.PropertyIDs).Find(&listings).Error; err != nil {
		return nil, err
	}
	configs := make(map[uint]finance.ListingConfig, len(listings))
	for i := range listings {
		configs[listings[i].ID] = listings[i].FinancialConfig()
	}
	return finance.ResolveAll(configs, st.PropertyIDs, st.WeekEndDate), nil
}

// statementDetail merges the persisted row identity with the freshly
// computed engine state into the full edit/detail shape.
func statementDetail(row *models.Statement, st *finance.Statement) iris.Map {
	return iris.Map{
		"id":                      row.ID,
		"propertyID":              row.PropertyID,
		"propertyIDs":             st.PropertyIDs,
		"weekStartDate":           st.WeekStartDate.Format(dateLayout),
		"weekEndDate":             st.WeekEndDate.Format(dateLayout),
		"calculationType":         st.CalculationType,
		"status":                  st.Status,
		"reservations":            st.Reservations,
		"items":                   st.Items,
		"totalRevenue":            st.TotalRevenue,
		"totalExpenses":           st.TotalExpenses,
		"totalUpsells":            st.TotalUpsells,
		"pmCommission":            st.PMCommission,
		"ownerPayout":             st.OwnerPayout,
		"cleaningMismatchWarning": st.CleaningMismatchWarning,
		"shouldConvertToCalendar": st.ShouldConvertToCalendar,
		"overlappingReservations": st.OverlappingReservations,
		"createdAt":               row.CreatedAt,
		"updatedAt":               row.UpdatedAt,
	}
}
