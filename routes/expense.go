package routes

import (
	"time"

	"github.com/kataras/iris/v12"
	"github.com/shopspring/decimal"

	"owner-statements-server/models"
	"owner-statements-server/storage"
	"owner-statements-server/utils"
)

func GetExpenses(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 50)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	query := storage.DB.Model(&models.Expense{})
	if propertyID := ctx.URLParamIntDefault("propertyId", 0); propertyID > 0 {
		query = query.Where("property_id = ?", propertyID)
	}
	if typ := ctx.URLParamDefault("type", ""); typ != "" {
		query = query.Where("type = ?", typ)
	}

	var total int64
	query.Count(&total)

	var expenses []models.Expense
	if err := query.Order("date DESC, id DESC").Offset((page - 1) * perPage).Limit(perPage).Find(&expenses).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}
	utils.JSONPage(ctx, expenses, page, perPage, total)
}

type CreateExpenseInput struct {
	PropertyID  *uint   `json:"propertyID"`
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	Description string  `json:"description" validate:"required,max=512"`
	Category    string  `json:"category" validate:"required,max=50"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Type        string  `json:"type" validate:"omitempty,oneof=expense upsell"`
}

// CreateExpense records a local cost or upsell. It lands on draft statements
// the next time they regenerate or recalculate.
func CreateExpense(ctx iris.Context) {
	var input CreateExpenseInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	date, err := time.Parse(dateLayout, input.Date)
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "date must be YYYY-MM-DD", ctx)
		return
	}
	if input.Type == "" {
		input.Type = "expense"
	}

	expense := models.Expense{
		PropertyID:  input.PropertyID,
		Date:        date,
		Description: input.Description,
		Category:    input.Category,
		Amount:      decimal.NewFromFloat(input.Amount),
		Type:        input.Type,
	}
	if err := storage.DB.Create(&expense).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}

	utils.Audit(ctx, "expense.create", "expense", expense.ID, nil, expense)
	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(expense)
}

func DeleteExpense(ctx iris.Context) {
	id := ctx.Params().Get("id")

	var expense models.Expense
	if err := storage.DB.First(&expense, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Expense not found", ctx)
		return
	}

	if err := storage.DB.Delete(&expense).Error; err != nil {
		utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
		return
	}
	utils.Audit(ctx, "expense.delete", "expense", expense.ID, expense, nil)
	ctx.JSON(iris.Map{"ok": true})
}
