package routes

import (
	"github.com/kataras/iris/v12"

	"owner-statements-server/models"
	"owner-statements-server/storage"
	"owner-statements-server/utils"
)

type BulkGenerateInput struct {
	PropertyIDs     []uint `json:"propertyIDs"`
	WeekStartDate   string `json:"weekStartDate" validate:"required,datetime=2006-01-02"`
	WeekEndDate     string `json:"weekEndDate" validate:"required,datetime=2006-01-02"`
	CalculationType string `json:"calculationType" validate:"omitempty,oneof=checkout calendar"`
}

// BulkGenerateStatements kicks off a background run that builds one draft per
// property. With no propertyIDs it covers every active listing. Returns the
// job id for polling.
func BulkGenerateStatements(ctx iris.Context) {
	var input BulkGenerateInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	gi, err := (&GenerateStatementInput{
		WeekStartDate:   input.WeekStartDate,
		WeekEndDate:     input.WeekEndDate,
		CalculationType: input.CalculationType,
	}).toService()
	if err != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", err.Error(), ctx)
		return
	}

	propertyIDs := input.PropertyIDs
	if len(propertyIDs) == 0 {
		var listings []models.Listing
		if err := storage.DB.Where("active IS NULL OR active = ?", true).Find(&listings).Error; err != nil {
			utils.CreateError(iris.StatusInternalServerError, "Error", err.Error(), ctx)
			return
		}
		for _, l := range listings {
			propertyIDs = append(propertyIDs, l.ID)
		}
	}
	if len(propertyIDs) == 0 {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "no active listings to generate for", ctx)
		return
	}

	job := generator().StartBulk(propertyIDs, gi)

	ctx.StatusCode(iris.StatusAccepted)
	ctx.JSON(iris.Map{
		"jobID": job.ID,
		"total": job.Total,
	})
}

// BulkGenerateStatus reports progress for a running or finished bulk job.
func BulkGenerateStatus(ctx iris.Context) {
	id := ctx.Params().Get("jobID")

	job, ok := generator().BulkStatus(id)
	if !ok {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Job not found", ctx)
		return
	}
	ctx.JSON(job)
}
