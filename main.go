package main

import (
	"fmt"
	"log"
	"os"

	"owner-statements-server/routes"
	"owner-statements-server/storage"
	"owner-statements-server/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	godotenv.Load()
	storage.InitializeDB()
	storage.InitializeRedis()

	app := iris.New()
	app.Validator = validator.New()

	// CORS for the back-office dashboard
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})

	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput utils.RefreshTokenInput
		err := ctx.ReadJSON(&tokenInput)
		if err != nil {
			return ""
		}

		return tokenInput.RefreshToken
	})

	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	user := app.Party("/api/user")
	{
		user.Post("/register", routes.Register)
		user.Post("/login", routes.Login)
	}

	listing := app.Party("/api/listing", accessTokenVerifierMiddleware)
	{
		listing.Get("", routes.GetListings)
		listing.Get("/{id:uint}", routes.GetListing)
		listing.Post("", utils.AdminOnlyMiddleware, routes.CreateListing)
		listing.Patch("/{id:uint}/financials", utils.AdminOnlyMiddleware, routes.UpdateListingFinancials)
	}

	expense := app.Party("/api/expense", accessTokenVerifierMiddleware)
	{
		expense.Get("", routes.GetExpenses)
		expense.Post("", routes.CreateExpense)
		expense.Delete("/{id:uint}", utils.AdminOnlyMiddleware, routes.DeleteExpense)
	}

	statement := app.Party("/api/statement", accessTokenVerifierMiddleware)
	{
		statement.Get("", routes.ListStatements)
		statement.Post("/generate", routes.GenerateStatement)
		statement.Post("/generate/bulk", utils.AdminOnlyMiddleware, routes.BulkGenerateStatements)
		statement.Get("/generate/bulk/{jobID}", routes.BulkGenerateStatus)
		statement.Get("/{id:uint}", routes.GetStatement)
		statement.Patch("/{id:uint}/status", routes.UpdateStatementStatus)
		statement.Delete("/{id:uint}", utils.AdminOnlyMiddleware, routes.DeleteStatement)

		statement.Patch("/{id:uint}/items/{itemID}/hide", routes.HideItem)
		statement.Patch("/{id:uint}/items/{itemID}/show", routes.ShowItem)
		statement.Patch("/{id:uint}/items/{itemID}", routes.EditItem)
		statement.Post("/{id:uint}/reservations", routes.AddReservation)
		statement.Post("/{id:uint}/reservations/custom", routes.InsertCustomReservation)
		statement.Delete("/{id:uint}/reservations/{reservationID}", routes.RemoveReservation)
		statement.Patch("/{id:uint}/reservations/{reservationID}/cleaning-fee", routes.UpdateCleaningFee)
	}

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Get("/users", routes.AdminListUsers)
		admin.Patch("/users/{id:uint}/role", utils.SuperAdminOnlyMiddleware, routes.AdminChangeUserRole)
		admin.Get("/audit", routes.AdminListAuditLogs)
	}

	app.Post("/api/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	addr := "0.0.0.0:" + port

	fmt.Printf("Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
