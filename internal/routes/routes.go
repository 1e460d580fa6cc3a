package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/himstay/internal/config"
	"github.com/example/himstay/internal/handlers"
	"github.com/example/himstay/internal/himkosh"
	"github.com/example/himstay/internal/middleware"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, engine *himkosh.Engine) {
	authHandler := handlers.NewAuthHandler(cfg)
	applicationHandler := handlers.NewApplicationHandler(db)
	paymentHandler := handlers.NewPaymentHandler(db, engine, cfg.HimKosh)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/token", authHandler.Token)

	applications := api.Group("/applications")
	applications.Post("/", applicationHandler.CreateApplication)
	applications.Get("/:id", applicationHandler.GetApplication)

	// Treasury gateway routes. Callback is unauthenticated; the gateway
	// proves itself by possession of the shared cipher key.
	payment := api.Group("/payment")
	payment.Post("/initiate", paymentHandler.Initiate)
	payment.Post("/callback", paymentHandler.Callback)
	payment.Get("/config/status", paymentHandler.ConfigStatus)

	// Operator-only diagnostics and reconciliation.
	operator := payment.Group("", middleware.AuthMiddleware(cfg))
	operator.Post("/verify/:appRefNo", paymentHandler.Verify)
	operator.Get("/transactions", paymentHandler.ListTransactions)
	operator.Get("/transaction/:appRefNo", paymentHandler.GetTransaction)

	ddo := api.Group("/ddo-mappings", middleware.AuthMiddleware(cfg))
	ddo.Get("/", applicationHandler.ListDDOMappings)
	ddo.Post("/", applicationHandler.CreateDDOMapping)
}
