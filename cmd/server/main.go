package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/himstay/internal/config"
	"github.com/example/himstay/internal/database"
	"github.com/example/himstay/internal/himkosh"
	"github.com/example/himstay/internal/routes"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	engine := himkosh.NewEngine(cfg.HimKosh.KeyFilePath, himkosh.IVMode(cfg.HimKosh.IVMode))
	if !engine.Configured() {
		log.Printf("warning: HimKosh key material not loadable yet, cipher operations will fail until provisioned")
	}

	app := fiber.New(fiber.Config{
		AppName: "HimStay Backend",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, db, cfg, engine)

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
