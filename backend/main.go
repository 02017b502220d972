package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"georetail/backend/config"
	"georetail/backend/handlers"
	"georetail/backend/services"
	"georetail/backend/system"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	// 0. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := system.InitLogger(system.LogOptions{
		Dir:    cfg.Log.Dir,
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}); err != nil {
		log.Printf("Warning: Could not initialize file logger: %v", err)
	}
	defer system.Close()

	system.Info("GeoRetail dashboard starting...")

	// 1. Database
	db, err := services.OpenDatabase(cfg.Data.DBPath)
	if err != nil {
		system.Error("%v", err)
		log.Fatalf("CRITICAL: %v", err)
	}
	system.Info("Database ready: %s", cfg.Data.DBPath)

	if err := handlers.SeedAdmin(db, cfg.Auth.AdminUser, cfg.Auth.AdminPassword); err != nil {
		system.Warn("%v", err)
	}
	if cfg.Auth.JWTSecret == config.Defaults().Auth.JWTSecret {
		system.Warn("auth.jwt_secret is the built-in default, set GEORETAIL_AUTH_JWT_SECRET")
	}

	// 2. Services
	metrics := services.NewMetrics()
	resolver, err := services.NewContinentResolver()
	if err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}
	system.Debug("Continent table covers %d countries", resolver.Countries())
	store := services.NewCityStore(db)
	ranking := services.NewRankingService(store, cfg.Dashboard.TopN, cfg.Dashboard.CacheTTL, metrics)

	webhookService := services.NewWebhookService(cfg.Webhook.DiscordURL)
	if webhookService.IsEnabled() {
		system.Info("Discord webhook configured")
	}

	datasets := services.NewDatasetManager(cfg.Data.CSVPath, resolver, ranking, webhookService)
	datasets.OnEvent(handlers.AddEvent)

	// Nothing to show without an initial dataset
	if _, err := datasets.Reload(); err != nil {
		log.Fatalf("CRITICAL: Failed to load dataset %s: %v", cfg.Data.CSVPath, err)
	}

	watcher := services.NewDatasetWatcher(datasets, cfg.Data.WatchInterval)
	watcher.Start()

	reporter := services.NewDailyReporter(ranking, webhookService, cfg.Webhook.DigestHour)
	reporter.Start()

	// 3. HTTP
	h := handlers.NewHandler(db, cfg, ranking, datasets, metrics, webhookService)

	app := fiber.New(fiber.Config{
		AppName:               "GeoRetail",
		DisableStartupMessage: true,
		BodyLimit:             33 << 20,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		Output:     os.Stdout,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.CORSOrigins, ","),
	}))

	handlers.SetupRoutes(app, h)

	addStartupEvent(cfg)

	// Graceful Shutdown Handling
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		system.Info("Gracefully shutting down...")

		watcher.Stop()
		reporter.Stop()

		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	system.Info("Server starting on %s", cfg.Addr())
	if err := app.Listen(cfg.Addr()); err != nil {
		log.Fatal(err)
	}
}

// addStartupEvent records the effective settings in the event log
func addStartupEvent(cfg *config.Config) {
	handlers.AddEvent("success", fmt.Sprintf("GeoRetail started (top %d, tiles %s, data %s)",
		cfg.Dashboard.TopN, cfg.Map.Tiles, cfg.Data.CSVPath))
}
