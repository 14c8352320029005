package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i292847/bike-trip-aggregation/internal/api/http"
	"github.com/i292847/bike-trip-aggregation/internal/config"
	"github.com/i292847/bike-trip-aggregation/internal/fetch"
	"github.com/i292847/bike-trip-aggregation/internal/pipeline"
	"github.com/i292847/bike-trip-aggregation/internal/scheduler"
	"github.com/i292847/bike-trip-aggregation/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for remote dataset downloads.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	fetcher := fetch.NewClient(httpClient)

	// In-memory run store with configured retention.
	runStore := store.NewMemoryStore(cfg.StoreMaxHistory)

	// Core pipeline joining trips against zones, metadata and weather.
	pipe := pipeline.New(cfg, fetcher, runStore)

	// Initial batch pass. The batch contract is all-or-nothing, so a failed
	// first run is fatal rather than serving an empty result set.
	runCtx, cancelRun := context.WithTimeout(context.Background(), 10*time.Minute)
	run, err := pipe.Run(runCtx)
	cancelRun()
	if err != nil {
		log.Fatalf("initial pipeline run failed: %v", err)
	}
	log.Printf("initial run %s produced %d rows", run.ID, run.RowCount())

	// Scheduler that re-runs the pipeline when refresh is enabled.
	sched := scheduler.New(pipe, cfg.RefreshInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "bike-trip-aggregation",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "bike-trip-aggregation",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, pipe, cfg.GeocoderAPIKey)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
