package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"spendsnap/internal/config"
	"spendsnap/internal/database"
	"spendsnap/internal/logger"
	"spendsnap/internal/services"
	"spendsnap/internal/validator"

	_ "spendsnap/internal/docs" // Import swagger docs
)

// @title           SpendSnap API
// @version         1.0
// @description     Reference backend for the SpendSnap receipt-driven expense tracker.

// @host      localhost:3000
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	logger.Init(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	validator.Register()

	dbManager, err := database.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(cfg.MigrationsDir); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	db := dbManager.DB()
	extractor, err := newExtractor(cfg)
	if err != nil {
		return err
	}

	events := services.NewNoopPublisher()
	if cfg.AMQPURL != "" {
		events, err = services.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("failed to connect to message broker: %w", err)
		}
		log.Infof("Publishing expense events to exchange %s", cfg.AMQPExchange)
	}
	defer events.Close()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(db, extractor, events, cfg.MaxImageBytes)

	log.Infof("Starting SpendSnap API on port %s", cfg.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", cfg.Port)
	return router.Run(":" + cfg.Port)
}

// newExtractor picks the receipt recognizer. Without an API key, development
// servers answer with a fixed receipt and production servers report the
// feature as unavailable.
func newExtractor(cfg *config.Config) (services.ExtractionServicer, error) {
	log := logger.Get()
	switch {
	case cfg.GeminiAPIKey != "":
		ex, err := services.NewGeminiExtractor(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create receipt extractor: %w", err)
		}
		log.Infof("Receipt extraction using %s", cfg.GeminiModel)
		return ex, nil
	case cfg.Env == "production":
		log.Warn("GEMINI_API_KEY not set, receipt extraction disabled")
		return services.NewDisabledExtractor(), nil
	default:
		log.Warn("GEMINI_API_KEY not set, using fixture receipt extractor")
		return services.NewFixtureExtractor(), nil
	}
}
