package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/arrms"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/config"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/database"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/dispatcher"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/httpclient"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/logger"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/onspring"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/rabbitmq"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/routes"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/secrets"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/service"
	syncer "github.com/Beleza-Asureti/arrms-onspring-integration/internal/sync"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/transform"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	onspringKey, arrmsKey, err := resolveAPIKeys(ctx, cfg)
	cancel()
	if err != nil {
		logger.Fatal("Failed to resolve API keys", zap.Error(err))
	}

	if err := database.RunMigrations(&cfg.Database, logger.Logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.Connect(&cfg.Database, logger.Logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, logger.Logger); err != nil {
			logger.Error("Error closing database", zap.Error(err))
		}
	}()

	rmq := rabbitmq.NewConnection(&cfg.RabbitMQ, logger.Logger)
	if err := rmq.Connect(); err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rmq.Close()

	onspringClient := onspring.NewClient(cfg.Onspring, onspringKey, httpclient.New(30*time.Second))
	arrmsClient := arrms.NewClient(cfg.ARRMS, arrmsKey, httpclient.New(60*time.Second))
	transformer := transform.New(
		cfg.Onspring.FieldMapping,
		cfg.Onspring.StatusListValue,
		cfg.Onspring.RecordURL,
		cfg.Sync.ExternalSource,
		onspringClient,
	)
	orchestrator := syncer.NewOrchestrator(onspringClient, arrmsClient, transformer, cfg.Onspring, cfg.Sync)

	svc := service.NewService(cfg, db, logger.Logger, rmq, onspringClient, arrmsClient, orchestrator)

	disp := dispatcher.NewDispatcher(&cfg.Dispatcher, rmq, db, logger.Logger)
	if err := disp.Start(); err != nil {
		logger.Fatal("Failed to start dispatcher", zap.Error(err))
	}

	wrk := worker.NewWorker(&cfg.Worker, rmq, db, orchestrator, logger.Logger)
	if err := wrk.Start(); err != nil {
		logger.Fatal("Failed to start worker", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:      "ARRMS Onspring Integration",
		ServerHeader: "Fiber",
		BodyLimit:    10 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Webhook-Signature",
	}))

	routes.SetupRoutes(app, svc)

	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		logger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}
	if err := wrk.Stop(); err != nil {
		logger.Error("Error stopping worker", zap.Error(err))
	}
	if err := disp.Stop(); err != nil {
		logger.Error("Error stopping dispatcher", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// resolveAPIKeys prefers env-provided keys and falls back to Secrets Manager.
// The AWS client is only built when at least one key needs a lookup.
func resolveAPIKeys(ctx context.Context, cfg *config.Config) (onspringKey, arrmsKey string, err error) {
	onspringKey = cfg.Onspring.APIKey
	arrmsKey = cfg.ARRMS.APIKey
	if onspringKey != "" && arrmsKey != "" {
		return onspringKey, arrmsKey, nil
	}

	resolver, err := secrets.NewResolver(ctx)
	if err != nil {
		return "", "", err
	}
	if onspringKey, err = resolver.Resolve(ctx, cfg.Onspring.APIKey, cfg.Onspring.APIKeySecret); err != nil {
		return "", "", err
	}
	if arrmsKey, err = resolver.Resolve(ctx, cfg.ARRMS.APIKey, cfg.ARRMS.APIKeySecret); err != nil {
		return "", "", err
	}
	return onspringKey, arrmsKey, nil
}
