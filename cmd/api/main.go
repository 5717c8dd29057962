package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"SoilMonitorAPI/internal/config"
	"SoilMonitorAPI/internal/database"
	"SoilMonitorAPI/internal/handler"
	"SoilMonitorAPI/internal/kafka"
	"SoilMonitorAPI/internal/live"
	"SoilMonitorAPI/internal/logger"
	"SoilMonitorAPI/internal/mqtt"
	"SoilMonitorAPI/internal/repository"
	"SoilMonitorAPI/internal/server"
	"SoilMonitorAPI/internal/service"
)

func main() {
	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		// Fallback logger since main logger isn't ready
		panic("Failed to load configuration: " + err.Error())
	}

	// 2. Initialize Logger
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Mode:        cfg.Logging.Mode,
		LogFilePath: cfg.Logging.FilePath,
		UseColors:   cfg.Logging.UseColors,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Configuration validation failed: %v", err)
	}

	cfg.Print()
	log.Info("Starting Soil Monitor API Server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Stores
	var (
		readingRepo repository.IReadingRepository
		alertRepo   repository.IAlertRepository
		storeCheck  handler.StoreChecker
	)

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := database.New(&cfg.Database)
		if err != nil {
			log.Fatal("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			log.Fatal("Database migration failed: %v", err)
		}
		log.Info("Database connected successfully")

		readingRepo = repository.NewReadingRepository(db.DB)
		alertRepo = repository.NewAlertRepository(db.DB)
		storeCheck = db
	default:
		log.Warn("Using in-memory store, data is lost on restart")
		readingRepo = repository.NewMemoryReadingRepository()
		alertRepo = repository.NewMemoryAlertRepository()
	}

	// 4. Services
	statusAggregator := service.NewStatusAggregator(alertRepo)
	alertService := service.NewAlertService(alertRepo, log.With("alerts"))
	readingService := service.NewReadingService(readingRepo, statusAggregator, cfg.Pipeline.SnapshotReadings)
	evaluator := service.NewEvaluator(cfg.Thresholds)

	// 5. Live Channel
	hub := live.NewHub(readingService, live.HubConfig{
		BroadcastBuffer:  cfg.Pipeline.BroadcastBuffer,
		SubscriberBuffer: cfg.Pipeline.SubscriberBuffer,
	}, log.With("live"))

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		hub.Run(ctx)
	}()

	// 6. Ingestion Loop
	var source service.ReadingSource
	if cfg.Pipeline.Source == config.SourceMock {
		source = service.NewMockGenerator(time.Now().UnixNano())
	}
	loop := service.NewIngestionLoop(readingRepo, evaluator, alertService, statusAggregator,
		hub, source, cfg.Pipeline.Interval, log.With("ingest"))

	if source != nil {
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := loop.Run(ctx); err != nil {
				log.Error("Ingestion loop failed: %v", err)
			}
		}()
	}

	// 7. MQTT Reading Source
	var broker handler.BrokerChecker
	if cfg.Pipeline.Source == config.SourceMQTT {
		mqttClient, err := mqtt.NewClient(mqtt.ClientConfig{
			MQTT:   &cfg.MQTT,
			Logger: log.With("mqtt"),
		})
		if err != nil {
			log.Fatal("Failed to create MQTT client: %v", err)
		}
		defer mqttClient.Disconnect()

		if err := mqttClient.Connect(); err != nil {
			log.Fatal("Failed to connect to MQTT broker: %v", err)
		}

		if err := mqttClient.Subscribe(cfg.MQTT.ReadingTopic, mqtt.NewReadingHandler(loop, log.With("mqtt"))); err != nil {
			log.Fatal("Failed to subscribe to reading topic: %v", err)
		}
		broker = mqttClient
		log.Info("MQTT subscriptions active")
	}

	// 8. Kafka Event Mirror
	if cfg.Kafka.Enabled() {
		mirror, err := kafka.NewMirror(cfg.Kafka, hub, log.With("kafka"))
		if err != nil {
			log.Fatal("Failed to create Kafka mirror: %v", err)
		}
		defer func() {
			if err := mirror.Close(); err != nil {
				log.Error("Failed to close Kafka writer: %v", err)
			}
		}()

		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := mirror.Run(ctx); err != nil {
				log.Error("Kafka mirror failed: %v", err)
			}
		}()
	}

	// 9. Handlers
	readingHandler := handler.NewReadingHandler(readingService, loop, log.With("http"))
	alertHandler := handler.NewAlertHandler(alertService, statusAggregator, hub, log.With("http"))
	exportHandler := handler.NewExportHandler(readingService, log.With("export"))
	healthHandler := handler.NewHealthHandler(storeCheck, broker, hub, log)

	// 10. Start HTTP Server
	srv := server.New(cfg, log)
	srv.RegisterHandlers(readingHandler, alertHandler, exportHandler, healthHandler, hub)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("Server failed: %v", err)
		}
	}()

	log.Info("API server ready on http://%s:%d (source: %s)", cfg.Server.Host, cfg.Server.Port, cfg.Pipeline.Source)

	// 11. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error: %v", err)
	}

	cancel()
	workers.Wait()

	log.Info("Shutdown complete")
}
