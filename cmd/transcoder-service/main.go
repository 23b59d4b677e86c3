package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/chat-transcoder/internal/api/handler"
	"github.com/cuongbtq/chat-transcoder/internal/api/router"
	apistorage "github.com/cuongbtq/chat-transcoder/internal/api/storage"
	"github.com/cuongbtq/chat-transcoder/internal/chat"
	"github.com/cuongbtq/chat-transcoder/internal/config"
	"github.com/cuongbtq/chat-transcoder/internal/ffmpeg"
	"github.com/cuongbtq/chat-transcoder/internal/worker"
	"github.com/cuongbtq/chat-transcoder/internal/worker/mediastore"
	"github.com/cuongbtq/chat-transcoder/internal/worker/storage"
	"github.com/cuongbtq/chat-transcoder/shared/logger"
	"github.com/cuongbtq/chat-transcoder/shared/objectstore"
	"github.com/cuongbtq/chat-transcoder/shared/postgresql"
	"github.com/cuongbtq/chat-transcoder/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	bootLogger := logger.NewDefault()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		bootLogger.Info("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("TRANSCODER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/transcoder-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	bootLogger.Debug("Loading configuration",
		slog.String("path", *configPath),
	)
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting transcoder service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Job history is optional
	var dbClient *postgresql.Client
	if cfg.Database.Enabled {
		dbClient, err = initPostgreSQL(&cfg.Database, appLogger.Component("postgresql").Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		appLogger.Info("Database connection established")
	}

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Component("rabbitmq").Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	objectClient, err := initObjectStore(&cfg.ObjectStore, appLogger.Component("objectstore").Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	gateway := chat.NewGateway(&chat.Config{
		Logger:        appLogger.Component("gateway").Logger,
		Store:         objectClient,
		Publisher:     rabbitClient,
		HTTPClient:    &http.Client{Timeout: cfg.ObjectStore.DownloadTimeout},
		PresignExpiry: cfg.ObjectStore.PresignExpiry,
	})

	store := mediastore.New(mediastore.Config{
		InboundDir:  cfg.Transcoder.InboundDir,
		OutboundDir: cfg.Transcoder.OutboundDir,
		SourceExt:   cfg.Transcoder.SourceExt,
		TargetExt:   cfg.Transcoder.TargetExt,
	}, appLogger.Component("mediastore").Logger)

	engine := ffmpeg.NewEngine(ffmpeg.Config{
		FFmpegPath:  cfg.Transcoder.FFmpegPath,
		FFprobePath: cfg.Transcoder.FFprobePath,
		Threads:     cfg.Transcoder.Threads,
		ExtraArgs:   cfg.Transcoder.ExtraArgs,
	}, appLogger.Component("ffmpeg").Logger)

	pipelineCfg := &worker.PipelineConfig{
		Logger:           appLogger.Component("pipeline").Logger,
		Gateway:          gateway,
		Engine:           engine,
		Store:            store,
		UploadDir:        cfg.Transcoder.UploadDir,
		ResolveTimeout:   cfg.Transcoder.ResolveTimeout,
		DownloadTimeout:  cfg.Transcoder.DownloadTimeout,
		TranscodeTimeout: cfg.Transcoder.TranscodeTimeout,
		UploadTimeout:    cfg.Transcoder.UploadTimeout,
	}
	if dbClient != nil {
		pipelineCfg.Recorder = storage.NewStorage(dbClient.GetDB(), appLogger.Component("history").Logger)
	}
	pipeline := worker.NewPipeline(pipelineCfg)

	ingress := worker.NewIngress(&worker.IngressConfig{
		Logger:    appLogger.Component("ingress").Logger,
		Pipeline:  pipeline,
		Replier:   gateway,
		Store:     store,
		SourceExt: cfg.Transcoder.SourceExt,
		TargetExt: cfg.Transcoder.TargetExt,
	})

	workerID := cfg.RabbitMQ.Consumer.Tag
	if workerID == "" {
		workerID = "transcoder-" + uuid.NewString()[:8]
	}

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:   appLogger.WithAttrs(slog.String("component", "worker"), slog.String("source_queue", cfg.RabbitMQ.Queue.Name)).Logger,
		Source:   rabbitClient,
		Ingress:  ingress,
		Pipeline: pipeline,
		WorkerID: workerID,
	})

	r := initRouter(cfg, appLogger.WithGroup("http").Logger, dbClient, pipeline)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 2)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- fmt.Errorf("worker: %w", err)
		}
	}()

	go func() {
		appLogger.Info("Starting HTTP server",
			slog.String("address", addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	appLogger.Info("Transcoder service started successfully",
		slog.String("worker_id", workerID),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case runErr = <-errChan:
		appLogger.Error("Service error",
			slog.Any("error", runErr),
		)
	}

	// Stop accepting events, then let the in-flight queue drain
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
	}

	if !stopWithin(shutdownCtx, workerInstance.Stop) {
		// the drain loop still publishes replies and writes history, so its clients stay open
		appLogger.Warn("Worker shutdown timeout exceeded, exiting without closing clients",
			slog.Int("queued_jobs", pipeline.Status().QueueLength),
		)
		return runErr
	}
	appLogger.Info("Worker stopped gracefully")

	if dbClient != nil {
		dbClient.Close()
	}
	rabbitClient.Close()

	appLogger.Info("Transcoder service shutdown complete")
	return runErr
}

// stopWithin runs stop and reports whether it returned before ctx ended
func stopWithin(ctx context.Context, stop func()) bool {
	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
		NoColor:      cfg.NoColor,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client for chat events and outbound messages
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		OutboundExchange:   cfg.Outbound.Exchange,
		OutboundRoutingKey: cfg.Outbound.RoutingKey,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initObjectStore initializes the MinIO client used for file transfer
func initObjectStore(cfg *config.ObjectStoreConfig, logger *slog.Logger) (*objectstore.Client, error) {
	return objectstore.NewClient(&objectstore.Config{
		Endpoint:       cfg.Endpoint,
		AccessKey:      cfg.AccessKey,
		SecretKey:      cfg.SecretKey,
		Region:         cfg.Region,
		UseSSL:         cfg.UseSSL,
		InboundBucket:  cfg.InboundBucket,
		OutboundBucket: cfg.OutboundBucket,
		RetryAttempts:  cfg.RetryAttempts,
		RetryInterval:  cfg.RetryInterval,
	}, logger)
}

// initRouter initializes the Gin router for the status API
func initRouter(cfg *config.Config, logger *slog.Logger, dbClient *postgresql.Client, pipeline *worker.Pipeline) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	deps := &handler.Dependencies{
		Logger:      logger,
		ServiceName: cfg.App.Name,
		Queue:       pipeline,
	}
	if dbClient != nil {
		deps.Jobs = apistorage.NewStorage(dbClient)
		deps.Database = dbClient
	}

	return router.SetupRouter(deps)
}
