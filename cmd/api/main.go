package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/1026465274/coze-workflow-app/internal/blob"
	"github.com/1026465274/coze-workflow-app/internal/config"
	"github.com/1026465274/coze-workflow-app/internal/document"
	httpserver "github.com/1026465274/coze-workflow-app/internal/http"
	"github.com/1026465274/coze-workflow-app/internal/http/handlers"
	"github.com/1026465274/coze-workflow-app/internal/queue"
	"github.com/1026465274/coze-workflow-app/internal/service"
	"github.com/1026465274/coze-workflow-app/internal/store"
	"github.com/1026465274/coze-workflow-app/internal/worker"
	"github.com/1026465274/coze-workflow-app/internal/workflow"
)

func main() {
	logger := log.New(os.Stdout, "[coze-workflow] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobStore, storeCloser := setupStore(ctx, cfg, logger)
	defer storeCloser()

	producer, consumer, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	runner := workflow.NewClient(workflow.Config{
		Token:         cfg.CozeAPIKey,
		WorkflowID:    cfg.CozeWorkflowID,
		BaseURL:       cfg.CozeBaseURL,
		Mode:          workflow.Mode(cfg.CozeAPIMode),
		RunTimeout:    time.Duration(cfg.CozeRunTimeoutMS) * time.Millisecond,
		StreamTimeout: time.Duration(cfg.CozeStreamTimeoutMS) * time.Millisecond,
	})
	if !runner.Available() {
		logger.Printf("COZE_API_KEY or COZE_WORKFLOW_ID not configured, workflow calls will fail")
	}

	blobs, filesDir := setupBlobStore(ctx, cfg, logger)
	publisher := document.NewPublisher(document.Config{
		WebhookURL:    cfg.DocumentWebhookURL,
		ExportBaseURL: cfg.DocumentExportBaseURL,
		Timeout:       time.Duration(cfg.DocumentTimeoutMS) * time.Millisecond,
	}, blobs)
	if !publisher.Available() {
		logger.Printf("document pipeline not fully configured, jobs complete without artifacts")
	}

	jobService := service.NewJobService(jobStore, producer, logger)
	api := handlers.NewAPI(jobService, runner, publisher, logger)

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		FilesDir:       filesDir,
	})

	if cfg.WorkerEnabled {
		processor := worker.NewProcessor(consumer, jobService, runner, publisher, logger)
		go processor.Start(ctx)
		logger.Printf("worker enabled and started")
	} else {
		logger.Printf("worker disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func setupStore(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (store.JobStore, func()) {
	if cfg.RedisAddr != "" {
		redisStore, err := store.NewRedisJobStore(ctx, store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Printf("failed to initialize redis job store: %v", err)
		} else {
			logger.Printf("redis job store initialized")
			return redisStore, func() {
				_ = redisStore.Close()
			}
		}
	}

	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgresJobStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Printf("failed to initialize postgres job store: %v", err)
		} else {
			logger.Printf("postgres job store initialized")
			return pgStore, func() {
				pgStore.Close()
			}
		}
	}

	logger.Printf("no durable store configured, using in-memory job store")
	return store.NewMemoryJobStore(), func() {}
}

func setupQueue(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (queue.Producer, queue.Consumer, func()) {
	var (
		baseProducer queue.Producer
		consumer     queue.Consumer
		baseCloser   = func() {}
	)

	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using local queue fallback")
		local := queue.NewLocalQueue(512, 3, logger)
		baseProducer = local
		consumer = local
	} else {
		streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			Stream:      cfg.RedisStream,
			DLQStream:   cfg.RedisDLQ,
			Group:       cfg.RedisGroup,
			Consumer:    cfg.RedisConsumer,
			MaxAttempts: 3,
		})
		if err != nil {
			logger.Printf("failed to initialize redis streams queue, fallback to local: %v", err)
			local := queue.NewLocalQueue(512, 3, logger)
			baseProducer = local
			consumer = local
		} else {
			logger.Printf("redis streams queue initialized")
			baseProducer = streams
			consumer = streams
			baseCloser = func() {
				_ = streams.Close()
			}
		}
	}

	producer := baseProducer
	batchingCloser := func() {}
	if cfg.QueueBatchingEnabled {
		batching := queue.NewBatchingProducer(ctx, baseProducer, queue.BatchingConfig{
			MaxBatchSize:       cfg.QueueBatchSize,
			FlushInterval:      time.Duration(cfg.QueueBatchFlushMS) * time.Millisecond,
			FlushTimeout:       time.Duration(cfg.QueueBatchFlushTimeoutMS) * time.Millisecond,
			QueueCapacity:      cfg.QueueBatchQueueCapacity,
			MaxInFlightBatches: cfg.QueueBatchMaxInFlight,
		})
		producer = batching
		batchingCloser = batching.Close
		logger.Printf(
			"queue batching enabled size=%d flush_ms=%d queue_capacity=%d max_in_flight=%d",
			cfg.QueueBatchSize,
			cfg.QueueBatchFlushMS,
			cfg.QueueBatchQueueCapacity,
			cfg.QueueBatchMaxInFlight,
		)
	}

	return producer, consumer, func() {
		batchingCloser()
		baseCloser()
	}
}

func setupBlobStore(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (blob.Store, string) {
	if cfg.S3Bucket != "" {
		s3Store, err := blob.NewS3Store(ctx, blob.S3Config{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			ForcePathStyle:  cfg.S3ForcePathStyle,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
		if err != nil {
			logger.Printf("failed to initialize s3 blob store: %v", err)
		} else {
			logger.Printf("s3 blob store initialized bucket=%s", cfg.S3Bucket)
			return s3Store, ""
		}
	}

	if cfg.BlobDir != "" {
		localStore, err := blob.NewLocalStore(cfg.BlobDir, cfg.BlobPublicBaseURL)
		if err != nil {
			logger.Printf("failed to initialize local blob store: %v", err)
			return nil, ""
		}
		logger.Printf("local blob store initialized dir=%s", cfg.BlobDir)
		return localStore, localStore.Dir()
	}

	logger.Printf("no blob store configured, document downloads disabled")
	return nil, ""
}
