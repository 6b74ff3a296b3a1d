package main

// @title           Sercha Ingest API
// @version         1.0
// @description     Document ingestion and semantic search over Qdrant collections.

// @contact.name   Sercha OSS
// @contact.url    https://github.com/custodia-labs/sercha-ingest/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8000
// @BasePath  /
// @schemes   http https

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/memory"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/postgres"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driven/qdrant"
	postgresqueue "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/sercha-ingest/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-ingest/internal/chunking"
	"github.com/custodia-labs/sercha-ingest/internal/config"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/services"
	"github.com/custodia-labs/sercha-ingest/internal/extractors"
	"github.com/custodia-labs/sercha-ingest/internal/worker"
)

var version = "dev"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	// Command line arg overrides RUN_MODE
	if len(os.Args) > 1 {
		cfg.RunMode = os.Args[1]
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	log.Printf("sercha-ingest %s starting in %s mode (registry backend: %s)", version, cfg.RunMode, cfg.RegistryBackend)

	// Cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize backends: %v", err)
	}
	defer b.Close()

	// ===== Driven adapters =====
	embedder, err := ai.NewEmbeddingService(ai.EmbeddingConfig{
		OpenAIAPIKey:      cfg.Embedding.OpenAIAPIKey,
		OpenAIBaseURL:     cfg.Embedding.OpenAIBaseURL,
		Model:             cfg.Embedding.Model,
		BatchSize:         cfg.Embedding.BatchSize,
		RequestsPerSecond: cfg.Embedding.RPS,
		Logger:            logger,
	})
	if err != nil {
		log.Fatalf("Failed to configure embedding provider: %v", err)
	}
	defer embedder.Close()

	dialer := qdrant.NewDialer(cfg.QdrantTimeout())
	defaultConn := cfg.DefaultConnection()
	if defaultConn.IsZero() {
		log.Println("No QDRANT_URL configured: requests must supply qdrant_url, async reconcile is disabled")
	} else if _, err := dialer.Dial(ctx, defaultConn); err != nil {
		log.Printf("Warning: default Qdrant connection check failed: %v (requests may fail)", err)
	} else {
		log.Printf("Qdrant reachable at %s", defaultConn.URL)
	}

	// ===== Services =====
	locker := services.NewIndexLocker(services.IndexLockerConfig{
		Lock:   b.lock,
		TTL:    cfg.LockTTL(),
		Wait:   cfg.LockWait(),
		Logger: logger,
	})

	svc := http.Services{
		Ingestion: services.NewIngestionService(services.IngestionConfig{
			Registry:          b.registry,
			Extractors:        extractors.DefaultRegistry(nil),
			Chunker:           chunking.NewChunker(),
			Embedder:          embedder,
			Dialer:            dialer,
			Locker:            locker,
			DefaultConnection: defaultConn,
			MaxUploadBytes:    cfg.MaxUploadBytes,
			Logger:            logger,
		}),
		Search: services.NewSearchService(services.SearchConfig{
			Registry:          b.registry,
			Embedder:          embedder,
			Dialer:            dialer,
			DefaultConnection: defaultConn,
			Logger:            logger,
		}),
		Indexes: services.NewIndexService(services.IndexConfig{
			Registry:          b.registry,
			Embedder:          embedder,
			Dialer:            dialer,
			Locker:            locker,
			DefaultConnection: defaultConn,
			Logger:            logger,
		}),
		Connections: services.NewConnectionService(dialer, defaultConn, logger),
		Reconcile: services.NewReconcileService(services.ReconcileConfig{
			Registry:          b.registry,
			Dialer:            dialer,
			Locker:            locker,
			TaskQueue:         b.queue,
			DefaultConnection: defaultConn,
			Logger:            logger,
		}),
	}

	// Scheduled sweeps only make sense with a default connection
	var scheduler *services.Scheduler
	if cfg.ReconcileInterval() > 0 && !defaultConn.IsZero() {
		scheduler = services.NewScheduler(services.SchedulerConfig{
			Schedules: domain.DefaultSchedules(cfg.ReconcileInterval()),
			TaskQueue: b.queue,
			Lock:      b.lock,
			Logger:    logger,
		})
		log.Printf("Scheduler enabled (reconcile every %s)", cfg.ReconcileInterval())
	} else {
		log.Println("Scheduler disabled")
	}

	switch cfg.RunMode {
	case config.ModeAPI:
		runAPI(ctx, cfg, svc, b.checks, logger)

	case config.ModeWorker:
		runWorkerMode(ctx, cfg, b.queue, svc.Reconcile, scheduler, logger)

	case config.ModeAll:
		go runWorkerMode(ctx, cfg, b.queue, svc.Reconcile, scheduler, logger)
		runAPI(ctx, cfg, svc, b.checks, logger)
	}
}

// backends are the registry, lock and task queue shared by every service
type backends struct {
	registry driven.IndexRegistry
	lock     driven.DistributedLock
	queue    driven.TaskQueue
	checks   map[string]http.Pinger
	closers  []io.Closer
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i].Close()
	}
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}

	switch cfg.RegistryBackend {
	case config.BackendRedis:
		log.Println("Connecting to Redis...")
		client, err := redisadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client)

		queue, err := redisqueue.NewQueue(ctx, client, fmt.Sprintf("worker-%d", os.Getpid()))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("create task queue: %w", err)
		}
		registry, lock := redisadapter.NewRegistry(client), redisadapter.NewLock(client)
		b.registry, b.lock, b.queue = registry, lock, queue
		b.checks = map[string]http.Pinger{"registry": registry, "lock": lock, "queue": queue}
		log.Println("Using Redis registry, lock and task queue")

	case config.BackendPostgres:
		log.Println("Connecting to PostgreSQL...")
		db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db)

		// Initialize schema (idempotent)
		if err := db.InitSchema(ctx); err != nil {
			b.Close()
			return nil, err
		}
		registry, lock, queue := postgres.NewRegistry(db), postgres.NewAdvisoryLock(db), postgresqueue.NewQueue(db.DB)
		b.registry, b.lock, b.queue = registry, lock, queue
		b.checks = map[string]http.Pinger{"registry": registry, "lock": lock, "queue": queue}
		log.Println("Using PostgreSQL registry, advisory lock and task queue")

	default:
		registry, lock, queue := memory.NewRegistry(), memory.NewLock(), memory.NewQueue()
		b.registry, b.lock, b.queue = registry, lock, queue
		b.closers = append(b.closers, queue)
		b.checks = map[string]http.Pinger{"registry": registry, "lock": lock, "queue": queue}
		log.Println("Using in-memory registry, lock and task queue (state is lost on restart)")
	}
	return b, nil
}

func runAPI(ctx context.Context, cfg *config.Config, svc http.Services, checks map[string]http.Pinger, logger *slog.Logger) {
	server := http.NewServer(http.Config{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        version,
		MaxUploadBytes: cfg.MaxUploadBytes,
		CORSOrigins:    cfg.CORSOrigins,
		Logger:         logger,
	}, svc, checks)

	log.Printf("API server starting on %s:%d", cfg.Host, cfg.Port)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runWorkerMode starts the worker and scheduler.
// It processes reconcile tasks from the queue until ctx is cancelled.
func runWorkerMode(
	ctx context.Context,
	cfg *config.Config,
	taskQueue driven.TaskQueue,
	reconciler worker.Reconciler,
	scheduler *services.Scheduler,
	logger *slog.Logger,
) {
	log.Println("Starting worker mode...")

	w := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      taskQueue,
		Reconciler:     reconciler,
		Scheduler:      scheduler,
		Logger:         logger,
		Concurrency:    cfg.Worker.Concurrency,
		DequeueTimeout: cfg.Worker.DequeueTimeout,
	})

	if err := w.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Println("Worker started, processing tasks...")
	log.Println("Worker handles:")
	log.Println("  - reconcile_index: Reconcile one index with its collection")
	log.Println("  - reconcile_all: Reconcile every index")

	<-ctx.Done()

	log.Println("Stopping worker...")
	w.Stop()
	log.Println("Worker stopped")
}
