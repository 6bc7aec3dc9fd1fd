package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/stroyassist/normax/internal/api/handlers"
	"github.com/stroyassist/normax/internal/config"
	"github.com/stroyassist/normax/internal/database"
	"github.com/stroyassist/normax/internal/embedding"
	"github.com/stroyassist/normax/internal/jobs"
	"github.com/stroyassist/normax/internal/llm"
	"github.com/stroyassist/normax/internal/repository"
	"github.com/stroyassist/normax/internal/server"
	"github.com/stroyassist/normax/internal/service"
	"github.com/stroyassist/normax/internal/telemetry"
	"github.com/stroyassist/normax/internal/vectorstore"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the retrieval engine API server",
		Long:  "Start the normax API server: indexing, hybrid search and consultation endpoints",
		RunE:  runServe,
	}

	bindServeFlags(cmd.Flags())

	return cmd
}

func bindServeFlags(fs *pflag.FlagSet) {
	fs.StringP("port", "p", "8080", "Port to listen on")
	fs.Bool("no-migrate", false, "Skip automatic database migrations on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	vectors, err := vectorstore.NewQdrantStore(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantCollection)
	if err != nil {
		return fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	if err := vectors.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to ensure qdrant collection: %w", err)
	}
	log.Printf("qdrant collection '%s' ready", cfg.QdrantCollection)

	chunkRepo := repository.NewChunkRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var embedder embedding.Provider
	if cfg.HasOpenAI() {
		embedder = embedding.NewModelProvider(embedding.NewOpenAIAdapter(cfg.OpenAIAPIKey, embedding.DefaultModel))
		log.Println("embedding provider: openai")
	} else {
		embedder = embedding.NewHashProvider()
		log.Println("embedding provider: deterministic fallback (OPENAI_API_KEY not set)")
	}

	var answers service.AnswerGenerator
	if cfg.HasOpenAI() {
		answers = llm.NewGenerator(cfg.OpenAIAPIKey)
	} else {
		answers = &noOpAnswerGenerator{}
	}

	chunker := service.NewChunker(service.DefaultChunkerConfig())
	indexer := service.NewIndexer(chunker, embedder, documentRepo, chunkRepo,
		service.NewTxChunkWriter(txRunner), vectors)
	searchSvc := service.NewSearchService(embedder, vectors, chunkRepo)

	cache := service.NewConsultationCache(
		time.Duration(cfg.CacheTTLSeconds)*time.Second,
		float32(cfg.MinCacheConfidence))
	builder := service.NewContextBuilder(service.DefaultContextBuilderConfig())
	consultSvc := service.NewConsultationService(searchSvc, builder, cache, answers)
	statsSvc := service.NewStatsService(chunkRepo, documentRepo, vectors, embedder, cache)

	taskStore := jobs.NewTaskStore(jobs.DefaultTaskLimit)
	dispatcher := jobs.NewReindexDispatcher(taskStore, indexer)

	var repairWorker *jobs.Worker
	if cfg.RepairIntervalSeconds > 0 {
		repairWorker = jobs.NewWorker(
			jobs.NewRepairWorker(indexer),
			time.Duration(cfg.RepairIntervalSeconds)*time.Second)
		go repairWorker.Start(ctx)
		log.Println("vector repair worker started")
	}

	routerCfg := server.RouterConfig{
		IndexHandler:   handlers.NewIndexHandler(indexer, dispatcher, taskStore),
		SearchHandler:  handlers.NewSearchHandler(searchSvc),
		ConsultHandler: handlers.NewConsultHandler(consultSvc),
		StatsHandler:   handlers.NewStatsHandler(statsSvc),
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.NewRouter(routerCfg),
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if repairWorker != nil {
		repairWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("migrations applied")
	return nil
}

type noOpAnswerGenerator struct{}

func (g *noOpAnswerGenerator) GenerateAnswer(ctx context.Context, query, contextBlock string, history []string) (string, error) {
	return "", fmt.Errorf("answer generation not configured: OPENAI_API_KEY required")
}
