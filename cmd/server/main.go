// Package main provides the textsonar API server and ingestion worker.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/textsonar/internal/api"
	"github.com/bull/textsonar/internal/chat"
	"github.com/bull/textsonar/internal/config"
	"github.com/bull/textsonar/internal/embedding"
	"github.com/bull/textsonar/internal/ingest"
	"github.com/bull/textsonar/internal/llm"
	"github.com/bull/textsonar/internal/pdf"
	"github.com/bull/textsonar/internal/queue"
	"github.com/bull/textsonar/internal/rag"
	"github.com/bull/textsonar/internal/storage"
	"github.com/bull/textsonar/internal/textproc"
	"github.com/bull/textsonar/internal/vectorindex"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg := config.Load()
	logger := slog.Default()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to create upload dir: %v", err)
	}

	// Database
	sqldb, err := storage.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	db := storage.NewDB(sqldb, os.Getenv("DB_DEBUG") == "true")
	defer db.Close()

	if err := storage.InitSchema(ctx, db); err != nil {
		log.Fatalf("failed to initialize schema: %v", err)
	}

	documents := storage.NewDocumentStore(db)
	chunks := storage.NewChunkStore(db)
	chats := storage.NewChatStore(db)

	// Vector index
	index, err := vectorindex.NewIndex(cfg.QdrantHost, cfg.QdrantPort)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer index.Close()

	if err := index.EnsureCollection(ctx); err != nil {
		log.Fatalf("failed to ensure collection: %v", err)
	}

	// OpenAI clients
	openaiClient, err := embedding.NewClient()
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}
	embedder := embedding.NewEmbedder(openaiClient, 0) // Use default batch size
	model := llm.NewClient(openaiClient.Client())

	// Ingestion pipeline behind NATS
	pipeline := ingest.NewPipeline(
		pdf.NewExtractor(),
		textproc.NewSplitter(0, 0),
		documents,
		chunks,
		embedder,
		index,
		logger,
	)

	jobs, err := queue.Connect(cfg.NATSURL, logger)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}
	defer jobs.Close()

	sub, err := jobs.SubscribeIngest(func(job queue.IngestJob) {
		// Jobs arrive on the NATS delivery goroutine; processing is long,
		// so hand it off.
		go func() {
			if _, err := pipeline.Process(ctx, job.DocumentID, job.FilePath); err != nil {
				logger.Error("Ingestion job failed", "document", job.DocumentID, "error", err)
			}
		}()
	})
	if err != nil {
		log.Fatalf("failed to subscribe to ingest jobs: %v", err)
	}
	defer sub.Unsubscribe()

	// Question answering
	retriever := rag.NewRetriever(embedder, index, chunks, logger)
	answerer := rag.NewAnswerer(retriever, model, logger)
	chatService := chat.NewService(documents, chats, answerer, logger)

	// HTTP surface
	router := api.NewRouter(
		api.NewDocumentsAPI(documents, index, jobs, cfg.UploadDir, logger),
		api.NewChatsAPI(chatService, logger),
		api.NewHealthHandler(api.HealthFunc(db.PingContext), index),
	)

	server := &http.Server{
		Addr:    "0.0.0.0:" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
}
