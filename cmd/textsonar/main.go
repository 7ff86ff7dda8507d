// Package main provides the textsonar CLI for managing and querying the
// document index without the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"github.com/bull/textsonar/internal/config"
	"github.com/bull/textsonar/internal/embedding"
	"github.com/bull/textsonar/internal/ingest"
	"github.com/bull/textsonar/internal/llm"
	"github.com/bull/textsonar/internal/pdf"
	"github.com/bull/textsonar/internal/rag"
	"github.com/bull/textsonar/internal/storage"
	"github.com/bull/textsonar/internal/textproc"
	"github.com/bull/textsonar/internal/vectorindex"
)

var rootCmd = &cobra.Command{
	Use:   "textsonar",
	Short: "PDF document indexing and question answering tool",
	Long: `CLI for the textsonar document pipeline.

Environment variables:
  DATABASE_URL   Postgres connection string
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY OpenAI API key (required)`,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf>",
	Short: "Index a PDF document",
	Long: `Registers the PDF and runs the full ingestion pipeline:
extraction, chunking, cleaning, embedding and vector indexing.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var askCmd = &cobra.Command{
	Use:   "ask <document-id> <question>",
	Short: "Ask a question about an indexed document",
	Args:  cobra.ExactArgs(2),
	RunE:  runAsk,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Remove a document, its chunks and its vectors",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(deleteCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env holds the connected backends shared by all subcommands.
type env struct {
	db        *bun.DB
	documents *storage.DocumentStore
	chunks    *storage.ChunkStore
	index     *vectorindex.Index
	openai    *embedding.Client
}

func setup(ctx context.Context) (*env, func(), error) {
	cfg := config.Load()

	sqldb, err := storage.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to Postgres: %w", err)
	}
	db := storage.NewDB(sqldb, false)

	if err := storage.InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("initialize schema: %w", err)
	}

	index, err := vectorindex.NewIndex(cfg.QdrantHost, cfg.QdrantPort)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connect to Qdrant: %w", err)
	}

	if err := index.EnsureCollection(ctx); err != nil {
		index.Close()
		db.Close()
		return nil, nil, fmt.Errorf("ensure collection: %w", err)
	}

	openaiClient, err := embedding.NewClient()
	if err != nil {
		index.Close()
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		index.Close()
		db.Close()
	}

	return &env{
		db:        db,
		documents: storage.NewDocumentStore(db),
		chunks:    storage.NewChunkStore(db),
		index:     index,
		openai:    openaiClient,
	}, cleanup, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	e, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	doc := &storage.Document{
		Filename:     filepath.Base(path),
		OriginalName: filepath.Base(path),
		MimeType:     "application/pdf",
		Size:         info.Size(),
		FilePath:     path,
	}
	if err := e.documents.Create(ctx, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	embedder := embedding.NewEmbedder(e.openai, 0) // Use default batch size
	pipeline := ingest.NewPipeline(
		pdf.NewExtractor(),
		textproc.NewSplitter(0, 0),
		e.documents,
		e.chunks,
		embedder,
		e.index,
		slog.Default(),
	)

	fmt.Printf("Ingesting %s...\n", path)
	result, err := pipeline.Process(ctx, doc.ID, path)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Document: %s\n", doc.ID)
	fmt.Printf("  Pages: %d\n", result.TotalPages)
	fmt.Printf("  Chunks: %d (from %d raw)\n", result.UniqueChunks, result.RawChunks)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	documentID, question := args[0], args[1]

	e, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := e.documents.FindByID(ctx, documentID); err != nil {
		return fmt.Errorf("find document: %w", err)
	}

	embedder := embedding.NewEmbedder(e.openai, 0)
	retriever := rag.NewRetriever(embedder, e.index, e.chunks, slog.Default())
	answerer := rag.NewAnswerer(retriever, llm.NewClient(e.openai.Client()), slog.Default())

	answer, err := answerer.GenerateAnswer(ctx, question, documentID, 0)
	if err != nil {
		return err
	}

	fmt.Println(answer.Text)
	if len(answer.Citations) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, citation := range answer.Citations {
			fmt.Printf("  - Page %d (score %.2f)\n", citation.Page, citation.Score)
		}
	}

	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	documentID := args[0]

	e, cleanup, err := setup(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	doc, err := e.documents.FindByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("find document: %w", err)
	}

	if err := e.index.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := e.documents.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: could not remove %s: %v\n", doc.FilePath, err)
	}

	fmt.Printf("Deleted document %s\n", documentID)
	return nil
}
