// Command ingest runs one PDF through the ingestion pipeline into the
// vector store, or publishes it to NATS for the ingest worker when
// -async is set.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/LexaTechAI/lexa-mvp/engine/document"
	"github.com/LexaTechAI/lexa-mvp/engine/ingest"
	"github.com/LexaTechAI/lexa-mvp/engine/research"
	"github.com/LexaTechAI/lexa-mvp/engine/semantic"
	"github.com/LexaTechAI/lexa-mvp/pkg/gemini"
	"github.com/LexaTechAI/lexa-mvp/pkg/natsutil"
)

func main() {
	godotenv.Load()

	var (
		file       = flag.String("file", "", "path of the PDF to ingest")
		collection = flag.String("collection", research.FileCollection, "target collection")
		qdrantAddr = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		geminiURL  = flag.String("gemini", envOr("GEMINI_URL", gemini.DefaultBaseURL), "Gemini base URL")
		embedModel = flag.String("model", envOr("EMBED_MODEL", gemini.DefaultEmbedModel), "embedding model")
		maxPages   = flag.Int("max-pages", 0, "page cap, 0 for default")
		async      = flag.Bool("async", false, "publish to NATS instead of ingesting directly")
		natsURL    = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS URL for -async")
		neo4jURL   = flag.String("neo4j", envOr("NEO4J_URL", ""), "Neo4j bolt URL, empty disables the registry")
		neo4jUser  = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass  = flag.String("neo4j-pass", envOr("NEO4J_PASS", ""), "Neo4j password")
		timeout    = flag.Duration("timeout", 5*time.Minute, "overall deadline")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -file <path.pdf> [-collection name] [-async]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	extractor := document.NewPDFExtractor(*maxPages, logger)
	text, err := extractor.ExtractText(ctx, *file)
	if err != nil {
		logger.Error("extract failed", "file", *file, "err", err)
		os.Exit(1)
	}

	doc := ingest.SourceDoc{
		SourceID:   document.SourceID(*file),
		Collection: *collection,
		Text:       text,
	}

	if *async {
		nc, err := nats.Connect(*natsURL)
		if err != nil {
			logger.Error("nats connect failed", "err", err)
			os.Exit(1)
		}
		defer nc.Close()

		if err := natsutil.Publish(ctx, nc, ingest.Subject, doc); err != nil {
			logger.Error("publish failed", "err", err)
			os.Exit(1)
		}
		logger.Info("document queued", "source_id", doc.SourceID, "subject", ingest.Subject)
		return
	}

	apiKey := envOr("GEMINI_API_KEY", "")
	if apiKey == "" {
		logger.Error("GEMINI_API_KEY is required for direct ingestion")
		os.Exit(1)
	}
	embedder := gemini.NewEmbedClient(*geminiURL, apiKey, *embedModel)

	store, err := semantic.New(*qdrantAddr, embedder, logger)
	if err != nil {
		logger.Error("qdrant connect failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	var registry *ingest.Registry
	if *neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
		if err != nil {
			logger.Error("neo4j driver failed", "err", err)
			os.Exit(1)
		}
		defer driver.Close(ctx)
		registry = ingest.NewRegistry(driver)
	}

	pipeline := ingest.NewPipeline(ingest.Deps{
		Store:    store,
		Dims:     embedder.Dimension(),
		Registry: registry,
		Logger:   logger,
	})

	sourceID, err := pipeline(ctx, doc).Unwrap()
	if err != nil {
		logger.Error("ingestion failed", "err", err)
		os.Exit(1)
	}
	logger.Info("document ingested", "source_id", sourceID, "collection", *collection)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
