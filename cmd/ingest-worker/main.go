// Command ingest-worker consumes source documents from NATS and runs
// them through the ingestion pipeline. Failed documents are retried
// and eventually parked on the dead letter subject; the Neo4j registry
// deduplicates re-published sources.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/LexaTechAI/lexa-mvp/engine/ingest"
	"github.com/LexaTechAI/lexa-mvp/engine/semantic"
	"github.com/LexaTechAI/lexa-mvp/pkg/gemini"
	"github.com/LexaTechAI/lexa-mvp/pkg/metrics"
)

var met = metrics.New()

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	natsURL := envOr("NATS_URL", nats.DefaultURL)
	qdrantAddr := envOr("QDRANT_URL", "localhost:6334")
	geminiURL := envOr("GEMINI_URL", gemini.DefaultBaseURL)
	geminiKey := envOr("GEMINI_API_KEY", "")
	embedModel := envOr("EMBED_MODEL", gemini.DefaultEmbedModel)
	neo4jURL := envOr("NEO4J_URL", "")
	neo4jUser := envOr("NEO4J_USER", "neo4j")
	neo4jPass := envOr("NEO4J_PASS", "")
	metricsPort := envOr("METRICS_PORT", "9092")

	if geminiKey == "" {
		logger.Error("GEMINI_API_KEY is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder := gemini.NewEmbedClient(geminiURL, geminiKey, embedModel)

	store, err := semantic.New(qdrantAddr, embedder, logger)
	if err != nil {
		logger.Error("qdrant connect failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	var registry *ingest.Registry
	if neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(neo4jURL, neo4j.BasicAuth(neo4jUser, neo4jPass, ""))
		if err != nil {
			logger.Error("neo4j driver failed", "err", err)
			os.Exit(1)
		}
		defer driver.Close(ctx)
		registry = ingest.NewRegistry(driver)
	}

	nc, err := nats.Connect(natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		logger.Error("nats connect failed", "err", err)
		os.Exit(1)
	}
	defer nc.Drain()

	sub, err := ingest.StartConsumer(nc, ingest.Deps{
		Store:    store,
		Dims:     embedder.Dimension(),
		Registry: registry,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("subscribe failed", "err", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", met.Handler())
		logger.Info("metrics server starting", "port", metricsPort)
		if err := http.ListenAndServe(":"+metricsPort, mux); err != nil {
			logger.Error("metrics server error", "err", err)
		}
	}()

	logger.Info("ingest worker running",
		"subject", ingest.Subject,
		"dlq", ingest.DLQSubject,
		"registry", registry != nil,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
