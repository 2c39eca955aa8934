package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LexaTechAI/lexa-mvp/engine/domain"
	"github.com/LexaTechAI/lexa-mvp/pkg/fn"
	"github.com/LexaTechAI/lexa-mvp/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

const (
	// Subject is the NATS subject for incoming source documents.
	Subject = "engine.ingest"
	// DLQSubject is the dead letter queue subject for failed documents.
	DLQSubject = "engine.ingest.dlq"
	// MaxRetries before sending a document to the DLQ.
	MaxRetries = 3
)

// SourceDoc is one raw source text headed for the vector index.
type SourceDoc struct {
	SourceID   string `json:"source_id"`
	Collection string `json:"collection"`
	Text       string `json:"text"`
}

// ChunkedDoc is a source document split into indexable chunks.
type ChunkedDoc struct {
	SourceDoc
	Chunks []Chunk
}

// Indexer is the slice of the vector store the pipeline needs.
type Indexer interface {
	EnsureCollection(ctx context.Context, name string, dims int) error
	UpsertChunks(ctx context.Context, collection string, chunks []Chunk) (int, error)
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Store    Indexer
	Dims     int // embedding dimension for collection creation
	Splitter *Splitter
	Registry *Registry // optional; enables dedup and bookkeeping
	Logger   *slog.Logger
}

// ValidateDoc rejects documents with nothing to index.
var ValidateDoc fn.Stage[SourceDoc, SourceDoc] = func(_ context.Context, doc SourceDoc) fn.Result[SourceDoc] {
	if strings.TrimSpace(doc.SourceID) == "" {
		return fn.Errf[SourceDoc]("ingest: missing source id")
	}
	if strings.TrimSpace(doc.Collection) == "" {
		return fn.Errf[SourceDoc]("ingest: missing collection")
	}
	if strings.TrimSpace(doc.Text) == "" {
		return fn.Err[SourceDoc](fmt.Errorf("ingest: %s: %w", doc.SourceID, domain.ErrNoContent))
	}
	return fn.Ok(doc)
}

// NewChunkStage splits a document with the given splitter.
func NewChunkStage(s *Splitter) fn.Stage[SourceDoc, ChunkedDoc] {
	return func(_ context.Context, doc SourceDoc) fn.Result[ChunkedDoc] {
		chunks := s.Split(doc.Text, doc.SourceID)
		if len(chunks) == 0 {
			return fn.Err[ChunkedDoc](fmt.Errorf("ingest: %s: %w", doc.SourceID, domain.ErrNoContent))
		}
		return fn.Ok(ChunkedDoc{SourceDoc: doc, Chunks: chunks})
	}
}

// NewStoreStage ensures the target collection and upserts the chunks.
func NewStoreStage(store Indexer, dims int, reg *Registry, log *slog.Logger) fn.Stage[ChunkedDoc, string] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[string] {
		if err := store.EnsureCollection(ctx, doc.Collection, dims); err != nil {
			return fn.Err[string](fmt.Errorf("ensure collection %s: %w", doc.Collection, err))
		}
		stored, err := store.UpsertChunks(ctx, doc.Collection, doc.Chunks)
		if err != nil {
			return fn.Err[string](fmt.Errorf("upsert %s: %w", doc.SourceID, err))
		}
		if stored < len(doc.Chunks) {
			log.Warn("ingest: partial upsert",
				"source_id", doc.SourceID,
				"stored", stored,
				"total", len(doc.Chunks),
			)
		}

		if reg != nil {
			rec := SourceRecord{
				SourceID:   doc.SourceID,
				Collection: doc.Collection,
				Chunks:     stored,
				IngestedAt: time.Now().UTC(),
			}
			if err := reg.Record(ctx, rec); err != nil {
				// Bookkeeping only; the chunks are already stored.
				log.Warn("ingest: registry record failed", "source_id", doc.SourceID, "error", err)
			}
		}
		return fn.Ok(doc.SourceID)
	}
}

// NewPipeline constructs the full ingestion pipeline: validate → chunk → store.
func NewPipeline(deps Deps) fn.Stage[SourceDoc, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	splitter := deps.Splitter
	if splitter == nil {
		splitter = MustSplitter()
	}

	validated := fn.TracedStage("ingest.validate", ValidateDoc)
	chunked := fn.Then(validated, fn.TracedStage("ingest.chunk", NewChunkStage(splitter)))
	return fn.Then(chunked, fn.TracedStage("ingest.store", NewStoreStage(deps.Store, deps.Dims, deps.Registry, log)))
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Doc     SourceDoc `json:"doc"`
	Error   string    `json:"error"`
	Retries int       `json:"retries"`
}

// StartConsumer subscribes to the ingest subject and runs incoming
// documents through the pipeline with retry and DLQ support. Documents
// already present in the registry are skipped.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(Subject, func(msg *nats.Msg) {
		var doc SourceDoc
		if err := json.Unmarshal(msg.Data, &doc); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		// Continue the publisher's trace across the queue hop.
		ctx := natsutil.Extract(context.Background(), msg)

		if deps.Registry != nil {
			exists, err := deps.Registry.Exists(ctx, doc.SourceID)
			if err != nil {
				log.Warn("ingest: dedup check failed", "error", err)
			} else if exists {
				log.Info("ingest: skipping duplicate", "source_id", doc.SourceID)
				return
			}
		}

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := pipeline(ctx, doc)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"source_id", doc.SourceID,
				"retry", retries,
			)

			if retries >= MaxRetries {
				dlq := dlqMessage{Doc: doc, Error: pipeErr.Error(), Retries: retries}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
				return
			}

			retryMsg := nats.NewMsg(Subject)
			retryMsg.Data = msg.Data
			retryMsg.Header = nats.Header{}
			retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
			if err := nc.PublishMsg(retryMsg); err != nil {
				log.Error("ingest: retry publish failed", "error", err)
			}
			return
		}

		log.Info("ingest: success", "source_id", result.UnwrapOr(doc.SourceID))
	})
}
