package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// SourceRecord is the bookkeeping entry for one ingested source.
type SourceRecord struct {
	SourceID   string
	Collection string
	Chunks     int
	IngestedAt time.Time
}

// result is the minimal interface needed from a neo4j result.
type result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
}

// runner is the minimal interface needed from a neo4j session.
type runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (result, error)
	Close(ctx context.Context) error
}

// Registry tracks which sources have been ingested. It backs the
// consumer's dedup check and makes re-ingestion auditable.
type Registry struct {
	driver     neo4j.DriverWithContext
	newSession func(ctx context.Context) runner // for testing
}

// NewRegistry creates a Neo4j-backed ingestion registry.
func NewRegistry(driver neo4j.DriverWithContext) *Registry {
	return &Registry{driver: driver}
}

// neo4jSessionAdapter adapts neo4j.SessionWithContext to the runner interface.
type neo4jSessionAdapter struct {
	sess neo4j.SessionWithContext
}

func (a *neo4jSessionAdapter) Run(ctx context.Context, cypher string, params map[string]any) (result, error) {
	return a.sess.Run(ctx, cypher, params)
}

func (a *neo4jSessionAdapter) Close(ctx context.Context) error {
	return a.sess.Close(ctx)
}

func (r *Registry) session(ctx context.Context) runner {
	if r.newSession != nil {
		return r.newSession(ctx)
	}
	return &neo4jSessionAdapter{sess: r.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

// Record upserts the bookkeeping entry for a source. Re-ingesting the
// same source updates the entry rather than duplicating it.
func (r *Registry) Record(ctx context.Context, rec SourceRecord) error {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (s:Source {source_id: $source_id})
SET s.collection = $collection, s.chunks = $chunks, s.ingested_at = $ingested_at`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"source_id":   rec.SourceID,
		"collection":  rec.Collection,
		"chunks":      rec.Chunks,
		"ingested_at": rec.IngestedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("registry: record %s: %w", rec.SourceID, err)
	}
	return nil
}

// Exists reports whether a source was already ingested.
func (r *Registry) Exists(ctx context.Context, sourceID string) (bool, error) {
	sess := r.session(ctx)
	defer sess.Close(ctx)

	res, err := sess.Run(ctx, `MATCH (s:Source {source_id: $source_id}) RETURN s.source_id`, map[string]any{
		"source_id": sourceID,
	})
	if err != nil {
		return false, fmt.Errorf("registry: exists %s: %w", sourceID, err)
	}
	return res.Next(ctx), nil
}
