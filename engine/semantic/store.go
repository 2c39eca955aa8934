// Package semantic is the sole owner of all Qdrant operations: collection
// lifecycle, chunk upserts, and k-NN similarity search.
package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/LexaTechAI/lexa-mvp/engine/domain"
	"github.com/LexaTechAI/lexa-mvp/engine/ingest"
	"github.com/LexaTechAI/lexa-mvp/pkg/fn"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	// DefaultEmbedWorkers bounds concurrent embedding calls per upsert.
	DefaultEmbedWorkers = 6
	// embedTimeout bounds a single embedding call.
	embedTimeout = 20 * time.Second
	// searchTimeout bounds one similarity search round-trip.
	searchTimeout = 10 * time.Second
)

// VectorStore manages named Qdrant collections. Operations against
// different collections share no mutable state and are safe to run
// concurrently.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	embedder    Embedder
	workers     int
	logger      *slog.Logger
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, embedder Embedder, logger *slog.Logger) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	vs := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), embedder, logger)
	vs.conn = conn
	return vs, nil
}

// NewWithClients creates a VectorStore from pre-built Qdrant clients.
func NewWithClients(points pb.PointsClient, collections pb.CollectionsClient, embedder Embedder, logger *slog.Logger) *VectorStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorStore{
		points:      points,
		collections: collections,
		embedder:    embedder,
		workers:     DefaultEmbedWorkers,
		logger:      logger,
	}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// Dimension returns the embedder's vector length.
func (v *VectorStore) Dimension() int { return v.embedder.Dimension() }

func (v *VectorStore) exists(ctx context.Context, name string) (bool, error) {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == name {
			return true, nil
		}
	}
	return false, nil
}

// EnsureCollection creates the collection if absent. An existing
// collection is reused unchanged; a dimension conflict fails with
// domain.ErrDimensionMismatch rather than silently proceeding.
func (v *VectorStore) EnsureCollection(ctx context.Context, name string, dims int) error {
	if dims <= 0 {
		dims = v.embedder.Dimension()
	}

	ok, err := v.exists(ctx, name)
	if err != nil {
		return err
	}
	if ok {
		info, err := v.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: name})
		if err != nil {
			return fmt.Errorf("semantic: get collection %s: %w", name, err)
		}
		existing := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if existing != uint64(dims) {
			return fmt.Errorf("semantic: collection %s has dimension %d, want %d: %w",
				name, existing, dims, domain.ErrDimensionMismatch)
		}
		return nil
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", name, err)
	}
	v.logger.Info("semantic: collection created", "collection", name, "dims", dims)
	return nil
}

// DeleteCollection removes a collection and everything in it.
func (v *VectorStore) DeleteCollection(ctx context.Context, name string) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", name, err)
	}
	return nil
}

// PointID returns the deterministic point id for a chunk. Re-ingesting
// the same source overwrites instead of duplicating.
func PointID(sourceID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s-%d", sourceID, index))).String()
}

// UpsertChunks embeds and stores chunks into the named collection.
// Embedding calls run under a bounded worker pool; records are written
// keyed by sequence index so completion order never affects output.
// A chunk whose embedding fails (or whose vector has the wrong length)
// is skipped and logged; it does not abort the rest of the batch.
// Returns the number of chunks actually stored.
func (v *VectorStore) UpsertChunks(ctx context.Context, collection string, chunks []ingest.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	dims := v.embedder.Dimension()
	embedded := fn.ParMapResult(ctx, chunks, v.workers, func(ctx context.Context, c ingest.Chunk) fn.Result[[]float32] {
		ctx, cancel := context.WithTimeout(ctx, embedTimeout)
		defer cancel()
		return fn.FromPair(v.embedder.Embed(ctx, c.Text))
	})

	records := make([]VectorRecord, 0, len(chunks))
	for i, r := range embedded {
		vec, err := r.Unwrap()
		if err != nil {
			v.logger.Warn("semantic: embed failed, skipping chunk",
				"collection", collection,
				"source_id", chunks[i].SourceID,
				"index", chunks[i].Index,
				"error", err,
			)
			continue
		}
		if len(vec) != dims {
			v.logger.Warn("semantic: dimension mismatch, skipping chunk",
				"collection", collection,
				"index", chunks[i].Index,
				"got", len(vec),
				"want", dims,
				"error", domain.ErrDimensionMismatch,
			)
			continue
		}
		records = append(records, VectorRecord{
			ID:        PointID(chunks[i].SourceID, chunks[i].Index),
			Embedding: vec,
			Payload: map[string]any{
				"text":           chunks[i].Text,
				"source_id":      chunks[i].SourceID,
				"sequence_index": chunks[i].Index,
			},
		})
	}

	if len(records) == 0 {
		return 0, fmt.Errorf("semantic: all %d chunks failed to embed", len(chunks))
	}
	if err := v.upsert(ctx, collection, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (v *VectorStore) upsert(ctx context.Context, collection string, records []VectorRecord) error {
	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		payload := make(map[string]*pb.Value, len(r.Payload))
		for k, val := range r.Payload {
			switch tv := val.(type) {
			case string:
				payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
			case int:
				payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
			case int64:
				payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
			case float64:
				payload[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
			case bool:
				payload[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
			default:
				payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
			}
		}

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points into %s: %w", len(records), collection, err)
	}
	return nil
}

// Search embeds the query and returns the k nearest chunks, highest
// similarity first. Ties are broken by insertion order (lower sequence
// index wins) for determinism. Fails with domain.ErrCollectionNotFound
// if the collection was never created.
func (v *VectorStore) Search(ctx context.Context, collection, query string, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = 6
	}

	ok, err := v.exists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("semantic: collection %s: %w", collection, domain.ErrCollectionNotFound)
	}

	embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()
	vec, err := v.embedder.Embed(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("semantic: embed query: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()
	resp, err := v.points.Search(searchCtx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vec,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search %s: %w", collection, err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		sr := SearchResult{
			ID:    r.GetId().GetUuid(),
			Score: r.GetScore(),
		}
		for key, val := range r.GetPayload() {
			switch key {
			case "text":
				sr.Text = val.GetStringValue()
			case "source_id":
				sr.SourceID = val.GetStringValue()
			case "sequence_index":
				sr.SequenceIndex = int(val.GetIntegerValue())
			}
		}
		results[i] = sr
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].SequenceIndex != results[j].SequenceIndex {
			return results[i].SequenceIndex < results[j].SequenceIndex
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}
