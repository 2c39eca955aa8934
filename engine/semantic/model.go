package semantic

import "context"

// Embedder converts text into a fixed-dimension vector. Every vector in
// one collection must come from the same embedder model; the store keeps
// a single embedder for exactly that reason.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// SearchResult represents a single vector search hit.
type SearchResult struct {
	ID            string  `json:"id"`
	Score         float32 `json:"score"`
	Text          string  `json:"text"`
	SourceID      string  `json:"source_id"`
	SequenceIndex int     `json:"sequence_index"`
}

// VectorRecord represents a single embedded chunk headed for storage.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // text, source_id, sequence_index
}
