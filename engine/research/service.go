// Package research orchestrates the legal question pipeline. One query
// moves through ingest (pull source text for the selected mode), index
// (chunk and upsert into the vector store) and search (retrieve the
// top chunks for the question), then hands the retrieved context to
// the answer generation service.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LexaTechAI/lexa-mvp/engine/document"
	"github.com/LexaTechAI/lexa-mvp/engine/domain"
	"github.com/LexaTechAI/lexa-mvp/engine/ingest"
	"github.com/LexaTechAI/lexa-mvp/engine/semantic"
)

// Collection names. File uploads and scraped decisions live in
// separate namespaces so one mode never pollutes the other's results.
const (
	FileCollection = "research_pdf"
	WebCollection  = "research_decisions"
)

// State tracks where a query is in its lifecycle. FAILED is reachable
// from every other state.
type State int

const (
	StateIngest State = iota
	StateIndex
	StateSearch
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIngest:
		return "INGEST"
	case StateIndex:
		return "INDEX"
	case StateSearch:
		return "SEARCH"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// FileExtractor pulls plain text out of an uploaded file.
type FileExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// DecisionFetcher pulls court decision texts for a keyword search.
type DecisionFetcher interface {
	FetchDecisionTexts(ctx context.Context, keywords string, limit int) (string, error)
}

// KeywordExtractor derives the search term for web ingestion from the
// user's question.
type KeywordExtractor interface {
	ExtractKeywords(ctx context.Context, question string, maxKeywords int) (string, error)
}

// Generator produces the final answer from an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// VectorIndex abstracts the semantic store.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, name string, dims int) error
	DeleteCollection(ctx context.Context, name string) error
	UpsertChunks(ctx context.Context, collection string, chunks []ingest.Chunk) (int, error)
	Search(ctx context.Context, collection, query string, k int) ([]semantic.SearchResult, error)
	Dimension() int
}

// Options configures one Service.
type Options struct {
	TopK          int
	DecisionLimit int
	MaxKeywords   int
	// Replace drops the file collection before a new upload is
	// indexed, so each upload starts from a clean namespace.
	Replace bool
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          6,
		DecisionLimit: 7,
		MaxKeywords:   5,
		Replace:       false,
	}
}

// Service runs the research pipeline. All collaborators are injected;
// the service holds no global state and is safe for concurrent use as
// long as its collaborators are.
type Service struct {
	files     FileExtractor
	decisions DecisionFetcher
	keywords  KeywordExtractor
	generate  Generator
	index     VectorIndex
	splitter  *ingest.Splitter
	opts      Options
	logger    *slog.Logger
}

// New wires a Service. A nil splitter selects the default chunk
// configuration; a nil logger selects slog.Default.
func New(files FileExtractor, decisions DecisionFetcher, keywords KeywordExtractor, generate Generator, index VectorIndex, splitter *ingest.Splitter, opts Options, logger *slog.Logger) *Service {
	if splitter == nil {
		splitter = ingest.MustSplitter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.DecisionLimit <= 0 {
		opts.DecisionLimit = DefaultOptions().DecisionLimit
	}
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = DefaultOptions().MaxKeywords
	}
	return &Service{
		files:     files,
		decisions: decisions,
		keywords:  keywords,
		generate:  generate,
		index:     index,
		splitter:  splitter,
		opts:      opts,
		logger:    logger,
	}
}

// Answer is the structured response for one research query.
type Answer struct {
	Text    string   `json:"text"`
	Mode    string   `json:"mode"`
	Sources []Source `json:"sources,omitempty"`
}

// Source is a retrieved chunk backing the answer.
type Source struct {
	ID            string  `json:"id"`
	Text          string  `json:"text"`
	SourceID      string  `json:"source_id"`
	SequenceIndex int     `json:"sequence_index"`
	Score         float32 `json:"score"`
}

const promptFmt = `You are a legal research assistant. Answer the question using ONLY the context below. If the context does not contain the answer, say so explicitly. Reply in the language of the question.

Context:
%s

Question: %s`

// Query validates the question and runs the pipeline for its mode.
// Stage failures surface as typed errors (domain.ErrNoContent,
// domain.ErrRemoteFetch, domain.ErrUnreadableDocument); callers map
// them to a "no results, try again" response instead of crashing.
func (s *Service) Query(ctx context.Context, q domain.Question) (*Answer, error) {
	if err := domain.ValidateQuestion(q); err != nil {
		return nil, err
	}

	s.logger.Info("research: query start", "mode", q.Mode, "question_len", len(q.Text))

	switch q.Mode {
	case domain.ModeGeneral:
		return s.generalQuery(ctx, q)
	case domain.ModeFile:
		return s.retrievalQuery(ctx, q, FileCollection, s.ingestFile)
	case domain.ModeWeb:
		return s.retrievalQuery(ctx, q, WebCollection, s.ingestWeb)
	default:
		return nil, domain.NewValidationError("mode", string(q.Mode), domain.ErrInvalidMode)
	}
}

// generalQuery answers directly without retrieval.
func (s *Service) generalQuery(ctx context.Context, q domain.Question) (*Answer, error) {
	text, err := s.generate.Generate(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("research: generate: %w", err)
	}
	return &Answer{Text: text, Mode: string(q.Mode)}, nil
}

// ingestFile is the INGEST stage for file mode.
func (s *Service) ingestFile(ctx context.Context, q domain.Question) (text, sourceID string, err error) {
	if q.FilePath == "" {
		return "", "", domain.NewValidationError("file_path", "", errors.New("file mode requires a file path"))
	}
	text, err = s.files.ExtractText(ctx, q.FilePath)
	if err != nil {
		return "", "", err
	}
	return text, document.SourceID(q.FilePath), nil
}

// ingestWeb is the INGEST stage for web mode: derive keywords, then
// fetch decision texts. The keyword string doubles as the source id so
// re-running the same question overwrites rather than duplicates.
func (s *Service) ingestWeb(ctx context.Context, q domain.Question) (text, sourceID string, err error) {
	keywords, err := s.keywords.ExtractKeywords(ctx, q.Text, s.opts.MaxKeywords)
	if err != nil {
		s.logger.Warn("research: keyword extraction failed, using raw question", "error", err)
		keywords = q.Text
	}

	text, err = s.decisions.FetchDecisionTexts(ctx, keywords, s.opts.DecisionLimit)
	if err != nil {
		return "", "", err
	}
	return text, keywords, nil
}

type ingestFn func(ctx context.Context, q domain.Question) (text, sourceID string, err error)

// retrievalQuery drives the state machine for the retrieval modes.
func (s *Service) retrievalQuery(ctx context.Context, q domain.Question, collection string, ingestStage ingestFn) (*Answer, error) {
	state := StateIngest

	fail := func(err error) (*Answer, error) {
		s.logger.Error("research: query failed",
			"mode", q.Mode,
			"state", state.String(),
			"error", err,
		)
		state = StateFailed
		return nil, err
	}

	// INGEST
	text, sourceID, err := ingestStage(ctx, q)
	if err != nil {
		return fail(err)
	}
	if strings.TrimSpace(text) == "" {
		return fail(fmt.Errorf("research: %s ingestion produced nothing: %w", q.Mode, domain.ErrNoContent))
	}

	// INDEX
	state = StateIndex
	chunks := s.splitter.Split(text, sourceID)
	if len(chunks) == 0 {
		return fail(fmt.Errorf("research: no chunks from %s: %w", sourceID, domain.ErrNoContent))
	}
	if s.opts.Replace && collection == FileCollection {
		if err := s.index.DeleteCollection(ctx, collection); err != nil {
			s.logger.Warn("research: drop before reindex failed", "collection", collection, "error", err)
		}
	}
	if err := s.index.EnsureCollection(ctx, collection, s.index.Dimension()); err != nil {
		return fail(err)
	}
	stored, err := s.index.UpsertChunks(ctx, collection, chunks)
	if err != nil {
		return fail(err)
	}
	s.logger.Info("research: indexed",
		"collection", collection,
		"source_id", sourceID,
		"chunks", len(chunks),
		"stored", stored,
	)

	// SEARCH
	state = StateSearch
	results, err := s.index.Search(ctx, collection, q.Text, s.opts.TopK)
	if err != nil {
		return fail(err)
	}

	// DONE
	state = StateDone
	answerText, err := s.generate.Generate(ctx, buildPrompt(results, q.Text))
	if err != nil {
		return fail(fmt.Errorf("research: generate: %w", err))
	}

	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{
			ID:            r.ID,
			Text:          r.Text,
			SourceID:      r.SourceID,
			SequenceIndex: r.SequenceIndex,
			Score:         r.Score,
		}
	}

	s.logger.Info("research: query done", "mode", q.Mode, "sources", len(sources))
	return &Answer{Text: answerText, Mode: string(q.Mode), Sources: sources}, nil
}

// buildPrompt concatenates retrieved chunk texts with the question.
func buildPrompt(results []semantic.SearchResult, question string) string {
	if len(results) == 0 {
		return fmt.Sprintf(promptFmt, "(no relevant passages found)", question)
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[%s#%d] %s", r.SourceID, r.SequenceIndex, r.Text)
	}
	return fmt.Sprintf(promptFmt, strings.Join(parts, "\n\n"), question)
}
