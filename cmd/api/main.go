// Package main implements the Lexa research API server. It wires the
// Gemini clients, the Qdrant vector store and the yargitay client into
// the research service and exposes it over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/LexaTechAI/lexa-mvp/engine/document"
	"github.com/LexaTechAI/lexa-mvp/engine/domain"
	"github.com/LexaTechAI/lexa-mvp/engine/research"
	"github.com/LexaTechAI/lexa-mvp/engine/semantic"
	"github.com/LexaTechAI/lexa-mvp/engine/yargitay"
	"github.com/LexaTechAI/lexa-mvp/pkg/gemini"
	"github.com/LexaTechAI/lexa-mvp/pkg/metrics"
	"github.com/LexaTechAI/lexa-mvp/pkg/mid"
)

var met = metrics.New()

var (
	mRequests = func(mode string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("lexa_research_requests_total", "mode", mode), "Research requests by mode")
	}
	mFailures = func(kind string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("lexa_research_failures_total", "kind", kind), "Research failures by kind")
	}
	mUploads   = met.Counter("lexa_uploads_total", "Files uploaded")
	mPetitions = met.Counter("lexa_petitions_total", "Petitions prepared")
	mQueryDur  = met.Histogram("lexa_research_duration_seconds", "End to end research query time", nil)
)

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	GeminiKey    string
	GeminiURL    string
	EmbedModel   string
	TextModel    string
	QdrantURL    string
	YargitayURL  string
	UploadDir    string
	CORSOrigin   string
	ReplaceFiles bool
}

func loadConfig() Config {
	return Config{
		Port:         envOr("PORT", "8080"),
		GeminiKey:    envOr("GEMINI_API_KEY", ""),
		GeminiURL:    envOr("GEMINI_URL", gemini.DefaultBaseURL),
		EmbedModel:   envOr("EMBED_MODEL", gemini.DefaultEmbedModel),
		TextModel:    envOr("TEXT_MODEL", gemini.DefaultTextModel),
		QdrantURL:    envOr("QDRANT_URL", "localhost:6334"),
		YargitayURL:  envOr("YARGITAY_URL", yargitay.DefaultBaseURL),
		UploadDir:    envOr("UPLOAD_DIR", "/tmp/lexa-uploads"),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
		ReplaceFiles: envOr("REPLACE_ON_UPLOAD", "") == "true",
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()
	if cfg.GeminiKey == "" {
		logger.Error("GEMINI_API_KEY is required")
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return fmt.Errorf("upload dir: %w", err)
	}

	// --- Gemini clients ---
	embedder := gemini.NewEmbedClient(cfg.GeminiURL, cfg.GeminiKey, cfg.EmbedModel)
	textClient := gemini.NewTextClient(cfg.GeminiURL, cfg.GeminiKey, cfg.TextModel)

	// --- Qdrant ---
	store, err := semantic.New(cfg.QdrantURL, embedder, logger)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	// --- Yargitay ---
	decisions := yargitay.New(cfg.YargitayURL, logger)

	// --- Research service ---
	opts := research.DefaultOptions()
	opts.Replace = cfg.ReplaceFiles
	svc := research.New(
		document.NewPDFExtractor(0, logger),
		decisions,
		textClient,
		textClient,
		store,
		nil,
		opts,
		logger,
	)

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/research", handleResearch(svc, logger))
	mux.HandleFunc("POST /api/petition", handlePetition(svc, logger))
	mux.HandleFunc("POST /api/upload", handleUpload(cfg.UploadDir, logger))
	mux.Handle("GET /metrics", met.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("lexa-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ResearchRequest is the JSON body for POST /api/research.
type ResearchRequest struct {
	Question string `json:"question"`
	Mode     string `json:"mode"`
	FilePath string `json:"file_path,omitempty"`
}

// ResearchResponse is the JSON response for POST /api/research.
type ResearchResponse struct {
	Answer  string            `json:"answer"`
	Mode    string            `json:"mode"`
	Sources []research.Source `json:"sources,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func handleResearch(svc *research.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.Mode == "" {
			req.Mode = string(domain.ModeGeneral)
		}
		mRequests(req.Mode).Inc()

		start := time.Now()
		answer, err := svc.Query(r.Context(), domain.Question{
			Text:     req.Question,
			Mode:     domain.Mode(req.Mode),
			FilePath: req.FilePath,
		})
		mQueryDur.Since(start)

		if err != nil {
			writeResearchError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, ResearchResponse{
			Answer:  answer.Text,
			Mode:    answer.Mode,
			Sources: answer.Sources,
		})
	}
}

// writeResearchError maps pipeline errors to HTTP responses. Content
// failures are normal outcomes for the user, not server errors.
func writeResearchError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		mFailures("validation").Inc()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
	case errors.Is(err, domain.ErrNoContent), errors.Is(err, domain.ErrRemoteFetch):
		mFailures("no_content").Inc()
		writeJSON(w, http.StatusOK, ResearchResponse{
			Answer: "No relevant results were found for this question. Please rephrase and try again.",
		})
	case errors.Is(err, domain.ErrUnreadableDocument):
		mFailures("unreadable").Inc()
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "the uploaded document could not be read"})
	default:
		mFailures("internal").Inc()
		logger.Error("research query failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// PetitionResponse is the JSON response for POST /api/petition.
type PetitionResponse struct {
	Petition string `json:"petition"`
}

func handlePetition(svc *research.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req research.Petition
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		text, err := svc.PreparePetition(r.Context(), req)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
				return
			}
			logger.Error("petition preparation failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			return
		}

		mPetitions.Inc()
		writeJSON(w, http.StatusOK, PetitionResponse{Petition: text})
	}
}

// UploadResponse is the JSON response for POST /api/upload.
type UploadResponse struct {
	Path     string `json:"path"`
	SourceID string `json:"source_id"`
}

// handleUpload stores one multipart PDF and returns the server path to
// pass back in a file-mode research request.
func handleUpload(dir string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart body"})
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file field is required"})
			return
		}
		defer file.Close()

		name := filepath.Base(header.Filename)
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "only PDF files are accepted"})
			return
		}

		dst := filepath.Join(dir, name)
		out, err := os.Create(dst)
		if err != nil {
			logger.Error("upload create failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not store file"})
			return
		}
		defer out.Close()

		if _, err := io.Copy(out, file); err != nil {
			logger.Error("upload write failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not store file"})
			return
		}

		mUploads.Inc()
		logger.Info("file uploaded", "path", dst, "size", header.Size)
		writeJSON(w, http.StatusOK, UploadResponse{Path: dst, SourceID: document.SourceID(dst)})
	}
}
