package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/LexaTechAI/lexa-mvp/engine/domain"
	"github.com/LexaTechAI/lexa-mvp/engine/ingest"
	"github.com/LexaTechAI/lexa-mvp/engine/research"
	"github.com/LexaTechAI/lexa-mvp/engine/semantic"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/health", nil)
	handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", resp["status"])
	}
}

func TestResearchEndpoint_InvalidJSON(t *testing.T) {
	handler := handleResearch(nil, discard())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/research", bytes.NewBufferString("not json"))
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

// stub collaborators for a real research.Service

type stubGen struct{ reply string }

func (s *stubGen) Generate(context.Context, string) (string, error) { return s.reply, nil }
func (s *stubGen) ExtractKeywords(context.Context, string, int) (string, error) {
	return "keywords", nil
}

type stubFiles struct{}

func (stubFiles) ExtractText(context.Context, string) (string, error) {
	return "", fmt.Errorf("open: %w", domain.ErrUnreadableDocument)
}

type stubDecisions struct{}

func (stubDecisions) FetchDecisionTexts(context.Context, string, int) (string, error) {
	return "[ERROR: decision search failed]", fmt.Errorf("search: %w", domain.ErrRemoteFetch)
}

type stubIndex struct{}

func (stubIndex) Dimension() int                                          { return 768 }
func (stubIndex) EnsureCollection(context.Context, string, int) error     { return nil }
func (stubIndex) DeleteCollection(context.Context, string) error          { return nil }
func (stubIndex) UpsertChunks(context.Context, string, []ingest.Chunk) (int, error) {
	return 0, nil
}
func (stubIndex) Search(context.Context, string, string, int) ([]semantic.SearchResult, error) {
	return nil, nil
}

func stubService(gen *stubGen) *research.Service {
	return research.New(stubFiles{}, stubDecisions{}, gen, gen, stubIndex{}, nil,
		research.DefaultOptions(), discard())
}

func postResearch(t *testing.T, svc *research.Service, body string) *httptest.ResponseRecorder {
	t.Helper()
	handler := handleResearch(svc, discard())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/research", bytes.NewBufferString(body))
	handler(rec, req)
	return rec
}

func TestResearchEndpoint_GeneralMode(t *testing.T) {
	rec := postResearch(t, stubService(&stubGen{reply: "general answer"}),
		`{"question":"kira sozlesmesi nasil feshedilir","mode":"general"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp ResearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "general answer" {
		t.Fatalf("answer = %q", resp.Answer)
	}
}

func TestResearchEndpoint_DefaultsToGeneral(t *testing.T) {
	rec := postResearch(t, stubService(&stubGen{reply: "x"}),
		`{"question":"soru metni yeterince uzun"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
}

func TestResearchEndpoint_TooShortQuestion(t *testing.T) {
	rec := postResearch(t, stubService(&stubGen{}), `{"question":"ab","mode":"general"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestResearchEndpoint_RemoteFailureIsSoft(t *testing.T) {
	rec := postResearch(t, stubService(&stubGen{}),
		`{"question":"tazminat davasi kosullari","mode":"web"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected soft 200, got %d", rec.Code)
	}
	var resp ResearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer == "" {
		t.Fatal("expected a user-facing message")
	}
}

func TestResearchEndpoint_UnreadableDocument(t *testing.T) {
	rec := postResearch(t, stubService(&stubGen{}),
		`{"question":"dosyadaki davaya gore sansim nedir","mode":"file","file_path":"/tmp/x.pdf"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestPetitionEndpoint(t *testing.T) {
	handler := handlePetition(stubService(&stubGen{reply: "SAYIN MAHKEMEYE"}), discard())
	body := `{"full_name":"Ayse Yilmaz","court_name":"Istanbul Anadolu 5. Aile Mahkemesi",` +
		`"case_type":"Divorce","opponent_name":"Mehmet Yilmaz","details":"Evlilik birligi sarsilmistir."}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/petition", bytes.NewBufferString(body))
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp PetitionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Petition != "SAYIN MAHKEMEYE" {
		t.Fatalf("petition = %q", resp.Petition)
	}
}

func TestPetitionEndpoint_MissingFields(t *testing.T) {
	handler := handlePetition(stubService(&stubGen{}), discard())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/petition", bytes.NewBufferString(`{"full_name":"Ayse"}`))
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["error"] == "" {
		t.Fatal("expected an error naming the missing fields")
	}
}

func TestUploadEndpoint(t *testing.T) {
	dir := t.TempDir()
	handler := handleUpload(dir, discard())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "dilekce.pdf")
	fw.Write([]byte("%PDF-1.4 fake"))
	mw.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var resp UploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.SourceID != "dilekce" {
		t.Fatalf("source id = %q", resp.SourceID)
	}
	if _, err := os.Stat(filepath.Join(dir, "dilekce.pdf")); err != nil {
		t.Fatalf("file not stored: %v", err)
	}
}

func TestUploadEndpoint_RejectsNonPDF(t *testing.T) {
	handler := handleUpload(t.TempDir(), discard())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	fw.Write([]byte("plain text"))
	mw.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.CORSOrigin != "*" {
		t.Fatalf("expected default CORS *, got %s", cfg.CORSOrigin)
	}
	if cfg.UploadDir == "" {
		t.Fatal("upload dir must have a default")
	}
}
