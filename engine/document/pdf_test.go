package document

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/LexaTechAI/lexa-mvp/engine/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractMissingFile(t *testing.T) {
	e := NewPDFExtractor(0, discard())
	_, err := e.ExtractText(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	if !errors.Is(err, domain.ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
}

func TestExtractCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := NewPDFExtractor(0, discard())
	_, err := e.ExtractText(context.Background(), path)
	if !errors.Is(err, domain.ErrUnreadableDocument) {
		t.Fatalf("expected ErrUnreadableDocument, got %v", err)
	}
}

func TestDefaultPageCap(t *testing.T) {
	e := NewPDFExtractor(0, discard())
	if e.maxPages != DefaultMaxPages {
		t.Fatalf("maxPages = %d", e.maxPages)
	}
	e = NewPDFExtractor(25, discard())
	if e.maxPages != 25 {
		t.Fatalf("maxPages = %d", e.maxPages)
	}
}

func TestSourceID(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/uploads/contract.pdf", "contract"},
		{"contract.pdf", "contract"},
		{"/a/b/davaci-dilekcesi.PDF", "davaci-dilekcesi"},
		{"noext", "noext"},
		{"/x/dotted.name.pdf", "dotted.name"},
	}
	for _, c := range cases {
		if got := SourceID(c.path); got != c.want {
			t.Errorf("SourceID(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}
