package ingest

import (
	"fmt"
	"strings"
	"testing"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%04d", i)
	}
	return strings.Join(parts, " ")
}

func TestNewSplitterRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSplitter(tc.size, tc.overlap); err == nil {
				t.Fatalf("expected error for size=%d overlap=%d", tc.size, tc.overlap)
			}
		})
	}
}

func TestSplitEmpty(t *testing.T) {
	s := MustSplitter()
	if got := s.Split("", "src"); len(got) != 0 {
		t.Fatalf("expected no chunks, got %d", len(got))
	}
	if got := s.Split("   \n\t  ", "src"); len(got) != 0 {
		t.Fatalf("whitespace-only: expected no chunks, got %d", len(got))
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := MustSplitter()
	got := s.Split("a short paragraph", "doc-1")
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0].Text != "a short paragraph" || got[0].Index != 0 || got[0].SourceID != "doc-1" {
		t.Fatalf("chunk = %+v", got[0])
	}
}

func TestSplitDeterministic(t *testing.T) {
	s := MustSplitter()
	text := words(600)
	a := s.Split(text, "src")
	b := s.Split(text, "src")
	if len(a) != len(b) {
		t.Fatalf("counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs:\n%q\n%q", i, a[i].Text, b[i].Text)
		}
	}
}

func TestSplitSequenceIndexes(t *testing.T) {
	s := MustSplitter()
	chunks := s.Split(words(600), "src")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		if c.SourceID != "src" {
			t.Fatalf("chunk %d sourceID = %q", i, c.SourceID)
		}
	}
}

func TestSplitSizeBound(t *testing.T) {
	s := MustSplitter()
	for _, c := range s.Split(words(600), "src") {
		if n := len([]rune(c.Text)); n > DefaultChunkSize {
			t.Fatalf("chunk exceeds size: %d", n)
		}
	}
}

func TestSplitOverlapBound(t *testing.T) {
	s := MustSplitter()
	chunks := s.Split(words(600), "src")
	for i := 1; i < len(chunks); i++ {
		shared := sharedAffix(chunks[i-1].Text, chunks[i].Text)
		if shared > DefaultOverlap {
			t.Fatalf("chunks %d/%d share %d chars, overlap limit is %d", i-1, i, shared, DefaultOverlap)
		}
	}
}

// sharedAffix returns the length of the longest suffix of a that is a
// prefix of b.
func sharedAffix(a, b string) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for n := max; n > 0; n-- {
		if a[len(a)-n:] == b[:n] {
			return n
		}
	}
	return 0
}

func TestSplitCoverage(t *testing.T) {
	s := MustSplitter()
	text := words(600)
	chunks := s.Split(text, "src")

	// Every word of the source must appear in order across the chunks.
	joined := make([]string, len(chunks))
	for i, c := range chunks {
		joined[i] = c.Text
	}
	all := strings.Join(joined, " ")
	pos := 0
	for _, w := range strings.Fields(text) {
		idx := strings.Index(all[pos:], w)
		if idx < 0 {
			t.Fatalf("word %q missing or out of order", w)
		}
		pos += idx
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	s, err := NewSplitter(100, 20)
	if err != nil {
		t.Fatal(err)
	}
	para1 := strings.Repeat("aa ", 25) // 75 chars
	para2 := strings.Repeat("bb ", 40)
	chunks := s.Split(para1+"\n\n"+para2, "src")
	if len(chunks) < 2 {
		t.Fatalf("expected split, got %d chunks", len(chunks))
	}
	if got := chunks[0].Text; got != strings.TrimSpace(para1) {
		t.Fatalf("first chunk should end at the paragraph break, got %q", got)
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	s, err := NewSplitter(100, 20)
	if err != nil {
		t.Fatal(err)
	}
	text := "First sentence here. Second one follows. " + strings.Repeat("tail ", 30)
	chunks := s.Split(text, "src")
	if len(chunks) < 2 {
		t.Fatalf("expected split, got %d chunks", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, ".") {
		t.Fatalf("first chunk should end at a sentence boundary, got %q", chunks[0].Text)
	}
}

func TestSplitHardCutWithoutBoundaries(t *testing.T) {
	s, err := NewSplitter(50, 10)
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("x", 200) // no boundary anywhere
	chunks := s.Split(text, "src")
	if len(chunks) < 2 {
		t.Fatalf("expected hard cuts, got %d chunks", len(chunks))
	}
	if len(chunks[0].Text) != 50 {
		t.Fatalf("hard cut should land at the size limit, got %d", len(chunks[0].Text))
	}
}

func TestSplitChunksStartOnWordBoundaries(t *testing.T) {
	s := MustSplitter()
	for i, c := range s.Split(words(600), "src") {
		first := strings.Fields(c.Text)[0]
		if !strings.HasPrefix(first, "word") || len(first) != len("word0000") {
			t.Fatalf("chunk %d opens mid-word: %q", i, first)
		}
	}
}
