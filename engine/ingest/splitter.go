// Package ingest turns raw source text into bounded, overlapping chunks
// and drives them through the indexing pipeline.
package ingest

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	// DefaultChunkSize is the target number of characters per chunk.
	DefaultChunkSize = 1000
	// DefaultOverlap is the number of characters shared between
	// consecutive chunks.
	DefaultOverlap = 200
)

// Chunk is a bounded contiguous slice of source text with position metadata.
type Chunk struct {
	Text     string `json:"text"`
	Index    int    `json:"index"` // 0-based position within the source
	SourceID string `json:"source_id"`
}

// Splitter produces overlapping character windows, cutting preferentially
// at paragraph, then sentence, then word boundaries, with a hard cut as
// the last resort. Identical input and configuration always produce an
// identical chunk sequence.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter validates the configuration and returns a Splitter.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, errors.New("ingest: chunk size must be positive")
	}
	if overlap < 0 {
		return nil, errors.New("ingest: overlap cannot be negative")
	}
	if overlap >= size {
		return nil, fmt.Errorf("ingest: overlap %d must be smaller than chunk size %d", overlap, size)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// MustSplitter returns a Splitter with the default configuration.
func MustSplitter() *Splitter {
	s, err := NewSplitter(DefaultChunkSize, DefaultOverlap)
	if err != nil {
		panic(err)
	}
	return s
}

// Split divides text into chunks tagged with sourceID. Empty or
// whitespace-only input yields no chunks and no error.
func (s *Splitter) Split(text, sourceID string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []Chunk
	pos := 0

	for pos < len(runes) {
		end := pos + s.size
		if end >= len(runes) {
			chunks = appendChunk(chunks, runes[pos:], sourceID)
			break
		}

		cut := s.cutPoint(runes, pos, end)
		chunks = appendChunk(chunks, runes[pos:cut], sourceID)

		next := cut - s.overlap
		if next <= pos {
			next = pos + 1 // forward progress even when a boundary lands early
		} else {
			// Start the overlap on a word boundary so no chunk opens
			// mid-word. Shrinks the effective overlap, never grows it.
			for next < cut && !unicode.IsSpace(runes[next-1]) {
				next++
			}
		}
		pos = next
	}
	return chunks
}

// appendChunk trims the window and appends it with the next sequence index.
func appendChunk(chunks []Chunk, window []rune, sourceID string) []Chunk {
	text := strings.TrimSpace(string(window))
	if text == "" {
		return chunks
	}
	return append(chunks, Chunk{Text: text, Index: len(chunks), SourceID: sourceID})
}

// cutPoint picks where to end the window starting at pos. Preference:
// after the last paragraph break, then after the last sentence end, then
// after the last space, then a hard cut at the size limit.
func (s *Splitter) cutPoint(runes []rune, pos, end int) int {
	if cut := lastParagraphBreak(runes, pos, end); cut > pos {
		return cut
	}
	if cut := lastSentenceEnd(runes, pos, end); cut > pos {
		return cut
	}
	if cut := lastWordBreak(runes, pos, end); cut > pos {
		return cut
	}
	return end
}

func lastParagraphBreak(runes []rune, pos, end int) int {
	for i := end - 1; i > pos; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	return -1
}

func lastSentenceEnd(runes []rune, pos, end int) int {
	for i := end - 1; i > pos; i-- {
		r := runes[i]
		if r == '\n' {
			return i + 1
		}
		if (r == '.' || r == '!' || r == '?') && (i+1 >= end || unicode.IsSpace(runes[i+1])) {
			return i + 1
		}
	}
	return -1
}

func lastWordBreak(runes []rune, pos, end int) int {
	for i := end - 1; i > pos; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return -1
}
