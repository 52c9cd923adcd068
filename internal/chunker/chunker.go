// Package chunker splits extracted document text into overlapping passages.
package chunker

import (
	"fmt"

	"docqa/internal/domain"
)

const (
	// DefaultSize is the default passage length in characters.
	DefaultSize = 500
	// DefaultOverlap is the default number of characters shared by neighbouring passages.
	DefaultOverlap = 50
)

// New returns the chunker registered under kind ("fixed" or "sentence").
func New(kind string, size, overlap int) (domain.Chunker, error) {
	switch kind {
	case "fixed", "":
		return NewFixedChunker(size, overlap)
	case "sentence":
		return NewSentenceChunker(size, overlap)
	default:
		return nil, fmt.Errorf("%w: unknown chunker %q", domain.ErrInvalidConfig, kind)
	}
}

// Validate checks a size/overlap pair.
func Validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk size %d must be positive", domain.ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", domain.ErrInvalidConfig, overlap, size)
	}
	return nil
}

// Split slices text into windows of size characters, each starting
// size-overlap characters after the previous one. Offsets count runes, so
// multi-byte characters are never cut. The last window may be shorter.
func Split(text string, size, overlap int) ([]string, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	runes := []rune(text)
	n := len(runes)
	step := size - overlap
	chunks := make([]string, 0, (n+step-1)/step)
	for start := 0; start < n; start += step {
		end := min(start+size, n)
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}

// FixedChunker applies Split with a fixed configuration.
type FixedChunker struct {
	size    int
	overlap int
}

// NewFixedChunker validates the configuration up front.
func NewFixedChunker(size, overlap int) (*FixedChunker, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	return &FixedChunker{size: size, overlap: overlap}, nil
}

// Chunk implements domain.Chunker.
func (c *FixedChunker) Chunk(text string) ([]string, error) {
	return Split(text, c.size, c.overlap)
}
