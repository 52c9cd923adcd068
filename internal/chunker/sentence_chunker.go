package chunker

import "unicode"

// SentenceChunker is a boundary-aware variant of FixedChunker. A window ends
// at the last sentence terminator that fits in size characters, falling back
// to a hard cut when there is none. Consecutive windows still share exactly
// overlap characters.
type SentenceChunker struct {
	size    int
	overlap int
}

// NewSentenceChunker validates the configuration up front.
func NewSentenceChunker(size, overlap int) (*SentenceChunker, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	return &SentenceChunker{size: size, overlap: overlap}, nil
}

// Chunk implements domain.Chunker.
func (c *SentenceChunker) Chunk(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	runes := []rune(text)
	n := len(runes)
	var chunks []string
	start := 0
	for {
		limit := min(start+c.size, n)
		end := limit
		if limit < n {
			// A boundary at or before start+overlap would not advance.
			if b := lastBoundary(runes, start+c.overlap+1, limit); b > 0 {
				end = b
			}
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			return chunks, nil
		}
		start = end - c.overlap
	}
}

// lastBoundary returns the largest offset i in [lo, hi] that directly follows
// a sentence terminator and precedes whitespace, or 0 if there is none.
func lastBoundary(runes []rune, lo, hi int) int {
	for i := hi; i >= lo && i > 0; i-- {
		switch runes[i-1] {
		case '.', '!', '?':
			if i == len(runes) || unicode.IsSpace(runes[i]) {
				return i
			}
		}
	}
	return 0
}
