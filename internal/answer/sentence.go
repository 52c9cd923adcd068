// Package answer implements domain.Answerer: an offline extractive answerer
// and an OpenAI-compatible chat answerer.
package answer

import (
	"context"
	"strings"

	"docqa/internal/textutil"
)

// Sentence answers with the passage sentence sharing the most words with the
// question. It never fails and needs no model.
type Sentence struct{}

// NewSentence returns the extractive answerer.
func NewSentence() Sentence { return Sentence{} }

// Answer implements domain.Answerer.
func (Sentence) Answer(_ context.Context, question, passage string) (string, error) {
	sentences, best := BestSentence(passage, question)
	if best < 0 {
		return "", nil
	}
	return strings.TrimSpace(sentences[best]), nil
}

// BestSentence splits text into sentences and returns the index of the one
// with the highest word overlap with query. Ties go to the earliest sentence.
// best is -1 when text has no sentences or query has no words.
func BestSentence(text, query string) (sentences []string, best int) {
	sentences = textutil.Sentences(text)
	if len(sentences) == 0 {
		return nil, -1
	}
	q := textutil.TokenSet(query)
	if len(q) == 0 {
		return sentences, -1
	}
	best = 0
	bestScore := -1
	for i, s := range sentences {
		if score := textutil.Overlap(q, s); score > bestScore {
			bestScore = score
			best = i
		}
	}
	return sentences, best
}
