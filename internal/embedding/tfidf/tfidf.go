// Package tfidf is an offline embedder that needs no model: vectors are
// L2-normalised TF-IDF weights over a vocabulary learned from the corpus.
package tfidf

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/textutil"
)

// Embedder implements domain.Embedder, domain.Preparer and domain.Resetter.
// The first successful Prepare freezes the vocabulary so the dimension stays
// fixed for the lifetime of an index; later calls are no-ops until Reset.
type Embedder struct {
	mu         sync.RWMutex
	vocabulary map[string]int
	idf        []float64
	prepared   bool
}

// NewEmbedder creates an unprepared TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{vocabulary: make(map[string]int)}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Prepare builds the vocabulary and IDF values from the provided corpus.
func (e *Embedder) Prepare(ctx context.Context, corpus []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.prepared {
		return nil
	}
	if len(corpus) == 0 {
		return errors.New("empty corpus for TF-IDF prepare")
	}
	df := make(map[string]int)
	for _, text := range corpus {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen := make(map[string]struct{})
		for _, tok := range textutil.Terms(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	// Sorted terms give a stable dimension order.
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return errors.New("no tokens found in corpus; ensure tokenizer supports your language")
	}
	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		e.vocabulary[term] = i
		// Smoothed IDF
		e.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	e.prepared = true
	return nil
}

// Reset forgets the vocabulary. The next Prepare learns a new one.
func (e *Embedder) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vocabulary = make(map[string]int)
	e.idf = nil
	e.prepared = false
}

// Dimension returns the vocabulary size, 0 before Prepare.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.idf)
}

// Embed computes TF-IDF vectors for texts. Text without known terms maps to
// the zero vector.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.prepared {
		return nil, errors.New("tfidf embedder not prepared")
	}
	out := make([]domain.Vector, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *Embedder) embed(text string) domain.Vector {
	vec := make(domain.Vector, len(e.idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range textutil.Terms(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * e.idf[idx]
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
