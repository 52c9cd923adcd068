package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMinSimilarity drops results whose domain.Similarity is below min.
func WithMinSimilarity(min float64) EngineOption {
	return func(e *Engine) { e.minSimilarity = min }
}

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine answers nearest-neighbour queries against a Corpus and attributes
// every hit to its passage.
type Engine struct {
	corpus        *vectorstore.Corpus
	minSimilarity float64
	logger        *slog.Logger
}

// NewEngine creates a retrieval engine over corpus.
func NewEngine(corpus *vectorstore.Corpus, opts ...EngineOption) *Engine {
	e := &Engine{
		corpus: corpus,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsReady reports whether at least one passage has been indexed.
func (e *Engine) IsReady() bool { return e.corpus.Len() > 0 }

// Retrieve returns up to k passages nearest to query, closest first.
// An empty corpus yields an empty result and no error; use IsReady to tell
// it apart from a query that matched nothing above the similarity floor.
func (e *Engine) Retrieve(ctx context.Context, query domain.Vector, k int) ([]domain.RetrievalResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidK, k)
	}
	if err := query.Validate(0); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := []domain.RetrievalResult{}
	err := e.corpus.Read(func(ix *vectorstore.Index, meta *vectorstore.Metadata) error {
		hits, err := ix.Search(query, k)
		if errors.Is(err, domain.ErrEmptyIndex) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, h := range hits {
			p, err := meta.Get(h.ID)
			if err != nil {
				return fmt.Errorf("%w: index returned id %d: %w", domain.ErrCorruptIndexState, h.ID, err)
			}
			// Every hit is joined before filtering so a dangling id is
			// reported even below the similarity floor.
			sim := domain.Similarity(h.Distance)
			if sim < e.minSimilarity {
				continue
			}
			results = append(results, domain.RetrievalResult{Passage: p, Distance: h.Distance, Similarity: sim})
		}
		return nil
	})
	if err != nil {
		e.logger.Error("retrieve failed", "k", k, "error", err)
		return nil, err
	}
	e.logger.Debug("retrieve completed", "k", k, "results", len(results))
	return results, nil
}
