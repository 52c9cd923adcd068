// Package service holds the ingestion pipeline, the retrieval engine and the
// RAG facade that ties them to an embedder and an answerer.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// Options tunes a RAG service. Zero values pick defaults.
type Options struct {
	Workers          int
	EmbedTimeout     time.Duration
	MinSimilarity    float64
	QueryCacheSize   int
	SummarySentences int
	Logger           *slog.Logger
}

// RAG is the programmatic surface: ingest documents once, then retrieve,
// query or ask repeatedly. It owns its corpus; there is no shared index.
type RAG struct {
	corpus     *vectorstore.Corpus
	pipeline   *Pipeline
	engine     *Engine
	embedder   domain.Embedder
	answerer   domain.Answerer
	summarizer domain.Summarizer
	cache      *lru.Cache[string, domain.Vector]
	logger     *slog.Logger

	summarySentences int
	mu               sync.Mutex
	text             strings.Builder
	summary          string
}

// NewRAG assembles a service around a fresh corpus. answerer and summarizer
// may be nil.
func NewRAG(chunker domain.Chunker, embedder domain.Embedder, answerer domain.Answerer, summarizer domain.Summarizer, opts Options) (*RAG, error) {
	if chunker == nil || embedder == nil {
		return nil, fmt.Errorf("%w: chunker and embedder are required", domain.ErrInvalidConfig)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	corpus, err := vectorstore.NewCorpus(0)
	if err != nil {
		return nil, err
	}
	s := &RAG{
		corpus: corpus,
		pipeline: NewPipeline(corpus, chunker, embedder,
			WithWorkers(opts.Workers),
			WithEmbedTimeout(opts.EmbedTimeout),
			WithPipelineLogger(logger.With("component", "ingest")),
		),
		engine: NewEngine(corpus,
			WithMinSimilarity(opts.MinSimilarity),
			WithEngineLogger(logger.With("component", "retrieve")),
		),
		embedder:         embedder,
		answerer:         answerer,
		summarizer:       summarizer,
		logger:           logger,
		summarySentences: opts.SummarySentences,
	}
	if opts.QueryCacheSize > 0 {
		s.cache, err = lru.New[string, domain.Vector](opts.QueryCacheSize)
		if err != nil {
			return nil, fmt.Errorf("%w: query cache: %w", domain.ErrInvalidConfig, err)
		}
	}
	return s, nil
}

// Ingest adds a batch of documents and returns the passage count and
// per-document outcome. See Pipeline.Ingest. The summary covers every
// committed document, including those committed before an error.
func (s *RAG) Ingest(ctx context.Context, docs []domain.Document) (IngestReport, error) {
	report, err := s.pipeline.Ingest(ctx, docs)
	s.updateSummary(docs, report)
	return report, err
}

// Retrieve returns the k passages nearest to an already embedded query.
func (s *RAG) Retrieve(ctx context.Context, query domain.Vector, k int) ([]domain.RetrievalResult, error) {
	return s.engine.Retrieve(ctx, query, k)
}

// IsReady reports whether any passage has been indexed.
func (s *RAG) IsReady() bool { return s.engine.IsReady() }

// Query embeds text with the ingestion embedder and retrieves the k nearest
// passages. Before anything is ingested it returns no results.
func (s *RAG) Query(ctx context.Context, text string, k int) ([]domain.RetrievalResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidK, k)
	}
	if !s.IsReady() {
		return []domain.RetrievalResult{}, nil
	}
	vec, err := s.embedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.engine.Retrieve(ctx, vec, k)
}

// Ask retrieves the k nearest passages for question and extracts an answer
// from each. A failed extraction is logged and leaves that answer empty.
func (s *RAG) Ask(ctx context.Context, question string, k int) ([]domain.Answer, error) {
	results, err := s.Query(ctx, question, k)
	if err != nil {
		return nil, err
	}
	answers := make([]domain.Answer, len(results))
	for i, r := range results {
		answers[i].RetrievalResult = r
		if s.answerer == nil {
			continue
		}
		text, err := s.answerer.Answer(ctx, question, r.Passage.Text)
		if err != nil {
			s.logger.Warn("answer extraction failed",
				"document", r.Passage.DocumentName,
				"position", r.Passage.Position,
				"error", err,
			)
			continue
		}
		answers[i].Text = text
	}
	return answers, nil
}

// Summary returns a short summary of everything ingested so far.
func (s *RAG) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Reset drops the whole index, its metadata and any corpus-derived embedder
// state. Ingest starts from scratch afterwards.
func (s *RAG) Reset() {
	s.corpus.Reset()
	if r, ok := s.embedder.(domain.Resetter); ok {
		r.Reset()
	}
	if s.cache != nil {
		s.cache.Purge()
	}
	s.mu.Lock()
	s.text.Reset()
	s.summary = ""
	s.mu.Unlock()
}

func (s *RAG) embedQuery(ctx context.Context, text string) (domain.Vector, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(text); ok {
			return v, nil
		}
	}
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", domain.ErrEmbeddingFailure, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: query: got %d vectors", domain.ErrEmbeddingFailure, len(vecs))
	}
	if s.cache != nil {
		s.cache.Add(text, vecs[0].Clone())
	}
	return vecs[0], nil
}

func (s *RAG) updateSummary(docs []domain.Document, report IngestReport) {
	if s.summarizer == nil || len(report.Committed) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range report.Committed {
		s.text.WriteString("\n")
		s.text.WriteString(docs[i].Text)
	}
	summary, err := s.summarizer.Summarize(s.text.String(), s.summarySentences)
	if err != nil {
		s.logger.Warn("summarize failed", "error", err)
		return
	}
	s.summary = summary
}
