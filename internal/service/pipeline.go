package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// ErrNoPassages is recorded for documents whose text produced no passages.
var ErrNoPassages = errors.New("document produced no passages")

// SkippedDocument is a document ingestion gave up on. Index is its position
// in the Ingest input.
type SkippedDocument struct {
	Index  int
	Name   string
	Reason error
}

// IngestReport summarises one Ingest call. Committed holds the input
// positions of the documents whose passages were added, in commit order.
type IngestReport struct {
	Documents int
	Added     int
	Committed []int
	Skipped   []SkippedDocument
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithWorkers sets how many documents are embedded concurrently.
func WithWorkers(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithEmbedTimeout bounds each per-document embedding call.
func WithEmbedTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.embedTimeout = d }
}

// WithPipelineLogger sets the logger used for per-document warnings.
func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// Pipeline chunks documents, embeds them and commits the vectors and their
// passages to a Corpus.
type Pipeline struct {
	corpus       *vectorstore.Corpus
	chunker      domain.Chunker
	embedder     domain.Embedder
	workers      int
	embedTimeout time.Duration
	logger       *slog.Logger
}

// NewPipeline wires a pipeline over corpus.
func NewPipeline(corpus *vectorstore.Corpus, chunker domain.Chunker, embedder domain.Embedder, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		corpus:   corpus,
		chunker:  chunker,
		embedder: embedder,
		workers:  4,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type embedded struct {
	vectors []domain.Vector
	err     error
}

// Ingest adds docs to the corpus. A document that fails to chunk into
// anything, fails to embed, or was embedded with a different dimension is
// skipped and reported; the rest of the batch continues. Documents are
// embedded concurrently but committed one at a time in input order, so
// passage identifiers do not depend on scheduling.
//
// The returned error is non-nil only for a cancelled context or for
// domain.ErrCorruptIndexState. Documents committed before either remain
// queryable.
func (p *Pipeline) Ingest(ctx context.Context, docs []domain.Document) (IngestReport, error) {
	report := IngestReport{Documents: len(docs)}
	chunks := make([][]string, len(docs))
	var corpusText []string
	for i, d := range docs {
		c, err := p.chunker.Chunk(d.Text)
		if err != nil {
			return report, fmt.Errorf("chunk %s: %w", d.Name, err)
		}
		chunks[i] = c
		corpusText = append(corpusText, c...)
	}

	var prepareErr error
	if prep, ok := p.embedder.(domain.Preparer); ok && len(corpusText) > 0 {
		if err := prep.Prepare(ctx, corpusText); err != nil {
			prepareErr = fmt.Errorf("%w: prepare %s: %w", domain.ErrEmbeddingFailure, p.embedder.Name(), err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	results := make([]embedded, len(docs))
	ready := make([]chan struct{}, len(docs))
	for i := range ready {
		ready[i] = make(chan struct{})
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(p.workers)
		for i := range docs {
			if len(chunks[i]) == 0 || prepareErr != nil {
				close(ready[i])
				continue
			}
			g.Go(func() error {
				defer close(ready[i])
				results[i] = p.embed(ctx, chunks[i])
				return nil
			})
		}
		_ = g.Wait()
	}()
	defer func() {
		cancel()
		<-done
	}()

	for i, d := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		select {
		case <-ready[i]:
		case <-ctx.Done():
			return report, ctx.Err()
		}
		var err error
		switch {
		case len(chunks[i]) == 0:
			err = ErrNoPassages
		case prepareErr != nil:
			err = prepareErr
		case results[i].err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			err = results[i].err
		default:
			var added int
			added, err = p.commit(d.Name, chunks[i], results[i].vectors)
			if errors.Is(err, domain.ErrCorruptIndexState) {
				p.logger.Error("index and metadata out of sync", "document", d.Name, "error", err)
				return report, err
			}
			report.Added += added
			if err == nil {
				report.Committed = append(report.Committed, i)
			}
		}
		if err != nil {
			p.logger.Warn("skipping document", "document", d.Name, "error", err)
			report.Skipped = append(report.Skipped, SkippedDocument{Index: i, Name: d.Name, Reason: err})
			continue
		}
		p.logger.Debug("document ingested", "document", d.Name, "passages", len(chunks[i]))
	}
	p.logger.Info("ingestion finished",
		"documents", report.Documents,
		"passages", report.Added,
		"skipped", len(report.Skipped),
	)
	return report, nil
}

func (p *Pipeline) embed(ctx context.Context, chunks []string) embedded {
	if err := ctx.Err(); err != nil {
		return embedded{err: err}
	}
	if p.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.embedTimeout)
		defer cancel()
	}
	vectors, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		return embedded{err: fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, err)}
	}
	if len(vectors) != len(chunks) {
		return embedded{err: fmt.Errorf("%w: %d vectors for %d passages", domain.ErrEmbeddingFailure, len(vectors), len(chunks))}
	}
	for i, v := range vectors {
		if err := v.Validate(0); err != nil {
			return embedded{err: fmt.Errorf("%w: passage %d: %w", domain.ErrEmbeddingFailure, i, err)}
		}
	}
	return embedded{vectors: vectors}
}

// commit appends one document atomically: the vectors and passages land
// together or not at all, and the two stores must hand out the same ids.
func (p *Pipeline) commit(name string, chunks []string, vectors []domain.Vector) (int, error) {
	passages := make([]domain.Passage, len(chunks))
	for i, text := range chunks {
		passages[i] = domain.Passage{DocumentName: name, Position: i, Text: text}
	}
	err := p.corpus.Write(func(ix *vectorstore.Index, meta *vectorstore.Metadata) error {
		if ix.Len() != meta.Len() {
			return fmt.Errorf("%w: index holds %d vectors, metadata holds %d passages",
				domain.ErrCorruptIndexState, ix.Len(), meta.Len())
		}
		vr, err := ix.Add(vectors)
		if err != nil {
			return err
		}
		mr := meta.Append(passages)
		if vr != mr {
			return fmt.Errorf("%w: index assigned [%d,%d), metadata assigned [%d,%d)",
				domain.ErrCorruptIndexState, vr.Start, vr.End, mr.Start, mr.End)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(passages), nil
}
