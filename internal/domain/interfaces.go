package domain

import "context"

// Embedder converts passages into vectors of a fixed dimensionality.
// The output has the same length and order as texts.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([]Vector, error)
}

// Preparer is implemented by embedders that must see the corpus before
// they can embed, such as TF-IDF.
type Preparer interface {
	Prepare(ctx context.Context, corpus []string) error
}

// Resetter is implemented by embedders whose state was learned from the
// corpus and must be dropped together with the index.
type Resetter interface {
	Reset()
}

// Chunker splits document text into overlapping passages.
type Chunker interface {
	Chunk(text string) ([]string, error)
}

// Answerer extracts an answer to question from a single passage.
type Answerer interface {
	Answer(ctx context.Context, question, context string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
