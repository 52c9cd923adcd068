package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

func TestRetrieveEmptyCorpus(t *testing.T) {
	corpus, err := vectorstore.NewCorpus(0)
	require.NoError(t, err)
	e := NewEngine(corpus)

	assert.False(t, e.IsReady())
	res, err := e.Retrieve(context.Background(), domain.Vector{1, 2}, 3)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
}

func TestRetrieveRejectsBadQueries(t *testing.T) {
	p, corpus := newTestPipeline(t, &letterEmbedder{})
	_, err := p.Ingest(context.Background(), []domain.Document{{Name: "a.txt", Text: "abc"}})
	require.NoError(t, err)
	e := NewEngine(corpus)

	_, err = e.Retrieve(context.Background(), letters("abc"), 0)
	require.ErrorIs(t, err, domain.ErrInvalidK)

	_, err = e.Retrieve(context.Background(), domain.Vector{1, 2}, 1)
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = e.Retrieve(context.Background(), nil, 1)
	require.ErrorIs(t, err, domain.ErrInvalidVector)
}

func TestSelfRetrieval(t *testing.T) {
	original := prose("a", 1000)
	p, corpus := newTestPipeline(t, &letterEmbedder{})
	_, err := p.Ingest(context.Background(), []domain.Document{
		{Name: "a.txt", Text: original},
		{Name: "b.txt", Text: prose("b", 700)},
	})
	require.NoError(t, err)
	e := NewEngine(corpus)
	require.True(t, e.IsReady())

	var target domain.Passage
	require.NoError(t, corpus.Read(func(_ *vectorstore.Index, meta *vectorstore.Metadata) error {
		target, err = meta.Get(1)
		return err
	}))
	require.Equal(t, "a.txt", target.DocumentName)

	res, err := e.Retrieve(context.Background(), letters(target.Text), 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, target, res[0].Passage)
	assert.InDelta(t, 0.0, res[0].Distance, 1e-12)
	assert.InDelta(t, 1.0, res[0].Similarity, 1e-12)
	assert.True(t, strings.Contains(original, res[0].Passage.Text))
	for i := 1; i < len(res); i++ {
		assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance)
		assert.Equal(t, domain.Similarity(res[i].Distance), res[i].Similarity)
	}
}

func TestRetrieveMinSimilarity(t *testing.T) {
	corpus, err := vectorstore.NewCorpus(1)
	require.NoError(t, err)
	require.NoError(t, corpus.Write(func(ix *vectorstore.Index, meta *vectorstore.Metadata) error {
		if _, err := ix.Add([]domain.Vector{{0}, {1}, {3}}); err != nil {
			return err
		}
		meta.Append([]domain.Passage{{Text: "zero"}, {Text: "one"}, {Text: "three"}})
		return nil
	}))

	// Similarities for distances 0, 1 and 9 are 1, 0.5 and 0.1.
	e := NewEngine(corpus, WithMinSimilarity(0.5))
	res, err := e.Retrieve(context.Background(), domain.Vector{0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "zero", res[0].Passage.Text)
	assert.Equal(t, "one", res[1].Passage.Text)

	e = NewEngine(corpus, WithMinSimilarity(1.5))
	res, err = e.Retrieve(context.Background(), domain.Vector{0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestRetrieveDetectsMissingMetadata(t *testing.T) {
	corpus, err := vectorstore.NewCorpus(0)
	require.NoError(t, err)
	// A vector with no passage behind it.
	require.NoError(t, corpus.Write(func(ix *vectorstore.Index, meta *vectorstore.Metadata) error {
		_, err := ix.Add([]domain.Vector{{1, 1}, {5, 5}})
		meta.Append([]domain.Passage{{Text: "only one"}})
		return err
	}))

	e := NewEngine(corpus)
	_, err = e.Retrieve(context.Background(), domain.Vector{5, 5}, 1)
	require.ErrorIs(t, err, domain.ErrCorruptIndexState)
	require.ErrorIs(t, err, domain.ErrNotFound)

	res, err := e.Retrieve(context.Background(), domain.Vector{1, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "only one", res[0].Passage.Text)
}

func TestRetrieveDetectsMissingMetadataBelowSimilarityFloor(t *testing.T) {
	corpus, err := vectorstore.NewCorpus(1)
	require.NoError(t, err)
	require.NoError(t, corpus.Write(func(ix *vectorstore.Index, meta *vectorstore.Metadata) error {
		_, err := ix.Add([]domain.Vector{{0}, {3}})
		meta.Append([]domain.Passage{{Text: "zero"}})
		return err
	}))

	// The orphan at distance 9 has similarity 0.1, below the floor.
	e := NewEngine(corpus, WithMinSimilarity(0.5))
	_, err = e.Retrieve(context.Background(), domain.Vector{0}, 2)
	require.ErrorIs(t, err, domain.ErrCorruptIndexState)
	require.ErrorIs(t, err, domain.ErrNotFound)

	res, err := e.Retrieve(context.Background(), domain.Vector{0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "zero", res[0].Passage.Text)
}

func TestConcurrentRetrieveMatchesSequential(t *testing.T) {
	p, corpus := newTestPipeline(t, &letterEmbedder{})
	_, err := p.Ingest(context.Background(), []domain.Document{
		{Name: "a.txt", Text: prose("a", 3000)},
		{Name: "b.txt", Text: prose("q", 2000)},
		{Name: "c.txt", Text: prose("z", 1500)},
	})
	require.NoError(t, err)
	e := NewEngine(corpus)

	queries := []domain.Vector{letters("vector index"), letters("zulu kilo"), letters("passage query metric")}
	want := make([][]domain.RetrievalResult, len(queries))
	for i, q := range queries {
		want[i], err = e.Retrieve(context.Background(), q, 5)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				qi := (g + i) % len(queries)
				got, err := e.Retrieve(context.Background(), queries[qi], 5)
				if assert.NoError(t, err) {
					assert.Equal(t, want[qi], got)
				}
			}
		}()
	}
	wg.Wait()
}
