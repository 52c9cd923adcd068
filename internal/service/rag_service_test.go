package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/answer"
	"docqa/internal/chunker"
	"docqa/internal/domain"
	"docqa/internal/embedding/tfidf"
	"docqa/internal/summarizer"
)

const (
	solarText = "The Sun is a star at the centre of the Solar System. " +
		"Jupiter is the largest planet and has dozens of moons. " +
		"Mars is called the red planet because of iron oxide dust."
	oceanText = "The Pacific Ocean is the deepest ocean on Earth. " +
		"The Mariana Trench reaches almost eleven kilometres below sea level. " +
		"Coral reefs grow in warm shallow water."
	catsText = "Cats sleep for most of the afternoon. " +
		"A kitten learns hunting by chasing string and paper."
)

func newTestRAG(t *testing.T, emb domain.Embedder, ans domain.Answerer, opts Options) *RAG {
	t.Helper()
	ch, err := chunker.NewFixedChunker(120, 20)
	require.NoError(t, err)
	s, err := NewRAG(ch, emb, ans, summarizer.NewFrequencySummarizer(), opts)
	require.NoError(t, err)
	return s
}

func TestNewRAGRequiresCollaborators(t *testing.T) {
	_, err := NewRAG(nil, &letterEmbedder{}, nil, nil, Options{})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestRAGEndToEndWithTFIDF(t *testing.T) {
	ctx := context.Background()
	s := newTestRAG(t, tfidf.NewEmbedder(), answer.NewSentence(), Options{Workers: 2})
	assert.False(t, s.IsReady())

	report, err := s.Ingest(ctx, []domain.Document{
		{Name: "solar.txt", Text: solarText},
		{Name: "ocean.txt", Text: oceanText},
	})
	require.NoError(t, err)
	assert.Positive(t, report.Added)
	assert.True(t, s.IsReady())
	assert.NotEmpty(t, s.Summary())

	answers, err := s.Ask(ctx, "How deep is the Mariana Trench?", 2)
	require.NoError(t, err)
	require.NotEmpty(t, answers)
	top := answers[0]
	assert.Equal(t, "ocean.txt", top.Passage.DocumentName)
	assert.True(t, strings.Contains(oceanText, top.Passage.Text))
	assert.Contains(t, top.Text, "Mariana Trench")
}

func TestRAGQueryBeforeIngest(t *testing.T) {
	emb := &letterEmbedder{}
	s := newTestRAG(t, emb, nil, Options{})
	res, err := s.Query(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Equal(t, int32(0), emb.calls.Load())

	_, err = s.Query(context.Background(), "anything", 0)
	require.ErrorIs(t, err, domain.ErrInvalidK)
}

func TestRAGStaysReadyAfterFailedDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestRAG(t, &letterEmbedder{failMarker: "POISON"}, nil, Options{})
	_, err := s.Ingest(ctx, []domain.Document{{Name: "a.txt", Text: "good text"}})
	require.NoError(t, err)
	require.True(t, s.IsReady())

	report, err := s.Ingest(ctx, []domain.Document{{Name: "bad.txt", Text: "POISON"}})
	require.NoError(t, err)
	assert.Len(t, report.Skipped, 1)
	assert.True(t, s.IsReady())

	res, err := s.Retrieve(ctx, letters("good text"), 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a.txt", res[0].Passage.DocumentName)
}

func TestRAGQueryCache(t *testing.T) {
	ctx := context.Background()
	emb := &letterEmbedder{}
	s := newTestRAG(t, emb, nil, Options{QueryCacheSize: 4})
	_, err := s.Ingest(ctx, []domain.Document{{Name: "a.txt", Text: "cache me"}})
	require.NoError(t, err)
	before := emb.calls.Load()

	for i := 0; i < 3; i++ {
		res, err := s.Query(ctx, "cache me", 1)
		require.NoError(t, err)
		require.Len(t, res, 1)
	}
	assert.Equal(t, before+1, emb.calls.Load())
}

type failingAnswerer struct{}

func (failingAnswerer) Answer(context.Context, string, string) (string, error) {
	return "", errors.New("model unavailable")
}

func TestRAGAskToleratesAnswerFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestRAG(t, &letterEmbedder{}, failingAnswerer{}, Options{})
	_, err := s.Ingest(ctx, []domain.Document{{Name: "a.txt", Text: "some passage"}})
	require.NoError(t, err)

	answers, err := s.Ask(ctx, "passage?", 1)
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Empty(t, answers[0].Text)
	assert.Equal(t, "some passage", answers[0].Passage.Text)
}

func TestRAGQueryEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestRAG(t, &letterEmbedder{failMarker: "POISON"}, nil, Options{})
	_, err := s.Ingest(ctx, []domain.Document{{Name: "a.txt", Text: "fine"}})
	require.NoError(t, err)

	_, err = s.Query(ctx, "POISON", 1)
	require.ErrorIs(t, err, domain.ErrEmbeddingFailure)
}

func TestRAGReset(t *testing.T) {
	ctx := context.Background()
	s := newTestRAG(t, &letterEmbedder{}, nil, Options{QueryCacheSize: 2})
	_, err := s.Ingest(ctx, []domain.Document{{Name: "a.txt", Text: "Some text. More text."}})
	require.NoError(t, err)
	require.True(t, s.IsReady())
	require.NotEmpty(t, s.Summary())

	s.Reset()
	assert.False(t, s.IsReady())
	assert.Empty(t, s.Summary())

	report, err := s.Ingest(ctx, []domain.Document{{Name: "b.txt", Text: "fresh"}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	res, err := s.Query(ctx, "fresh", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 0, res[0].Passage.ID)
	assert.Equal(t, "b.txt", res[0].Passage.DocumentName)
}

func TestRAGResetRelearnsTFIDFVocabulary(t *testing.T) {
	ctx := context.Background()
	s := newTestRAG(t, tfidf.NewEmbedder(), nil, Options{QueryCacheSize: 4})
	_, err := s.Ingest(ctx, []domain.Document{{Name: "solar.txt", Text: solarText}})
	require.NoError(t, err)

	s.Reset()
	_, err = s.Ingest(ctx, []domain.Document{
		{Name: "cats.txt", Text: catsText},
		{Name: "ocean.txt", Text: oceanText},
	})
	require.NoError(t, err)

	res, err := s.Query(ctx, "Mariana Trench depth", 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "ocean.txt", res[0].Passage.DocumentName)
	assert.Contains(t, res[0].Passage.Text, "Mariana Trench")
	assert.Less(t, res[0].Distance, res[1].Distance)
	for _, r := range res {
		assert.Positive(t, r.Distance)
	}
}

func TestRAGSummaryTracksDocumentsByPosition(t *testing.T) {
	ctx := context.Background()
	s := newTestRAG(t, &letterEmbedder{failMarker: "POISON"}, nil, Options{})
	report, err := s.Ingest(ctx, []domain.Document{
		{Name: "notes.txt", Text: "POISON pill."},
		{Name: "notes.txt", Text: "Whales sing long songs."},
	})
	require.NoError(t, err)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, 0, report.Skipped[0].Index)
	assert.Equal(t, []int{1}, report.Committed)
	assert.Contains(t, s.Summary(), "Whales sing long songs.")
	assert.NotContains(t, s.Summary(), "POISON")
}

func TestRAGSummaryCoversDocumentsCommittedBeforeCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var s *RAG
	emb := funcEmbedder(func(ectx context.Context, texts []string) ([]domain.Vector, error) {
		if texts[0] == "block" {
			for !s.IsReady() {
				time.Sleep(time.Millisecond)
			}
			cancel()
			<-ectx.Done()
			return nil, ectx.Err()
		}
		out := make([]domain.Vector, len(texts))
		for i, text := range texts {
			out[i] = letters(text)
		}
		return out, nil
	})
	s = newTestRAG(t, emb, nil, Options{Workers: 1})

	_, err := s.Ingest(ctx, []domain.Document{
		{Name: "a.txt", Text: "Whales sing long songs."},
		{Name: "b.txt", Text: "block"},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, s.IsReady())
	assert.Contains(t, s.Summary(), "Whales sing long songs.")
}
