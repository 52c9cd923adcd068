package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docqa/internal/answer"
	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding/openai"
	"docqa/internal/embedding/tfidf"
	"docqa/internal/service"
	"docqa/internal/summarizer"
)

func buildService(cfg *config.AppConfig, logger *slog.Logger) (*service.RAG, error) {
	ch, err := chunker.New(cfg.Chunker.Type, cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}

	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "tfidf", "":
		emb = tfidf.NewEmbedder()
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		oc := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:           oc.BaseURL,
			APIKeyEnv:         oc.APIKeyEnv,
			Model:             oc.Model,
			Timeout:           time.Duration(oc.TimeoutSecs) * time.Second,
			BatchSize:         oc.BatchSize,
			RequestsPerSecond: oc.RequestsPerSecond,
			MaxRetries:        oc.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var ans domain.Answerer
	switch cfg.Answerer.Type {
	case "sentence", "":
		ans = answer.NewSentence()
	case "openai":
		if cfg.Answerer.OpenAI == nil {
			return nil, fmt.Errorf("openai answerer config missing")
		}
		oc := cfg.Answerer.OpenAI
		a, err := answer.NewOpenAI(answer.OpenAIConfig{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai answerer init failed: %w", err)
		}
		ans = a
	case "none":
	default:
		return nil, fmt.Errorf("unknown answerer: %s", cfg.Answerer.Type)
	}

	return service.NewRAG(ch, emb, ans, summarizer.NewFrequencySummarizer(), service.Options{
		Workers:          cfg.Ingest.Workers,
		EmbedTimeout:     time.Duration(cfg.Ingest.EmbedTimeoutSecs) * time.Second,
		MinSimilarity:    cfg.Retrieval.MinSimilarity,
		QueryCacheSize:   cfg.Retrieval.QueryCacheSize,
		SummarySentences: cfg.Summarizer.MaxSentences,
		Logger:           logger,
	})
}

// loadDocuments expands globs and reads every .txt file. Extracting text
// from other formats is left to external tools.
func loadDocuments(paths []string) ([]domain.Document, error) {
	var docs []domain.Document
	for _, p := range paths {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			if !strings.HasSuffix(strings.ToLower(m), ".txt") {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, err
			}
			docs = append(docs, domain.Document{Name: m, Text: string(data)})
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no .txt documents found")
	}
	return docs, nil
}
