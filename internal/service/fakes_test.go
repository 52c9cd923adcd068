package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"docqa/internal/domain"
)

var errBackendDown = errors.New("backend down")

// letterEmbedder maps text to its letter histogram. It fails for any batch
// containing failMarker and sleeps on batches containing slowMarker until
// ctx is done.
type letterEmbedder struct {
	failMarker string
	slowMarker string
	calls      atomic.Int32
}

const letterDim = 27

func (e *letterEmbedder) Name() string { return "letters" }

func (e *letterEmbedder) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	e.calls.Add(1)
	out := make([]domain.Vector, len(texts))
	for i, text := range texts {
		if e.failMarker != "" && strings.Contains(text, e.failMarker) {
			return nil, errBackendDown
		}
		if e.slowMarker != "" && strings.Contains(text, e.slowMarker) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		out[i] = letters(text)
	}
	return out, nil
}

func letters(text string) domain.Vector {
	v := make(domain.Vector, letterDim)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		} else {
			v[letterDim-1]++
		}
	}
	return v
}

// funcEmbedder adapts a function to domain.Embedder.
type funcEmbedder func(ctx context.Context, texts []string) ([]domain.Vector, error)

func (f funcEmbedder) Name() string { return "func" }

func (f funcEmbedder) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	return f(ctx, texts)
}

// jitterEmbedder delays documents differently so completion order differs
// from input order.
type jitterEmbedder struct {
	mu    sync.Mutex
	delay map[string]time.Duration
}

func (e *jitterEmbedder) Name() string { return "jitter" }

func (e *jitterEmbedder) Embed(ctx context.Context, texts []string) ([]domain.Vector, error) {
	e.mu.Lock()
	d := e.delay[texts[0]]
	e.mu.Unlock()
	select {
	case <-time.After(d):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	out := make([]domain.Vector, len(texts))
	for i, t := range texts {
		out[i] = letters(t)
	}
	return out, nil
}

type failingPreparer struct{ letterEmbedder }

func (*failingPreparer) Prepare(context.Context, []string) error { return errors.New("no vocabulary") }
