package vectorstore

import "sync"

// Corpus owns an Index and its Metadata as one resource. Writers get
// exclusive access to both, readers share it.
type Corpus struct {
	mu    sync.RWMutex
	dim   int
	index *Index
	meta  *Metadata
}

// NewCorpus creates an empty corpus. dim is passed to NewIndex.
func NewCorpus(dim int) (*Corpus, error) {
	ix, err := NewIndex(dim)
	if err != nil {
		return nil, err
	}
	return &Corpus{dim: dim, index: ix, meta: NewMetadata()}, nil
}

// Write runs fn with exclusive access to the index and metadata.
func (c *Corpus) Write(fn func(ix *Index, meta *Metadata) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.index, c.meta)
}

// Read runs fn with shared access. fn must not mutate either store.
func (c *Corpus) Read(fn func(ix *Index, meta *Metadata) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(c.index, c.meta)
}

// Len returns the number of indexed vectors.
func (c *Corpus) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Len()
}

// Dimension returns the index dimension, 0 while still undetermined.
func (c *Corpus) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Dimension()
}

// Reset drops every vector and passage together.
func (c *Corpus) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = &Index{dim: c.dim}
	c.meta = NewMetadata()
}
