// Package vectorstore holds the exact nearest-neighbour index, the passage
// metadata that sits beside it, and the lock that keeps the two in step.
package vectorstore

import (
	"container/heap"
	"fmt"
	"sort"

	"docqa/internal/domain"
)

// Range is a half-open range of identifiers [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of identifiers in r.
func (r Range) Len() int { return r.End - r.Start }

// Neighbor is a search hit.
type Neighbor struct {
	ID       int
	Distance float64
}

// Index is a flat brute-force index over squared Euclidean distance.
// It is not safe for concurrent use on its own; see Corpus.
type Index struct {
	dim     int
	vectors []domain.Vector
}

// NewIndex creates an index of the given dimension. A zero dimension is
// fixed by the first Add.
func NewIndex(dim int) (*Index, error) {
	if dim < 0 {
		return nil, fmt.Errorf("%w: dimension %d", domain.ErrInvalidConfig, dim)
	}
	return &Index{dim: dim}, nil
}

// Dimension returns the fixed dimension, or 0 if nothing was added yet and
// none was configured.
func (ix *Index) Dimension() int { return ix.dim }

// Len returns the number of stored vectors.
func (ix *Index) Len() int { return len(ix.vectors) }

// Add stores vectors and returns their contiguous identifiers. If any vector
// is invalid nothing is stored.
func (ix *Index) Add(vectors []domain.Vector) (Range, error) {
	start := len(ix.vectors)
	if len(vectors) == 0 {
		return Range{Start: start, End: start}, nil
	}
	dim := ix.dim
	if dim == 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if err := v.Validate(dim); err != nil {
			return Range{}, fmt.Errorf("vector %d: %w", i, err)
		}
	}
	ix.dim = dim
	for _, v := range vectors {
		ix.vectors = append(ix.vectors, v.Clone())
	}
	return Range{Start: start, End: len(ix.vectors)}, nil
}

// Search returns the min(k, Len()) nearest vectors to query in ascending
// distance, ties broken by ascending identifier.
func (ix *Index) Search(query domain.Vector, k int) ([]Neighbor, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidK, k)
	}
	if len(ix.vectors) == 0 {
		return nil, domain.ErrEmptyIndex
	}
	if err := query.Validate(ix.dim); err != nil {
		return nil, err
	}
	k = min(k, len(ix.vectors))
	h := make(worstFirst, 0, k)
	for id, v := range ix.vectors {
		n := Neighbor{ID: id, Distance: SquaredL2(query, v)}
		if len(h) < k {
			heap.Push(&h, n)
			continue
		}
		if closer(n, h[0]) {
			h[0] = n
			heap.Fix(&h, 0)
		}
	}
	out := []Neighbor(h)
	sort.Slice(out, func(i, j int) bool { return closer(out[i], out[j]) })
	return out, nil
}

func closer(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// worstFirst is a max-heap keyed on (distance, id).
type worstFirst []Neighbor

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return closer(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
