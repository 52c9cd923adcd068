package domain

import (
	"fmt"
	"math"
)

// Document is one extracted text document handed to ingestion.
type Document struct {
	Name string
	Text string
}

// Passage is one chunk of a document plus the metadata needed to attribute it.
// ID is the passage's insertion order in the index.
type Passage struct {
	ID           int
	DocumentName string
	Position     int
	Text         string
}

// Vector is a fixed-length embedding. Its length is the dimensionality.
type Vector []float64

// Dim returns the number of components.
func (v Vector) Dim() int { return len(v) }

// Clone returns a copy that shares no memory with v.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Validate checks that v has exactly dim finite components.
// A dim of zero only checks that v is non-empty.
func (v Vector) Validate(dim int) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidVector)
	}
	if dim > 0 && len(v) != dim {
		return &DimensionMismatchError{Expected: dim, Actual: len(v)}
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: component %d is %v", ErrInvalidVector, i, x)
		}
	}
	return nil
}

// RetrievalResult is a ranked passage for a single query.
type RetrievalResult struct {
	Passage    Passage
	Distance   float64
	Similarity float64
}

// Similarity maps an L2² distance to (0, 1]. Zero distance is 1 and the
// score decreases monotonically as distance grows.
func Similarity(distance float64) float64 {
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}

// Answer pairs a retrieved passage with the answer extracted from it.
type Answer struct {
	RetrievalResult
	Text string
}
