package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned for bad chunking or index parameters.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrEmbeddingFailure wraps any failure of the embedding capability.
	ErrEmbeddingFailure = errors.New("embedding failure")
	// ErrDimensionMismatch is matched by DimensionMismatchError.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrEmptyIndex is returned when searching an index with no vectors.
	ErrEmptyIndex = errors.New("index is empty")
	// ErrNotFound is returned for a passage identifier out of range.
	ErrNotFound = errors.New("passage not found")
	// ErrCorruptIndexState means the index and metadata store disagree.
	ErrCorruptIndexState = errors.New("corrupt index state")
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
	// ErrInvalidVector is returned for empty vectors or non-finite components.
	ErrInvalidVector = errors.New("invalid vector")
)

// DimensionMismatchError reports a vector whose length disagrees with the
// index dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrDimensionMismatch) hold.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
