package vectorstore

import (
	"fmt"

	"docqa/internal/domain"
)

// Metadata is the ordered passage store kept parallel to Index.
type Metadata struct {
	passages []domain.Passage
}

// NewMetadata returns an empty store.
func NewMetadata() *Metadata { return &Metadata{} }

// Append stores passages, overwriting their IDs with the assigned ones.
func (m *Metadata) Append(passages []domain.Passage) Range {
	start := len(m.passages)
	for i, p := range passages {
		p.ID = start + i
		m.passages = append(m.passages, p)
	}
	return Range{Start: start, End: len(m.passages)}
}

// Get returns the passage stored under id.
func (m *Metadata) Get(id int) (domain.Passage, error) {
	if id < 0 || id >= len(m.passages) {
		return domain.Passage{}, fmt.Errorf("%w: id %d, store holds %d", domain.ErrNotFound, id, len(m.passages))
	}
	return m.passages[id], nil
}

// Len returns the number of stored passages.
func (m *Metadata) Len() int { return len(m.passages) }
