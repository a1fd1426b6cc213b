package document

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/shelfindex/internal/domain/vector"
)

// MaxCategoryLength bounds the category label in bytes.
const MaxCategoryLength = 256

// Document is the indexed form of a catalog book (immutable value object).
// Content is expected to be normalized text; the vector, when present, has
// unit length.
type Document struct {
	id       int64
	category string
	content  string
	vector   []float32
}

// New validates and creates a Document without a vector.
// ID must be positive, content non-empty.
func New(id int64, category, content string) (Document, error) {
	if id <= 0 {
		return Document{}, fmt.Errorf("document ID must be positive, got %d", id)
	}
	if content == "" {
		return Document{}, errors.New("content is required")
	}
	if len(category) > MaxCategoryLength {
		return Document{}, fmt.Errorf("category too long (max %d bytes)", MaxCategoryLength)
	}
	return Document{id: id, category: category, content: content}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id int64, category, content string, vec []float32) Document {
	return Document{id: id, category: category, content: content, vector: vec}
}

// ID returns the document identifier, equal to the catalog book id.
func (d *Document) ID() int64 { return d.id }

// Category returns the genre label, empty if the book has none.
func (d *Document) Category() string { return d.category }

// Content returns the normalized full text.
func (d *Document) Content() string { return d.content }

// Vector returns the content embedding, nil when semantic search is off.
func (d *Document) Vector() []float32 { return d.vector }

// HasVector reports whether the document carries an embedding.
func (d *Document) HasVector() bool { return len(d.vector) > 0 }

// WithVector returns a copy carrying v scaled to unit length.
func (d *Document) WithVector(v []float32) (Document, error) {
	unit, err := vector.Normalize(v)
	if err != nil {
		return Document{}, fmt.Errorf("document %d vector: %w", d.id, err)
	}
	return Document{id: d.id, category: d.category, content: d.content, vector: unit}, nil
}
