package book

import (
	"errors"
	"fmt"
	"strings"
)

// Field limits.
const (
	MaxTitleLength = 512
	MaxGenreLength = 256
)

// Book is a catalog record: metadata plus a reference to its file in the
// blob store. A book without a file is not searchable.
type Book struct {
	id      int64
	title   string
	genre   string
	fileRef string
}

// New validates and creates a Book that has not been persisted yet (id 0).
func New(title, genre, fileRef string) (Book, error) {
	title = strings.TrimSpace(title)
	genre = strings.TrimSpace(genre)
	if title == "" {
		return Book{}, errors.New("title is required")
	}
	if len(title) > MaxTitleLength {
		return Book{}, fmt.Errorf("title too long (max %d bytes)", MaxTitleLength)
	}
	if len(genre) > MaxGenreLength {
		return Book{}, fmt.Errorf("genre too long (max %d bytes)", MaxGenreLength)
	}
	return Book{title: title, genre: genre, fileRef: fileRef}, nil
}

// Reconstruct creates a Book without validation (storage hydration).
func Reconstruct(id int64, title, genre, fileRef string) Book {
	return Book{id: id, title: title, genre: genre, fileRef: fileRef}
}

// ID returns the catalog id, 0 before the book is stored.
func (b *Book) ID() int64 { return b.id }

// Title returns the book title.
func (b *Book) Title() string { return b.title }

// Genre returns the genre label, possibly empty.
func (b *Book) Genre() string { return b.genre }

// FileRef returns the blob store path of the attached file, empty if none.
func (b *Book) FileRef() string { return b.fileRef }

// HasFile reports whether a file is attached.
func (b *Book) HasFile() bool { return b.fileRef != "" }

// WithID returns a copy carrying the stored id.
func (b *Book) WithID(id int64) Book {
	return Book{id: id, title: b.title, genre: b.genre, fileRef: b.fileRef}
}

// Patch describes a partial update; nil fields are left unchanged.
type Patch struct {
	Title   *string
	Genre   *string
	FileRef *string // empty string detaches the file
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Genre == nil && p.FileRef == nil
}

// Apply returns a validated copy of b with the patch applied.
func (b *Book) Apply(p Patch) (Book, error) {
	title, genre, ref := b.title, b.genre, b.fileRef
	if p.Title != nil {
		title = *p.Title
	}
	if p.Genre != nil {
		genre = *p.Genre
	}
	if p.FileRef != nil {
		ref = *p.FileRef
	}
	nb, err := New(title, genre, ref)
	if err != nil {
		return Book{}, err
	}
	return nb.WithID(b.id), nil
}
