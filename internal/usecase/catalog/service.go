// Package catalog manages books and keeps the search index informed of
// every change that affects what is indexed.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfindex/internal/domain"
	"github.com/kailas-cloud/shelfindex/internal/domain/book"
	"github.com/kailas-cloud/shelfindex/internal/logger"
	"github.com/kailas-cloud/shelfindex/internal/usecase/indexing"
)

// Listing limits.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// File is an uploaded book file.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// CreateInput describes a new book.
type CreateInput struct {
	Title string
	Genre string
	File  *File
}

// UpdateInput describes a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title      *string
	Genre      *string
	File       *File
	RemoveFile bool
}

// Service handles book CRUD.
type Service struct {
	repo  Repository
	blobs BlobStore
	jobs  Enqueuer
}

// New creates a catalog service.
func New(repo Repository, blobs BlobStore, jobs Enqueuer) *Service {
	return &Service{repo: repo, blobs: blobs, jobs: jobs}
}

// Create stores a book and its optional file, then schedules indexing.
func (s *Service) Create(ctx context.Context, in CreateInput) (book.Book, error) {
	b, err := book.New(in.Title, in.Genre, "")
	if err != nil {
		return book.Book{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	if in.File != nil {
		ref, err := s.upload(ctx, in.File)
		if err != nil {
			return book.Book{}, err
		}
		b, err = book.New(in.Title, in.Genre, ref)
		if err != nil {
			return book.Book{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
	}

	created, err := s.repo.Create(ctx, b)
	if err != nil {
		s.deleteBlob(ctx, b.FileRef())
		return book.Book{}, fmt.Errorf("create book: %w", err)
	}

	if created.HasFile() {
		s.enqueue(ctx, indexing.IndexJob(created.ID(), created.Genre(), created.FileRef()))
	}
	return created, nil
}

// Get returns a book by id.
func (s *Service) Get(ctx context.Context, id int64) (book.Book, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return book.Book{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

// List returns books after afterID in id order.
func (s *Service) List(ctx context.Context, afterID int64, limit int) ([]book.Book, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	books, err := s.repo.List(ctx, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// Update applies in to a stored book. A new file or a genre change
// re-indexes the book; removing the file removes it from the index.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (book.Book, error) {
	if in.File != nil && in.RemoveFile {
		return book.Book{}, fmt.Errorf("%w: file and remove_file are mutually exclusive", domain.ErrInvalidInput)
	}

	old, err := s.repo.Get(ctx, id)
	if err != nil {
		return book.Book{}, fmt.Errorf("get book: %w", err)
	}

	patch := book.Patch{Title: in.Title, Genre: in.Genre}
	if in.RemoveFile {
		empty := ""
		patch.FileRef = &empty
	}
	updated, err := old.Apply(patch)
	if err != nil {
		return book.Book{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	uploaded := ""
	if in.File != nil {
		if uploaded, err = s.upload(ctx, in.File); err != nil {
			return book.Book{}, err
		}
		patch.FileRef = &uploaded
		if updated, err = old.Apply(patch); err != nil {
			s.deleteBlob(ctx, uploaded)
			return book.Book{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		s.deleteBlob(ctx, uploaded)
		return book.Book{}, fmt.Errorf("update book: %w", err)
	}

	if old.HasFile() && old.FileRef() != updated.FileRef() {
		s.deleteBlob(ctx, old.FileRef())
	}

	switch {
	case !updated.HasFile() && old.HasFile():
		s.enqueue(ctx, indexing.DeindexJob(id))
	case uploaded != "",
		updated.HasFile() && updated.Genre() != old.Genre():
		s.enqueue(ctx, indexing.IndexJob(id, updated.Genre(), updated.FileRef()))
	}
	return updated, nil
}

// Delete removes a book, its file and its index entry.
func (s *Service) Delete(ctx context.Context, id int64) error {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get book: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	s.deleteBlob(ctx, b.FileRef())
	s.enqueue(ctx, indexing.DeindexJob(id))
	return nil
}

// Reindex schedules an index job for every book with a file and returns
// how many were scheduled. It stops at the first enqueue failure.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.jobs == nil {
		return 0, errors.New("indexing queue is not configured")
	}
	var after int64
	scheduled := 0
	for {
		books, err := s.List(ctx, after, MaxListLimit)
		if err != nil {
			return scheduled, err
		}
		for i := range books {
			b := &books[i]
			after = b.ID()
			if !b.HasFile() {
				continue
			}
			if err := s.jobs.Enqueue(indexing.IndexJob(b.ID(), b.Genre(), b.FileRef())); err != nil {
				return scheduled, fmt.Errorf("enqueue book %d: %w", b.ID(), err)
			}
			scheduled++
		}
		if len(books) < MaxListLimit {
			return scheduled, nil
		}
	}
}

// ReindexBook schedules an index job for one book.
func (s *Service) ReindexBook(ctx context.Context, id int64) error {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get book: %w", err)
	}
	if !b.HasFile() {
		return fmt.Errorf("%w: book %d has no file", domain.ErrInvalidInput, id)
	}
	if s.jobs == nil {
		return errors.New("indexing queue is not configured")
	}
	return s.jobs.Enqueue(indexing.IndexJob(b.ID(), b.Genre(), b.FileRef()))
}

func (s *Service) upload(ctx context.Context, f *File) (string, error) {
	if f.Body == nil {
		return "", fmt.Errorf("%w: empty file", domain.ErrInvalidInput)
	}
	if s.blobs == nil {
		return "", errors.New("file storage is not configured")
	}
	ref, err := s.blobs.Upload(ctx, f.Name, f.Body, f.Size, f.ContentType)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	return ref, nil
}

// deleteBlob is best-effort; an orphaned blob is only logged.
func (s *Service) deleteBlob(ctx context.Context, ref string) {
	if ref == "" || s.blobs == nil {
		return
	}
	if err := s.blobs.Delete(ctx, ref); err != nil {
		logger.FromContext(ctx).Warn("Failed to delete book file", zap.String("file", ref), zap.Error(err))
	}
}

func (s *Service) enqueue(ctx context.Context, job indexing.Job) {
	if s.jobs == nil {
		return
	}
	if err := s.jobs.Enqueue(job); err != nil {
		logger.FromContext(ctx).Warn("Failed to schedule indexing",
			zap.String("job", string(job.Kind)),
			zap.Int64("document_id", job.DocumentID),
			zap.Error(err),
		)
	}
}
