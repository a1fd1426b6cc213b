package catalog

import (
	"context"
	"io"

	"github.com/kailas-cloud/shelfindex/internal/domain/book"
	"github.com/kailas-cloud/shelfindex/internal/usecase/indexing"
)

// Repository persists catalog books.
type Repository interface {
	Create(ctx context.Context, b book.Book) (book.Book, error)
	Get(ctx context.Context, id int64) (book.Book, error)
	Update(ctx context.Context, b book.Book) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, afterID int64, limit int) ([]book.Book, error)
}

// BlobStore stores book files.
type BlobStore interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
}

// Enqueuer schedules indexing work.
type Enqueuer interface {
	Enqueue(job indexing.Job) error
}
