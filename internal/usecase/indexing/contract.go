package indexing

import (
	"context"

	"github.com/kailas-cloud/shelfindex/internal/domain/document"
)

// Index is the write side of the document index.
type Index interface {
	Upsert(ctx context.Context, doc document.Document) error
	Delete(ctx context.Context, id int64) error
}

// Extractor turns file bytes into raw text.
type Extractor interface {
	Extract(data []byte) (string, error)
}

// Encoder embeds normalized content. Optional; without it documents are
// indexed for lexical search only.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// BlobReader fetches file bytes by storage path.
type BlobReader interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// Runner executes indexing jobs for the queue.
type Runner interface {
	IndexFile(ctx context.Context, id int64, category, fileRef string) error
	DeindexDocument(ctx context.Context, id int64) error
}
