package domain

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a request that failed validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBookNotFound signals a missing catalog book.
	ErrBookNotFound = fmt.Errorf("book %w", ErrNotFound)
	// ErrBlobNotFound signals a missing file in the blob store.
	ErrBlobNotFound = fmt.Errorf("blob %w", ErrNotFound)
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingRejected signals a request the provider refused as invalid;
	// resending it fails the same way.
	ErrEmbeddingRejected = fmt.Errorf("%w: request rejected", ErrEmbeddingProviderError)
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")

	// ErrExtraction signals a file that could not be turned into text.
	ErrExtraction = errors.New("text extraction failed")
	// ErrEmptyDocument signals a document without any indexable text.
	ErrEmptyDocument = errors.New("document has no text content")
	// ErrIndexUnavailable signals that the document index rejected or failed a call.
	ErrIndexUnavailable = errors.New("document index unavailable")
	// ErrSearchUnavailable signals a search that could not reach the index.
	ErrSearchUnavailable = errors.New("search unavailable")
	// ErrSemanticDisabled signals a semantic request on a deployment without an encoder.
	ErrSemanticDisabled = errors.New("semantic search is disabled")
	// ErrInvalidQuery signals a search query that failed validation.
	ErrInvalidQuery = fmt.Errorf("%w: query", ErrInvalidInput)
)

// ExtractionError reports why a file yielded no text.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return ErrExtraction.Error() + ": " + e.Reason + ": " + e.Err.Error()
	}
	return ErrExtraction.Error() + ": " + e.Reason
}

// Is matches ErrExtraction.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

func (e *ExtractionError) Unwrap() error { return e.Err }

// Stage names the indexing pipeline step that failed.
type Stage string

// Indexing pipeline stages.
const (
	StageDownload      Stage = "download"
	StageExtraction    Stage = "extraction"
	StageNormalization Stage = "normalization"
	StageEncoding      Stage = "encoding"
	StageUpsert        Stage = "upsert"
	StageDelete        Stage = "delete"
)

// IndexingError is returned by the indexing pipeline; nothing past Stage ran.
type IndexingError struct {
	Stage      Stage
	DocumentID int64
	Err        error
}

func (e *IndexingError) Error() string {
	return "index document " + strconv.FormatInt(e.DocumentID, 10) + ": " + string(e.Stage) + ": " + e.Err.Error()
}

func (e *IndexingError) Unwrap() error { return e.Err }

// IndexError wraps a failed document index operation.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string {
	return ErrIndexUnavailable.Error() + ": " + e.Op + ": " + e.Err.Error()
}

// Is matches ErrIndexUnavailable.
func (e *IndexError) Is(target error) bool { return target == ErrIndexUnavailable }

func (e *IndexError) Unwrap() error { return e.Err }

// SearchError wraps a lexical search that could not be answered.
type SearchError struct {
	Mode string
	Err  error
}

func (e *SearchError) Error() string {
	return ErrSearchUnavailable.Error() + ": " + e.Mode + ": " + e.Err.Error()
}

// Is matches ErrSearchUnavailable.
func (e *SearchError) Is(target error) bool { return target == ErrSearchUnavailable }

func (e *SearchError) Unwrap() error { return e.Err }
