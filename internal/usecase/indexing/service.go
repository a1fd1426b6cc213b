// Package indexing derives IndexedDocuments from catalog files and keeps the
// document index in step with the catalog.
package indexing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfindex/internal/domain"
	"github.com/kailas-cloud/shelfindex/internal/domain/document"
	"github.com/kailas-cloud/shelfindex/internal/logger"
	"github.com/kailas-cloud/shelfindex/internal/metrics"
	"github.com/kailas-cloud/shelfindex/internal/text/normalize"
)

// Service runs the Extract → Normalize → Encode → Upsert pipeline.
type Service struct {
	index     Index
	extractor Extractor
	blobs     BlobReader
	encoder   Encoder
}

// New creates an indexing service. blobs may be nil when only
// IndexDocument is used.
func New(index Index, extractor Extractor, blobs BlobReader) *Service {
	return &Service{index: index, extractor: extractor, blobs: blobs}
}

// WithEncoder enables content vectors for semantic search.
func (s *Service) WithEncoder(enc Encoder) *Service {
	s.encoder = enc
	return s
}

// IndexDocument derives the document from data and replaces the indexed
// copy. Nothing is written unless every earlier stage succeeded.
func (s *Service) IndexDocument(ctx context.Context, id int64, category string, data []byte) (err error) {
	defer observe("index", time.Now(), &err)

	doc, err := s.build(ctx, id, category, data)
	if err != nil {
		return err
	}

	if err := s.index.Upsert(ctx, doc); err != nil {
		return &domain.IndexingError{Stage: domain.StageUpsert, DocumentID: id, Err: err}
	}

	logger.FromContext(ctx).Debug("document indexed",
		zap.Int64("document_id", id),
		zap.Int("content_bytes", len(doc.Content())),
		zap.Bool("vector", doc.HasVector()),
	)
	return nil
}

// IndexFile downloads fileRef from the blob store, then runs IndexDocument.
func (s *Service) IndexFile(ctx context.Context, id int64, category, fileRef string) error {
	if s.blobs == nil || fileRef == "" {
		err := fmt.Errorf("%w: no file to index", domain.ErrInvalidInput)
		observe("index", time.Now(), &err)
		return &domain.IndexingError{Stage: domain.StageDownload, DocumentID: id, Err: err}
	}

	data, err := s.blobs.Download(ctx, fileRef)
	if err != nil {
		observe("index", time.Now(), &err)
		return &domain.IndexingError{Stage: domain.StageDownload, DocumentID: id, Err: err}
	}
	return s.IndexDocument(ctx, id, category, data)
}

// DeindexDocument removes the document from the index. Removing a document
// that was never indexed succeeds.
func (s *Service) DeindexDocument(ctx context.Context, id int64) (err error) {
	defer observe("deindex", time.Now(), &err)

	if err := s.index.Delete(ctx, id); err != nil {
		return &domain.IndexingError{Stage: domain.StageDelete, DocumentID: id, Err: err}
	}
	return nil
}

func (s *Service) build(ctx context.Context, id int64, category string, data []byte) (document.Document, error) {
	raw, err := s.extractor.Extract(data)
	if err != nil {
		return document.Document{}, &domain.IndexingError{Stage: domain.StageExtraction, DocumentID: id, Err: err}
	}
	if strings.TrimSpace(raw) == "" {
		return document.Document{}, &domain.IndexingError{
			Stage: domain.StageExtraction, DocumentID: id, Err: domain.ErrEmptyDocument,
		}
	}

	content := normalize.Text(raw)
	if content == "" {
		return document.Document{}, &domain.IndexingError{
			Stage: domain.StageNormalization, DocumentID: id, Err: domain.ErrEmptyDocument,
		}
	}

	doc, err := document.New(id, strings.TrimSpace(category), content)
	if err != nil {
		return document.Document{}, &domain.IndexingError{
			Stage: domain.StageNormalization, DocumentID: id, Err: fmt.Errorf("%w: %w", domain.ErrInvalidInput, err),
		}
	}

	if s.encoder == nil {
		return doc, nil
	}

	vec, err := s.encoder.Encode(ctx, content)
	if err != nil {
		return document.Document{}, &domain.IndexingError{Stage: domain.StageEncoding, DocumentID: id, Err: err}
	}
	doc, err = doc.WithVector(vec)
	if err != nil {
		return document.Document{}, &domain.IndexingError{Stage: domain.StageEncoding, DocumentID: id, Err: err}
	}
	return doc, nil
}

func observe(op string, start time.Time, err *error) {
	status := "success"
	if *err != nil {
		status = "error"
	}
	metrics.IndexingJobsTotal.WithLabelValues(op, status).Inc()
	metrics.IndexingDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
