package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/shelfindex/internal/domain"
)

type mockRunner struct {
	indexFileFn func(ctx context.Context, id int64, category, fileRef string) error
	deindexFn   func(ctx context.Context, id int64) error

	mu      sync.Mutex
	indexed []int64
	removed []int64
	calls   atomic.Int32
}

func (m *mockRunner) IndexFile(ctx context.Context, id int64, category, fileRef string) error {
	m.calls.Add(1)
	if m.indexFileFn != nil {
		if err := m.indexFileFn(ctx, id, category, fileRef); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.indexed = append(m.indexed, id)
	m.mu.Unlock()
	return nil
}

func (m *mockRunner) DeindexDocument(ctx context.Context, id int64) error {
	m.calls.Add(1)
	if m.deindexFn != nil {
		if err := m.deindexFn(ctx, id); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.removed = append(m.removed, id)
	m.mu.Unlock()
	return nil
}

func fastConfig() QueueConfig {
	return QueueConfig{
		Workers:        2,
		Buffer:         16,
		MaxAttempts:    3,
		JobTimeout:     time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func newTestQueue(t *testing.T, r Runner, cfg QueueConfig, log *zap.Logger) *Queue {
	t.Helper()
	q, err := NewQueue(r, cfg, log)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	return q
}

func stop(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestQueue_RunsJobsAndDrainsOnStop(t *testing.T) {
	r := &mockRunner{}
	q := newTestQueue(t, r, fastConfig(), nil)
	q.Start(context.Background())

	for id := int64(1); id <= 5; id++ {
		if err := q.Enqueue(IndexJob(id, "poem", "books/file.pdf")); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if err := q.Enqueue(DeindexJob(9)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	stop(t, q)

	if len(r.indexed) != 5 || len(r.removed) != 1 {
		t.Errorf("indexed=%v removed=%v", r.indexed, r.removed)
	}
}

func TestQueue_RetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	r := &mockRunner{indexFileFn: func(context.Context, int64, string, string) error {
		if attempts.Add(1) < 3 {
			return &domain.IndexingError{Stage: domain.StageUpsert, DocumentID: 1, Err: domain.ErrIndexUnavailable}
		}
		return nil
	}}
	q := newTestQueue(t, r, fastConfig(), nil)
	q.Start(context.Background())

	if err := q.Enqueue(IndexJob(1, "", "f.pdf")); err != nil {
		t.Fatal(err)
	}
	stop(t, q)

	if attempts.Load() != 3 || len(r.indexed) != 1 {
		t.Errorf("attempts=%d indexed=%v", attempts.Load(), r.indexed)
	}
}

func TestQueue_GivesUpAfterMaxAttempts(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := &mockRunner{indexFileFn: func(context.Context, int64, string, string) error {
		return domain.ErrRateLimited
	}}
	q := newTestQueue(t, r, fastConfig(), zap.New(core))
	q.Start(context.Background())

	if err := q.Enqueue(IndexJob(4, "", "f.pdf")); err != nil {
		t.Fatal(err)
	}
	stop(t, q)

	if r.calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", r.calls.Load())
	}
	failed := logs.FilterMessage("Indexing job failed").All()
	if len(failed) != 1 || failed[0].ContextMap()["document_id"] != int64(4) {
		t.Errorf("expected one failure log for document 4, got %v", logs.All())
	}
}

func TestQueue_PermanentFailuresAreNotRetried(t *testing.T) {
	permanent := []error{
		&domain.IndexingError{Stage: domain.StageExtraction, DocumentID: 1, Err: &domain.ExtractionError{Reason: "not a pdf"}},
		&domain.IndexingError{Stage: domain.StageExtraction, DocumentID: 1, Err: domain.ErrEmptyDocument},
		&domain.IndexingError{Stage: domain.StageDownload, DocumentID: 1, Err: domain.ErrBlobNotFound},
		&domain.IndexingError{Stage: domain.StageEncoding, DocumentID: 1, Err: fmt.Errorf("encode: %w", domain.ErrEmbeddingRejected)},
	}
	for _, perr := range permanent {
		t.Run(perr.Error(), func(t *testing.T) {
			r := &mockRunner{indexFileFn: func(context.Context, int64, string, string) error { return perr }}
			q := newTestQueue(t, r, fastConfig(), nil)
			q.Start(context.Background())
			if err := q.Enqueue(IndexJob(1, "", "f.pdf")); err != nil {
				t.Fatal(err)
			}
			stop(t, q)

			if r.calls.Load() != 1 {
				t.Errorf("expected a single attempt, got %d", r.calls.Load())
			}
		})
	}
}

func TestQueue_DeindexFailureIsDropped(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := &mockRunner{deindexFn: func(context.Context, int64) error { return domain.ErrIndexUnavailable }}
	q := newTestQueue(t, r, fastConfig(), zap.New(core))
	q.Start(context.Background())

	if err := q.Enqueue(DeindexJob(3)); err != nil {
		t.Fatal(err)
	}
	stop(t, q)

	if logs.FilterMessage("Deindex job failed, index may hold a stale entry").Len() != 1 {
		t.Errorf("expected deindex failure warning, got %v", logs.All())
	}
}

func TestQueue_Enqueue(t *testing.T) {
	cfg := fastConfig()
	cfg.Buffer = 1
	q := newTestQueue(t, &mockRunner{}, cfg, nil)

	if err := q.Enqueue(IndexJob(0, "", "f.pdf")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for bad id, got %v", err)
	}
	if err := q.Enqueue(IndexJob(1, "", "")); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing file, got %v", err)
	}
	if err := q.Enqueue(Job{Kind: "reindex", DocumentID: 1}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown kind, got %v", err)
	}

	if err := q.Enqueue(DeindexJob(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Enqueue(DeindexJob(2)); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	stop(t, q)
	if err := q.Enqueue(DeindexJob(3)); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestQueue_StopTimeoutCancelsJobs(t *testing.T) {
	started := make(chan struct{})
	var sawCancel atomic.Bool
	r := &mockRunner{indexFileFn: func(ctx context.Context, _ int64, _, _ string) error {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}}
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.JobTimeout = time.Minute
	q := newTestQueue(t, r, cfg, nil)
	q.Start(context.Background())

	if err := q.Enqueue(IndexJob(1, "", "f.pdf")); err != nil {
		t.Fatal(err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if !sawCancel.Load() {
		t.Error("running job was not canceled")
	}
}

func TestQueue_JobContextCarriesLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := &mockRunner{}
	q := newTestQueue(t, r, fastConfig(), zap.New(core))
	q.Start(context.Background())

	if err := q.Enqueue(IndexJob(8, "poem", "f.pdf")); err != nil {
		t.Fatal(err)
	}
	stop(t, q)

	done := logs.FilterMessage("Indexing job completed").All()
	if len(done) != 1 {
		t.Fatalf("expected completion log, got %v", logs.All())
	}
	if done[0].ContextMap()["job"] != "index" || done[0].ContextMap()["attempts"] != int64(1) {
		t.Errorf("unexpected fields: %v", done[0].ContextMap())
	}
}
