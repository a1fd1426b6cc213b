package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfindex/internal/domain"
	"github.com/kailas-cloud/shelfindex/internal/logger"
	"github.com/kailas-cloud/shelfindex/internal/metrics"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer has no room.
	ErrQueueFull = errors.New("indexing queue is full")
	// ErrQueueClosed is returned by Enqueue after Stop.
	ErrQueueClosed = errors.New("indexing queue is closed")
)

// QueueConfig sizes the queue and its retry policy.
type QueueConfig struct {
	Workers        int
	Buffer         int
	MaxAttempts    int
	JobTimeout     time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c *QueueConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 2 * time.Minute
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
}

// Queue decouples catalog writes from indexing. Jobs are buffered in a
// channel and executed on an ants worker pool with exponential backoff.
type Queue struct {
	runner Runner
	cfg    QueueConfig
	logger *zap.Logger
	pool   *ants.Pool

	mu      sync.RWMutex
	closed  bool
	started bool
	jobs    chan Job

	inflight sync.WaitGroup
	done     chan struct{}
	cancel   context.CancelFunc
}

// NewQueue creates a stopped queue.
func NewQueue(runner Runner, cfg QueueConfig, log *zap.Logger) (*Queue, error) {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	q := &Queue{
		runner: runner,
		cfg:    cfg,
		logger: log,
		jobs:   make(chan Job, cfg.Buffer),
		done:   make(chan struct{}),
	}

	pool, err := ants.NewPool(cfg.Workers, ants.WithPanicHandler(func(p any) {
		log.Error("Indexing worker panic recovered", zap.Any("panic", p))
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	q.pool = pool
	return q, nil
}

// Enqueue buffers job without blocking.
func (q *Queue) Enqueue(job Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		metrics.IndexingQueueDepth.Set(float64(len(q.jobs)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the dispatcher. Jobs inherit ctx values but not its
// cancellation; Stop controls their lifetime.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.cancel = cancel
	go q.dispatch(base)
}

// Stop rejects new jobs, runs the ones already buffered and waits for them.
// When ctx expires first, running jobs are canceled and ctx's error returned.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	started := q.started
	close(q.jobs)
	q.mu.Unlock()

	if !started {
		q.pool.Release()
		return nil
	}

	finished := make(chan struct{})
	go func() {
		<-q.done
		q.inflight.Wait()
		close(finished)
	}()

	var err error
	select {
	case <-finished:
	case <-ctx.Done():
		q.cancel()
		<-finished
		err = fmt.Errorf("stop indexing queue: %w", ctx.Err())
	}
	q.cancel()
	q.pool.Release()
	return err
}

func (q *Queue) dispatch(ctx context.Context) {
	defer close(q.done)
	for job := range q.jobs {
		metrics.IndexingQueueDepth.Set(float64(len(q.jobs)))

		q.inflight.Add(1)
		if err := q.pool.Submit(func() {
			defer q.inflight.Done()
			q.run(ctx, job)
		}); err != nil {
			q.inflight.Done()
			q.logger.Error("Indexing job dropped", zap.Int64("document_id", job.DocumentID), zap.Error(err))
		}
	}
}

func (q *Queue) run(ctx context.Context, job Job) {
	log := q.logger.With(
		zap.String("job", string(job.Kind)),
		zap.Int64("document_id", job.DocumentID),
	)
	ctx = logger.ContextWithLogger(ctx, log)

	attempts := 0
	op := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, q.cfg.JobTimeout)
		defer cancel()

		err := q.execute(attemptCtx, job)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		metrics.IndexingRetriesTotal.WithLabelValues(string(job.Kind)).Inc()
		log.Warn("Indexing attempt failed, retrying",
			zap.Int("attempt", attempts),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(op, q.backOff(ctx), notify)
	if err == nil {
		log.Info("Indexing job completed", zap.Int("attempts", attempts))
		return
	}

	if job.Kind == KindDeindex {
		log.Warn("Deindex job failed, index may hold a stale entry", zap.Int("attempts", attempts), zap.Error(err))
		return
	}
	log.Error("Indexing job failed", zap.Int("attempts", attempts), zap.Error(err))
}

func (q *Queue) execute(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindIndex:
		return q.runner.IndexFile(ctx, job.DocumentID, job.Category, job.FileRef)
	case KindDeindex:
		return q.runner.DeindexDocument(ctx, job.DocumentID)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (q *Queue) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = q.cfg.InitialBackoff
	exp.MaxInterval = q.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(q.cfg.MaxAttempts-1)), ctx)
}

// retryable reports whether another attempt could succeed. Bad input and
// files that cannot be turned into text fail the same way every time.
func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrExtraction),
		errors.Is(err, domain.ErrEmptyDocument),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrVectorDimMismatch),
		errors.Is(err, domain.ErrEmbeddingRejected):
		return false
	}
	var ie *domain.IndexingError
	if errors.As(err, &ie) && ie.Stage == domain.StageNormalization {
		return false
	}
	return true
}
