// Package embcache keeps computed embeddings in the index store so that
// re-indexing an unchanged book, or repeating a query, skips the provider.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfindex/internal/db"
	"github.com/kailas-cloud/shelfindex/internal/domain"
)

type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configure key layout and expiry.
type Options struct {
	// KeyPrefix namespaces cache keys, e.g. "shelfindex:".
	KeyPrefix string
	// Model and Dimensions are part of the key: switching either never
	// serves vectors from the old space.
	Model      string
	Dimensions int
	// TTL of zero keeps entries until the server evicts them.
	TTL time.Duration
}

// CachedEmbedder is a read-through cache in front of an Embedder. Store
// failures degrade to a provider call; they are logged, never returned.
type CachedEmbedder struct {
	inner   domain.Embedder
	kv      kv
	keyBase string
	dims    int
	ttl     time.Duration
	lookups *prometheus.CounterVec
	logger  *zap.Logger
}

// New wraps inner. lookups, if non-nil, is incremented with label "hit" or
// "miss".
func New(inner domain.Embedder, store kv, opts Options, lookups *prometheus.CounterVec, logger *zap.Logger) *CachedEmbedder {
	var base strings.Builder
	base.WriteString(opts.KeyPrefix + "emb_cache:")
	if opts.Model != "" {
		base.WriteString(opts.Model + ":")
	}
	if opts.Dimensions > 0 {
		base.WriteString(strconv.Itoa(opts.Dimensions) + ":")
	}

	return &CachedEmbedder{
		inner:   inner,
		kv:      store,
		keyBase: base.String(),
		dims:    opts.Dimensions,
		ttl:     opts.TTL,
		lookups: lookups,
		logger:  logger,
	}
}

// Embed serves a cached vector with zero token usage, or calls inner and
// stores the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)

	if vec, ok := c.lookup(ctx, key); ok {
		c.count("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.count("miss")

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.store(ctx, key, res.Embedding)
	return res, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.keyBase + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) count(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	raw, err := c.kv.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return nil, false
	case err != nil:
		c.logger.Warn("Embedding cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	case len(raw) == 0:
		return nil, false
	}

	vec, err := db.DecodeVector(string(raw))
	if err != nil {
		c.logger.Warn("Embedding cache entry unreadable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if c.dims > 0 && len(vec) != c.dims {
		c.logger.Warn("Embedding cache entry has wrong dimensions",
			zap.String("key", key), zap.Int("want", c.dims), zap.Int("got", len(vec)))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) store(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.kv.SetWithTTL(ctx, key, []byte(db.EncodeVector(vec)), c.ttl); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}
