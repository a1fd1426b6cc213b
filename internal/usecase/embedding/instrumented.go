package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfindex/internal/domain"
	"github.com/kailas-cloud/shelfindex/internal/logger"
	"github.com/kailas-cloud/shelfindex/internal/metrics"
)

// InstrumentedEmbedder times the chain below it for one purpose. Provider
// request counters live in transport/openai; this layer sees cache hits too.
type InstrumentedEmbedder struct {
	inner   domain.Embedder
	purpose domain.Purpose
	model   string
	logger  *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. logger is the fallback when the
// context carries none.
func NewInstrumentedEmbedder(inner domain.Embedder, purpose domain.Purpose, model string, logger *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{inner: inner, purpose: purpose, model: model, logger: logger}
}

func (e *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	res, err := e.inner.Embed(ctx, text)
	elapsed := time.Since(start)

	log := logger.FromContextOr(ctx, e.logger).With(
		zap.String("purpose", string(e.purpose)),
		zap.String("model", e.model),
		zap.Duration("duration", elapsed),
	)

	if err != nil {
		metrics.EmbedDuration.WithLabelValues(string(e.purpose), "error").Observe(elapsed.Seconds())
		log.Error("Embedding failed", zap.Int("text_bytes", len(text)), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	outcome := "provider"
	if res.Cached() {
		outcome = "cache"
	}
	metrics.EmbedDuration.WithLabelValues(string(e.purpose), outcome).Observe(elapsed.Seconds())
	log.Debug("Embedding done",
		zap.String("source", outcome),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}
