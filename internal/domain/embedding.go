package domain

import (
	"context"
	"fmt"
)

// Embedder maps a passage of book text, or a search query, to a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker is implemented by embedders that can probe their provider.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is the raw provider output. Token counts are zero when it
// was served from cache.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Cached reports whether the result carries no provider usage.
func (r EmbeddingResult) Cached() bool { return r.TotalTokens == 0 && r.PromptTokens == 0 }

// Purpose tells asymmetric embedding models which side of the retrieval
// pair a text is on.
type Purpose string

const (
	PurposeDocument Purpose = "document"
	PurposeQuery    Purpose = "query"
)

// InstructionEmbedder prefixes every text with the prompt configured for
// its purpose, e.g. "search_document: " or "search_query: ".
type InstructionEmbedder struct {
	inner   Embedder
	purpose Purpose
	prefix  string
}

// NewInstructionEmbedder wraps inner. An empty prefix makes it a pass-through.
func NewInstructionEmbedder(inner Embedder, purpose Purpose, prefix string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, purpose: purpose, prefix: prefix}
}

// Purpose returns the side this embedder serves.
func (e *InstructionEmbedder) Purpose() Purpose { return e.purpose }

// Embed delegates with the prefix applied.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, e.prefix+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("embed %s: %w", e.purpose, err)
	}
	return res, nil
}
