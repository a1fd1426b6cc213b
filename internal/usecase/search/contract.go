package search

import (
	"context"

	"github.com/kailas-cloud/shelfindex/internal/domain/search/operator"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/result"
)

// Index is the query side of the document index.
type Index interface {
	QueryLexical(ctx context.Context, query string, op operator.Operator, topK int) ([]result.Result, error)
	QueryVector(ctx context.Context, vector []float32, topK int) ([]result.Result, error)
}

// Expander widens a normalized query with related words.
type Expander interface {
	Expand(ctx context.Context, query string) string
}

// Encoder embeds normalized query text.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}
