// Package embedding turns text into unit-length vectors through a chain of
// domain.Embedder decorators.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/shelfindex/internal/domain"
	"github.com/kailas-cloud/shelfindex/internal/domain/vector"
)

// Encoder produces L2-normalized embeddings of a fixed dimension.
type Encoder struct {
	embedder   domain.Embedder
	dimensions int
	maxChars   int
	maxChunks  int
}

// NewEncoder creates an Encoder. dimensions of zero accepts whatever the
// embedder returns.
func NewEncoder(embedder domain.Embedder, dimensions int) *Encoder {
	return &Encoder{embedder: embedder, dimensions: dimensions}
}

// Dimensions returns the configured vector size.
func (e *Encoder) Dimensions() int { return e.dimensions }

// WithInputLimit bounds what a single provider call receives. Text longer
// than maxChars bytes is split at word boundaries into at most maxChunks
// pieces; the rest is dropped. The pieces are embedded separately and their
// unit vectors averaged. maxChars of zero sends text unchanged.
func (e *Encoder) WithInputLimit(maxChars, maxChunks int) *Encoder {
	e.maxChars = maxChars
	e.maxChunks = max(maxChunks, 1)
	return e
}

// Encode embeds text and scales the result to unit length.
func (e *Encoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", domain.ErrInvalidInput)
	}

	pieces := split(text, e.maxChars, e.maxChunks)
	if len(pieces) == 1 {
		return e.embed(ctx, pieces[0])
	}

	var sum []float32
	for i, p := range pieces {
		v, err := e.embed(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", i+1, len(pieces), err)
		}
		if sum == nil {
			sum = v
			continue
		}
		if len(v) != len(sum) {
			return nil, fmt.Errorf("encode: %w: chunk %d has %d dimensions, expected %d",
				domain.ErrVectorDimMismatch, i+1, len(v), len(sum))
		}
		for j := range v {
			sum[j] += v[j]
		}
	}

	unit, err := vector.Normalize(sum)
	if err != nil {
		return nil, fmt.Errorf("encode: %w: %w", domain.ErrEmbeddingProviderError, err)
	}
	return unit, nil
}

func (e *Encoder) embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	if e.dimensions > 0 && len(res.Embedding) != e.dimensions {
		return nil, fmt.Errorf("encode: %w: expected %d, got %d",
			domain.ErrVectorDimMismatch, e.dimensions, len(res.Embedding))
	}

	unit, err := vector.Normalize(res.Embedding)
	if err != nil {
		if errors.Is(err, vector.ErrZeroVector) {
			return nil, fmt.Errorf("encode: %w: %w", domain.ErrEmbeddingProviderError, err)
		}
		return nil, fmt.Errorf("encode: %w", err)
	}
	return unit, nil
}

// split cuts text into at most limit pieces of at most size bytes, breaking
// at the last space that fits. A word longer than size is cut on a rune
// boundary.
func split(text string, size, limit int) []string {
	if size <= 0 || len(text) <= size {
		return []string{text}
	}

	var pieces []string
	for text != "" && len(pieces) < limit {
		if len(text) <= size {
			pieces = append(pieces, text)
			break
		}
		cut := strings.LastIndexByte(text[:size+1], ' ')
		if cut <= 0 {
			cut = size
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(text)
			}
		}
		if p := strings.TrimSpace(text[:cut]); p != "" {
			pieces = append(pieces, p)
		}
		text = strings.TrimLeft(text[cut:], " ")
	}
	if len(pieces) == 0 {
		return []string{text}
	}
	return pieces
}

// Similarity is the cosine similarity of two texts.
func (e *Encoder) Similarity(ctx context.Context, a, b string) (float64, error) {
	va, err := e.Encode(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := e.Encode(ctx, b)
	if err != nil {
		return 0, err
	}
	return vector.Dot(va, vb), nil
}

// Score rates each candidate by cosine similarity to query. The query is
// encoded once.
func (e *Encoder) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	q, err := e.Encode(ctx, query)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		v, err := e.Encode(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("score %q: %w", c, err)
		}
		scores[i] = vector.Dot(q, v)
	}
	return scores, nil
}
