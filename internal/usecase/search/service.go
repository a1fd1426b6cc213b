// Package search answers lexical and semantic queries over the document index.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfindex/internal/domain"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/mode"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/operator"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/request"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/result"
	"github.com/kailas-cloud/shelfindex/internal/logger"
	"github.com/kailas-cloud/shelfindex/internal/metrics"
	"github.com/kailas-cloud/shelfindex/internal/text/normalize"
)

// Config holds score thresholds and operators.
type Config struct {
	LexicalThreshold  float64
	SemanticThreshold float64
	// StrictOperator combines query words in context mode. Default And.
	StrictOperator operator.Operator
	// ExpandedOperator combines expanded terms. Default Or.
	ExpandedOperator operator.Operator
}

// Service handles context, expanded and semantic search.
type Service struct {
	index    Index
	expander Expander
	encoder  Encoder
	cfg      Config
}

// New creates a search service. expander and encoder may be nil: without an
// expander expanded mode searches the bare keywords, without an encoder
// semantic search is disabled.
func New(index Index, expander Expander, encoder Encoder, cfg Config) *Service {
	if cfg.StrictOperator == "" {
		cfg.StrictOperator = operator.And
	}
	if cfg.ExpandedOperator == "" {
		cfg.ExpandedOperator = operator.Or
	}
	return &Service{index: index, expander: expander, encoder: encoder, cfg: cfg}
}

// SemanticEnabled reports whether an encoder is configured.
func (s *Service) SemanticEnabled() bool { return s.encoder != nil }

// Search dispatches req to the search of its mode.
func (s *Service) Search(ctx context.Context, req *request.Request) (results []result.Result, err error) {
	m := req.Mode()
	defer func() { observe(m, results, err) }()

	switch m {
	case mode.Context:
		return s.SearchLexical(ctx, req.Query(), true, req.Limit())
	case mode.Expanded:
		return s.SearchLexical(ctx, req.Query(), false, req.Limit())
	case mode.Semantic:
		return s.SearchSemantic(ctx, req.Query(), req.Limit())
	default:
		return nil, fmt.Errorf("%w: unsupported search mode %q", domain.ErrInvalidQuery, m)
	}
}

// SearchLexical runs a strict or expanded text query. Hits below the lexical
// threshold are dropped; the index order is kept.
func (s *Service) SearchLexical(ctx context.Context, query string, strict bool, limit int) ([]result.Result, error) {
	m, op := mode.Context, s.cfg.StrictOperator
	if !strict {
		m, op = mode.Expanded, s.cfg.ExpandedOperator
	}

	q := normalize.Text(query)
	if q == "" || limit <= 0 {
		return []result.Result{}, nil
	}
	if !strict && s.expander != nil {
		q = s.expander.Expand(ctx, q)
		if q == "" {
			return []result.Result{}, nil
		}
	}

	hits, err := s.index.QueryLexical(ctx, q, op, limit)
	if err != nil {
		return nil, &domain.SearchError{Mode: string(m), Err: err}
	}

	logger.FromContext(ctx).Debug("lexical search",
		zap.String("mode", string(m)),
		zap.Int("query_terms", len(strings.Fields(q))),
		zap.Int("hits", len(hits)),
	)
	return truncate(result.AtLeast(hits, s.cfg.LexicalThreshold), limit), nil
}

// SearchSemantic ranks documents by similarity to query. Encoder and index
// failures are logged and answered with an empty list.
func (s *Service) SearchSemantic(ctx context.Context, query string, limit int) ([]result.Result, error) {
	if s.encoder == nil {
		return nil, domain.ErrSemanticDisabled
	}

	q := normalize.Text(query)
	if q == "" || limit <= 0 {
		return []result.Result{}, nil
	}

	log := logger.FromContext(ctx)
	vec, err := s.encoder.Encode(ctx, q)
	if err != nil {
		log.Warn("Semantic search: encode query failed", zap.Error(err))
		return []result.Result{}, nil
	}

	hits, err := s.index.QueryVector(ctx, vec, limit)
	if err != nil {
		log.Warn("Semantic search: vector query failed", zap.Error(err))
		return []result.Result{}, nil
	}
	return truncate(result.AtLeast(hits, s.cfg.SemanticThreshold), limit), nil
}

func truncate(results []result.Result, limit int) []result.Result {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}

func observe(m mode.Mode, results []result.Result, err error) {
	status := "success"
	switch {
	case errors.Is(err, domain.ErrSemanticDisabled):
		status = "disabled"
	case err != nil:
		status = "error"
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(m), status).Inc()
	if err == nil {
		metrics.SearchResultsReturned.WithLabelValues(string(m)).Observe(float64(len(results)))
	}
}
