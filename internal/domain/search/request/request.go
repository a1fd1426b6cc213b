package request

import (
	"fmt"

	"github.com/kailas-cloud/shelfindex/internal/domain"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length in bytes.
	MaxQueryLength = 4096
	DefaultLimit   = 20
	MaxLimit       = 100
)

// Request is a validated search query. An empty query is valid and
// matches nothing.
type Request struct {
	query      string
	searchMode mode.Mode
	limit      int
}

// New validates search parameters. Defaults: mode=context, limit=20.
// Limit is clamped to MaxLimit.
func New(query string, m mode.Mode, limit int) (Request, error) {
	if len(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: too long (max %d bytes)", domain.ErrInvalidQuery, MaxQueryLength)
	}
	if m == "" {
		m = mode.Context
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("%w: invalid search mode %q", domain.ErrInvalidQuery, m)
	}
	if limit < 0 {
		return Request{}, fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidQuery)
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Request{query: query, searchMode: m, limit: limit}, nil
}

// Query returns the raw search query text.
func (r *Request) Query() string { return r.query }

// Mode returns the search strategy.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// Limit returns the maximum results to return.
func (r *Request) Limit() int { return r.limit }
