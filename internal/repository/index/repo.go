// Package index stores IndexedDocuments as hashes under one FT index and
// answers lexical and vector queries over them.
package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/shelfindex/internal/db"
	"github.com/kailas-cloud/shelfindex/internal/domain"
	"github.com/kailas-cloud/shelfindex/internal/domain/document"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/operator"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/result"
)

// Hash field names.
const (
	fieldID       = "id"
	fieldCategory = "category"
	fieldContent  = "content"
	fieldVector   = "content_vector"
	vectorAttr    = "vector"
)

// store is the consumer interface for the document index (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexInfo(ctx context.Context, name string) (*db.IndexInfo, error)
	HReplace(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) error
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Options shape the index schema.
type Options struct {
	// KeyPrefix namespaces every key, e.g. "shelfindex:".
	KeyPrefix      string
	CategoryWeight float64
	// VectorDim of zero builds a lexical-only index.
	VectorDim   int
	Algorithm   db.VectorAlgorithm
	M           int
	EFConstruct int
	// Scorer is passed to FT.SEARCH, e.g. BM25STD.
	Scorer string
}

// Repo implements the Document Index over a db store.
type Repo struct {
	store  store
	opts   Options
	prefix string
	def    *db.IndexDefinition
}

// New builds the index definition and creates a repository.
func New(s store, opts Options) (*Repo, error) {
	prefix := opts.KeyPrefix + "books:"

	b := db.NewIndex(prefix+"idx").
		Prefix(prefix).
		NoStopWords().
		Numeric(fieldID).
		TextWeighted(fieldCategory, opts.CategoryWeight).
		Text(fieldContent)

	if opts.VectorDim > 0 {
		switch opts.Algorithm {
		case db.VectorHNSW:
			b.VectorHNSW(fieldVector, vectorAttr, opts.VectorDim, db.DistanceIP, opts.M, opts.EFConstruct)
		case db.VectorFlat, "":
			b.VectorFlat(fieldVector, vectorAttr, opts.VectorDim, db.DistanceIP, 0)
		default:
			return nil, fmt.Errorf("unknown vector algorithm %q", opts.Algorithm)
		}
	}

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build index definition: %w", err)
	}
	return &Repo{store: s, opts: opts, prefix: prefix, def: def}, nil
}

// Name returns the FT index name.
func (r *Repo) Name() string { return r.def.Name }

// Definition returns the index schema.
func (r *Repo) Definition() *db.IndexDefinition { return r.def }

// EnsureIndex creates the index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.def.Name)
	if err != nil {
		return &domain.IndexError{Op: "ensure", Err: err}
	}
	if exists {
		return nil
	}
	if err := r.store.CreateIndex(ctx, r.def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return &domain.IndexError{Op: "ensure", Err: err}
	}
	return nil
}

// Stats describes the live index.
type Stats struct {
	Name      string
	Documents int64
	Building  bool
}

// Stats reports the document count. A missing index is an IndexError
// wrapping db.ErrIndexNotFound.
func (r *Repo) Stats(ctx context.Context) (Stats, error) {
	info, err := r.store.IndexInfo(ctx, r.def.Name)
	if err != nil {
		return Stats{}, &domain.IndexError{Op: "stats", Err: err}
	}
	return Stats{Name: info.Name, Documents: info.NumDocs, Building: info.Indexing}, nil
}

// Drop removes the index. Documents stay in the store.
func (r *Repo) Drop(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.def.Name); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil
		}
		return &domain.IndexError{Op: "drop", Err: err}
	}
	return nil
}

// Upsert replaces the document stored under doc's id.
func (r *Repo) Upsert(ctx context.Context, doc document.Document) error {
	fields := map[string]string{
		fieldID:       strconv.FormatInt(doc.ID(), 10),
		fieldCategory: doc.Category(),
		fieldContent:  doc.Content(),
	}
	if doc.HasVector() {
		if r.opts.VectorDim > 0 && len(doc.Vector()) != r.opts.VectorDim {
			return &domain.IndexError{Op: "upsert", Err: fmt.Errorf(
				"%w: expected %d, got %d", domain.ErrVectorDimMismatch, r.opts.VectorDim, len(doc.Vector()))}
		}
		fields[fieldVector] = db.EncodeVector(doc.Vector())
	}

	if err := r.store.HReplace(ctx, r.key(doc.ID()), fields); err != nil {
		return &domain.IndexError{Op: "upsert", Err: err}
	}
	return nil
}

// Delete removes the document. A missing id is not an error.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	if err := r.store.Del(ctx, r.key(id)); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return &domain.IndexError{Op: "delete", Err: err}
	}
	return nil
}

// QueryLexical matches the space-separated terms of query against category
// and content with per-term fuzziness. An empty query returns no hits.
func (r *Repo) QueryLexical(
	ctx context.Context, query string, op operator.Operator, topK int,
) ([]result.Result, error) {
	words := strings.Fields(query)
	if len(words) == 0 || topK <= 0 {
		return nil, nil
	}

	terms := make([]db.TextTerm, 0, len(words))
	for _, w := range words {
		terms = append(terms, db.TextTerm{Value: w, Fuzziness: Fuzziness(w)})
	}

	dbOp := db.MatchAll
	if op == operator.Or {
		dbOp = db.MatchAny
	}

	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.def.Name,
		Fields:       []string{fieldCategory, fieldContent},
		Terms:        terms,
		Operator:     dbOp,
		Scorer:       r.opts.Scorer,
		TopK:         topK,
		ReturnFields: []string{fieldID, fieldCategory},
	})
	if err != nil {
		return nil, &domain.IndexError{Op: "query lexical", Err: err}
	}
	return r.parse(sr), nil
}

// QueryVector ranks documents by inner product with vector.
func (r *Repo) QueryVector(ctx context.Context, vector []float32, topK int) ([]result.Result, error) {
	if r.opts.VectorDim == 0 {
		return nil, &domain.IndexError{Op: "query vector", Err: errors.New("index has no vector field")}
	}
	if len(vector) != r.opts.VectorDim {
		return nil, &domain.IndexError{Op: "query vector", Err: fmt.Errorf(
			"%w: expected %d, got %d", domain.ErrVectorDimMismatch, r.opts.VectorDim, len(vector))}
	}
	if topK <= 0 {
		return nil, nil
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.def.Name,
		VectorField:  vectorAttr,
		Vector:       vector,
		K:            topK,
		Metric:       db.DistanceIP,
		ReturnFields: []string{fieldID, fieldCategory},
	})
	if err != nil {
		return nil, &domain.IndexError{Op: "query vector", Err: err}
	}
	return r.parse(sr), nil
}

// Fuzziness is the AUTO edit distance for a term: exact up to two
// characters, one edit up to five, two beyond.
func Fuzziness(term string) int {
	switch n := utf8.RuneCountInString(term); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

func (r *Repo) key(id int64) string {
	return r.prefix + strconv.FormatInt(id, 10)
}

// parse keeps store order; entries whose id cannot be recovered are skipped.
func (r *Repo) parse(sr *db.SearchResult) []result.Result {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	out := make([]result.Result, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id, err := strconv.ParseInt(strings.TrimPrefix(e.Key, r.prefix), 10, 64)
		if err != nil {
			if id, err = strconv.ParseInt(e.Fields[fieldID], 10, 64); err != nil {
				continue
			}
		}
		out = append(out, result.New(id, e.Score, e.Fields[fieldCategory]))
	}
	return out
}
