package index

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kailas-cloud/shelfindex/internal/db"
	"github.com/kailas-cloud/shelfindex/internal/domain"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/operator"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/result"
)

func TestNew_Definition(t *testing.T) {
	repo, _ := newTestRepo(t)

	want := "test:books:idx on test:books:* " +
		"[id numeric, category text^3, content text, vector=content_vector vector flat/2/IP] stopwords=off"
	if got := repo.Definition().String(); got != want {
		t.Errorf("definition:\n got %s\nwant %s", got, want)
	}
	if repo.Name() != "test:books:idx" {
		t.Errorf("name = %q", repo.Name())
	}
}

func TestNew_LexicalOnlyAndHNSW(t *testing.T) {
	lexical, err := New(&mockStore{}, Options{KeyPrefix: "x:"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if f := lexical.Definition().Field(vectorAttr); f != nil {
		t.Error("lexical-only index must not have a vector field")
	}

	hnsw, err := New(&mockStore{}, Options{VectorDim: 8, Algorithm: db.VectorHNSW, M: 16, EFConstruct: 200})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f := hnsw.Definition().Field(vectorAttr)
	if f == nil || f.VectorAlgo != db.VectorHNSW || f.VectorDistance != db.DistanceIP || f.VectorM != 16 {
		t.Errorf("unexpected vector field: %+v", f)
	}

	if _, err := New(&mockStore{}, Options{VectorDim: 8, Algorithm: "IVF"}); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestEnsureIndex(t *testing.T) {
	t.Run("creates when missing", func(t *testing.T) {
		repo, ms := newTestRepo(t)
		created := false
		ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
			created = def.Name == "test:books:idx"
			return nil
		}
		if err := repo.EnsureIndex(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !created {
			t.Error("expected CreateIndex call")
		}
	})

	t.Run("skips existing", func(t *testing.T) {
		repo, ms := newTestRepo(t)
		ms.indexExistsFn = func(context.Context, string) (bool, error) { return true, nil }
		ms.createIndexFn = func(context.Context, *db.IndexDefinition) error {
			t.Error("CreateIndex must not be called")
			return nil
		}
		if err := repo.EnsureIndex(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("race with another creator", func(t *testing.T) {
		repo, ms := newTestRepo(t)
		ms.createIndexFn = func(context.Context, *db.IndexDefinition) error {
			return &db.Error{Op: db.OpCreateIndex, Err: db.ErrIndexExists}
		}
		if err := repo.EnsureIndex(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		repo, ms := newTestRepo(t)
		ms.indexExistsFn = func(context.Context, string) (bool, error) { return false, errors.New("conn refused") }
		err := repo.EnsureIndex(context.Background())
		if !errors.Is(err, domain.ErrIndexUnavailable) {
			t.Fatalf("expected ErrIndexUnavailable, got %v", err)
		}
	})
}

func TestDrop(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.dropIndexFn = func(context.Context, string) error {
		return &db.Error{Op: db.OpDropIndex, Err: db.ErrIndexNotFound}
	}
	if err := repo.Drop(context.Background()); err != nil {
		t.Fatalf("dropping a missing index should succeed, got %v", err)
	}

	ms.dropIndexFn = func(context.Context, string) error { return errors.New("boom") }
	var ie *domain.IndexError
	if err := repo.Drop(context.Background()); !errors.As(err, &ie) || ie.Op != "drop" {
		t.Fatalf("expected IndexError{drop}, got %v", err)
	}
}

func TestStats(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexInfoFn = func(_ context.Context, name string) (*db.IndexInfo, error) {
		if name != "test:books:idx" {
			t.Errorf("unexpected index %q", name)
		}
		return &db.IndexInfo{Name: name, NumDocs: 5, Indexing: true}, nil
	}

	st, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != (Stats{Name: "test:books:idx", Documents: 5, Building: true}) {
		t.Errorf("stats = %+v", st)
	}

	ms.indexInfoFn = func(context.Context, string) (*db.IndexInfo, error) { return nil, db.ErrIndexNotFound }
	_, err = repo.Stats(context.Background())
	if !errors.Is(err, db.ErrIndexNotFound) || !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected index-not-found IndexError, got %v", err)
	}
}

func TestUpsert(t *testing.T) {
	repo, ms := newTestRepo(t)

	var gotKey string
	var gotFields map[string]string
	ms.hReplaceFn = func(_ context.Context, key string, fields map[string]string) error {
		gotKey, gotFields = key, fields
		return nil
	}

	doc := mustDoc(t, 42, "poem", "evgeniy onegin", []float32{3, 4})
	if err := repo.Upsert(context.Background(), doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotKey != "test:books:42" {
		t.Errorf("key = %q", gotKey)
	}
	if gotFields["id"] != "42" || gotFields["category"] != "poem" || gotFields["content"] != "evgeniy onegin" {
		t.Errorf("fields = %v", gotFields)
	}
	vec, err := db.DecodeVector(gotFields["content_vector"])
	if err != nil || len(vec) != 2 {
		t.Fatalf("vector field: %v %v", vec, err)
	}
}

func TestUpsert_Errors(t *testing.T) {
	repo, ms := newTestRepo(t)

	err := repo.Upsert(context.Background(), mustDoc(t, 1, "", "text", []float32{1, 0, 0}))
	if !errors.Is(err, domain.ErrVectorDimMismatch) || !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected dimension mismatch IndexError, got %v", err)
	}

	ms.hReplaceFn = func(context.Context, string, map[string]string) error { return errors.New("timeout") }
	var ie *domain.IndexError
	if err := repo.Upsert(context.Background(), mustDoc(t, 1, "", "text", nil)); !errors.As(err, &ie) {
		t.Fatalf("expected IndexError, got %v", err)
	}
	if ie.Op != "upsert" {
		t.Errorf("op = %q", ie.Op)
	}
}

func TestDelete(t *testing.T) {
	repo, ms := newTestRepo(t)

	var deleted string
	ms.delFn = func(_ context.Context, key string) error {
		deleted = key
		return nil
	}
	if err := repo.Delete(context.Background(), 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "test:books:7" {
		t.Errorf("deleted %q", deleted)
	}

	ms.delFn = func(context.Context, string) error { return &db.Error{Op: db.OpDel, Err: db.ErrKeyNotFound} }
	if err := repo.Delete(context.Background(), 7); err != nil {
		t.Errorf("delete of missing key should succeed, got %v", err)
	}

	ms.delFn = func(context.Context, string) error { return errors.New("down") }
	if err := repo.Delete(context.Background(), 7); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestQueryLexical_BuildsQuery(t *testing.T) {
	repo, ms := newTestRepo(t)

	var got *db.TextQuery
	ms.searchTextFn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			{Key: "test:books:3", Score: 2.5, Fields: map[string]string{"category": "poem"}},
			{Key: "test:books:1", Score: 1.1, Fields: map[string]string{}},
		}}, nil
	}

	hits, err := repo.QueryLexical(context.Background(), "is poem pushkin", operator.And, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.IndexName != "test:books:idx" || got.Operator != db.MatchAll || got.Scorer != "BM25STD" || got.TopK != 10 {
		t.Errorf("query = %+v", got)
	}
	if !slices.Equal(got.Fields, []string{"category", "content"}) {
		t.Errorf("fields = %v", got.Fields)
	}
	wantTerms := []db.TextTerm{{Value: "is"}, {Value: "poem", Fuzziness: 1}, {Value: "pushkin", Fuzziness: 2}}
	if !slices.Equal(got.Terms, wantTerms) {
		t.Errorf("terms = %v, want %v", got.Terms, wantTerms)
	}

	if !slices.Equal(result.IDs(hits), []int64{3, 1}) {
		t.Errorf("ids = %v", result.IDs(hits))
	}
	if hits[0].Category() != "poem" || hits[0].Score() != 2.5 {
		t.Errorf("first hit = %+v", hits[0])
	}
}

func TestQueryLexical_OrAndEmpty(t *testing.T) {
	repo, ms := newTestRepo(t)

	calls := 0
	ms.searchTextFn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		calls++
		if q.Operator != db.MatchAny {
			t.Errorf("operator = %v, want MatchAny", q.Operator)
		}
		return &db.SearchResult{}, nil
	}

	if _, err := repo.QueryLexical(context.Background(), "car auto", operator.Or, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hits, err := repo.QueryLexical(context.Background(), "   ", operator.Or, 5)
	if err != nil || hits != nil {
		t.Fatalf("empty query: hits=%v err=%v", hits, err)
	}
	if calls != 1 {
		t.Errorf("expected 1 store call, got %d", calls)
	}
}

func TestQueryLexical_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchTextFn = func(context.Context, *db.TextQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: errors.New("conn reset")}
	}
	_, err := repo.QueryLexical(context.Background(), "poem", operator.And, 5)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestQueryVector(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.VectorField != "vector" || q.Metric != db.DistanceIP || q.K != 3 {
			t.Errorf("query = %+v", q)
		}
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{
			{Key: "test:books:9", Score: 0.8, Fields: map[string]string{"category": "novel"}},
			{Key: "garbage", Score: 0.1, Fields: map[string]string{}},
		}}, nil
	}

	hits, err := repo.QueryVector(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 || hits[0].ID() != 9 {
		t.Errorf("hits = %v", hits)
	}

	if _, err := repo.QueryVector(context.Background(), []float32{1}, 3); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected dim mismatch, got %v", err)
	}
}

func TestQueryVector_LexicalOnlyIndex(t *testing.T) {
	repo, err := New(&mockStore{}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := repo.QueryVector(context.Background(), []float32{1}, 3); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected IndexError, got %v", err)
	}
}

func TestFuzziness(t *testing.T) {
	tests := []struct {
		term string
		want int
	}{
		{"a", 0}, {"is", 0}, {"poe", 1}, {"poems", 1}, {"pushkin", 2}, {"онегин", 2}, {"ёж", 0},
	}
	for _, tt := range tests {
		if got := Fuzziness(tt.term); got != tt.want {
			t.Errorf("Fuzziness(%q) = %d, want %d", tt.term, got, tt.want)
		}
	}
}
