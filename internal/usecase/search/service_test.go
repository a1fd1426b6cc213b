package search

import (
	"context"
	"errors"
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/shelfindex/internal/domain"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/mode"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/operator"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/request"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/result"
	"github.com/kailas-cloud/shelfindex/internal/logger"
)

// --- Mocks ---

type lexicalCall struct {
	query string
	op    operator.Operator
	topK  int
}

type mockIndex struct {
	lexicalResults []result.Result
	lexicalErr     error
	vectorResults  []result.Result
	vectorErr      error

	lexicalCalls []lexicalCall
	vectorCalls  int
}

func (m *mockIndex) QueryLexical(_ context.Context, q string, op operator.Operator, topK int) ([]result.Result, error) {
	m.lexicalCalls = append(m.lexicalCalls, lexicalCall{query: q, op: op, topK: topK})
	return m.lexicalResults, m.lexicalErr
}

func (m *mockIndex) QueryVector(_ context.Context, _ []float32, _ int) ([]result.Result, error) {
	m.vectorCalls++
	return m.vectorResults, m.vectorErr
}

type mockExpander struct {
	expandFn func(q string) string
}

func (m *mockExpander) Expand(_ context.Context, q string) string {
	if m.expandFn != nil {
		return m.expandFn(q)
	}
	return q
}

type mockEncoder struct {
	vec   []float32
	err   error
	texts []string
}

func (m *mockEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	m.texts = append(m.texts, text)
	return m.vec, m.err
}

func hits(scores ...float64) []result.Result {
	out := make([]result.Result, len(scores))
	for i, s := range scores {
		out[i] = result.New(int64(i+1), s, "")
	}
	return out
}

func mustRequest(t *testing.T, q string, m mode.Mode, limit int) *request.Request {
	t.Helper()
	req, err := request.New(q, m, limit)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &req
}

// --- Tests ---

func TestSearchLexical_Strict(t *testing.T) {
	idx := &mockIndex{lexicalResults: hits(2.5, 0.4, 0.05)}
	exp := &mockExpander{expandFn: func(string) string { t.Error("strict search must not expand"); return "" }}
	svc := New(idx, exp, nil, Config{LexicalThreshold: 0.1})

	got, err := svc.SearchLexical(context.Background(), "  Evgeniy ONEGIN! ", true, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(result.IDs(got), []int64{1, 2}) {
		t.Errorf("ids = %v, want [1 2]", result.IDs(got))
	}
	if len(idx.lexicalCalls) != 1 {
		t.Fatalf("expected 1 index call, got %d", len(idx.lexicalCalls))
	}
	call := idx.lexicalCalls[0]
	if call.query != "evgeniy onegin" || call.op != operator.And || call.topK != 10 {
		t.Errorf("unexpected call: %+v", call)
	}
}

func TestSearchLexical_Expanded(t *testing.T) {
	idx := &mockIndex{lexicalResults: hits(1)}
	exp := &mockExpander{expandFn: func(q string) string { return q + " verse poetry" }}
	svc := New(idx, exp, nil, Config{})

	if _, err := svc.SearchLexical(context.Background(), "Poem", false, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call := idx.lexicalCalls[0]
	if call.query != "poem verse poetry" || call.op != operator.Or {
		t.Errorf("unexpected call: %+v", call)
	}
}

func TestSearchLexical_LogsTermCountNotText(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := logger.ContextWithLogger(context.Background(), zap.New(core))
	exp := &mockExpander{expandFn: func(q string) string { return q + " verse poetry" }}
	svc := New(&mockIndex{lexicalResults: hits(1)}, exp, nil, Config{})

	if _, err := svc.SearchLexical(ctx, "private diary", false, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries := logs.FilterMessage("lexical search").All()
	if len(entries) != 1 {
		t.Fatalf("expected one lexical search entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if _, ok := fields["query"]; ok {
		t.Errorf("query text must not be logged: %v", fields)
	}
	if fields["query_terms"] != int64(4) {
		t.Errorf("query_terms = %v, want 4", fields["query_terms"])
	}
}

func TestSearchLexical_ConfiguredOperators(t *testing.T) {
	idx := &mockIndex{}
	svc := New(idx, nil, nil, Config{StrictOperator: operator.Or, ExpandedOperator: operator.And})

	_, _ = svc.SearchLexical(context.Background(), "a b", true, 5)
	_, _ = svc.SearchLexical(context.Background(), "a b", false, 5)

	if idx.lexicalCalls[0].op != operator.Or || idx.lexicalCalls[1].op != operator.And {
		t.Errorf("operators not applied: %+v", idx.lexicalCalls)
	}
	if idx.lexicalCalls[1].query != "a b" {
		t.Errorf("without expander the keywords are searched as is, got %q", idx.lexicalCalls[1].query)
	}
}

func TestSearchLexical_EmptyQuery(t *testing.T) {
	idx := &mockIndex{lexicalResults: hits(1)}
	svc := New(idx, &mockExpander{expandFn: func(string) string { return "" }}, nil, Config{})

	for _, q := range []string{"", "   ", "?!..."} {
		got, err := svc.SearchLexical(context.Background(), q, true, 10)
		if err != nil || got == nil || len(got) != 0 {
			t.Errorf("query %q: got %v, %v; want empty list", q, got, err)
		}
	}
	// expansion to nothing (stop words only)
	got, err := svc.SearchLexical(context.Background(), "the", false, 10)
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
	if len(idx.lexicalCalls) != 0 {
		t.Errorf("empty queries must not reach the index, got %d calls", len(idx.lexicalCalls))
	}
}

func TestSearchLexical_Truncates(t *testing.T) {
	idx := &mockIndex{lexicalResults: hits(5, 4, 3, 2, 1)}
	svc := New(idx, nil, nil, Config{})

	got, err := svc.SearchLexical(context.Background(), "words", true, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(result.IDs(got), []int64{1, 2}) {
		t.Errorf("ids = %v", result.IDs(got))
	}
}

func TestSearchLexical_IndexError(t *testing.T) {
	idx := &mockIndex{lexicalErr: &domain.IndexError{Op: "query lexical", Err: errors.New("connection refused")}}
	svc := New(idx, nil, nil, Config{})

	_, err := svc.SearchLexical(context.Background(), "poem", false, 10)
	if !errors.Is(err, domain.ErrSearchUnavailable) {
		t.Fatalf("expected ErrSearchUnavailable, got %v", err)
	}
	var se *domain.SearchError
	if !errors.As(err, &se) || se.Mode != "expanded" {
		t.Errorf("expected SearchError with mode expanded, got %v", err)
	}
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("cause should stay reachable, got %v", err)
	}
}

func TestSearchSemantic(t *testing.T) {
	idx := &mockIndex{vectorResults: hits(0.9, 0.6, 0.2)}
	enc := &mockEncoder{vec: []float32{1, 0}}
	svc := New(idx, nil, enc, Config{SemanticThreshold: 0.5})

	got, err := svc.SearchSemantic(context.Background(), "A Story about the SEA", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(result.IDs(got), []int64{1, 2}) {
		t.Errorf("ids = %v, want [1 2]", result.IDs(got))
	}
	if len(enc.texts) != 1 || enc.texts[0] != "a story about the sea" {
		t.Errorf("encoder saw %v", enc.texts)
	}
}

func TestSearchSemantic_Disabled(t *testing.T) {
	svc := New(&mockIndex{}, nil, nil, Config{})
	if svc.SemanticEnabled() {
		t.Error("expected semantic search to be disabled")
	}
	_, err := svc.SearchSemantic(context.Background(), "sea", 10)
	if !errors.Is(err, domain.ErrSemanticDisabled) {
		t.Errorf("expected ErrSemanticDisabled, got %v", err)
	}
}

func TestSearchSemantic_FailuresYieldEmpty(t *testing.T) {
	tests := []struct {
		name string
		idx  *mockIndex
		enc  *mockEncoder
		msg  string
	}{
		{
			name: "encoder",
			idx:  &mockIndex{vectorResults: hits(1)},
			enc:  &mockEncoder{err: domain.ErrEmbeddingProviderError},
			msg:  "Semantic search: encode query failed",
		},
		{
			name: "index",
			idx:  &mockIndex{vectorErr: &domain.IndexError{Op: "query vector", Err: errors.New("down")}},
			enc:  &mockEncoder{vec: []float32{1}},
			msg:  "Semantic search: vector query failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			ctx := logger.ContextWithLogger(context.Background(), zap.New(core))

			got, err := New(tt.idx, nil, tt.enc, Config{}).SearchSemantic(ctx, "sea", 10)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil || len(got) != 0 {
				t.Errorf("expected empty list, got %v", got)
			}
			if logs.FilterMessage(tt.msg).Len() != 1 {
				t.Errorf("expected warning %q, got %v", tt.msg, logs.All())
			}
		})
	}
}

func TestSearch_Dispatch(t *testing.T) {
	tests := []struct {
		mode        mode.Mode
		wantOp      operator.Operator
		wantVector  bool
		wantExpand  bool
		wantLexical bool
	}{
		{mode: mode.Context, wantOp: operator.And, wantLexical: true},
		{mode: mode.Expanded, wantOp: operator.Or, wantLexical: true, wantExpand: true},
		{mode: mode.Semantic, wantVector: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			idx := &mockIndex{lexicalResults: hits(1), vectorResults: hits(1)}
			expanded := false
			exp := &mockExpander{expandFn: func(q string) string { expanded = true; return q }}
			svc := New(idx, exp, &mockEncoder{vec: []float32{1}}, Config{})

			got, err := svc.Search(context.Background(), mustRequest(t, "poem", tt.mode, 0))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != 1 {
				t.Errorf("expected 1 hit, got %d", len(got))
			}
			if (len(idx.lexicalCalls) == 1) != tt.wantLexical || (idx.vectorCalls == 1) != tt.wantVector {
				t.Errorf("lexical=%d vector=%d", len(idx.lexicalCalls), idx.vectorCalls)
			}
			if tt.wantLexical && idx.lexicalCalls[0].op != tt.wantOp {
				t.Errorf("op = %q, want %q", idx.lexicalCalls[0].op, tt.wantOp)
			}
			if tt.wantLexical && idx.lexicalCalls[0].topK != request.DefaultLimit {
				t.Errorf("topK = %d, want default limit", idx.lexicalCalls[0].topK)
			}
			if expanded != tt.wantExpand {
				t.Errorf("expanded = %v, want %v", expanded, tt.wantExpand)
			}
		})
	}
}
