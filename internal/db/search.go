package db

// TermOperator joins the terms of a text query.
type TermOperator int

const (
	// MatchAll requires every term to match (AND).
	MatchAll TermOperator = iota
	// MatchAny requires at least one term to match (OR).
	MatchAny
)

// MaxFuzziness is the largest edit distance the engine accepts for a term.
const MaxFuzziness = 3

// TextTerm is a single query term with its allowed edit distance.
type TextTerm struct {
	Value     string
	Fuzziness int
}

// TextQuery is the input for full-text search.
type TextQuery struct {
	IndexName string
	// Fields restricts matching to these TEXT fields; empty means all.
	Fields       []string
	Terms        []TextTerm
	Operator     TermOperator
	Scorer       string // e.g. BM25STD; empty means engine default
	TopK         int
	ReturnFields []string
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // attribute name of the vector field
	Vector       []float32
	K            int
	Metric       DistanceMetric // converts engine distance to similarity
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
