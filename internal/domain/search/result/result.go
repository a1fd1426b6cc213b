package result

// Result is a single ranked hit: a document id with its relevance score.
// Lexical and semantic scores are not comparable with each other.
type Result struct {
	id       int64
	score    float64
	category string
}

// New creates a search result.
func New(id int64, score float64, category string) Result {
	return Result{id: id, score: score, category: category}
}

// ID returns the document identifier.
func (r *Result) ID() int64 { return r.id }

// Score returns the relevance score.
func (r *Result) Score() float64 { return r.score }

// Category returns the indexed category label.
func (r *Result) Category() string { return r.category }

// IDs projects results to their document ids, preserving order.
func IDs(results []Result) []int64 {
	ids := make([]int64, len(results))
	for i := range results {
		ids[i] = results[i].id
	}
	return ids
}

// AtLeast keeps results scoring at or above threshold, preserving order.
func AtLeast(results []Result, threshold float64) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.score >= threshold {
			out = append(out, r)
		}
	}
	return out
}
