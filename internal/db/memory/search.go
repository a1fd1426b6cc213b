package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kailas-cloud/shelfindex/internal/db"
)

// BM25 parameters, matching the engine defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type textField struct {
	name   string
	weight float64
}

type docTokens struct {
	key    string
	fields map[string][]string
}

// SearchText scores documents with field-weighted BM25. Terms match tokens
// within their edit distance.
func (s *Store) SearchText(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.TopK <= 0 {
		return nil, errors.New("topK must be positive")
	}

	terms := make([]db.TextTerm, 0, len(q.Terms))
	for _, t := range q.Terms {
		if v := strings.ToLower(t.Value); v != "" {
			terms = append(terms, db.TextTerm{Value: v, Fuzziness: min(t.Fuzziness, db.MaxFuzziness)})
		}
	}
	if len(terms) == 0 {
		return nil, errors.New("query is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	def, err := s.index(q.IndexName)
	if err != nil {
		return nil, err
	}
	fields := searchableFields(def, q.Fields)
	hashes := s.documents(def)

	docs := make([]docTokens, 0, len(hashes))
	avgLen := make(map[string]float64, len(fields))
	for key, h := range hashes {
		d := docTokens{key: key, fields: make(map[string][]string, len(fields))}
		for _, f := range fields {
			toks := tokenize(h[f.name])
			d.fields[f.name] = toks
			avgLen[f.name] += float64(len(toks))
		}
		docs = append(docs, d)
	}
	if len(docs) == 0 {
		return &db.SearchResult{}, nil
	}
	for name := range avgLen {
		avgLen[name] /= float64(len(docs))
	}

	// tf[i][term][field]
	tf := make([][]map[string]int, len(docs))
	docFreq := make([]int, len(terms))
	for i, d := range docs {
		tf[i] = make([]map[string]int, len(terms))
		for ti, term := range terms {
			counts := make(map[string]int)
			for _, f := range fields {
				for _, tok := range d.fields[f.name] {
					if matches(term, tok) {
						counts[f.name]++
					}
				}
			}
			tf[i][ti] = counts
			if len(counts) > 0 {
				docFreq[ti]++
			}
		}
	}

	n := float64(len(docs))
	var entries []db.SearchEntry
	for i, d := range docs {
		matched := 0
		score := 0.0
		for ti := range terms {
			if len(tf[i][ti]) == 0 {
				continue
			}
			matched++
			df := float64(docFreq[ti])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			for _, f := range fields {
				c := float64(tf[i][ti][f.name])
				if c == 0 {
					continue
				}
				norm := 1 - bm25B
				if avgLen[f.name] > 0 {
					norm += bm25B * float64(len(d.fields[f.name])) / avgLen[f.name]
				}
				score += f.weight * idf * c * (bm25K1 + 1) / (c + bm25K1*norm)
			}
		}

		if matched == 0 || (q.Operator == db.MatchAll && matched < len(terms)) {
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:    d.key,
			Score:  score,
			Fields: project(hashes[d.key], q.ReturnFields),
		})
	}

	return rank(entries, q.TopK), nil
}

// SearchKNN ranks every document carrying a vector by similarity to q.Vector.
func (s *Store) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if len(q.Vector) == 0 {
		return nil, errors.New("vector is required")
	}
	if q.K <= 0 {
		return nil, errors.New("k must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	def, err := s.index(q.IndexName)
	if err != nil {
		return nil, err
	}
	attr := q.VectorField
	if attr == "" {
		attr = "vector"
	}
	field := def.Field(attr)
	if field == nil || field.Type != db.IndexFieldVector {
		return nil, &db.Error{Op: db.OpSearch, Err: errors.New("unknown vector field: " + attr)}
	}
	if len(q.Vector) != field.VectorDim {
		return nil, &db.Error{Op: db.OpSearch, Err: errors.New("query vector dimension mismatch")}
	}
	metric := q.Metric
	if metric == "" {
		metric = field.VectorDistance
	}

	var entries []db.SearchEntry
	for key, h := range s.documents(def) {
		raw, ok := h[field.Name]
		if !ok {
			continue
		}
		v, err := db.DecodeVector(raw)
		if err != nil || len(v) != len(q.Vector) {
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  metric.Similarity(distance(field.VectorDistance, q.Vector, v)),
			Fields: project(h, q.ReturnFields),
		})
	}

	return rank(entries, q.K), nil
}

func rank(entries []db.SearchEntry, k int) *db.SearchResult {
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].Score != entries[b].Score {
			return entries[a].Score > entries[b].Score
		}
		return entries[a].Key < entries[b].Key
	})
	total := len(entries)
	if len(entries) > k {
		entries = entries[:k]
	}
	return &db.SearchResult{Total: total, Entries: entries}
}

func searchableFields(def *db.IndexDefinition, only []string) []textField {
	var out []textField
	for i := range def.Fields {
		f := &def.Fields[i]
		if f.Type != db.IndexFieldText {
			continue
		}
		if len(only) > 0 && !contains(only, f.AttrName()) {
			continue
		}
		w := f.TextWeight
		if w == 0 {
			w = 1
		}
		out = append(out, textField{name: f.Name, weight: w})
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func matches(term db.TextTerm, tok string) bool {
	if term.Fuzziness == 0 {
		return term.Value == tok
	}
	return levenshtein(term.Value, tok, term.Fuzziness) <= term.Fuzziness
}

// levenshtein returns the edit distance between a and b, or limit+1 once
// the distance is known to exceed limit.
func levenshtein(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)
	if d := len(ra) - len(rb); d > limit || -d > limit {
		return limit + 1
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, cur[j])
		}
		if rowMin > limit {
			return limit + 1
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func distance(metric db.DistanceMetric, a, b []float32) float64 {
	var dot, na, nb, l2 float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
		l2 += (x - y) * (x - y)
	}
	switch metric {
	case db.DistanceL2:
		return l2
	case db.DistanceCosine:
		if na == 0 || nb == 0 {
			return 1
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	default:
		return 1 - dot
	}
}
