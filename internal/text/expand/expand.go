// Package expand enriches a normalized query with synonyms and hypernyms so
// permissive lexical search can match related wording.
package expand

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfindex/internal/logger"
	"github.com/kailas-cloud/shelfindex/internal/text/normalize"
)

// Sense is one meaning of a word: the lemmas sharing it and the lemmas of
// its direct hypernyms. Multi-word lemmas may use underscores.
type Sense struct {
	Synonyms  []string
	Hypernyms []string
}

// Lexicon looks up the senses of a word.
type Lexicon interface {
	Senses(word string) []Sense
}

// NopLexicon knows no words; expansion then only drops stop words.
type NopLexicon struct{}

// Senses returns nil.
func (NopLexicon) Senses(string) []Sense { return nil }

// Scorer rates candidate terms against a query, higher is closer.
type Scorer interface {
	Score(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// Option configures an Expander.
type Option func(*Expander)

// WithSimilarityFilter keeps only related terms scoring at least minScore
// against the query.
func WithSimilarityFilter(s Scorer, minScore float64) Option {
	return func(e *Expander) {
		e.scorer = s
		e.minScore = minScore
	}
}

// WithMaxTermsPerWord caps how many related terms a single word contributes.
// Zero means no cap.
func WithMaxTermsPerWord(n int) Option {
	return func(e *Expander) { e.maxPerWord = n }
}

// WithStopWords replaces the English stop-word set.
func WithStopWords(words map[string]struct{}) Option {
	return func(e *Expander) { e.stop = words }
}

// Expander turns a normalized query into the bag of terms used by expanded
// lexical search. It only reads shared state and is safe for concurrent use.
type Expander struct {
	lexicon    Lexicon
	stop       map[string]struct{}
	scorer     Scorer
	minScore   float64
	maxPerWord int
}

// New creates an Expander over lex. A nil lex behaves like NopLexicon.
func New(lex Lexicon, opts ...Option) *Expander {
	if lex == nil {
		lex = NopLexicon{}
	}
	e := &Expander{lexicon: lex, stop: StopWords()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand returns the query's non-stop words followed by every related term,
// deduplicated and space-joined. Every non-stop query word is kept.
func (e *Expander) Expand(ctx context.Context, query string) string {
	return strings.Join(e.Terms(ctx, query), " ")
}

// Terms is Expand before joining.
func (e *Expander) Terms(ctx context.Context, query string) []string {
	base := e.Keywords(query)
	if len(base) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(base))
	out := make([]string, 0, len(base))
	for _, w := range base {
		if _, ok := seen[w]; !ok {
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}

	related := e.related(base, seen)
	related = e.filter(ctx, strings.Join(base, " "), related)

	for _, phrase := range related {
		for _, w := range strings.Fields(phrase) {
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	return out
}

// Keywords splits a normalized query and drops stop words.
func (e *Expander) Keywords(query string) []string {
	words := normalize.Words(query)
	out := words[:0:0]
	for _, w := range words {
		if _, stop := e.stop[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}

func (e *Expander) related(base []string, seen map[string]struct{}) []string {
	var out []string
	phrases := make(map[string]struct{})
	for _, w := range base {
		added := 0
		for _, sense := range e.lexicon.Senses(w) {
			lemmas := make([]string, 0, len(sense.Synonyms)+len(sense.Hypernyms))
			lemmas = append(lemmas, sense.Synonyms...)
			lemmas = append(lemmas, sense.Hypernyms...)
			for _, lemma := range lemmas {
				if e.maxPerWord > 0 && added >= e.maxPerWord {
					break
				}
				phrase := e.cleanLemma(lemma)
				if phrase == "" {
					continue
				}
				if _, ok := seen[phrase]; ok {
					continue
				}
				if _, ok := phrases[phrase]; ok {
					continue
				}
				phrases[phrase] = struct{}{}
				out = append(out, phrase)
				added++
			}
		}
	}
	return out
}

// cleanLemma turns "motor_vehicle" into "motor vehicle", normalized and
// without stop words.
func (e *Expander) cleanLemma(lemma string) string {
	words := normalize.Words(normalize.Text(strings.ReplaceAll(lemma, "_", " ")))
	kept := words[:0]
	for _, w := range words {
		if _, stop := e.stop[w]; !stop {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func (e *Expander) filter(ctx context.Context, query string, candidates []string) []string {
	if e.scorer == nil || len(candidates) == 0 {
		return candidates
	}

	scores, err := e.scorer.Score(ctx, query, candidates)
	if err != nil || len(scores) != len(candidates) {
		logger.FromContext(ctx).Warn("expansion similarity filter skipped",
			zap.Int("candidates", len(candidates)),
			zap.Error(err),
		)
		return candidates
	}

	kept := candidates[:0:0]
	for i, c := range candidates {
		if scores[i] >= e.minScore {
			kept = append(kept, c)
		}
	}
	return kept
}
