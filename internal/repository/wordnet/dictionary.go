// Package wordnet serves synonym sets and hypernyms from a WordNet 3.x
// dictionary for query expansion.
package wordnet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fluhus/gostuff/nlp/wordnet"

	"github.com/kailas-cloud/shelfindex/internal/text/expand"
)

// POS is a WordNet part of speech as keyed by wordnet.Search.
type POS string

// Parts of speech in lookup order.
const (
	Noun      POS = "n"
	Verb      POS = "v"
	Adjective POS = "a"
	Satellite POS = "s"
	Adverb    POS = "r"
)

var allPOS = []POS{Noun, Verb, Adjective, Satellite, Adverb}

// Pointer symbols followed for hypernyms.
const (
	hypernym         = "@"
	instanceHypernym = "@i"
)

// ErrNoDictionary is returned for a database without synsets.
var ErrNoDictionary = errors.New("wordnet dictionary not found")

// Dictionary is a read-only view of a parsed WordNet database, safe for
// concurrent use.
type Dictionary struct {
	wn *wordnet.WordNet
}

var _ expand.Lexicon = (*Dictionary)(nil)

// Load parses the dictionary files in dir.
func Load(dir string) (*Dictionary, error) {
	wn, err := wordnet.Parse(dir)
	if err != nil {
		return nil, fmt.Errorf("parse wordnet %s: %w", dir, err)
	}
	d, err := New(wn)
	if err != nil {
		return nil, fmt.Errorf("%w in %s", err, dir)
	}
	return d, nil
}

// New wraps an already parsed database.
func New(wn *wordnet.WordNet) (*Dictionary, error) {
	if wn == nil || len(wn.Synset) == 0 {
		return nil, ErrNoDictionary
	}
	return &Dictionary{wn: wn}, nil
}

// Senses returns every meaning of word across all parts of speech.
// Inflected forms are reduced to their base forms first, so "cars" finds
// the senses of "car".
func (d *Dictionary) Senses(word string) []expand.Sense {
	lemma := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(word)), " ", "_")
	if lemma == "" {
		return nil
	}

	var out []expand.Sense
	seen := make(map[*wordnet.Synset]struct{})
	for _, pos := range allPOS {
		for _, form := range d.Morphy(lemma, pos) {
			for _, ss := range d.wn.Search(form)[string(pos)] {
				if _, ok := seen[ss]; ok {
					continue
				}
				seen[ss] = struct{}{}
				out = append(out, d.sense(ss))
			}
		}
	}
	return out
}

// Morphy returns the base forms of word for pos that the dictionary knows.
// The word itself comes first when it is already a base form. Irregular
// forms come from the exception lists, regular ones from suffix rules.
func (d *Dictionary) Morphy(word string, pos POS) []string {
	candidates := []string{word}
	if exc := d.exceptions(word, pos); len(exc) > 0 {
		candidates = append(candidates, exc...)
	} else {
		candidates = append(candidates, detach(word, pos)...)
	}

	var out []string
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if len(d.wn.Search(c)[string(pos)]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

func (d *Dictionary) exceptions(word string, pos POS) []string {
	if forms, ok := d.wn.Exception[string(pos)+"."+word]; ok {
		return forms
	}
	return d.wn.Exception[word]
}

func (d *Dictionary) sense(ss *wordnet.Synset) expand.Sense {
	s := expand.Sense{Synonyms: words(ss)}
	for _, p := range ss.Pointer {
		if p.Symbol != hypernym && p.Symbol != instanceHypernym {
			continue
		}
		if target := d.wn.Synset[p.Synset]; target != nil {
			s.Hypernyms = append(s.Hypernyms, words(target)...)
		}
	}
	return s
}

// words strips the adjective syntactic markers (a), (p) and (ip).
func words(ss *wordnet.Synset) []string {
	out := make([]string, 0, len(ss.Word))
	for _, w := range ss.Word {
		if i := strings.IndexByte(w, '('); i > 0 && strings.HasSuffix(w, ")") {
			w = w[:i]
		}
		out = append(out, w)
	}
	return out
}
