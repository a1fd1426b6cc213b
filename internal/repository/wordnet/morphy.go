package wordnet

import "strings"

type suffixRule struct{ old, new string }

var detachmentRules = map[POS][]suffixRule{
	Noun: {
		{"s", ""}, {"ses", "s"}, {"ves", "f"}, {"xes", "x"}, {"zes", "z"},
		{"ches", "ch"}, {"shes", "sh"}, {"men", "man"}, {"ies", "y"},
	},
	Verb: {
		{"s", ""}, {"ies", "y"}, {"es", "e"}, {"es", ""},
		{"ed", "e"}, {"ed", ""}, {"ing", "e"}, {"ing", ""},
	},
	Adjective: {
		{"er", ""}, {"est", ""}, {"er", "e"}, {"est", "e"},
	},
}

// detach applies the suffix rules for pos once. Candidates are not checked
// against the dictionary.
func detach(word string, pos POS) []string {
	if pos == Satellite {
		pos = Adjective
	}
	var out []string
	for _, r := range detachmentRules[pos] {
		if len(word) > len(r.old) && strings.HasSuffix(word, r.old) {
			out = append(out, strings.TrimSuffix(word, r.old)+r.new)
		}
	}
	return out
}
