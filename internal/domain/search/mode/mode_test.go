package mode

import "testing"

func TestIsValid(t *testing.T) {
	valid := []Mode{Context, Expanded, Semantic}
	for _, m := range valid {
		if !m.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", m)
		}
	}

	invalid := []Mode{"", "hybrid", "keyword", "CONTEXT"}
	for _, m := range invalid {
		if m.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", m)
		}
	}
}

func TestIsLexical(t *testing.T) {
	if !Context.IsLexical() || !Expanded.IsLexical() {
		t.Error("context and expanded should be lexical")
	}
	if Semantic.IsLexical() {
		t.Error("semantic should not be lexical")
	}
}
