package normalize

import (
	"slices"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		punctuation bool
		want        string
	}{
		{"tabs and case", "Hello\tWorld", true, "hello world"},
		{"newlines collapse", "Line one.\n\nLine  two!", true, "line one line two"},
		{"punctuation between spaces", "Hello , world", true, "hello world"},
		{"apostrophe joins", "Don't stop", true, "dont stop"},
		{"keep punctuation", "Hello, World", false, "hello, world"},
		{"trims", "  padded  ", true, "padded"},
		{"unicode letters", "Евгений Онегин — роман", true, "евгений онегин роман"},
		{"digits kept", "Chapter 12: The End", true, "chapter 12 the end"},
		{"only punctuation", "?!...", true, ""},
		{"empty", "", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in, tt.punctuation); got != tt.want {
				t.Errorf("Normalize(%q, %v) = %q, want %q", tt.in, tt.punctuation, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Hello\tWorld",
		"Hello , world",
		" A\n\tB  c. D!e ",
		"Evgeniy Onegin is a poem by Pushkin",
		"MiXeD CaSe\r\nwith nbsp",
	}
	for _, in := range inputs {
		for _, p := range []bool{true, false} {
			once := Normalize(in, p)
			if twice := Normalize(once, p); twice != once {
				t.Errorf("Normalize not idempotent for %q (punct=%v): %q -> %q", in, p, once, twice)
			}
		}
	}
}

func TestNormalize_CaseAndWhitespaceInsensitive(t *testing.T) {
	if Text("Hello\tWorld") != Text("hello world") {
		t.Error("expected equal normalized forms")
	}
	if Text("PUSHKIN\n") != Text("pushkin") {
		t.Error("expected equal normalized forms")
	}
}

func TestWords(t *testing.T) {
	got := Words(Text("The Quick, brown fox"))
	want := []string{"the", "quick", "brown", "fox"}
	if !slices.Equal(got, want) {
		t.Errorf("Words() = %v, want %v", got, want)
	}
}
