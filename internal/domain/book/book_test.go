package book

import (
	"strings"
	"testing"
)

func ptr(s string) *string { return &s }

func TestNew_TrimsAndValidates(t *testing.T) {
	b, err := New("  Evgeniy Onegin ", " poem ", "books/onegin.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Title() != "Evgeniy Onegin" || b.Genre() != "poem" {
		t.Errorf("unexpected book: %q / %q", b.Title(), b.Genre())
	}
	if !b.HasFile() || b.ID() != 0 {
		t.Errorf("HasFile=%v ID=%d, want true 0", b.HasFile(), b.ID())
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(" ", "", ""); err == nil {
		t.Error("expected error for blank title")
	}
	if _, err := New(strings.Repeat("t", MaxTitleLength+1), "", ""); err == nil {
		t.Error("expected error for long title")
	}
	if _, err := New("t", strings.Repeat("g", MaxGenreLength+1), ""); err == nil {
		t.Error("expected error for long genre")
	}
}

func TestApply(t *testing.T) {
	b := Reconstruct(5, "Title", "drama", "a.pdf")

	got, err := b.Apply(Patch{Genre: ptr("poem"), FileRef: ptr("")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID() != 5 || got.Title() != "Title" || got.Genre() != "poem" || got.HasFile() {
		t.Errorf("unexpected patched book: %+v", got)
	}
	if b.Genre() != "drama" {
		t.Error("Apply mutated the original")
	}

	if _, err := b.Apply(Patch{Title: ptr("")}); err == nil {
		t.Error("expected validation error")
	}
	if !(Patch{}).IsEmpty() || (Patch{Title: ptr("x")}).IsEmpty() {
		t.Error("IsEmpty mismatch")
	}
}
