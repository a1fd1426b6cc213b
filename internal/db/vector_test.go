package db

import "testing"

func TestEncodeVector_Layout(t *testing.T) {
	got := EncodeVector([]float32{1})
	want := "\x00\x00\x80\x3f"
	if got != want {
		t.Errorf("EncodeVector(1) = %q, want %q", got, want)
	}
}

func TestDecodeVector(t *testing.T) {
	in := []float32{0.5, -2, 0}
	out, err := DecodeVector(EncodeVector(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}

	if _, err := DecodeVector("abc"); err == nil {
		t.Error("expected error for truncated blob")
	}
}
