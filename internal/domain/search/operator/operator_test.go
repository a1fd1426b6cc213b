package operator

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Operator
		wantErr bool
	}{
		{"", Or, false},
		{"and", And, false},
		{"or", Or, false},
		{"AND", "", true},
		{"xor", "", true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in, Or)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsValid(t *testing.T) {
	if !And.IsValid() || !Or.IsValid() {
		t.Error("And and Or must be valid")
	}
	if Operator("not").IsValid() {
		t.Error("unexpected valid operator")
	}
}
