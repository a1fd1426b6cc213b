package postgres

import (
	"context"
	"strings"
	"testing"
)

func TestOpen_InvalidDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{DSN: "postgres://user@host:notaport/db"})
	if err == nil {
		t.Fatal("expected error for malformed DSN")
	}
	if !strings.Contains(err.Error(), "parse postgres dsn") {
		t.Errorf("unexpected error: %v", err)
	}
}
