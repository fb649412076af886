package migrate

import "testing"

func TestRun_EmptyDSN(t *testing.T) {
	if err := Run("", "up"); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestRun_BadDirection(t *testing.T) {
	if err := Run("postgres://localhost/portal", "sideways"); err == nil {
		t.Fatal("expected error for invalid direction")
	}
}
