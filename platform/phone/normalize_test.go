package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	got, err := NormalizeE164("(415) 555-2671", "US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "+14155552671" {
		t.Fatalf("expected +14155552671, got %s", got)
	}

	got, err = NormalizeE164("+31 20 794 9090", "")
	if err != nil {
		t.Fatalf("unexpected error for international number: %v", err)
	}
	if got != "+31207949090" {
		t.Fatalf("expected +31207949090, got %s", got)
	}
}

func TestNormalizeE164RejectsGarbage(t *testing.T) {
	if _, err := NormalizeE164("   ", "US"); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := NormalizeE164("12", "US"); err == nil {
		t.Fatalf("expected error for invalid number")
	}
}
