package testfixtures

import "testing"

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("")
	if first, second := gen.Next(), gen.Next(); first != "0001" || second != "0002" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}

	gen.Reset()
	if next := gen.Next(); next != "0001" {
		t.Fatalf("expected 0001 after reset, got %q", next)
	}
}
