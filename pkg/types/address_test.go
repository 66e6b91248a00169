package types

import "testing"

func TestAddressValidateAndNormalize(t *testing.T) {
	empty := Address{}
	if !empty.IsEmpty() {
		t.Fatalf("zero address should be empty")
	}
	if err := empty.Validate(); err == nil {
		t.Fatalf("expected validation error for empty address")
	}

	addr := Address{Line1: " 12 MG Road ", City: "Bengaluru", PostalCode: "560001"}
	if err := addr.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	norm := addr.Normalized()
	if norm.Line1 != "12 MG Road" {
		t.Fatalf("expected trimmed line1, got %q", norm.Line1)
	}
	if norm.Country != "IN" {
		t.Fatalf("expected default country, got %q", norm.Country)
	}
}
