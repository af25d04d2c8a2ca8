package geo

import (
	"context"
	"testing"
)

func TestNoopProviderReturnsEmptyLocation(t *testing.T) {
	p := NoopProvider{}
	loc, err := p.Lookup(context.Background(), "203.0.113.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *loc != (Location{}) {
		t.Errorf("expected empty location, got %+v", loc)
	}
}

func TestHTTPProviderRejectsInvalidIP(t *testing.T) {
	p := NewHTTPProvider("http://example.invalid", "")
	if _, err := p.Lookup(context.Background(), "not-an-ip"); err == nil {
		t.Error("expected error for invalid IP")
	}
}
