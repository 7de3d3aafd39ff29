package guuid

import (
	"testing"
	"time"
)

func TestNewIsRandomAndNonZero(t *testing.T) {
	a, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if a.IsZero() {
		t.Error("New should not return a zero GUUID")
	}
	if a.Equal(b) {
		t.Error("two calls to New should not collide")
	}
}

func TestNewTransferIDTimestamp(t *testing.T) {
	before := time.Now()
	g, err := NewTransferID()
	if err != nil {
		t.Fatalf("NewTransferID: %v", err)
	}
	after := time.Now()

	ts := g.Timestamp()
	if ts.Before(before.Add(-time.Second)) || ts.After(after.Add(time.Second)) {
		t.Errorf("embedded timestamp %v not within [%v, %v]", ts, before, after)
	}
}

func TestStringRoundTrip(t *testing.T) {
	g, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	parsed, err := FromString(g.String())
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	if !parsed.Equal(g) {
		t.Errorf("round trip mismatch: got %s, want %s", parsed, g)
	}

	hyphenated, err := FromString(g.StringWithHyphens())
	if err != nil {
		t.Fatalf("FromString(hyphenated): %v", err)
	}
	if !hyphenated.Equal(g) {
		t.Errorf("hyphenated round trip mismatch: got %s, want %s", hyphenated, g)
	}
}

func TestFromStringInvalidLength(t *testing.T) {
	if _, err := FromString("not-a-guuid"); err == nil {
		t.Error("expected error for invalid GUUID string")
	}
}

func TestZero(t *testing.T) {
	if !Zero().IsZero() {
		t.Error("Zero() should be zero-valued")
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	g, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text, err := g.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var parsed GUUID
	if err := parsed.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if !parsed.Equal(g) {
		t.Errorf("unmarshal mismatch: got %s, want %s", parsed, g)
	}
}
