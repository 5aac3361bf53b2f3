package security

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestRandomTokenGeneratorEntropyAndUniqueness(t *testing.T) {
	gen := NewRandomTokenGenerator()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok := gen.Generate()
		raw, err := base64.RawURLEncoding.DecodeString(tok)
		if err != nil {
			t.Fatalf("token is not base64url: %v", err)
		}
		if len(raw)*8 < 160 {
			t.Fatalf("expected at least 160 bits of entropy, got %d", len(raw)*8)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token generated: %s", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestTokenHasherDeterministicAndKeyed(t *testing.T) {
	a := NewTokenHasher("pepper-a")
	b := NewTokenHasher("pepper-b")

	if a.Hash("tok") != a.Hash("tok") {
		t.Fatal("hash must be deterministic")
	}
	if a.Hash("tok") == a.Hash("tok2") {
		t.Fatal("different tokens must hash differently")
	}
	if a.Hash("tok") == b.Hash("tok") {
		t.Fatal("hash must depend on the pepper")
	}
	if got := len(a.Hash("tok")); got != 64 {
		t.Fatalf("expected 64 hex chars, got %d", got)
	}
}

func TestTokenHasherLongPepper(t *testing.T) {
	h := NewTokenHasher(strings.Repeat("p", 200))
	if h.Hash("tok") == "" {
		t.Fatal("expected hash for long pepper")
	}
}

func FuzzTokenHasherNeverPanics(f *testing.F) {
	f.Add("", "")
	f.Add("pepper", "token")
	f.Add(strings.Repeat("k", 129), "x")

	f.Fuzz(func(t *testing.T, pepper, token string) {
		got := NewTokenHasher(pepper).Hash(token)
		if len(got) != 64 {
			t.Fatalf("unexpected hash length %d", len(got))
		}
	})
}
