package internal

import (
	"strings"
	"testing"
)

func TestRefreshTokenRoundTrip(t *testing.T) {
	secret, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret failed: %v", err)
	}

	encoded := EncodeRefreshToken(secret)
	if strings.ContainsAny(encoded, "+/=") {
		t.Fatalf("wire form must be unpadded base64url: %q", encoded)
	}

	decoded, err := DecodeRefreshToken(encoded)
	if err != nil {
		t.Fatalf("DecodeRefreshToken failed: %v", err)
	}
	if decoded != secret {
		t.Fatal("decode must invert encode")
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := []string{
		"",
		"not base64!!",
		"dG9vLXNob3J0",
		strings.Repeat("A", 100),
	}
	for _, tok := range cases {
		if _, err := DecodeRefreshToken(tok); err == nil {
			t.Errorf("expected error for %q", tok)
		}
	}
}

func TestSecretsAreUnique(t *testing.T) {
	a, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret failed: %v", err)
	}
	b, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret failed: %v", err)
	}
	if a == b {
		t.Fatal("two secrets must differ")
	}
}

func TestHashRawToken(t *testing.T) {
	h := HashRawToken("some-token")
	if len(h) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(h))
	}
	if h != HashRawToken("some-token") {
		t.Fatal("hash must be deterministic")
	}
	if h == HashRawToken("some-other-token") {
		t.Fatal("distinct inputs must not collide")
	}
}
