package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	signed, err := Sign([]byte("usr_1:abc123"), "top-secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	payload, err := Verify(signed, "top-secret")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if string(payload) != "usr_1:abc123" {
		t.Fatalf("expected payload round trip, got %q", string(payload))
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	signed, err := Sign([]byte("usr_1:abc123"), "secret-a")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify(signed, "secret-b"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	signed, err := Sign([]byte("usr_1:abc123"), "top-secret")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	encoded, signature, _ := strings.Cut(signed, ".")

	forged := base64.RawURLEncoding.EncodeToString([]byte("usr_2:abc123"))
	if _, err := Verify(forged+"."+signature, "top-secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected forged payload rejection, got %v", err)
	}
	_ = encoded
}

func TestVerify_UniformRejectionForMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":             "",
		"no separator":      "justonechunk",
		"bad base64":        "!!!.deadbeef",
		"bad hex signature": base64.RawURLEncoding.EncodeToString([]byte("usr_1:n")) + ".zzzz",
		"missing signature": base64.RawURLEncoding.EncodeToString([]byte("usr_1:n")) + ".",
	}
	for name, input := range cases {
		if _, err := Verify(input, "top-secret"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestSign_RequiresSecretAndPayload(t *testing.T) {
	if _, err := Sign([]byte("payload"), "  "); err == nil {
		t.Fatalf("expected error for blank secret")
	}
	if _, err := Sign(nil, "secret"); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestNonce_Unique(t *testing.T) {
	first, err := Nonce()
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	second, err := Nonce()
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct nonces")
	}
}
