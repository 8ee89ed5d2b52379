// Package token implements the compact signed bearer token format shared by
// save sessions and continue tokens:
//
//	base64url(payload) + "." + hex(HMAC-SHA256(payload, secret))
//
// The codec is pure: no I/O, no clock, no storage. Rejections are uniform so
// callers cannot tell a bad signature from a malformed token.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidToken is the single rejection for every verification failure:
// malformed structure, decode failure, or signature mismatch. No partial
// success information ever leaks.
var ErrInvalidToken = errors.New("token: invalid token")

// Sign binds payload to secret and returns the wire form.
func Sign(payload []byte, secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", fmt.Errorf("token: signing secret is required")
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("token: payload is required")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	signature := hex.EncodeToString(mac.Sum(nil))
	return base64.RawURLEncoding.EncodeToString(payload) + "." + signature, nil
}

// Verify recomputes the HMAC over the decoded payload and compares it in
// constant time. On success it returns the payload bytes.
func Verify(tokenValue, secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("token: verification secret is required")
	}
	encodedPayload, signature, ok := strings.Cut(strings.TrimSpace(tokenValue), ".")
	if !ok || encodedPayload == "" || signature == "" {
		return nil, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return nil, ErrInvalidToken
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return nil, ErrInvalidToken
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return nil, ErrInvalidToken
	}
	return payload, nil
}

// Nonce returns a url-safe random string for token payloads.
func Nonce() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("token: generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
