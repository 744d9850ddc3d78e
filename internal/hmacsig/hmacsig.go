package hmacsig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Sign computes the HMAC-SHA256 signature of the payload, formatted as
// "sha256=<hex>".
func Sign(payload []byte, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := mac.Write(payload); err != nil {
		return "", fmt.Errorf("failed to write payload to HMAC: %w", err)
	}
	return "sha256=" + hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks a "sha256=<hex>" signature header against the payload using
// a constant-time comparison.
func Verify(payload []byte, secret, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}
	expected, err := Sign(payload, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}
