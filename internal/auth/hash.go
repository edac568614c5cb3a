package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
)

// QuickHash creates a fast non-reversible digest for cache keys and log
// attributes. It is not suitable for storing secrets.
func QuickHash(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16]) // Use first 16 bytes (32 hex chars)
}

const webhookSecretLen = 32

// WebhookSecret derives the per-bot secret_token the chat platform echoes on
// every webhook delivery. Returns "" when no key is configured.
func WebhookSecret(key []byte, botCredential string) string {
	if len(key) == 0 {
		return ""
	}

	r := hkdf.New(sha256.New, key, nil, []byte("laissez-webhook:"+botCredential))
	buf := make([]byte, 24) // 24 bytes -> 32 base64url chars
	if _, err := io.ReadFull(r, buf); err != nil {
		// hkdf only fails past 255 hash lengths of output.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:webhookSecretLen]
}

// CheckWebhookSecret reports whether got matches the derived secret.
// Always true when no key is configured.
func CheckWebhookSecret(key []byte, botCredential, got string) bool {
	want := WebhookSecret(key, botCredential)
	if want == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
