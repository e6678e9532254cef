package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// urlSafeChars is the unreserved character set from RFC 7636 §4.1.
const urlSafeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-._~"

// randomURLSafeString returns a cryptographically random string of the given
// length drawn from the PKCE unreserved alphabet.
func randomURLSafeString(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = urlSafeChars[int(b)%len(urlSafeChars)]
	}
	return string(out), nil
}

// pkceChallenge computes the S256 code challenge for a verifier:
// base64url(sha256(verifier)) without padding.
func pkceChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
