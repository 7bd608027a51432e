package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	hashKeyLength    = 32
	saltLength       = 16
	idLength         = 16
	tokenLength      = 32
)

// HashPassword derives a 256-bit PBKDF2/SHA-256 key from the password and
// salt. Deterministic: the same password and salt always yield the same hash.
func HashPassword(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, hashKeyLength, sha256.New)
	return hex.EncodeToString(key)
}

// VerifyPassword recomputes the hash and compares in constant time.
func VerifyPassword(password, salt, storedHash string) bool {
	computed := HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// GenerateSalt returns a 16-byte cryptographically random hex string.
func GenerateSalt() (string, error) {
	return randomHex(saltLength)
}

// GenerateID returns a 16-byte random hex identifier for entity rows.
func GenerateID() (string, error) {
	return randomHex(idLength)
}

// GenerateToken returns an n-byte random hex bearer token. The caller is
// expected to persist only HashToken(token); the plaintext exists exactly
// once, in the issuing response.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		n = tokenLength
	}
	return randomHex(n)
}

// HashToken is the one-way digest under which session and device tokens are
// stored. Tokens are never persisted in recoverable form.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// DeviceFingerprint derives a deterministic device identifier from the
// User-Agent and client-hint headers when the client supplies none.
func DeviceFingerprint(userAgent, clientHints string) string {
	return HashToken(userAgent + "|" + clientHints)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
