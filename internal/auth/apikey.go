// Package auth provides the API key primitives for the gateway: key generation,
// deterministic hashing, and hint derivation. The gateway stores only the SHA-256
// hash of a key — never the raw value. The hash is deterministic (unlike bcrypt)
// because it doubles as the lookup key for both the database row and the
// credential cache: the same raw key must always map to the same cache entry.
// Key strength therefore comes from the key's 256 bits of entropy, not from a
// slow hash.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const (
	// KeyPrefix is prepended to every generated key so leaked keys are
	// recognizable in logs and secret scanners.
	KeyPrefix = "znt"

	// KeyLength is the length of the random part of the key in bytes.
	KeyLength = 32

	// HintLength is the number of leading raw-key characters preserved as a
	// display hint. Everything past the hint is unrecoverable.
	HintLength = 4
)

// GenerateKey creates a new random API key.
// Returns the full key (shown once), its SHA-256 hash (stored), and the hint.
func GenerateKey() (key, hash, hint string, err error) {
	randomBytes := make([]byte, KeyLength)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	key = fmt.Sprintf("%s_%s", KeyPrefix, base64.RawURLEncoding.EncodeToString(randomBytes))
	return key, HashKey(key), Hint(key), nil
}

// HashKey returns the hex-encoded SHA-256 digest of a raw key.
func HashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// Hint returns a short, non-reversible prefix of a raw key suitable for logs
// and operator displays ("znt_..." style). Never log more than this.
func Hint(rawKey string) string {
	if len(rawKey) <= HintLength {
		return rawKey + "..."
	}
	return rawKey[:HintLength] + "..."
}

// HashHint returns a short prefix of a key hash for log correlation without
// exposing the full lookup value.
func HashHint(hash string) string {
	if len(hash) <= 8 {
		return hash
	}
	return hash[:8]
}
