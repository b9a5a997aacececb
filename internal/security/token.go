package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const tokenSecretBytes = 32

// NewTokenSecret returns a fresh opaque bearer secret. 32 bytes of
// crypto/rand, raw-URL base64 so it survives headers unescaped.
func NewTokenSecret() (string, error) {
	buf := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashTokenSecret derives the storage key for a secret. The pepper keeps a
// leaked tokens table from being directly replayable.
func HashTokenSecret(secret, pepper string) string {
	sum := sha256.Sum256([]byte(secret + pepper))
	return hex.EncodeToString(sum[:])
}
