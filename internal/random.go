package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const refreshSecretSize = 32

// NewRefreshSecret returns 32 bytes of cryptographically secure random
// material for a refresh token.
func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// EncodeRefreshToken renders a refresh secret as the opaque wire string
// handed to clients: base64url, no padding.
func EncodeRefreshToken(secret [refreshSecretSize]byte) string {
	return base64.RawURLEncoding.EncodeToString(secret[:])
}

// DecodeRefreshToken parses the wire form back into secret bytes. Invalid
// input returns an error; callers map it to their generic token rejection.
func DecodeRefreshToken(token string) ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return secret, err
	}
	if len(raw) != refreshSecretSize {
		return secret, errors.New("invalid refresh token size")
	}

	copy(secret[:], raw)
	return secret, nil
}

// HashRawToken is the storage key derivation: SHA-256 over the wire form of
// the token, hex encoded. Raw secrets are high-entropy, so a fast
// non-reversible hash is sufficient (unlike passwords).
func HashRawToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
