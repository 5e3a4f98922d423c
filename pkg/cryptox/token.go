// Package cryptox holds the cryptographic primitives the identity server
// depends on: opaque token generation and fingerprinting, argon2id password
// hashing, signing-key generation, and at-rest key encryption.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Opaque token entropy sizes in bytes before base64url encoding.
const (
	// TokenSize128 (16 bytes) suits short-lived artifacts such as
	// authorization codes and correlation ids.
	TokenSize128 = 16
	// TokenSize256 (32 bytes) suits refresh tokens and API credentials.
	TokenSize256 = 32
)

// GenerateToken returns size bytes of CSPRNG output as a base64url string
// without padding.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: token size must be positive, got %d", size)
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustGenerateToken is GenerateToken that panics on CSPRNG failure. Only for
// initialization paths where there is no recovery anyway.
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic(err)
	}
	return token
}

// FingerprintToken returns the base64url SHA-256 digest of token. Codes and
// refresh tokens are persisted only as fingerprints so a leaked database
// never yields redeemable secrets.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
