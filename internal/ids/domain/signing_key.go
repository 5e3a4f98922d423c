package domain

import "time"

// SigningKey is a JWT signing key at rest. The private key PEM is sealed
// with AES-256-GCM before storage. A key signs while inside its validity
// window and not retired; it verifies until NotAfter, after which cleanup
// deletes it.
type SigningKey struct {
	ID               string // ULID
	Kid              string // key identifier published in JWKS
	Algorithm        string // RS256, ES256, or EdDSA
	PrivateKeySealed []byte // AES-256-GCM sealed private key PEM
	NotBefore        time.Time
	NotAfter         time.Time
	RetiredAt        *time.Time // nil while the key may sign
	CreatedAt        time.Time
}

// CanSign reports whether the key may mint new tokens at now.
func (k *SigningKey) CanSign(now time.Time) bool {
	return k.RetiredAt == nil && !now.Before(k.NotBefore) && now.Before(k.NotAfter)
}

// Expired reports whether the key left its verification window.
func (k *SigningKey) Expired(now time.Time) bool {
	return !now.Before(k.NotAfter)
}
