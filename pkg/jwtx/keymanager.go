package jwtx

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nobcorp/nobids/pkg/cryptox"
)

// ErrKeyUnavailable means no key is currently valid for signing. Fatal at
// startup; if it surfaces later it still means no new token can be issued.
var ErrKeyUnavailable = errors.New("jwtx: no valid signing key available")

// ErrLastSigningKey means a retire would leave nothing to sign with.
var ErrLastSigningKey = errors.New("jwtx: cannot retire the last signing key")

// DefaultKeyLifetime bounds how long a generated key stays valid for
// verification. Rotation should happen well before this lapses.
const DefaultKeyLifetime = 90 * 24 * time.Hour

// ManagedKey is a signing key plus its validity window. A key signs only
// while inside its window and not retired; it verifies until NotAfter.
type ManagedKey struct {
	Signer    Signer
	NotBefore time.Time
	NotAfter  time.Time
	RetiredAt *time.Time
}

func (k *ManagedKey) canSign(now time.Time) bool {
	return k.RetiredAt == nil && !now.Before(k.NotBefore) && now.Before(k.NotAfter)
}

func (k *ManagedKey) expired(now time.Time) bool {
	return !now.Before(k.NotAfter)
}

// KeyManager owns the signing keys of the issuer. Multiple keys may be valid
// simultaneously during rotation overlap; only the most recently activated
// signs new tokens, while every non-expired key remains verifiable through
// the shared KeySet. All methods are safe for concurrent use and reads never
// block behind signing-path lookups.
type KeyManager struct {
	mu        sync.RWMutex
	keys      map[string]*ManagedKey
	keyset    *KeySet
	verifier  Verifier
	algorithm string
}

// KeyManagerOptions configures a KeyManager.
type KeyManagerOptions struct {
	// Algorithm is the signing algorithm: RS256, ES256, or EdDSA.
	Algorithm string

	// Issuer is enforced as the iss claim during verification.
	Issuer string

	// Audience values enforced during verification. Empty means no audience
	// check (tokens carry a per-client audience).
	Audience []string

	// RSABits is the RSA modulus size for RS256. Defaults to 4096.
	RSABits int

	// KeyLifetime is the validity window applied to generated keys.
	// Defaults to DefaultKeyLifetime.
	KeyLifetime time.Duration
}

// NewKeyManager returns an empty manager. Callers must add at least one key
// before issuance; ActiveSigner reports ErrKeyUnavailable until then.
func NewKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	switch opts.Algorithm {
	case AlgorithmRS256, AlgorithmES256, AlgorithmEdDSA:
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256, EdDSA)", opts.Algorithm)
	}
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: issuer is required")
	}

	keyset := NewKeySet()
	return &KeyManager{
		keys:      make(map[string]*ManagedKey),
		keyset:    keyset,
		verifier:  NewVerifier(keyset, opts.Algorithm, opts.Issuer, opts.Audience),
		algorithm: opts.Algorithm,
	}, nil
}

// NewEphemeralKeyManager builds a manager with one freshly generated key that
// exists only in memory. Every outstanding token dies with a restart, which
// is fine for development and tests.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	km, err := NewKeyManager(opts)
	if err != nil {
		return nil, err
	}

	pemKey, err := GenerateKeyPEM(opts.Algorithm, opts.RSABits)
	if err != nil {
		return nil, err
	}
	signer, err := NewSigner(opts.Algorithm, NewKID(), pemKey)
	if err != nil {
		return nil, err
	}

	lifetime := opts.KeyLifetime
	if lifetime <= 0 {
		lifetime = DefaultKeyLifetime
	}
	now := time.Now().UTC()
	if err := km.AddKey(signer, now, now.Add(lifetime)); err != nil {
		return nil, err
	}
	return km, nil
}

// Algorithm returns the signing algorithm in use.
func (km *KeyManager) Algorithm() string { return km.algorithm }

// KeySet exposes the verification key set for JWKS publishing.
func (km *KeyManager) KeySet() *KeySet { return km.keyset }

// Verifier returns the verifier bound to this manager's key set.
func (km *KeyManager) Verifier() Verifier { return km.verifier }

// IsReady reports whether at least one key can currently sign.
func (km *KeyManager) IsReady() bool {
	_, err := km.ActiveSigner()
	return err == nil
}

// ActiveSigner returns the signer that currently mints tokens: the
// most-recently-activated key whose window covers now and that has not been
// retired. Returns ErrKeyUnavailable when none qualifies.
func (km *KeyManager) ActiveSigner() (Signer, error) {
	now := time.Now().UTC()

	km.mu.RLock()
	defer km.mu.RUnlock()

	var best *ManagedKey
	for _, k := range km.keys {
		if !k.canSign(now) {
			continue
		}
		if best == nil || k.NotBefore.After(best.NotBefore) {
			best = k
		}
	}
	if best == nil {
		return nil, ErrKeyUnavailable
	}
	return best.Signer, nil
}

// AddKey registers a signer with its validity window and publishes its public
// key for verification.
func (km *KeyManager) AddKey(signer Signer, notBefore, notAfter time.Time) error {
	if signer == nil {
		return errors.New("jwtx: nil signer")
	}
	if signer.Alg() != km.algorithm {
		return fmt.Errorf("jwtx: signer algorithm %s does not match manager algorithm %s", signer.Alg(), km.algorithm)
	}
	if !notAfter.After(notBefore) {
		return errors.New("jwtx: key validity window is empty")
	}

	if err := km.keyset.AddSigner(signer); err != nil {
		return err
	}

	km.mu.Lock()
	defer km.mu.Unlock()
	km.keys[signer.KID()] = &ManagedKey{
		Signer:    signer,
		NotBefore: notBefore.UTC(),
		NotAfter:  notAfter.UTC(),
	}
	return nil
}

// RetireKey stops a key from signing while keeping it in the verification set
// until its window lapses. Retiring the only signable key is refused.
func (km *KeyManager) RetireKey(kid string, at time.Time) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	key, ok := km.keys[kid]
	if !ok {
		return fmt.Errorf("jwtx: kid %q: %w", kid, ErrUnknownKID)
	}
	if key.RetiredAt != nil {
		return nil
	}

	now := time.Now().UTC()
	signable := 0
	for _, k := range km.keys {
		if k.canSign(now) {
			signable++
		}
	}
	if signable <= 1 && key.canSign(now) {
		return ErrLastSigningKey
	}

	at = at.UTC()
	key.RetiredAt = &at
	return nil
}

// PruneExpired drops every key whose NotAfter has passed from both the
// manager and the verification set. Tokens signed with a pruned key stop
// verifying, which is the contract of the validity window. Returns the
// pruned kids.
func (km *KeyManager) PruneExpired(now time.Time) []string {
	now = now.UTC()

	km.mu.Lock()
	var pruned []string
	for kid, k := range km.keys {
		if k.expired(now) {
			delete(km.keys, kid)
			pruned = append(pruned, kid)
		}
	}
	km.mu.Unlock()

	for _, kid := range pruned {
		km.keyset.Remove(kid)
	}
	return pruned
}

// Keys returns a snapshot of all managed keys, newest activation first being
// unspecified; callers sort as needed.
func (km *KeyManager) Keys() []ManagedKey {
	km.mu.RLock()
	defer km.mu.RUnlock()
	out := make([]ManagedKey, 0, len(km.keys))
	for _, k := range km.keys {
		out = append(out, *k)
	}
	return out
}

// GenerateKeyPEM produces fresh PKCS8 key material for the given algorithm.
func GenerateKeyPEM(algorithm string, rsaBits int) ([]byte, error) {
	switch algorithm {
	case AlgorithmRS256:
		if rsaBits == 0 {
			rsaBits = 4096
		}
		return cryptox.GenerateRSAKey(rsaBits)
	case AlgorithmES256:
		return cryptox.GenerateES256Key()
	case AlgorithmEdDSA:
		return cryptox.GenerateEd25519Key()
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", algorithm)
	}
}

// NewKID returns a random key identifier with 128 bits of entropy.
func NewKID() string {
	return "ids-" + cryptox.MustGenerateToken(cryptox.TokenSize128)
}
