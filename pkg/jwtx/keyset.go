package jwtx

import (
	"sync"
)

// KeySet holds the public verification keys in memory. Reads massively
// outnumber writes (every token verification versus rare rotations), so it is
// guarded by an RWMutex. Rotation never blocks concurrent verification for
// longer than the map swap.
type KeySet struct {
	mu   sync.RWMutex
	jwks map[string]JWK
	pub  map[string]any // kid -> *rsa.PublicKey | *ecdsa.PublicKey | ed25519.PublicKey
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{
		jwks: make(map[string]JWK),
		pub:  make(map[string]any),
	}
}

// AddSigner registers a signer's public JWK for verification.
func (k *KeySet) AddSigner(s Signer) error {
	return k.AddJWK(s.PublicJWK())
}

// AddJWK parses and registers a JWK. Re-adding an existing kid replaces it.
func (k *KeySet) AddJWK(j JWK) error {
	key, err := j.PublicKey()
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub[j.Kid] = key
	k.jwks[j.Kid] = j
	return nil
}

// Remove drops a kid from the verification set. Used when a key's validity
// window lapses; tokens signed with it stop verifying from that point.
func (k *KeySet) Remove(kid string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.pub, kid)
	delete(k.jwks, kid)
}

// Get returns the public key for kid.
func (k *KeySet) Get(kid string) (any, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, ErrUnknownKID
}

// Contains reports whether kid is in the verification set.
func (k *KeySet) Contains(kid string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.pub[kid]
	return ok
}

// PublicJWKS returns a snapshot of the key set for the JWKS endpoint.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := JWKS{Keys: make([]JWK, 0, len(k.jwks))}
	for _, j := range k.jwks {
		out.Keys = append(out.Keys, j)
	}
	return out
}

// Len returns the number of verification keys.
func (k *KeySet) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub)
}

// IsReady reports whether at least one verification key is loaded.
func (k *KeySet) IsReady() bool {
	return k.Len() > 0
}
