package jwtx

import (
	"context"
	"fmt"
	"time"
)

// KeyRecord is the durable form of a managed key. PrivateKeyPEM holds the
// PKCS8 material as handed to the store; stores are expected to seal it at
// rest and unseal it on the way back.
type KeyRecord struct {
	ID            string
	Kid           string
	Algorithm     string
	PrivateKeyPEM []byte
	NotBefore     time.Time
	NotAfter      time.Time
	RetiredAt     *time.Time
}

// KeyStore persists signing keys across restarts so outstanding tokens
// survive a redeploy.
type KeyStore interface {
	// SaveKey stores a new key record.
	SaveKey(ctx context.Context, rec KeyRecord) error

	// ListKeys returns every stored key record, expired ones included.
	ListKeys(ctx context.Context) ([]KeyRecord, error)

	// RetireKey marks a key as no longer signing.
	RetireKey(ctx context.Context, kid string, at time.Time) error

	// DeleteKey removes a key record permanently.
	DeleteKey(ctx context.Context, kid string) error
}

// PersistentKeyManagerOptions configures NewPersistentKeyManager.
type PersistentKeyManagerOptions struct {
	KeyManagerOptions

	Store KeyStore
}

// PersistentKeyManager is a KeyManager whose keys live in a KeyStore.
// Rotation writes through to the store; pruning removes lapsed records.
type PersistentKeyManager struct {
	*KeyManager

	store    KeyStore
	rsaBits  int
	lifetime time.Duration
}

// NewPersistentKeyManager loads stored keys for the configured algorithm and
// generates an initial key when none can sign. Records whose window already
// lapsed are skipped on load; records for another algorithm are left in the
// store untouched so an operator can switch back.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*PersistentKeyManager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("jwtx: key store is required")
	}

	km, err := NewKeyManager(opts.KeyManagerOptions)
	if err != nil {
		return nil, err
	}

	lifetime := opts.KeyLifetime
	if lifetime <= 0 {
		lifetime = DefaultKeyLifetime
	}

	pkm := &PersistentKeyManager{
		KeyManager: km,
		store:      opts.Store,
		rsaBits:    opts.RSABits,
		lifetime:   lifetime,
	}

	records, err := opts.Store.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: load keys: %w", err)
	}

	now := time.Now().UTC()
	for _, rec := range records {
		if rec.Algorithm != opts.Algorithm {
			continue
		}
		if !now.Before(rec.NotAfter) {
			continue
		}
		signer, err := NewSigner(rec.Algorithm, rec.Kid, rec.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("jwtx: load key %s: %w", rec.Kid, err)
		}
		if err := km.AddKey(signer, rec.NotBefore, rec.NotAfter); err != nil {
			return nil, fmt.Errorf("jwtx: load key %s: %w", rec.Kid, err)
		}
		if rec.RetiredAt != nil {
			km.mu.Lock()
			if k, ok := km.keys[rec.Kid]; ok {
				at := rec.RetiredAt.UTC()
				k.RetiredAt = &at
			}
			km.mu.Unlock()
		}
	}

	if !km.IsReady() {
		if _, err := pkm.GenerateKey(ctx); err != nil {
			return nil, err
		}
	}
	return pkm, nil
}

// GenerateKey mints a fresh key valid from now, persists it, and activates
// it. Because it has the newest NotBefore it becomes the active signer
// immediately.
func (pkm *PersistentKeyManager) GenerateKey(ctx context.Context) (Signer, error) {
	pemKey, err := GenerateKeyPEM(pkm.algorithm, pkm.rsaBits)
	if err != nil {
		return nil, err
	}
	kid := NewKID()
	signer, err := NewSigner(pkm.algorithm, kid, pemKey)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := KeyRecord{
		Kid:           kid,
		Algorithm:     pkm.algorithm,
		PrivateKeyPEM: pemKey,
		NotBefore:     now,
		NotAfter:      now.Add(pkm.lifetime),
	}
	if err := pkm.store.SaveKey(ctx, rec); err != nil {
		return nil, fmt.Errorf("jwtx: persist key %s: %w", kid, err)
	}
	if err := pkm.AddKey(signer, rec.NotBefore, rec.NotAfter); err != nil {
		return nil, err
	}
	return signer, nil
}

// RetireKey writes the retirement through to the store after the in-memory
// guardrails pass.
func (pkm *PersistentKeyManager) RetireKey(ctx context.Context, kid string, at time.Time) error {
	if err := pkm.KeyManager.RetireKey(kid, at); err != nil {
		return err
	}
	return pkm.store.RetireKey(ctx, kid, at)
}

// PruneExpired drops lapsed keys from memory and deletes their records. The
// store is swept independently so records that never loaded, such as keys
// that lapsed before the last restart, are cleaned up as well.
func (pkm *PersistentKeyManager) PruneExpired(ctx context.Context, now time.Time) ([]string, error) {
	now = now.UTC()
	pruned := pkm.KeyManager.PruneExpired(now)

	records, err := pkm.store.ListKeys(ctx)
	if err != nil {
		return pruned, fmt.Errorf("jwtx: list keys: %w", err)
	}
	seen := make(map[string]bool, len(pruned))
	for _, kid := range pruned {
		seen[kid] = true
	}
	for _, rec := range records {
		if now.Before(rec.NotAfter) {
			continue
		}
		if err := pkm.store.DeleteKey(ctx, rec.Kid); err != nil {
			return pruned, fmt.Errorf("jwtx: delete key %s: %w", rec.Kid, err)
		}
		if !seen[rec.Kid] {
			pruned = append(pruned, rec.Kid)
			seen[rec.Kid] = true
		}
	}
	return pruned, nil
}
