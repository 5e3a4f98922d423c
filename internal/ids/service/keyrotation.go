package service

import (
	"context"
	"time"

	"github.com/nobcorp/nobids/pkg/jwtx"
	"github.com/nobcorp/nobids/pkg/slogx"
)

// KeyRotationService mints and retires signing keys at runtime. Manager is
// always set; Persistent is additionally set when keys are database-backed,
// so rotations write through and survive restarts.
type KeyRotationService struct {
	Manager    *jwtx.KeyManager
	Persistent *jwtx.PersistentKeyManager

	// RSABits and Lifetime apply to keys generated in ephemeral mode. The
	// persistent manager carries its own.
	RSABits  int
	Lifetime time.Duration
}

// KeyInfo is the public view of a managed key.
type KeyInfo struct {
	Kid       string     `json:"kid"`
	Algorithm string     `json:"algorithm"`
	NotBefore time.Time  `json:"not_before"`
	NotAfter  time.Time  `json:"not_after"`
	RetiredAt *time.Time `json:"retired_at,omitempty"`
	Signing   bool       `json:"signing"`
}

// RotateKey activates a freshly generated key. The new key signs from now
// on; prior keys keep verifying until their windows lapse. With
// retireExisting set, every previously signable key is retired immediately
// instead of waiting for the new key to outrank it.
func (s *KeyRotationService) RotateKey(ctx context.Context, retireExisting bool) (KeyInfo, []string, error) {
	l := slogx.FromContext(ctx)
	now := time.Now().UTC()

	var previous []string
	for _, key := range s.Manager.Keys() {
		if key.RetiredAt == nil && !now.Before(key.NotBefore) && now.Before(key.NotAfter) {
			previous = append(previous, key.Signer.KID())
		}
	}

	var newKid string
	if s.Persistent != nil {
		signer, err := s.Persistent.GenerateKey(ctx)
		if err != nil {
			return KeyInfo{}, nil, err
		}
		newKid = signer.KID()
	} else {
		pemKey, err := jwtx.GenerateKeyPEM(s.Manager.Algorithm(), s.RSABits)
		if err != nil {
			return KeyInfo{}, nil, err
		}
		signer, err := jwtx.NewSigner(s.Manager.Algorithm(), jwtx.NewKID(), pemKey)
		if err != nil {
			return KeyInfo{}, nil, err
		}
		lifetime := s.Lifetime
		if lifetime <= 0 {
			lifetime = jwtx.DefaultKeyLifetime
		}
		if err := s.Manager.AddKey(signer, now, now.Add(lifetime)); err != nil {
			return KeyInfo{}, nil, err
		}
		newKid = signer.KID()
	}

	var retired []string
	if retireExisting {
		for _, kid := range previous {
			if err := s.retire(ctx, kid, now); err != nil {
				l.Warn("failed to retire key during rotation", "kid", kid, "error", err)
				continue
			}
			retired = append(retired, kid)
		}
	}

	l.Info("signing key rotated", "kid", newKid, "retired", retired)

	info, _ := s.lookup(newKid)
	return info, retired, nil
}

// ListKeys returns every key the manager holds, retired ones included.
func (s *KeyRotationService) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	now := time.Now().UTC()
	keys := s.Manager.Keys()
	out := make([]KeyInfo, 0, len(keys))
	for _, key := range keys {
		out = append(out, KeyInfo{
			Kid:       key.Signer.KID(),
			Algorithm: key.Signer.Alg(),
			NotBefore: key.NotBefore,
			NotAfter:  key.NotAfter,
			RetiredAt: key.RetiredAt,
			Signing:   key.RetiredAt == nil && !now.Before(key.NotBefore) && now.Before(key.NotAfter),
		})
	}
	return out, nil
}

// RetireKey stops a key from signing. It keeps verifying until NotAfter.
func (s *KeyRotationService) RetireKey(ctx context.Context, kid string) error {
	return s.retire(ctx, kid, time.Now().UTC())
}

func (s *KeyRotationService) retire(ctx context.Context, kid string, at time.Time) error {
	if s.Persistent != nil {
		return s.Persistent.RetireKey(ctx, kid, at)
	}
	return s.Manager.RetireKey(kid, at)
}

func (s *KeyRotationService) lookup(kid string) (KeyInfo, bool) {
	now := time.Now().UTC()
	for _, key := range s.Manager.Keys() {
		if key.Signer.KID() != kid {
			continue
		}
		return KeyInfo{
			Kid:       kid,
			Algorithm: key.Signer.Alg(),
			NotBefore: key.NotBefore,
			NotAfter:  key.NotAfter,
			RetiredAt: key.RetiredAt,
			Signing:   key.RetiredAt == nil && !now.Before(key.NotBefore) && now.Before(key.NotAfter),
		}, true
	}
	return KeyInfo{}, false
}
