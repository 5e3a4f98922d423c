package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/pkg/cryptox"
	"github.com/nobcorp/nobids/pkg/idx"
	"github.com/nobcorp/nobids/pkg/jwtx"
)

// SealedKeyStore adapts the signing-key repository to jwtx.KeyStore, sealing
// private key PEM on the way in and unsealing on the way out. Key material
// therefore never touches disk in the clear.
type SealedKeyStore struct {
	keys   SigningKeys
	sealer *cryptox.Sealer
}

// NewSealedKeyStore wires a signing-key repository to the master-key sealer.
func NewSealedKeyStore(keys SigningKeys, sealer *cryptox.Sealer) *SealedKeyStore {
	return &SealedKeyStore{keys: keys, sealer: sealer}
}

func (s *SealedKeyStore) SaveKey(ctx context.Context, rec jwtx.KeyRecord) error {
	sealed, err := s.sealer.Seal(rec.PrivateKeyPEM)
	if err != nil {
		return fmt.Errorf("seal signing key: %w", err)
	}
	return s.keys.CreateSigningKey(ctx, domain.SigningKey{
		ID:               string(idx.New()),
		Kid:              rec.Kid,
		Algorithm:        rec.Algorithm,
		PrivateKeySealed: sealed,
		NotBefore:        rec.NotBefore,
		NotAfter:         rec.NotAfter,
		RetiredAt:        rec.RetiredAt,
	})
}

func (s *SealedKeyStore) ListKeys(ctx context.Context) ([]jwtx.KeyRecord, error) {
	keys, err := s.keys.ListAllSigningKeys(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]jwtx.KeyRecord, 0, len(keys))
	for _, k := range keys {
		pemKey, err := s.sealer.Open(k.PrivateKeySealed)
		if err != nil {
			return nil, fmt.Errorf("unseal signing key %s: %w", k.Kid, err)
		}
		records = append(records, jwtx.KeyRecord{
			ID:            k.ID,
			Kid:           k.Kid,
			Algorithm:     k.Algorithm,
			PrivateKeyPEM: pemKey,
			NotBefore:     k.NotBefore,
			NotAfter:      k.NotAfter,
			RetiredAt:     k.RetiredAt,
		})
	}
	return records, nil
}

func (s *SealedKeyStore) RetireKey(ctx context.Context, kid string, at time.Time) error {
	return s.keys.RetireSigningKey(ctx, kid, at)
}

func (s *SealedKeyStore) DeleteKey(ctx context.Context, kid string) error {
	return s.keys.DeleteSigningKeyByKid(ctx, kid)
}
