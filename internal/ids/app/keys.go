package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nobcorp/nobids/internal/ids/store"
	"github.com/nobcorp/nobids/pkg/cryptox"
	"github.com/nobcorp/nobids/pkg/jwtx"
)

// initSealer loads the master encryption key used for persisted signing keys
// and sealed TOTP secrets. Without a configured key file an ephemeral sealer
// is generated, which means sealed material does not survive a restart.
func initSealer(cfg Config, logger *slog.Logger) (*cryptox.Sealer, error) {
	if cfg.MasterKeyFile != "" {
		sealer, err := cryptox.NewSealerFromFile(cfg.MasterKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load master key: %w", err)
		}
		logger.Info("master key loaded", "path", cfg.MasterKeyFile)
		return sealer, nil
	}

	sealer, err := cryptox.NewEphemeralSealer()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral master key: %w", err)
	}
	logger.Warn("no master key file configured, sealed secrets will not survive restarts")
	return sealer, nil
}

// initKeys creates the signing key manager with the configured algorithm and
// storage mode.
//
// Storage modes:
//   - "ephemeral": Keys are generated on startup and stored only in memory.
//     All existing tokens become invalid when the service restarts.
//   - "persistent": Keys are stored in the database sealed with the master
//     key. Tokens survive service restarts and keys rotate with overlapping
//     validity windows.
//
// Supported algorithms: RS256, ES256, EdDSA
func initKeys(ctx context.Context, cfg Config, db store.Store, sealer *cryptox.Sealer, logger *slog.Logger) (*jwtx.KeyManager, *jwtx.PersistentKeyManager, error) {
	opts := jwtx.KeyManagerOptions{
		Algorithm:   cfg.Algorithm,
		Issuer:      cfg.Issuer,
		Audience:    nil, // tokens carry a per-client audience
		RSABits:     cfg.RSABits,
		KeyLifetime: cfg.KeyLifetime,
	}

	switch cfg.KeyMode {
	case "persistent":
		logger.Info("initializing persistent key manager",
			"algorithm", cfg.Algorithm,
			"key_lifetime", cfg.KeyLifetime,
		)

		keyManager, err := jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
			KeyManagerOptions: opts,
			Store:             store.NewSealedKeyStore(db.SigningKeys(), sealer),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize persistent key manager: %w", err)
		}

		logger.Info("persistent signing keys loaded",
			"algorithm", keyManager.Algorithm(),
			"issuer", cfg.Issuer,
		)
		return keyManager.KeyManager, keyManager, nil

	case "ephemeral":
		fallthrough
	default:
		logger.Info("initializing ephemeral key manager", "algorithm", cfg.Algorithm)

		keyManager, err := jwtx.NewEphemeralKeyManager(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
		}

		logger.Warn("ephemeral key mode, all previously issued tokens are now invalid")
		return keyManager, nil, nil
	}
}
