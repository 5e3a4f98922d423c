package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/internal/ids/store"
	"github.com/nobcorp/nobids/pkg/cryptox"
	"github.com/nobcorp/nobids/pkg/idx"
	"github.com/nobcorp/nobids/pkg/slogx"
)

var (
	ErrBootstrapAlready      = errors.New("system already bootstrapped")
	ErrBootstrapUnauthorized = errors.New("unauthorized bootstrap attempt")
)

// Scopes every deployment carries. They make up the seed resource catalog
// together with whatever the bootstrap request adds.
var builtinScopes = []string{"openid", "profile", "ids.admin"}

// BootstrapService seeds an empty deployment exactly once: the scope
// catalog, the admin user and the first confidential client. The endpoint
// is gated by a pre-shared token sourced from config.
type BootstrapService struct {
	Store store.Store
	Token string
}

// BootstrapData is what the one-shot seed creates.
type BootstrapData struct {
	AdminUsername      string
	AdminPreferredName string
	AdminPassword      string
	ClientName         string
	ClientRedirectURIs []string
	ClientScopes       []string
}

// IsBootstrapped reports whether the seed already ran.
func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	usersEmpty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	clientsEmpty, err := s.Store.Clients().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return !usersEmpty && !clientsEmpty, nil
}

// Bootstrap seeds the deployment and returns the admin user id, the client
// id and the client secret. The secret is shown exactly once.
func (s *BootstrapService) Bootstrap(ctx context.Context, token string, req BootstrapData) (adminUserID, clientID, clientSecret string, err error) {
	l := slogx.FromContext(ctx)

	if bootstrapped, err := s.IsBootstrapped(ctx); err != nil {
		return "", "", "", err
	} else if bootstrapped {
		l.Warn("attempted bootstrap on already-bootstrapped system")
		return "", "", "", ErrBootstrapAlready
	}

	if s.Token == "" || token != s.Token {
		l.Warn("unauthorized bootstrap attempt")
		return "", "", "", ErrBootstrapUnauthorized
	}

	passHash, err := cryptox.HashPassword(req.AdminPassword)
	if err != nil {
		return "", "", "", err
	}

	clientSecret, err = cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", "", "", err
	}
	secretHash, err := cryptox.HashPassword(clientSecret)
	if err != nil {
		return "", "", "", err
	}

	adminUserID = idx.New().String()
	clientID = idx.New().String()

	clientScopes := req.ClientScopes
	if len(clientScopes) == 0 {
		clientScopes = builtinScopes
	}
	catalog := dedupe(append(append([]string{}, builtinScopes...), clientScopes...))

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Resources().CreateResource(ctx, domain.Resource{
			ID:          idx.New().String(),
			Name:        "identity",
			DisplayName: "Identity Provider",
			Scopes:      catalog,
		}); err != nil {
			return err
		}

		if err := tx.Users().CreateUser(ctx, domain.User{
			ID:            adminUserID,
			Username:      req.AdminUsername,
			PreferredName: req.AdminPreferredName,
			PasswordHash:  passHash,
		}); err != nil {
			return err
		}

		return tx.Clients().CreateClient(ctx, domain.Client{
			ID:           clientID,
			Name:         req.ClientName,
			SecretHash:   secretHash,
			RedirectURIs: req.ClientRedirectURIs,
			GrantTypes: []string{
				domain.GrantAuthorizationCode,
				domain.GrantRefreshToken,
				domain.GrantClientCredentials,
			},
			Scopes:    clientScopes,
			Protected: true,
		})
	})
	if err != nil {
		l.Error("bootstrap failed", slog.Any("error", err))
		return "", "", "", err
	}

	l.Info("system bootstrapped",
		slog.String("admin_user_id", adminUserID),
		slog.String("client_id", clientID),
	)
	return adminUserID, clientID, clientSecret, nil
}
