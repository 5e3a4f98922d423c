package service

import (
	"context"
	"errors"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/internal/ids/store"
	"github.com/nobcorp/nobids/pkg/cryptox"
	"github.com/nobcorp/nobids/pkg/idx"
	"github.com/nobcorp/nobids/pkg/slogx"
)

var (
	ErrClientNotFound  = errors.New("client not found")
	ErrClientProtected = errors.New("client is protected and cannot be deleted")
	ErrInvalidRedirect = errors.New("invalid_redirect_uri")
)

// RegistryService owns client registration and the scope catalog.
type RegistryService struct {
	Store store.Store
}

// LookupClient fetches a client by id, mapping missing rows to
// ErrInvalidClient so callers never leak store errors to the wire.
func (s *RegistryService) LookupClient(ctx context.Context, clientID string) (domain.Client, error) {
	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Client{}, ErrInvalidClient
		}
		return domain.Client{}, err
	}
	return client, nil
}

// ValidateRedirectURI checks the redirect against the client's registered
// set. Matching is exact byte equality, never prefix or wildcard. Callers
// must fail closed on error and never redirect to the unvalidated URI.
func (s *RegistryService) ValidateRedirectURI(client domain.Client, redirectURI string) error {
	if redirectURI == "" || !client.AllowsRedirectURI(redirectURI) {
		return ErrInvalidRedirect
	}
	return nil
}

// ResolveScopes applies the grant policy to a requested scope set:
//
//   - a scope no resource in the catalog declares is an error
//   - a catalog scope the client is not allowed is silently dropped
//   - an empty result after filtering is an error
//
// An empty request defaults to the client's full allowed set, still
// filtered through the catalog.
func (s *RegistryService) ResolveScopes(ctx context.Context, client domain.Client, requested []string) ([]string, error) {
	catalog, err := s.catalogScopes(ctx)
	if err != nil {
		return nil, err
	}

	if len(requested) == 0 {
		requested = client.Scopes
	}

	var granted []string
	for _, scope := range dedupe(requested) {
		if _, ok := catalog[scope]; !ok {
			return nil, ErrInvalidScope
		}
		if !client.AllowsScope(scope) {
			continue
		}
		granted = append(granted, scope)
	}
	if len(granted) == 0 {
		return nil, ErrInvalidScope
	}
	return granted, nil
}

func (s *RegistryService) catalogScopes(ctx context.Context) (map[string]struct{}, error) {
	resources, err := s.Store.Resources().ListResources(ctx)
	if err != nil {
		return nil, err
	}
	catalog := make(map[string]struct{})
	for _, r := range resources {
		for _, scope := range r.Scopes {
			catalog[scope] = struct{}{}
		}
	}
	return catalog, nil
}

// CreateClient registers a new OAuth2 client. Confidential clients get a
// generated secret returned exactly once; only its argon2 hash is stored.
func (s *RegistryService) CreateClient(
	ctx context.Context,
	name string,
	confidential bool,
	redirectURIs, grantTypes, scopes []string,
) (clientID, plaintextSecret string, err error) {
	l := slogx.FromContext(ctx)

	var secretHash string
	if confidential {
		secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return "", "", err
		}
		plaintextSecret = secret

		secretHash, err = cryptox.HashPassword(secret)
		if err != nil {
			return "", "", err
		}
	}

	if len(grantTypes) == 0 {
		grantTypes = []string{domain.GrantAuthorizationCode, domain.GrantRefreshToken}
	}

	clientID = idx.New().String()
	err = s.Store.Clients().CreateClient(ctx, domain.Client{
		ID:           clientID,
		Name:         name,
		SecretHash:   secretHash,
		RedirectURIs: redirectURIs,
		GrantTypes:   grantTypes,
		Scopes:       scopes,
		RequirePKCE:  !confidential,
		Protected:    false,
	})
	if err != nil {
		l.Error("failed to create client", "error", err)
		return "", "", err
	}

	l.Info("client created", "client_id", clientID, "name", name, "confidential", confidential)
	return clientID, plaintextSecret, nil
}

// ListClients returns all registered clients.
func (s *RegistryService) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.Store.Clients().ListClients(ctx)
}

// UpdateClientScopes replaces a client's allowed scope set. Existing
// consents for the client are withdrawn so users re-approve against the
// new set on their next authorization.
func (s *RegistryService) UpdateClientScopes(ctx context.Context, clientID string, scopes []string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		client, err := tx.Clients().GetClientByID(ctx, clientID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrClientNotFound
			}
			return err
		}

		client.Scopes = scopes
		if err := tx.Clients().UpdateClient(ctx, client); err != nil {
			return err
		}
		return tx.Consents().DeleteConsentsForClient(ctx, clientID)
	})
}

// DeleteClient removes a client. Protected clients refuse deletion.
func (s *RegistryService) DeleteClient(ctx context.Context, clientID string) error {
	l := slogx.FromContext(ctx)

	err := s.Store.Clients().DeleteClient(ctx, clientID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrClientNotFound
	case errors.Is(err, store.ErrStateConflict):
		l.Warn("attempted to delete protected client", "client_id", clientID)
		return ErrClientProtected
	case err != nil:
		l.Error("failed to delete client", "error", err, "client_id", clientID)
		return err
	}

	l.Info("client deleted", "client_id", clientID)
	return nil
}

// CreateResource adds a protected API and its scopes to the catalog.
func (s *RegistryService) CreateResource(ctx context.Context, name, displayName string, scopes []string) (string, error) {
	id := idx.New().String()
	err := s.Store.Resources().CreateResource(ctx, domain.Resource{
		ID:          id,
		Name:        name,
		DisplayName: displayName,
		Scopes:      scopes,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListResources returns the full scope catalog.
func (s *RegistryService) ListResources(ctx context.Context) ([]domain.Resource, error) {
	return s.Store.Resources().ListResources(ctx)
}
