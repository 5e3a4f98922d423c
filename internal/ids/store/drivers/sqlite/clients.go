package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/internal/ids/store"
)

type clientsRepo struct {
	db dbtx
}

const clientColumns = `id, name, secret_hash, redirect_uris, grant_types, scopes, require_pkce, protected,
	access_token_ttl_seconds, refresh_token_ttl_seconds, id_token_ttl_seconds, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (domain.Client, error) {
	var (
		c                                     domain.Client
		secretHash                            sql.NullString
		redirectURIs, grantTypes, scopes      string
		accessTTLSec, refreshTTLSec, idTTLSec int64
	)
	err := row.Scan(
		&c.ID, &c.Name, &secretHash, &redirectURIs, &grantTypes, &scopes,
		&c.RequirePKCE, &c.Protected,
		&accessTTLSec, &refreshTTLSec, &idTTLSec,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}
	if secretHash.Valid {
		c.SecretHash = secretHash.String
	}
	c.RedirectURIs = splitFields(redirectURIs)
	c.GrantTypes = splitFields(grantTypes)
	c.Scopes = splitFields(scopes)
	c.AccessTokenTTL = time.Duration(accessTTLSec) * time.Second
	c.RefreshTokenTTL = time.Duration(refreshTTLSec) * time.Second
	c.IDTokenTTL = time.Duration(idTTLSec) * time.Second
	return c, nil
}

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	return scanClient(r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *clientsRepo) CreateClient(ctx context.Context, c domain.Client) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	var secretHash sql.NullString
	if c.SecretHash != "" {
		secretHash = sql.NullString{String: c.SecretHash, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, secret_hash, redirect_uris, grant_types, scopes, require_pkce, protected,
		 access_token_ttl_seconds, refresh_token_ttl_seconds, id_token_ttl_seconds, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, secretHash,
		joinFields(c.RedirectURIs), joinFields(c.GrantTypes), joinFields(c.Scopes),
		c.RequirePKCE, c.Protected,
		int64(c.AccessTokenTTL.Seconds()), int64(c.RefreshTokenTTL.Seconds()), int64(c.IDTokenTTL.Seconds()),
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *clientsRepo) UpdateClient(ctx context.Context, c domain.Client) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE clients SET name = ?, redirect_uris = ?, grant_types = ?, scopes = ?, require_pkce = ?,
		 access_token_ttl_seconds = ?, refresh_token_ttl_seconds = ?, id_token_ttl_seconds = ?, updated_at = ?
		 WHERE id = ?`,
		c.Name, joinFields(c.RedirectURIs), joinFields(c.GrantTypes), joinFields(c.Scopes), c.RequirePKCE,
		int64(c.AccessTokenTTL.Seconds()), int64(c.RefreshTokenTTL.Seconds()), int64(c.IDTokenTTL.Seconds()),
		time.Now().UTC(), c.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *clientsRepo) UpdateClientSecretHash(ctx context.Context, clientID, secretHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE clients SET secret_hash = ?, updated_at = ? WHERE id = ?`,
		secretHash, time.Now().UTC(), clientID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *clientsRepo) DeleteClient(ctx context.Context, clientID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM clients WHERE id = ? AND protected = 0`, clientID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either unknown or protected; look to tell them apart.
		var protected bool
		err := r.db.QueryRowContext(ctx,
			`SELECT protected FROM clients WHERE id = ?`, clientID).Scan(&protected)
		if err != nil {
			return mapNotFound(err)
		}
		return store.ErrStateConflict
	}
	return nil
}

func (r *clientsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
