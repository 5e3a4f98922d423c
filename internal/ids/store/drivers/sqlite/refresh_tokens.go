package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/internal/ids/store"
)

type refreshTokensRepo struct {
	db dbtx
}

const refreshTokenColumns = `id, user_id, client_id, token_hash, session_id, family_id, generation,
	scopes, amr, expires_at, rotated_at, revoked, created_at, updated_at`

func scanRefreshToken(row rowScanner) (domain.RefreshToken, error) {
	var (
		t           domain.RefreshToken
		scopes, amr string
		rotatedAt   sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.ClientID, &t.TokenHash, &t.SessionID, &t.FamilyID, &t.Generation,
		&scopes, &amr, &t.ExpiresAt, &rotatedAt, &t.Revoked, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.Scopes = splitFields(scopes)
	t.AMR = splitFields(amr)
	t.RotatedAt = mapNullTimePtr(rotatedAt)
	return t, nil
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	if t.Generation == 0 {
		t.Generation = 1
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, client_id, token_hash, session_id, family_id, generation,
		 scopes, amr, expires_at, rotated_at, revoked, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.ClientID, t.TokenHash, t.SessionID, t.FamilyID, t.Generation,
		joinFields(t.Scopes), joinFields(t.AMR), t.ExpiresAt,
		mapOptionalTime(t.RotatedAt), t.Revoked, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	return scanRefreshToken(r.db.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = ?`, hash))
}

// MarkRotated wins only against an unrotated, unrevoked row, so two requests
// presenting the same token cannot both rotate it.
func (r *refreshTokensRepo) MarkRotated(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET rotated_at = ?, updated_at = ?
		 WHERE id = ? AND rotated_at IS NULL AND revoked = 0`,
		at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT 1 FROM refresh_tokens WHERE id = ?`, id).Scan(&exists); err != nil {
			return mapNotFound(err)
		}
		return store.ErrRefreshReused
	}
	return nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *refreshTokensRepo) RevokeFamily(ctx context.Context, familyID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE family_id = ? AND revoked = 0`,
		time.Now().UTC(), familyID)
	return err
}

func (r *refreshTokensRepo) RevokeAllForSession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ? WHERE session_id = ? AND revoked = 0`,
		time.Now().UTC(), sessionID)
	return err
}

func (r *refreshTokensRepo) RevokeAllForUserClient(ctx context.Context, userID, clientID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = ?
		 WHERE user_id = ? AND client_id = ? AND revoked = 0`,
		time.Now().UTC(), userID, clientID)
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`, now.UTC())
	return err
}
