package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/internal/ids/store"
)

type authorizationCodesRepo struct {
	db dbtx
}

const authorizationCodeColumns = `id, user_id, client_id, code_hash, redirect_uri, scopes, session_id, amr,
	nonce, code_challenge, code_challenge_method, auth_time, expires_at, used_at, created_at`

func scanAuthorizationCode(row rowScanner) (domain.AuthorizationCode, error) {
	var (
		c           domain.AuthorizationCode
		scopes, amr string
		usedAt      sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.ClientID, &c.CodeHash, &c.RedirectURI, &scopes, &c.SessionID, &amr,
		&c.Nonce, &c.CodeChallenge, &c.CodeChallengeMethod, &c.AuthTime, &c.ExpiresAt, &usedAt, &c.CreatedAt,
	)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}
	c.Scopes = splitFields(scopes)
	c.AMR = splitFields(amr)
	c.UsedAt = mapNullTimePtr(usedAt)
	return c, nil
}

func (r *authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, c domain.AuthorizationCode) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO authorization_codes (id, user_id, client_id, code_hash, redirect_uri, scopes, session_id, amr,
		 nonce, code_challenge, code_challenge_method, auth_time, expires_at, used_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.ClientID, c.CodeHash, c.RedirectURI, joinFields(c.Scopes), c.SessionID, joinFields(c.AMR),
		c.Nonce, c.CodeChallenge, c.CodeChallengeMethod, c.AuthTime, c.ExpiresAt,
		mapOptionalTime(c.UsedAt), c.CreatedAt,
	)
	return err
}

// ConsumeAuthorizationCode stamps used_at with a conditional update so that
// exactly one of N concurrent redemptions succeeds. Classification order
// matters: a code that was redeemed and has since lapsed still reports
// already-used, and only a never-redeemed lapsed code reports expired.
func (r *authorizationCodesRepo) ConsumeAuthorizationCode(ctx context.Context, hash string, now time.Time) (domain.AuthorizationCode, error) {
	now = now.UTC()

	res, err := r.db.ExecContext(ctx,
		`UPDATE authorization_codes SET used_at = ?
		 WHERE code_hash = ? AND used_at IS NULL AND expires_at > ?`,
		now, hash, now)
	if err != nil {
		return domain.AuthorizationCode{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.AuthorizationCode{}, err
	}

	code, err := scanAuthorizationCode(r.db.QueryRowContext(ctx,
		`SELECT `+authorizationCodeColumns+` FROM authorization_codes WHERE code_hash = ?`, hash))
	if err != nil {
		return domain.AuthorizationCode{}, err
	}

	if affected == 1 {
		return code, nil
	}
	if code.UsedAt != nil {
		// The record rides along so the caller can revoke what the first
		// redemption was granted.
		return code, store.ErrCodeAlreadyUsed
	}
	return domain.AuthorizationCode{}, store.ErrCodeExpired
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM authorization_codes WHERE expires_at <= ?`, now.UTC())
	return err
}
