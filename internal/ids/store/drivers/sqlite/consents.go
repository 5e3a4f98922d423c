package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
)

type consentsRepo struct {
	db dbtx
}

func (r *consentsRepo) GetConsent(ctx context.Context, userID, clientID string) (domain.Consent, error) {
	var (
		c         domain.Consent
		scopes    string
		expiresAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, client_id, scopes, granted_at, expires_at
		 FROM consents WHERE user_id = ? AND client_id = ?`,
		userID, clientID,
	).Scan(&c.ID, &c.UserID, &c.ClientID, &scopes, &c.GrantedAt, &expiresAt)
	if err != nil {
		return domain.Consent{}, mapNotFound(err)
	}
	c.Scopes = splitFields(scopes)
	c.ExpiresAt = mapNullTimePtr(expiresAt)
	return c, nil
}

// UpsertConsent replaces the stored scope set wholesale. The accepted set of
// the latest prompt is the new truth, not a union with the old grant.
func (r *consentsRepo) UpsertConsent(ctx context.Context, c domain.Consent) error {
	if c.GrantedAt.IsZero() {
		c.GrantedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO consents (id, user_id, client_id, scopes, granted_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, client_id) DO UPDATE SET
		 scopes = excluded.scopes, granted_at = excluded.granted_at, expires_at = excluded.expires_at`,
		c.ID, c.UserID, c.ClientID, joinFields(c.Scopes), c.GrantedAt, mapOptionalTime(c.ExpiresAt),
	)
	return err
}

func (r *consentsRepo) DeleteConsent(ctx context.Context, userID, clientID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM consents WHERE user_id = ? AND client_id = ?`, userID, clientID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *consentsRepo) DeleteConsentsForClient(ctx context.Context, clientID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM consents WHERE client_id = ?`, clientID)
	return err
}

func (r *consentsRepo) DeleteExpiredConsents(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM consents WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.UTC())
	return err
}
