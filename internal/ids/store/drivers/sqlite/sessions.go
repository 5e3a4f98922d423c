package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
)

type sessionsRepo struct {
	db dbtx
}

const sessionColumns = `id, user_id, amr, auth_time, idle_deadline, absolute_deadline, revoked_at, created_at, updated_at`

func scanSession(row rowScanner) (domain.Session, error) {
	var (
		s         domain.Session
		amr       string
		revokedAt sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.UserID, &amr, &s.AuthTime, &s.IdleDeadline, &s.AbsoluteDeadline,
		&revokedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.AMR = splitFields(amr)
	s.RevokedAt = mapNullTimePtr(revokedAt)
	return s, nil
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, amr, auth_time, idle_deadline, absolute_deadline, revoked_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, joinFields(s.AMR), s.AuthTime, s.IdleDeadline, s.AbsoluteDeadline,
		mapOptionalTime(s.RevokedAt), s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
}

// TouchSession slides the idle deadline. The absolute deadline column is
// deliberately not in the SET list.
func (r *sessionsRepo) TouchSession(ctx context.Context, id string, idleDeadline time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET idle_deadline = ?, updated_at = ? WHERE id = ? AND revoked_at IS NULL`,
		idleDeadline.UTC(), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *sessionsRepo) RevokeSession(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ?, updated_at = ? WHERE id = ? AND revoked_at IS NULL`,
		at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *sessionsRepo) RevokeAllUserSessions(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ?, updated_at = ? WHERE user_id = ? AND revoked_at IS NULL`,
		at.UTC(), time.Now().UTC(), userID)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	now = now.UTC()
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE idle_deadline <= ? OR absolute_deadline <= ? OR revoked_at IS NOT NULL`,
		now, now)
	return err
}
