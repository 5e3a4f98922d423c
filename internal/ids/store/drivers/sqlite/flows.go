package sqlite

import (
	"context"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
	"github.com/nobcorp/nobids/internal/ids/store"
)

type flowsRepo struct {
	db dbtx
}

const flowColumns = `id, state, client_id, response_type, redirect_uri, scopes, client_state, nonce,
	code_challenge, code_challenge_method, user_id, session_id, expires_at, created_at, updated_at`

func scanFlow(row rowScanner) (domain.Flow, error) {
	var (
		f      domain.Flow
		scopes string
	)
	err := row.Scan(
		&f.ID, &f.State, &f.ClientID, &f.ResponseType, &f.RedirectURI, &scopes, &f.ClientState, &f.Nonce,
		&f.CodeChallenge, &f.CodeChallengeMethod, &f.UserID, &f.SessionID,
		&f.ExpiresAt, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return domain.Flow{}, mapNotFound(err)
	}
	f.Scopes = splitFields(scopes)
	return f, nil
}

func (r *flowsRepo) CreateFlow(ctx context.Context, f domain.Flow) error {
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = now
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO flows (id, state, client_id, response_type, redirect_uri, scopes, client_state, nonce,
		 code_challenge, code_challenge_method, user_id, session_id, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.State, f.ClientID, f.ResponseType, f.RedirectURI, joinFields(f.Scopes), f.ClientState, f.Nonce,
		f.CodeChallenge, f.CodeChallengeMethod, f.UserID, f.SessionID,
		f.ExpiresAt, f.CreatedAt, f.UpdatedAt,
	)
	return err
}

func (r *flowsRepo) GetFlow(ctx context.Context, id string) (domain.Flow, error) {
	return scanFlow(r.db.QueryRowContext(ctx,
		`SELECT `+flowColumns+` FROM flows WHERE id = ?`, id))
}

// TransitionFlow is conditional on the current state so concurrent requests
// cannot both advance one flow past the same interaction.
func (r *flowsRepo) TransitionFlow(ctx context.Context, f domain.Flow, fromState string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE flows SET state = ?, user_id = ?, session_id = ?, scopes = ?, updated_at = ?
		 WHERE id = ? AND state = ?`,
		f.State, f.UserID, f.SessionID, joinFields(f.Scopes), time.Now().UTC(),
		f.ID, fromState,
	)
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
			`SELECT 1 FROM flows WHERE id = ?`, f.ID).Scan(&exists); err != nil {
			return mapNotFound(err)
		}
		return store.ErrStateConflict
	}
	return nil
}

func (r *flowsRepo) DeleteExpiredFlows(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM flows WHERE expires_at <= ?`, now.UTC())
	return err
}
