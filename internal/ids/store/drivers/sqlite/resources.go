package sqlite

import (
	"context"
	"time"

	"github.com/nobcorp/nobids/internal/ids/domain"
)

type resourcesRepo struct {
	db dbtx
}

const resourceColumns = `id, name, display_name, scopes, created_at, updated_at`

func scanResource(row rowScanner) (domain.Resource, error) {
	var (
		res    domain.Resource
		scopes string
	)
	err := row.Scan(&res.ID, &res.Name, &res.DisplayName, &scopes, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return domain.Resource{}, mapNotFound(err)
	}
	res.Scopes = splitFields(scopes)
	return res, nil
}

func (r *resourcesRepo) GetResourceByName(ctx context.Context, name string) (domain.Resource, error) {
	return scanResource(r.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE name = ?`, name))
}

func (r *resourcesRepo) ListResources(ctx context.Context) ([]domain.Resource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+resourceColumns+` FROM resources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Resource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *resourcesRepo) CreateResource(ctx context.Context, res domain.Resource) error {
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	if res.UpdatedAt.IsZero() {
		res.UpdatedAt = now
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO resources (id, name, display_name, scopes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.ID, res.Name, res.DisplayName, joinFields(res.Scopes), res.CreatedAt, res.UpdatedAt,
	)
	return err
}

func (r *resourcesRepo) UpdateResourceScopes(ctx context.Context, resourceID string, scopes []string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE resources SET scopes = ?, updated_at = ? WHERE id = ?`,
		joinFields(scopes), time.Now().UTC(), resourceID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *resourcesRepo) DeleteResource(ctx context.Context, resourceID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM resources WHERE id = ?`, resourceID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
