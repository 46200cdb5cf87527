package rbac

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supratours/virements/internal/platform/db"
	"github.com/supratours/virements/internal/shared"
)

var roleConstraints = map[string]string{"roles_name_key": "name"}

// Service manages roles, permissions and their assignment to users.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

const roleColumns = `id, name, description, created_at, updated_at`

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Role])
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	if err != nil {
		return Role{}, err
	}
	role, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Role])
	return role, db.TranslateError(err, nil)
}

// CreateRole inserts a new role. Names are unique.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, shared.NewValidationError("name", "is required")
	}
	rows, err := s.pool.Query(ctx, `INSERT INTO roles (name, description) VALUES ($1, $2)
RETURNING `+roleColumns, name, strings.TrimSpace(description))
	if err != nil {
		return Role{}, db.TranslateError(err, roleConstraints)
	}
	role, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Role])
	return role, db.TranslateError(err, roleConstraints)
}

// ListPermissions returns all permissions ordered by name.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Permission])
}

// EnsureDefaults upserts DefaultPermissions in one transaction.
func (s *Service) EnsureDefaults(ctx context.Context) error {
	return db.WithTxIso(ctx, s.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for name, desc := range DefaultPermissions {
			batch.Queue(`INSERT INTO permissions (name, description) VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description`, name, desc)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// SetRolePermissions replaces the permissions of a role.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return db.WithTxIso(ctx, s.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return shared.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id)
SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`, roleID, permissionIDs)
		return db.TranslateError(err, nil)
	})
}

// AssignRole grants a role to a user.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID)
	return db.TranslateError(err, nil)
}

// RemoveRole withdraws a role from a user.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// EffectivePermissions returns the permission names granted to an active
// user. Superusers receive every known permission.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT p.name
FROM permissions p
JOIN users u ON u.id = $1 AND u.is_active
WHERE u.is_superuser
   OR p.id IN (
	SELECT rp.permission_id FROM role_permissions rp
	JOIN user_roles ur ON ur.role_id = rp.role_id
	WHERE ur.user_id = $1)
ORDER BY p.name`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
