package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pixelvault/apiserver/types"
)

// PermissionRepository persists per-account permission grants.
type PermissionRepository struct {
	db *sql.DB
}

func NewPermissionRepository(db *sql.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

const grantColumns = `user_id, role, manage_users, delete_users, manage_images, delete_images,
		manage_categories, manage_admins, view_dashboard, granted_by, created_at, updated_at`

func scanGrant(row rowScanner) (types.PermissionGrant, error) {
	var (
		grant     types.PermissionGrant
		role      string
		grantedBy uuid.NullUUID
	)
	err := row.Scan(
		&grant.UserID,
		&role,
		&grant.Permissions.ManageUsers,
		&grant.Permissions.DeleteUsers,
		&grant.Permissions.ManageImages,
		&grant.Permissions.DeleteImages,
		&grant.Permissions.ManageCategories,
		&grant.Permissions.ManageAdmins,
		&grant.Permissions.ViewDashboard,
		&grantedBy,
		&grant.CreatedAt,
		&grant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.PermissionGrant{}, ErrNotFound
		}
		return types.PermissionGrant{}, err
	}
	grant.Role = types.Role(role)
	if grantedBy.Valid {
		id := grantedBy.UUID
		grant.GrantedBy = &id
	}
	return grant, nil
}

func (r *PermissionRepository) Get(ctx context.Context, userID uuid.UUID) (types.PermissionGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM permission_grants WHERE user_id = $1`
	return scanGrant(r.db.QueryRowContext(ctx, query, userID))
}

func (r *PermissionRepository) List(ctx context.Context) ([]types.PermissionGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM permission_grants ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := []types.PermissionGrant{}
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

func (r *PermissionRepository) Create(ctx context.Context, grant types.PermissionGrant) (types.PermissionGrant, error) {
	now := time.Now().UTC()
	grant.CreatedAt = now
	grant.UpdatedAt = now

	const query = `
		INSERT INTO permission_grants (user_id, role, manage_users, delete_users, manage_images,
			delete_images, manage_categories, manage_admins, view_dashboard, granted_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	p := grant.Permissions
	if _, err := r.db.ExecContext(
		ctx,
		query,
		grant.UserID,
		string(grant.Role),
		p.ManageUsers,
		p.DeleteUsers,
		p.ManageImages,
		p.DeleteImages,
		p.ManageCategories,
		p.ManageAdmins,
		p.ViewDashboard,
		nullUUID(grant.GrantedBy),
		grant.CreatedAt,
		grant.UpdatedAt,
	); err != nil {
		return types.PermissionGrant{}, translate(err)
	}
	return grant, nil
}

// Update replaces role and flags. Concurrent updates are last-write-wins.
func (r *PermissionRepository) Update(ctx context.Context, grant types.PermissionGrant) (types.PermissionGrant, error) {
	grant.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE permission_grants
		SET role = $1,
			manage_users = $2,
			delete_users = $3,
			manage_images = $4,
			delete_images = $5,
			manage_categories = $6,
			manage_admins = $7,
			view_dashboard = $8,
			updated_at = $9
		WHERE user_id = $10`
	p := grant.Permissions
	result, err := r.db.ExecContext(
		ctx,
		query,
		string(grant.Role),
		p.ManageUsers,
		p.DeleteUsers,
		p.ManageImages,
		p.DeleteImages,
		p.ManageCategories,
		p.ManageAdmins,
		p.ViewDashboard,
		grant.UpdatedAt,
		grant.UserID,
	)
	if err != nil {
		return types.PermissionGrant{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.PermissionGrant{}, err
	}
	if affected == 0 {
		return types.PermissionGrant{}, ErrNotFound
	}
	return grant, nil
}

func (r *PermissionRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	const query = `DELETE FROM permission_grants WHERE user_id = $1`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
