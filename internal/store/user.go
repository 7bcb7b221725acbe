package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pixelvault/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, display_name, avatar_url, avatar_public_id,
		bio, is_admin, is_super_admin, is_externally_authenticated, COALESCE(google_id, ''),
		created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.AvatarURL,
		&user.AvatarPublicID,
		&user.Bio,
		&user.IsAdmin,
		&user.IsSuperAdmin,
		&user.IsExternallyAuthenticated,
		&user.GoogleID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	return scanUser(r.db.QueryRowContext(ctx, query, arg))
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.getOne(ctx, "username = $1", strings.ToLower(username))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.getOne(ctx, "email = $1", strings.ToLower(email))
}

func (r *UserRepository) GetByGoogleID(ctx context.Context, googleID string) (types.User, error) {
	return r.getOne(ctx, "google_id = $1", googleID)
}

// FindByUsernameOrEmail returns every account matching either value in a
// single query, so duplicate checks see both constraints at once.
func (r *UserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) ([]types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $2`
	rows, err := r.db.QueryContext(ctx, query, strings.ToLower(username), strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Username = strings.ToLower(user.Username)
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, username, email, password_hash, display_name, avatar_url, avatar_public_id,
			bio, is_admin, is_super_admin, is_externally_authenticated, google_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.AvatarURL,
		user.AvatarPublicID,
		user.Bio,
		user.IsAdmin,
		user.IsSuperAdmin,
		user.IsExternallyAuthenticated,
		nullString(user.GoogleID),
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now().UTC()
	user.Username = strings.ToLower(user.Username)
	user.Email = strings.ToLower(user.Email)

	const query = `
		UPDATE users
		SET username = $1,
			email = $2,
			password_hash = $3,
			display_name = $4,
			avatar_url = $5,
			avatar_public_id = $6,
			bio = $7,
			is_admin = $8,
			is_super_admin = $9,
			google_id = $10,
			updated_at = $11
		WHERE id = $12`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.AvatarURL,
		user.AvatarPublicID,
		user.Bio,
		user.IsAdmin,
		user.IsSuperAdmin,
		nullString(user.GoogleID),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

// SetAdminFlag updates is_admin alone, leaving the rest of the row untouched.
func (r *UserRepository) SetAdminFlag(ctx context.Context, id uuid.UUID, isAdmin bool) error {
	const query = `UPDATE users SET is_admin = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, query, isAdmin, time.Now().UTC(), id)
}

// PromoteSuperAdmin sets the bootstrap super-admin flag.
func (r *UserRepository) PromoteSuperAdmin(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE users SET is_admin = TRUE, is_super_admin = TRUE, updated_at = $1 WHERE id = $2`
	return r.execOne(ctx, query, time.Now().UTC(), id)
}

func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM users WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *UserRepository) List(ctx context.Context, filter types.UserFilter) ([]types.User, int, error) {
	where := ""
	args := []any{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		where = ` WHERE username ILIKE $1 OR email ILIKE $1 OR display_name ILIKE $1`
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageBounds(filter.Page, filter.Limit)
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
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

func pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return limit, (page - 1) * limit
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
