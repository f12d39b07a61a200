package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/depot-ops/depot-ops/internal/platform/db"
	"github.com/depot-ops/depot-ops/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, role, branch, status, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Branch, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, httpx.ErrNotFound
	}
	return u, err
}

// ListUsers returns all profiles ordered by name.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM profiles ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser returns one profile.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM profiles WHERE id = $1`, id))
}

// CreateUser inserts a profile with an already hashed password.
func (r *Repository) CreateUser(ctx context.Context, in NewUser, passwordHash string) (User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO profiles (email, name, password_hash, role, branch)
		VALUES ($1, $2, $3, $4, $5) RETURNING `+userColumns,
		strings.ToLower(in.Email), in.Name, passwordHash, in.Role, in.Branch)
	u, err := scanUser(row)
	if db.IsUniqueViolation(err) {
		return User{}, fmt.Errorf("%w: email already registered", httpx.ErrDuplicate)
	}
	return u, err
}

// UpdateUser applies the non-nil fields of update.
func (r *Repository) UpdateUser(ctx context.Context, id int64, update UserUpdate) error {
	updates := map[string]interface{}{}
	if update.Name != nil {
		updates["name"] = *update.Name
	}
	if update.Role != nil {
		updates["role"] = string(*update.Role)
	}
	if update.Branch != nil {
		updates["branch"] = *update.Branch
	}
	return r.update(ctx, id, updates)
}

// SetStatus activates or deactivates a profile.
func (r *Repository) SetStatus(ctx context.Context, id int64, status string) error {
	return r.update(ctx, id, map[string]interface{}{"status": status})
}

func (r *Repository) update(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	setClauses := []string{}
	args := []interface{}{}
	for _, col := range []string{"name", "role", "branch", "status"} {
		val, ok := updates[col]
		if !ok {
			continue
		}
		args = append(args, val)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE profiles SET %s, updated_at = NOW() WHERE id = $%d`, strings.Join(setClauses, ", "), len(args))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
