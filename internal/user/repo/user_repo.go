package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ovaphlow/emberctl/internal/user/entity"
	"github.com/ovaphlow/emberctl/pkg/database"
)

var (
	ErrNotFound  = errors.New("user row not found")
	ErrDuplicate = errors.New("user row already exists")
)

// UserRepo provides data access for the users table. Build one on a
// transaction to make its writes part of it.
type UserRepo struct {
	db database.DBTX
}

func NewUserRepo(db database.DBTX) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  name VARCHAR(255) PRIMARY KEY,
  password_hash VARCHAR(255) NOT NULL
)`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	q := r.db.Rebind(`INSERT INTO users (name, password_hash) VALUES (?, ?)`)
	if _, err := r.db.ExecContext(ctx, q, u.Name, u.PasswordHash); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByName fetches by name.
func (r *UserRepo) GetByName(ctx context.Context, name string) (*entity.User, error) {
	q := r.db.Rebind(`SELECT name, password_hash FROM users WHERE name = ?`)
	var row entity.User
	if err := r.db.GetContext(ctx, &row, q, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// UpdatePassword replaces the stored hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, name, hash string) error {
	q := r.db.Rebind(`UPDATE users SET password_hash = ? WHERE name = ?`)
	res, err := r.db.ExecContext(ctx, q, hash, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
