package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ovaphlow/emberctl/internal/token/entity"
	"github.com/ovaphlow/emberctl/pkg/database"
)

var ErrNotFound = errors.New("token row not found")

type TokenRepo struct {
	db database.DBTX
}

func NewTokenRepo(db database.DBTX) *TokenRepo {
	return &TokenRepo{db: db}
}

// EnsureTable creates login_token; user_name references users(name).
func (r *TokenRepo) EnsureTable(ctx context.Context) error {
	ts := "DATETIME"
	if database.IsPostgres(r.db) {
		ts = "TIMESTAMPTZ"
	}
	ddl := `CREATE TABLE IF NOT EXISTS login_token (
  token VARCHAR(255) PRIMARY KEY,
  user_name VARCHAR(255) NOT NULL REFERENCES users(name),
  expire_at ` + ts + ` NOT NULL
)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_login_token_user ON login_token (user_name)`)
	return err
}

func (r *TokenRepo) Save(ctx context.Context, t *entity.LoginToken) error {
	q := r.db.Rebind(`INSERT INTO login_token (token, user_name, expire_at) VALUES (?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, t.Token, t.User, t.ExpireAt.UTC())
	return err
}

func (r *TokenRepo) Get(ctx context.Context, token string) (*entity.LoginToken, error) {
	q := r.db.Rebind(`SELECT token, user_name, expire_at FROM login_token WHERE token = ?`)
	var t entity.LoginToken
	if err := r.db.GetContext(ctx, &t, q, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TokenRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM login_token WHERE token = ?`), token)
	return err
}

// DeleteExpired removes rows whose expiry is at or before now.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM login_token WHERE expire_at <= ?`), now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
