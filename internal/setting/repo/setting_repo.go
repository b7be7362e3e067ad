package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ovaphlow/emberctl/internal/setting/entity"
	"github.com/ovaphlow/emberctl/pkg/database"
)

var ErrNotFound = errors.New("setting row not found")

// Repo is the repository implementation for the config table.
type Repo struct {
	db database.DBTX
}

// NewRepo constructs a Repo on a connection or transaction.
func NewRepo(db database.DBTX) *Repo {
	return &Repo{db: db}
}

// EnsureTable ensures the config table exists.
// Fields:
// - key varchar(255) PRIMARY KEY
// - value text (JSON document)
func (r *Repo) EnsureTable(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS config (
  key VARCHAR(255) PRIMARY KEY,
  value TEXT NOT NULL
)`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *Repo) GetByKey(ctx context.Context, key string) (*entity.Setting, error) {
	var row struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT key, value FROM config WHERE key = ?`), key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entity.Setting{Key: row.Key, Value: []byte(row.Value)}, nil
}

func (r *Repo) List(ctx context.Context) ([]*entity.Setting, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT key, value FROM config ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*entity.Setting
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out = append(out, &entity.Setting{Key: k, Value: []byte(v)})
	}
	return out, rows.Err()
}

// Upsert writes the value whether or not the key exists.
func (r *Repo) Upsert(ctx context.Context, s *entity.Setting) error {
	q := r.db.Rebind(`INSERT INTO config (key, value) VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`)
	_, err := r.db.ExecContext(ctx, q, s.Key, string(s.Value))
	return err
}

// InsertIfAbsent writes the row only when key is new and reports whether it
// did. The check and the write are one statement, so concurrent callers
// (including other processes) cannot both succeed.
func (r *Repo) InsertIfAbsent(ctx context.Context, s *entity.Setting) (bool, error) {
	q := r.db.Rebind(`INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`)
	res, err := r.db.ExecContext(ctx, q, s.Key, string(s.Value))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
