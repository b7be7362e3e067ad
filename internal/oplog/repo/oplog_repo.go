package repo

import (
	"context"

	"github.com/ovaphlow/emberctl/internal/oplog/entity"
	"github.com/ovaphlow/emberctl/pkg/database"
)

// OplogRepo is append-only: there is no update or delete.
type OplogRepo struct {
	db database.DBTX
}

func NewOplogRepo(db database.DBTX) *OplogRepo {
	return &OplogRepo{db: db}
}

func (r *OplogRepo) EnsureTable(ctx context.Context) error {
	id, ts := "INTEGER PRIMARY KEY AUTOINCREMENT", "DATETIME"
	if database.IsPostgres(r.db) {
		id, ts = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	}
	ddl := `CREATE TABLE IF NOT EXISTS operation_log (
  id ` + id + `,
  user_name VARCHAR(255) NOT NULL,
  time ` + ts + ` NOT NULL,
  module VARCHAR(255) NOT NULL,
  action VARCHAR(255) NOT NULL,
  detail TEXT NOT NULL
)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_operation_log_time ON operation_log (time)`)
	return err
}

// Insert stores e and fills in its generated id.
func (r *OplogRepo) Insert(ctx context.Context, e *entity.OperationLog) error {
	q := r.db.Rebind(`INSERT INTO operation_log (user_name, time, module, action, detail) VALUES (?, ?, ?, ?, ?) RETURNING id`)
	return r.db.QueryRowxContext(ctx, q, e.User, e.Time.UTC(), e.Module, e.Action, e.Detail).Scan(&e.ID)
}

// List returns up to limit entries, newest first.
func (r *OplogRepo) List(ctx context.Context, limit int) ([]*entity.OperationLog, error) {
	q := r.db.Rebind(`SELECT id, user_name, time, module, action, detail FROM operation_log ORDER BY id DESC LIMIT ?`)
	var out []*entity.OperationLog
	if err := r.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, err
	}
	return out, nil
}
