package oplog

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/emberctl/internal/oplog/entity"
	"github.com/ovaphlow/emberctl/internal/oplog/repo"
	"github.com/ovaphlow/emberctl/pkg/database"
)

// ActorSystem attributes an entry to the process rather than a user.
const ActorSystem = "system"

// Modules and actions recorded by this program.
const (
	ModuleUser = "user"

	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionCreate         = "create"
	ActionResetPassword  = "reset_password"
	ActionChangePassword = "change_password"
)

// Recorder appends audit entries. Write failures are returned to the
// caller, which decides whether they block the operation.
type Recorder struct {
	repo *repo.OplogRepo
	now  func() time.Time
}

func NewRecorder(db *sqlx.DB) *Recorder {
	return &Recorder{repo: repo.NewOplogRepo(db), now: time.Now}
}

func (r *Recorder) EnsureSchema(ctx context.Context) error {
	return r.repo.EnsureTable(ctx)
}

// Log appends an entry; the actor is not checked against the users table.
func (r *Recorder) Log(ctx context.Context, actor, module, action, detail string) (*entity.OperationLog, error) {
	return r.log(ctx, r.repo, actor, module, action, detail)
}

// LogWith appends through db, typically an open transaction.
func (r *Recorder) LogWith(ctx context.Context, db database.DBTX, actor, module, action, detail string) (*entity.OperationLog, error) {
	return r.log(ctx, repo.NewOplogRepo(db), actor, module, action, detail)
}

func (r *Recorder) log(ctx context.Context, rp *repo.OplogRepo, actor, module, action, detail string) (*entity.OperationLog, error) {
	e := &entity.OperationLog{
		User:   actor,
		Time:   r.now().UTC(),
		Module: module,
		Action: action,
		Detail: detail,
	}
	if err := rp.Insert(ctx, e); err != nil {
		return nil, fmt.Errorf("append operation log: %w", err)
	}
	return e, nil
}

// List returns the newest entries first.
func (r *Recorder) List(ctx context.Context, limit int) ([]*entity.OperationLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return r.repo.List(ctx, limit)
}
