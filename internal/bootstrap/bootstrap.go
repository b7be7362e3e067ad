// Package bootstrap provisions the administrator account on first run and
// regenerates its password on demand.
package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/emberctl/internal/oplog"
	"github.com/ovaphlow/emberctl/internal/setting"
	"github.com/ovaphlow/emberctl/internal/user"
	"github.com/ovaphlow/emberctl/pkg/database"
	"github.com/ovaphlow/emberctl/pkg/utilities"
)

// DefaultAdmin is the administrator username unless configured otherwise.
const DefaultAdmin = "admin"

// passwordBytes of randomness give a 32 character URL-safe password.
const passwordBytes = 24

// Result describes what a bootstrap call did.
type Result struct {
	Created  bool
	Username string
}

// Initializer owns the init sentinel. The sentinel insert, the admin row and
// its audit entry commit in one transaction; mu serializes callers within
// the process.
type Initializer struct {
	mu       sync.Mutex
	db       *sqlx.DB
	users    *user.UserService
	settings *setting.Service
	audit    *oplog.Recorder
	sink     PasswordSink
	admin    string
	logger   *zap.SugaredLogger
}

func NewInitializer(db *sqlx.DB, users *user.UserService, settings *setting.Service, audit *oplog.Recorder, sink PasswordSink, admin string, logger *zap.SugaredLogger) *Initializer {
	if sink == nil {
		sink = ConsoleSink{}
	}
	if admin == "" {
		admin = DefaultAdmin
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Initializer{
		db:       db,
		users:    users,
		settings: settings,
		audit:    audit,
		sink:     sink,
		admin:    admin,
		logger:   logger,
	}
}

// Initialize creates the administrator with a random password unless the
// init sentinel is already set, in which case it does nothing.
func (b *Initializer) Initialize(ctx context.Context) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	password, err := utilities.RandomURLSafe(passwordBytes)
	if err != nil {
		return Result{}, fmt.Errorf("generate password: %w", err)
	}

	res := Result{Username: b.admin}
	err = database.WithTx(ctx, b.db, nil, func(ctx context.Context, tx database.DBTX) error {
		inserted, err := b.settings.SetIfAbsentWith(ctx, tx, setting.KeyInit, true)
		if err != nil {
			return fmt.Errorf("set init flag: %w", err)
		}
		if !inserted {
			return nil
		}
		if _, err := b.users.CreateWith(ctx, tx, b.admin, password); err != nil {
			return fmt.Errorf("create administrator: %w", err)
		}
		if _, err := b.audit.LogWith(ctx, tx, oplog.ActorSystem, oplog.ModuleUser, oplog.ActionCreate,
			fmt.Sprintf("created administrator %s", b.admin)); err != nil {
			return err
		}
		res.Created = true
		return nil
	})
	if err != nil {
		b.logger.Errorw("initialization failed", "err", err)
		return Result{}, err
	}

	if !res.Created {
		b.logger.Infow("already initialized, nothing to do")
		return res, nil
	}
	b.logger.Infow("administrator created", "user", b.admin)
	b.sink.Emit(b.admin, password)
	return res, nil
}

// ResetAdminPassword replaces the administrator password unconditionally.
// It fails with user.ErrUserNotFound when the account does not exist.
func (b *Initializer) ResetAdminPassword(ctx context.Context) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	password, err := utilities.RandomURLSafe(passwordBytes)
	if err != nil {
		return Result{}, fmt.Errorf("generate password: %w", err)
	}

	err = database.WithTx(ctx, b.db, nil, func(ctx context.Context, tx database.DBTX) error {
		if err := b.users.UpdatePasswordWith(ctx, tx, b.admin, password); err != nil {
			return err
		}
		_, err := b.audit.LogWith(ctx, tx, oplog.ActorSystem, oplog.ModuleUser, oplog.ActionResetPassword,
			fmt.Sprintf("reset password of %s", b.admin))
		return err
	})
	if err != nil {
		b.logger.Errorw("password reset failed", "user", b.admin, "err", err)
		return Result{}, err
	}

	b.logger.Infow("administrator password reset", "user", b.admin)
	b.sink.Emit(b.admin, password)
	return Result{Username: b.admin}, nil
}
