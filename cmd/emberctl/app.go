package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/emberctl/internal/bootstrap"
	"github.com/ovaphlow/emberctl/internal/config"
	"github.com/ovaphlow/emberctl/internal/oplog"
	"github.com/ovaphlow/emberctl/internal/setting"
	"github.com/ovaphlow/emberctl/internal/token"
	"github.com/ovaphlow/emberctl/internal/user"
	"github.com/ovaphlow/emberctl/pkg/database"
	"github.com/ovaphlow/emberctl/pkg/utilities"
)

// app holds the process-wide collaborators shared by every command.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	sugar    *zap.SugaredLogger
	db       *sqlx.DB
	users    *user.UserService
	tokens   *token.Service
	settings *setting.Service
	audit    *oplog.Recorder
}

// newApp loads configuration, opens the logger and database, and creates any
// missing tables.
func newApp(ctx context.Context, dev bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dev {
		cfg.Log.Dev = true
		cfg.Log.Level = "debug"
	}

	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	sugar := lg.Sugar()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		_ = lg.Sync()
		return nil, fmt.Errorf("db connect: %w", err)
	}

	hasher, err := user.NewHasher(cfg.HashAlgo)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      lg,
		sugar:    sugar,
		db:       db,
		users:    user.NewUserService(db, hasher, sugar),
		tokens:   token.NewService(db, cfg.TokenTTL, token.WithSecret(cfg.SecretKey)),
		settings: setting.NewService(db),
		audit:    oplog.NewRecorder(db),
	}
	if err := a.ensureSchema(ctx); err != nil {
		a.close()
		return nil, err
	}
	sugar.Debugw("database ready", "driver", cfg.Database.Driver, "data_dir", cfg.DataDir)
	return a, nil
}

// ensureSchema creates tables in dependency order.
func (a *app) ensureSchema(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"users", a.users.EnsureSchema},
		{"login_token", a.tokens.EnsureSchema},
		{"config", a.settings.EnsureSchema},
		{"operation_log", a.audit.EnsureSchema},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("create table %s: %w", s.name, err)
		}
	}
	return nil
}

func (a *app) initializer(out io.Writer) *bootstrap.Initializer {
	return bootstrap.NewInitializer(a.db, a.users, a.settings, a.audit,
		bootstrap.ConsoleSink{W: out}, a.cfg.AdminUsername, a.sugar)
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.sugar.Warnw("db close failed", "err", err)
	}
	_ = a.log.Sync()
}
