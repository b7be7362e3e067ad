package setting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/emberctl/internal/setting/entity"
	"github.com/ovaphlow/emberctl/internal/setting/repo"
	"github.com/ovaphlow/emberctl/pkg/database"
)

// KeyInit is set to true once bootstrap has completed. It is never unset.
const KeyInit = "init"

var ErrNotFound = errors.New("setting not found")

// Service encapsulates business logic for the config store.
type Service struct {
	repo *repo.Repo
}

// NewService constructs a Service on db.
func NewService(db *sqlx.DB) *Service {
	return &Service{repo: repo.NewRepo(db)}
}

func (s *Service) EnsureSchema(ctx context.Context) error {
	return s.repo.EnsureTable(ctx)
}

// Get returns the raw JSON value of key.
func (s *Service) Get(ctx context.Context, key string) (json.RawMessage, error) {
	st, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return st.Value, nil
}

// Decode unmarshals the value of key into v.
func (s *Service) Decode(ctx context.Context, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode setting %s: %w", key, err)
	}
	return nil
}

// Initialized reports whether the init sentinel is present and true.
func (s *Service) Initialized(ctx context.Context) (bool, error) {
	var done bool
	err := s.Decode(ctx, KeyInit, &done)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return done, err
}

// List returns every setting ordered by key.
func (s *Service) List(ctx context.Context) ([]*entity.Setting, error) {
	return s.repo.List(ctx)
}

// Set stores v under key, replacing any previous value.
func (s *Service) Set(ctx context.Context, key string, v any) error {
	st, err := entity.NewSetting(key, v)
	if err != nil {
		return err
	}
	return s.repo.Upsert(ctx, st)
}

// SetIfAbsentWith stores v under key through db unless the key already
// exists, and reports whether it wrote.
func (s *Service) SetIfAbsentWith(ctx context.Context, db database.DBTX, key string, v any) (bool, error) {
	st, err := entity.NewSetting(key, v)
	if err != nil {
		return false, err
	}
	return repo.NewRepo(db).InsertIfAbsent(ctx, st)
}
