package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/emberctl/internal/user/entity"
	userrepo "github.com/ovaphlow/emberctl/internal/user/repo"
	"github.com/ovaphlow/emberctl/pkg/database"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
	ErrEmptyName     = errors.New("username required")
)

// UserService is the credential store: identity lookup, creation and
// password verification.
type UserService struct {
	db     *sqlx.DB
	repo   *userrepo.UserRepo
	hasher PasswordHasher
	// tried in order after hasher when verifying stored hashes
	fallbacks []PasswordHasher
	logger    *zap.SugaredLogger
}

func NewUserService(db *sqlx.DB, hasher PasswordHasher, logger *zap.SugaredLogger) *UserService {
	if hasher == nil {
		hasher = Argon2Hasher{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserService{
		db:        db,
		repo:      userrepo.NewUserRepo(db),
		hasher:    hasher,
		fallbacks: []PasswordHasher{Argon2Hasher{}, BcryptHasher{}, LegacySHA256Hasher{}},
		logger:    logger,
	}
}

// EnsureSchema creates the users table if absent.
func (s *UserService) EnsureSchema(ctx context.Context) error {
	return s.repo.EnsureTable(ctx)
}

// Lookup returns the user or ErrUserNotFound.
func (s *UserService) Lookup(ctx context.Context, name string) (*entity.User, error) {
	u, err := s.repo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

// Create hashes password and inserts the user.
func (s *UserService) Create(ctx context.Context, name, password string) (*entity.User, error) {
	return s.CreateWith(ctx, s.db, name, password)
}

// CreateWith is Create on an explicit handle, typically a transaction.
func (s *UserService) CreateWith(ctx context.Context, db database.DBTX, name, password string) (*entity.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &entity.User{Name: name, PasswordHash: hash}
	if err := userrepo.NewUserRepo(db).Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// UpdatePassword hashes and stores a new password for name.
func (s *UserService) UpdatePassword(ctx context.Context, name, password string) error {
	return s.UpdatePasswordWith(ctx, s.db, name, password)
}

func (s *UserService) UpdatePasswordWith(ctx context.Context, db database.DBTX, name, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := userrepo.NewUserRepo(db).UpdatePassword(ctx, name, hash); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// VerifyPassword checks pw against the stored hash. A match on an outdated
// hash format is upgraded in place; failure to upgrade does not fail the login.
func (s *UserService) VerifyPassword(ctx context.Context, u *entity.User, pw string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	if !s.verify(u.PasswordHash, pw) {
		return false
	}
	if s.hasher.NeedsRehash(u.PasswordHash) {
		if newHash, err := s.hasher.Hash(pw); err == nil {
			if err := s.repo.UpdatePassword(ctx, u.Name, newHash); err != nil {
				s.logger.Warnw("password rehash failed", "user", u.Name, "err", err)
			} else {
				u.PasswordHash = newHash
			}
		}
	}
	return true
}

func (s *UserService) verify(hash, pw string) bool {
	if s.hasher.Verify(hash, pw) {
		return true
	}
	for _, h := range s.fallbacks {
		if h.Verify(hash, pw) {
			return true
		}
	}
	return false
}
