package token

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/emberctl/internal/token/entity"
	"github.com/ovaphlow/emberctl/internal/token/repo"
	"github.com/ovaphlow/emberctl/pkg/utilities"
)

// DefaultTTL is how long a login token stays valid after issuance.
const DefaultTTL = 3 * time.Hour

var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
)

// Service mints and validates persisted login tokens. Expiry is absolute
// from issuance and checked lazily on Validate.
type Service struct {
	repo   *repo.TokenRepo
	ttl    time.Duration
	secret []byte
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSecret keys the token digest with the process secret.
func WithSecret(secret string) Option {
	return func(s *Service) { s.secret = []byte(secret) }
}

func NewService(db *sqlx.DB, ttl time.Duration, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Service{repo: repo.NewTokenRepo(db), ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// EnsureSchema creates the login_token table if absent. The users table
// must exist first.
func (s *Service) EnsureSchema(ctx context.Context) error {
	return s.repo.EnsureTable(ctx)
}

// Issue mints a token for username and persists it.
func (s *Service) Issue(ctx context.Context, username string) (*entity.LoginToken, error) {
	now := s.now()
	t := &entity.LoginToken{
		Token:    s.digest(username, now),
		User:     username,
		ExpireAt: now.Add(s.ttl).UTC(),
	}
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	return t, nil
}

// Validate resolves token to the owning username.
func (s *Service) Validate(ctx context.Context, token string) (*entity.LoginToken, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}
	t, err := s.repo.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("load token: %w", err)
	}
	if t.Expired(s.now()) {
		return nil, ErrTokenExpired
	}
	return t, nil
}

// Revoke removes a token. Unknown tokens are not an error.
func (s *Service) Revoke(ctx context.Context, token string) error {
	return s.repo.Delete(ctx, token)
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

// digest is an HMAC-SHA256 over the username, the issue time in nanoseconds
// and a snowflake id, which is unique per process even within one clock tick.
func (s *Service) digest(username string, now time.Time) string {
	return mac(s.secret, username, strconv.FormatInt(now.UnixNano(), 10), utilities.NewSnowflakeID())
}

// mac hashes fields joined by a NUL byte.
func mac(key []byte, fields ...string) string {
	h := hmac.New(sha256.New, key)
	for i, f := range fields {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}
