package token

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/emberctl/internal/testutil"
)

func newService(t *testing.T) (*Service, *sqlx.DB) {
	t.Helper()
	db := testutil.NewDB(t, testutil.UsersDDL,
		`INSERT INTO users (name, password_hash) VALUES ('alice', 'x'), ('bob', 'y')`)
	s := NewService(db, 0)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s, db
}

func TestIssueAndValidate(t *testing.T) {
	s, db := newService(t)
	ctx := context.Background()
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	tok, err := s.Issue(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, tok.Token, 64)
	assert.Equal(t, "alice", tok.User)
	assert.True(t, tok.ExpireAt.Equal(fixed.Add(3*time.Hour)))

	got, err := s.Validate(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.User)
	assert.True(t, got.ExpireAt.Equal(tok.ExpireAt))

	var n int
	require.NoError(t, db.GetContext(ctx, &n, `SELECT COUNT(*) FROM login_token WHERE user_name = 'alice'`))
	assert.Equal(t, 1, n)
}

func TestIssue_UniqueWithinSameInstant(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	fixed := time.Now()
	s.now = func() time.Time { return fixed }

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok, err := s.Issue(ctx, "alice")
		require.NoError(t, err)
		require.False(t, seen[tok.Token])
		seen[tok.Token] = true
	}
}

func TestValidate_Expired(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	issuedAt := time.Now()
	s.now = func() time.Time { return issuedAt }

	tok, err := s.Issue(ctx, "bob")
	require.NoError(t, err)

	s.now = func() time.Time { return issuedAt.Add(3*time.Hour + time.Second) }
	_, err = s.Validate(ctx, tok.Token)
	require.ErrorIs(t, err, ErrTokenExpired)

	// row is still there; expiry is checked lazily
	_, err = s.repo.Get(ctx, tok.Token)
	require.NoError(t, err)
}

func TestValidate_NotFound(t *testing.T) {
	s, _ := newService(t)
	_, err := s.Validate(context.Background(), "nope")
	require.ErrorIs(t, err, ErrTokenNotFound)
	_, err = s.Validate(context.Background(), "")
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestIssue_UnknownUserRejectedByForeignKey(t *testing.T) {
	s, _ := newService(t)
	_, err := s.Issue(context.Background(), "mallory")
	require.Error(t, err)
}

func TestRevoke(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	tok, err := s.Issue(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, s.Revoke(ctx, tok.Token))
	_, err = s.Validate(ctx, tok.Token)
	require.ErrorIs(t, err, ErrTokenNotFound)
	require.NoError(t, s.Revoke(ctx, tok.Token))
}

func TestPurgeExpired(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	base := time.Now()

	s.now = func() time.Time { return base.Add(-4 * time.Hour) }
	old, err := s.Issue(ctx, "alice")
	require.NoError(t, err)
	s.now = func() time.Time { return base }
	fresh, err := s.Issue(ctx, "bob")
	require.NoError(t, err)

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.repo.Get(ctx, old.Token)
	require.Error(t, err)
	_, err = s.Validate(ctx, fresh.Token)
	require.NoError(t, err)
}

func TestIssue_PersistenceFailurePropagates(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO login_token`)).WillReturnError(errors.New("disk full"))

	s := NewService(sqlx.NewDb(mockDB, "sqlmock"), time.Hour)
	_, err = s.Issue(context.Background(), "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSecret_ChangesDigest(t *testing.T) {
	fixed := time.Now()
	a := &Service{secret: []byte("one"), now: time.Now}
	b := &Service{secret: []byte("two"), now: time.Now}
	assert.Len(t, a.digest("alice", fixed), 64)
	assert.NotEqual(t, a.digest("alice", fixed), b.digest("alice", fixed))

	s := NewService(nil, 0, WithSecret("k"))
	assert.Equal(t, []byte("k"), s.secret)
	assert.Equal(t, DefaultTTL, s.ttl)
}

func TestMac_FieldBoundaries(t *testing.T) {
	key := []byte("k")
	assert.NotEqual(t, mac(key, "a1", "2", "x"), mac(key, "a", "12", "x"))
	assert.NotEqual(t, mac(key, "ab", "", "x"), mac(key, "a", "b", "x"))
	assert.Equal(t, mac(key, "a", "12", "x"), mac(key, "a", "12", "x"))
	assert.Len(t, mac(key, "a"), 64)
}

func TestContextRoundTrip(t *testing.T) {
	s, _ := newService(t)
	tok, err := s.Issue(context.Background(), "alice")
	require.NoError(t, err)

	ctx := WithToken(context.Background(), tok)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, tok.Token, got.Token)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
