package oplog

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
	"github.com/ovaphlow/emberctl/pkg/database"
)

func newRecorder(t *testing.T) (*Recorder, *sqlx.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	r := NewRecorder(db)
	require.NoError(t, r.EnsureSchema(context.Background()))
	return r, db
}

func TestLog_AssignsIDAndTime(t *testing.T) {
	r, _ := newRecorder(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return at }

	e, err := r.Log(ctx, "alice", ModuleUser, ActionLogin, "login succeeded")
	require.NoError(t, err)
	assert.NotZero(t, e.ID)
	assert.True(t, e.Time.Equal(at))

	e2, err := r.Log(ctx, "ghost", ModuleUser, ActionLogin, "user not found")
	require.NoError(t, err)
	assert.Greater(t, e2.ID, e.ID)
}

func TestList_NewestFirst(t *testing.T) {
	r, _ := newRecorder(t)
	ctx := context.Background()
	for _, d := range []string{"first", "second", "third"} {
		_, err := r.Log(ctx, ActorSystem, ModuleUser, ActionCreate, d)
		require.NoError(t, err)
	}

	got, err := r.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Detail)
	assert.Equal(t, "second", got[1].Detail)
	assert.Equal(t, ActorSystem, got[0].User)
}

func TestLogWith_RolledBackWithTransaction(t *testing.T) {
	r, db := newRecorder(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := database.WithTx(ctx, db, nil, func(ctx context.Context, tx database.DBTX) error {
		if _, err := r.LogWith(ctx, tx, ActorSystem, ModuleUser, ActionCreate, "inside tx"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := r.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLog_PersistenceFailurePropagates(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO operation_log`)).WillReturnError(errors.New("read-only file system"))

	r := NewRecorder(sqlx.NewDb(mockDB, "sqlmock"))
	_, err = r.Log(context.Background(), "alice", ModuleUser, ActionLogin, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only file system")
	require.NoError(t, mock.ExpectationsWereMet())
}
