package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/emberctl/pkg/database"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"EMBERCTL_DATA_DIR", "SECRET_KEY", "LISTEN_ADDR", "ROOT_PATH", "ADMIN_USERNAME",
		"PASSWORD_HASH_ALGO", "CAPTCHA_TTL", "CAPTCHA_MAX_ENTRIES", "TOKEN_TTL", "DATABASE_URL", "LOG_DIR", "LOG_LEVEL", "LOG_DEV",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Len(t, cfg.SecretKey, 64)
	assert.Equal(t, "0.0.0.0:8000", cfg.ListenAddr)
	assert.Equal(t, "admin", cfg.AdminUsername)
	assert.Equal(t, "argon2id", cfg.HashAlgo)
	assert.Equal(t, 5*time.Minute, cfg.CaptchaTTL)
	assert.Equal(t, 10000, cfg.CaptchaMaxEntries)
	assert.Equal(t, 3*time.Hour, cfg.TokenTTL)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, filepath.Join("data", "db.sqlite3"), cfg.Database.DSN)
	assert.Equal(t, filepath.Join("data", "logs"), cfg.Log.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("EMBERCTL_DATA_DIR", "/srv/ember")
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("TOKEN_TTL", "90m")
	t.Setenv("CAPTCHA_TTL", "30")
	t.Setenv("CAPTCHA_MAX_ENTRIES", "500")
	t.Setenv("DATABASE_URL", "postgres://localhost/ember")
	t.Setenv("ROOT_PATH", "/sd")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.SecretKey)
	assert.Equal(t, 90*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 30*time.Second, cfg.CaptchaTTL)
	assert.Equal(t, 500, cfg.CaptchaMaxEntries)
	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "/sd", cfg.RootPath)
	assert.Equal(t, filepath.Join("/srv/ember", "logs"), cfg.Log.Dir)
}

func TestGetDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("X_DUR", "soon")
	assert.Equal(t, time.Minute, getDuration("X_DUR", time.Minute))
	t.Setenv("X_DUR", "-5s")
	assert.Equal(t, time.Minute, getDuration("X_DUR", time.Minute))
}

func TestGetInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("X_INT", "many")
	assert.Equal(t, 7, getInt("X_INT", 7))
	t.Setenv("X_INT", "0")
	assert.Equal(t, 7, getInt("X_INT", 7))
	t.Setenv("X_INT", "12")
	assert.Equal(t, 12, getInt("X_INT", 7))
}
