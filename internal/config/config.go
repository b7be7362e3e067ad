// Package config collects process settings from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/emberctl/pkg/database"
	"github.com/ovaphlow/emberctl/pkg/utilities"
)

type Config struct {
	DataDir       string
	SecretKey     string
	ListenAddr    string
	RootPath      string
	AdminUsername string
	HashAlgo      string
	CaptchaTTL    time.Duration
	// CaptchaMaxEntries bounds the in-memory challenge store.
	CaptchaMaxEntries int
	TokenTTL          time.Duration
	Database          database.Config
	Log               utilities.Config
}

// Load reads configuration. Missing values fall back to defaults that match a
// single-node install writing everything below ./data.
func Load() (*Config, error) {
	// best-effort: if no .env exists, continue with the real environment
	_ = godotenv.Load()

	dataDir := getEnv("EMBERCTL_DATA_DIR", "data")
	secret := os.Getenv("SECRET_KEY")
	if secret == "" {
		s, err := utilities.RandomHex(32)
		if err != nil {
			return nil, err
		}
		secret = s
	}

	logCfg := utilities.ConfigFromEnv()
	if logCfg.Dir == "" {
		logCfg.Dir = filepath.Join(dataDir, "logs")
	}

	return &Config{
		DataDir:           dataDir,
		SecretKey:         secret,
		ListenAddr:        getEnv("LISTEN_ADDR", "0.0.0.0:8000"),
		RootPath:          os.Getenv("ROOT_PATH"),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		HashAlgo:          getEnv("PASSWORD_HASH_ALGO", "argon2id"),
		CaptchaTTL:        getDuration("CAPTCHA_TTL", 5*time.Minute),
		CaptchaMaxEntries: getInt("CAPTCHA_MAX_ENTRIES", 10000),
		TokenTTL:          getDuration("TOKEN_TTL", 3*time.Hour),
		Database:          database.ConfigFromEnv(dataDir),
		Log:               logCfg,
	}, nil
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// getDuration accepts Go durations ("90s") or a bare number of seconds.
func getDuration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil && dur > 0 {
		return dur
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return d
}

// getInt falls back to d for missing, malformed or non-positive values.
func getInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil && n > 0 {
		return n
	}
	return d
}
