package main

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("EMBERCTL_DATA_DIR", dir)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOG_DIR", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PASSWORD_HASH_ALGO", "bcrypt")
	t.Setenv("ADMIN_USERNAME", "root")
}

var passwordLine = regexp.MustCompile(`password: (?:\x1b\[[0-9;]*m)?([A-Za-z0-9_-]{32})`)

func TestInitResetAudit(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "root")
	m := passwordLine.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	first := m[1]

	out, err = run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already initialized")
	assert.NotContains(t, out, "password:")

	out, err = run(t, "reset-pwd")
	require.NoError(t, err)
	m = passwordLine.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	assert.NotEqual(t, first, m[1])

	out, err = run(t, "audit", "-n", "5")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "system\tuser/reset_password")
	assert.Contains(t, lines[1], "system\tuser/create")
}

func TestResetPwd_BeforeInitFails(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "reset-pwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user not found")
}

func TestUnknownHashAlgo(t *testing.T) {
	setupEnv(t)
	t.Setenv("PASSWORD_HASH_ALGO", "md5")
	_, err := run(t, "init")
	require.Error(t, err)
}

func TestVersionFlag(t *testing.T) {
	out, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "emberctl version "+version)
}
