package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("VM_STR", "redis")
	t.Setenv("VM_INT", "12")
	t.Setenv("VM_INT_BAD", "-3")
	t.Setenv("VM_BOOL", "true")
	t.Setenv("VM_DUR", "90s")
	t.Setenv("VM_DUR_BAD", "soon")

	assert.Equal(t, "redis", Env("VM_STR", "memory"))
	assert.Equal(t, "memory", Env("VM_UNSET", "memory"))
	assert.Equal(t, 12, EnvInt("VM_INT", 4))
	assert.Equal(t, 4, EnvInt("VM_INT_BAD", 4))
	assert.True(t, EnvBool("VM_BOOL", false))
	assert.False(t, EnvBool("VM_UNSET", false))
	assert.Equal(t, 90*time.Second, EnvDuration("VM_DUR", time.Minute))
	assert.Equal(t, time.Minute, EnvDuration("VM_DUR_BAD", time.Minute))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("VM_FROM_FILE=yes\nVM_PRESET=file\n"), 0o600))
	t.Setenv("VM_PRESET", "process")
	t.Setenv("VM_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("VM_FROM_FILE"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "yes", os.Getenv("VM_FROM_FILE"))
	assert.Equal(t, "process", os.Getenv("VM_PRESET"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestDedup(t *testing.T) {
	got := Dedup([]string{"https://a/", "https://a", " ", "https://b", "https://a//"})
	assert.Equal(t, []string{"https://a", "https://b"}, got)
}

func TestHashOrRead(t *testing.T) {
	hash, err := HashOrRead("hunter2")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword(hash, []byte("hunter2")))

	again, err := HashOrRead(string(hash))
	require.NoError(t, err)
	assert.Equal(t, hash, again)
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestDrainAndClose(t *testing.T) {
	body := &closeRecorder{Reader: strings.NewReader(`{"jsonrpc":"2.0","result":"0x1"}`)}
	require.NoError(t, DrainAndClose(body))
	assert.True(t, body.closed)
	n, _ := body.Read(make([]byte, 1))
	assert.Zero(t, n)

	assert.NoError(t, DrainAndClose(nil))
}
