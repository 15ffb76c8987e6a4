package actuator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/proxlock/internal/errors"
	"codeberg.org/mutker/proxlock/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRunsLockAndUnlock(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "state")

	c, err := NewCommand("echo locked > "+marker, "echo unlocked > "+marker, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, c.SetLocked(context.Background(), true))
	got, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "locked\n", string(got))

	require.NoError(t, c.SetLocked(context.Background(), false))
	got, err = os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "unlocked\n", string(got))
}

func TestCommandEmptyUnlockIsNoop(t *testing.T) {
	c, err := NewCommand("true", "", logger.Nop())
	require.NoError(t, err)

	assert.NoError(t, c.SetLocked(context.Background(), false))
}

func TestCommandFailure(t *testing.T) {
	c, err := NewCommand("echo nope >&2; exit 3", "", logger.Nop())
	require.NoError(t, err)

	err = c.SetLocked(context.Background(), true)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrCommandFailed))
	assert.Contains(t, err.Error(), "nope")
}

func TestCommandRequiresLock(t *testing.T) {
	_, err := NewCommand("  ", "true", logger.Nop())
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}

func TestOpenSelectsKind(t *testing.T) {
	a, err := Open(context.Background(), Options{Kind: KindNone})
	require.NoError(t, err)
	assert.IsType(t, &None{}, a)
	assert.NoError(t, a.SetLocked(context.Background(), true))
	assert.NoError(t, a.Close())

	a, err = Open(context.Background(), Options{Kind: "Command", LockCommand: "true"})
	require.NoError(t, err)
	assert.IsType(t, &Command{}, a)

	_, err = Open(context.Background(), Options{Kind: "xscreensaver"})
	assert.True(t, errors.HasCode(err, ErrUnknownKind))
}

func TestResolveSessionID(t *testing.T) {
	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	assert.Equal(t, "auto", resolveSessionID("", getenv))

	env["XDG_SESSION_ID"] = "c2"
	assert.Equal(t, "c2", resolveSessionID("", getenv))
	assert.Equal(t, "7", resolveSessionID("7", getenv))
}

func TestLockMethod(t *testing.T) {
	assert.Equal(t, "org.freedesktop.login1.Session.Lock", lockMethod(true))
	assert.Equal(t, "org.freedesktop.login1.Session.Unlock", lockMethod(false))
}
