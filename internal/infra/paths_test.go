package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths_Layout(t *testing.T) {
	root := t.TempDir()
	p := ResolvePaths(root)

	assert.Equal(t, filepath.Join(root, "data", "ticker.db"), p.DB)
	assert.Equal(t, filepath.Join(root, "ticker.lock"), p.Lock)

	require.NoError(t, p.Ensure())
	st, err := os.Stat(p.Data)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
}

func TestGetWorkspaceDir_HomeOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)
	assert.Equal(t, home, GetWorkspaceDir())
}

func TestResolveConfigPath_EnvOverride(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/ticker/custom.yaml")
	assert.Equal(t, "/etc/ticker/custom.yaml", ResolveConfigPath())
}

func TestResolveConfigPath_WorkspaceConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)
	t.Setenv(EnvConfig, "")
	cfgPath := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("app:\n  name: x\n"), 0o600))

	if _, err := os.Stat(filepath.Join("configs", "config.yaml")); err == nil {
		t.Skip("a local configs/config.yaml takes precedence")
	}
	assert.Equal(t, cfgPath, ResolveConfigPath())
}

func TestAcquireInstanceLock_SecondInstanceFails(t *testing.T) {
	lock := ResolvePaths(t.TempDir()).Lock

	unlock, err := AcquireInstanceLock(lock, "1.2.3")
	require.NoError(t, err)

	owner, err := ReadInstanceLock(lock)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), owner.PID)
	assert.Equal(t, "1.2.3", owner.Version)
	assert.False(t, owner.StartedAt.IsZero())

	_, err = AcquireInstanceLock(lock, "1.2.3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another ticker is running")

	unlock()
	_, err = os.Stat(lock)
	assert.True(t, os.IsNotExist(err), "unlock removes the lock file")

	unlock2, err := AcquireInstanceLock(lock, "1.2.3")
	require.NoError(t, err)
	unlock2()
}

func TestAcquireInstanceLock_UnreadableOwner(t *testing.T) {
	lock := ResolvePaths(t.TempDir()).Lock
	require.NoError(t, os.WriteFile(lock, []byte("garbage"), 0o600))

	_, err := AcquireInstanceLock(lock, "1.0.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), lock)
}
