package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeUserConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := GetUserConfigPath()
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0o755))
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath
}

func TestBackupUserConfig_NoConfig_ReturnsEmpty(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := BackupUserConfig()
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupUserConfig_CreatesTimestampedCopy(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	writeUserConfig(t, "version: 1\n")

	backupPath, err := BackupUserConfig()
	require.NoError(t, err)
	require.NotEmpty(t, backupPath)

	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
	assert.Contains(t, filepath.Base(backupPath), BackupSuffix)
}

func TestBackupUserConfig_PrunesOldBackups(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	writeUserConfig(t, "version: 1\n")

	// Backup names carry a second-resolution timestamp, so identical names
	// would overwrite; space them out by touching mtimes instead of sleeping.
	for i := 0; i < MaxBackups+2; i++ {
		path, err := BackupUserConfig()
		require.NoError(t, err)
		older := time.Now().Add(-time.Duration(MaxBackups+2-i) * time.Hour)
		require.NoError(t, os.Chtimes(path, older, older))
		// Distinct names need distinct timestamps in the filename too.
		renamed := path + "-" + string(rune('a'+i))
		require.NoError(t, os.Rename(path, renamed))
	}

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.Len(t, backups, MaxBackups)
}

func TestListUserConfigBackups_EmptyWhenNone(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	writeUserConfig(t, "version: 1\n")

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestRestoreUserConfig_RestoresContent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configPath := writeUserConfig(t, "search:\n  max_results: 10\n")

	backupPath, err := BackupUserConfig()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(configPath, []byte("search:\n  max_results: 99\n"), 0o644))
	require.NoError(t, RestoreUserConfig(backupPath))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_results: 10")
}

func TestRestoreUserConfig_MissingBackup_ReturnsError(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	err := RestoreUserConfig(filepath.Join(t.TempDir(), "nope.bak"))
	assert.Error(t, err)
}
