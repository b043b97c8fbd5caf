package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// MaxBackups bounds how many config backups are kept; older ones are
	// pruned after each new backup.
	MaxBackups = 3

	// BackupSuffix marks backup files next to the config.
	BackupSuffix = ".bak"
)

// BackupUserConfig writes a timestamped copy of the user config file next
// to it and prunes old backups. Returns the backup path, or "" when there
// is no user config to back up.
func BackupUserConfig() (string, error) {
	if !UserConfigExists() {
		return "", nil
	}

	configPath := GetUserConfigPath()
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config for backup: %w", err)
	}

	stamp := time.Now().Format("20060102-150405")
	backupPath := configPath + BackupSuffix + "." + stamp
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	// Pruning is best-effort: the backup itself already succeeded.
	_ = pruneOldBackups()

	return backupPath, nil
}

// ListUserConfigBackups returns every backup of the user config, newest
// first by modification time. A missing config directory is an empty
// list, not an error.
func ListUserConfigBackups() ([]string, error) {
	configPath := GetUserConfigPath()
	entries, err := os.ReadDir(filepath.Dir(configPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list config directory: %w", err)
	}

	prefix := filepath.Base(configPath) + BackupSuffix + "."
	var backups []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		backups = append(backups, filepath.Join(filepath.Dir(configPath), entry.Name()))
	}

	sort.Slice(backups, func(i, j int) bool {
		fi, errI := os.Stat(backups[i])
		fj, errJ := os.Stat(backups[j])
		if errI != nil || errJ != nil {
			return false
		}
		return fi.ModTime().After(fj.ModTime())
	})

	return backups, nil
}

// pruneOldBackups removes everything beyond the newest MaxBackups.
func pruneOldBackups() error {
	backups, err := ListUserConfigBackups()
	if err != nil {
		return err
	}
	for i := MaxBackups; i < len(backups); i++ {
		_ = os.Remove(backups[i])
	}
	return nil
}

// RestoreUserConfig replaces the user config with the given backup,
// backing up the current config first when one exists.
func RestoreUserConfig(backupPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup file not found: %w", err)
	}

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	if UserConfigExists() {
		if _, err := BackupUserConfig(); err != nil {
			return fmt.Errorf("backup current config before restore: %w", err)
		}
	}

	if err := os.MkdirAll(GetUserConfigDir(), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(GetUserConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("write restored config: %w", err)
	}
	return nil
}
