package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/coderidge/codeindex/internal/registry"
)

// buildLegacyIndex creates a minimal legacy-shaped index file (files,
// symbols, bm25_content) containing rows for two repositories
// distinguished only by filepath prefix, the layout a pre-migration
// unified index has.
func buildLegacyIndex(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			repository_id TEXT,
			path TEXT NOT NULL,
			relative_path TEXT,
			language TEXT,
			size INTEGER,
			content_hash TEXT,
			last_modified DATETIME,
			indexed_at DATETIME
		);
		CREATE TABLE symbols (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_id INTEGER,
			name TEXT,
			kind TEXT,
			line_start INTEGER,
			line_end INTEGER,
			column_start INTEGER,
			column_end INTEGER,
			signature TEXT,
			documentation TEXT
		);
		CREATE VIRTUAL TABLE bm25_content USING fts5(
			file_id UNINDEXED, filepath, filename, content, language, symbols, imports, comments
		);
	`)
	require.NoError(t, err)

	insertFile := func(path, relPath, lang string) int64 {
		res, err := db.Exec(`INSERT INTO files(repository_id, path, relative_path, language, size, content_hash, last_modified, indexed_at)
			VALUES ('legacy', ?, ?, ?, 100, 'abc', ?, ?)`, path, relPath, lang, time.Now(), time.Now())
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		return id
	}

	id1 := insertFile("/repos/alpha/main.go", "main.go", "go")
	_, err = db.Exec(`INSERT INTO symbols(file_id, name, kind, line_start, line_end, column_start, column_end, signature, documentation)
		VALUES (?, 'Run', 'function', 1, 3, 0, 0, 'func Run()', '')`, id1)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO bm25_content(file_id, filepath, filename, content, language, symbols, imports, comments)
		VALUES (?, '/repos/alpha/main.go', 'main.go', 'package main\nfunc Run() {}', 'go', 'Run', '', '')`, id1)
	require.NoError(t, err)

	id2 := insertFile("/repos/beta/app.py", "app.py", "python")
	_, err = db.Exec(`INSERT INTO symbols(file_id, name, kind, line_start, line_end, column_start, column_end, signature, documentation)
		VALUES (?, 'start', 'function', 1, 2, 0, 0, 'def start():', '')`, id2)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO bm25_content(file_id, filepath, filename, content, language, symbols, imports, comments)
		VALUES (?, '/repos/beta/app.py', 'app.py', 'def start():\n    pass', 'python', 'start', '', '')`, id2)
	require.NoError(t, err)
}

func TestMigrateSplitsByPrefix(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, "legacy.db")
	buildLegacyIndex(t, legacyPath)

	storageRoot := filepath.Join(dir, "storage")
	reg := registry.Open(filepath.Join(storageRoot, "repository_registry.json"))

	opts := Options{
		LegacyIndexPath: legacyPath,
		StorageRoot:     storageRoot,
		Registry:        reg,
		Rules: []PrefixRule{
			{Prefix: "/repos/alpha/", RepoPath: "/repos/alpha", Name: "alpha", Priority: 10},
			{Prefix: "/repos/beta/", RepoPath: "/repos/beta", Name: "beta", Priority: 5},
		},
	}

	result, err := Migrate(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, result.Repos, 2)

	for _, r := range result.Repos {
		require.NoError(t, r.Err)
		require.False(t, r.Skipped)
		require.Equal(t, 1, r.FilesMigrated)
		require.Equal(t, 1, r.SymbolsMigrated)
	}

	entries, err := reg.List(false)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestMigrateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, "legacy.db")
	buildLegacyIndex(t, legacyPath)

	storageRoot := filepath.Join(dir, "storage")
	reg := registry.Open(filepath.Join(storageRoot, "repository_registry.json"))

	opts := Options{
		LegacyIndexPath: legacyPath,
		StorageRoot:     storageRoot,
		Registry:        reg,
		Rules: []PrefixRule{
			{Prefix: "/repos/alpha/", RepoPath: "/repos/alpha", Name: "alpha"},
		},
	}

	first, err := Migrate(context.Background(), opts)
	require.NoError(t, err)
	require.False(t, first.Repos[0].Skipped)

	second, err := Migrate(context.Background(), opts)
	require.NoError(t, err)
	require.True(t, second.Repos[0].Skipped)
}

func TestMigrateForceReRuns(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, "legacy.db")
	buildLegacyIndex(t, legacyPath)

	storageRoot := filepath.Join(dir, "storage")
	reg := registry.Open(filepath.Join(storageRoot, "repository_registry.json"))

	opts := Options{
		LegacyIndexPath: legacyPath,
		StorageRoot:     storageRoot,
		Registry:        reg,
		Rules: []PrefixRule{
			{Prefix: "/repos/alpha/", RepoPath: "/repos/alpha", Name: "alpha"},
		},
	}

	_, err := Migrate(context.Background(), opts)
	require.NoError(t, err)

	opts.Force = true
	second, err := Migrate(context.Background(), opts)
	require.NoError(t, err)
	require.False(t, second.Repos[0].Skipped)
	require.Equal(t, 1, second.Repos[0].FilesMigrated)
}

func TestMigrateIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, "legacy.db")
	buildLegacyIndex(t, legacyPath)

	storageRoot := filepath.Join(dir, "storage")
	reg := registry.Open(filepath.Join(storageRoot, "repository_registry.json"))

	opts := Options{
		LegacyIndexPath: legacyPath,
		StorageRoot:     storageRoot,
		Registry:        reg,
		Rules: []PrefixRule{
			{Prefix: "/repos/alpha/", RepoPath: "/repos/alpha", Name: "alpha"},
			{Prefix: "/repos/nonexistent/", RepoPath: "/repos/nonexistent", Name: "ghost"},
		},
	}

	result, err := Migrate(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, result.Repos, 2)
	require.NoError(t, result.Repos[0].Err)
	require.NoError(t, result.Repos[1].Err)
	require.Equal(t, 0, result.Repos[1].FilesMigrated)
}
