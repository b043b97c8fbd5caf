package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(Repository{ID: "repo1", Path: "/tmp/repo1", Name: "repo1"}, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngineUpsertFileAssignsAndReusesID(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	id1, err := e.UpsertFile(ctx, &File{Path: "/tmp/repo1/a.go", RelativePath: "a.go", Language: "go", IndexedAt: time.Now()})
	require.NoError(t, err)
	assert.NotZero(t, id1)

	id2, err := e.UpsertFile(ctx, &File{Path: "/tmp/repo1/a.go", RelativePath: "a.go", Language: "go", ContentHash: "deadbeef", IndexedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "re-indexing the same relative path reuses its file id")
}

func TestEngineUpsertSymbolsReplacesPriorSet(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	fileID, err := e.UpsertFile(ctx, &File{Path: "/tmp/repo1/a.go", RelativePath: "a.go", Language: "go"})
	require.NoError(t, err)

	require.NoError(t, e.UpsertSymbols(ctx, fileID, []*Symbol{
		{Name: "Foo", Kind: KindFunction},
		{Name: "Bar", Kind: KindFunction},
	}))
	syms, err := e.ListSymbolsInFile(ctx, "a.go")
	require.NoError(t, err)
	require.Len(t, syms, 2)

	require.NoError(t, e.UpsertSymbols(ctx, fileID, []*Symbol{
		{Name: "Baz", Kind: KindFunction},
	}))
	syms, err = e.ListSymbolsInFile(ctx, "a.go")
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "Baz", syms[0].Name)
}

func TestEngineLookupSymbolOrdersByKindPriority(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	fileA, err := e.UpsertFile(ctx, &File{Path: "/tmp/repo1/a.go", RelativePath: "a.go"})
	require.NoError(t, err)
	fileB, err := e.UpsertFile(ctx, &File{Path: "/tmp/repo1/b.go", RelativePath: "b.go"})
	require.NoError(t, err)

	require.NoError(t, e.UpsertSymbols(ctx, fileA, []*Symbol{{Name: "Widget", Kind: KindField}}))
	require.NoError(t, e.UpsertSymbols(ctx, fileB, []*Symbol{{Name: "Widget", Kind: KindClass}}))

	syms, files, err := e.LookupSymbol(ctx, "Widget")
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, KindClass, syms[0].Kind)
	assert.Equal(t, "b.go", files[0].RelativePath)
}

func TestEngineRemoveFileDeletesSymbolsAndBM25Row(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	fileID, err := e.UpsertFile(ctx, &File{Path: "/tmp/repo1/a.go", RelativePath: "a.go"})
	require.NoError(t, err)
	require.NoError(t, e.UpsertSymbols(ctx, fileID, []*Symbol{{Name: "Foo", Kind: KindFunction}}))
	require.NoError(t, e.IndexBM25(ctx, &BM25Row{FileID: fileID, FilePath: "a.go", FileName: "a.go", Content: "func Foo() {}"}))

	require.NoError(t, e.RemoveFile(ctx, "a.go"))

	syms, err := e.ListSymbolsInFile(ctx, "a.go")
	require.NoError(t, err)
	assert.Empty(t, syms)

	ids, err := e.BM25FileIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, fileID)
}

func TestEngineRepositoryStatsCountsFilesAndSymbols(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	fileID, err := e.UpsertFile(ctx, &File{Path: "/tmp/repo1/a.go", RelativePath: "a.go", Language: "go"})
	require.NoError(t, err)
	require.NoError(t, e.UpsertSymbols(ctx, fileID, []*Symbol{{Name: "Foo", Kind: KindFunction}, {Name: "Bar", Kind: KindFunction}}))

	stats, err := e.RepositoryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, 2, stats.TotalSymbols)
	assert.Equal(t, 1, stats.LanguageStats["go"])
}

func TestEngineRejectsNewerSchemaVersion(t *testing.T) {
	dir := t.TempDir() + "/repo.db"
	e, err := Open(Repository{ID: "repo1", Path: "/tmp/repo1"}, dir)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	// Simulate an index stamped by a future version of this engine.
	e2, err := Open(Repository{ID: "repo1", Path: "/tmp/repo1"}, dir)
	require.NoError(t, err)
	_, execErr := e2.db.Exec(`UPDATE schema_version SET version = ?`, schemaVersion+1)
	require.NoError(t, execErr)
	require.NoError(t, e2.Close())

	_, err = Open(Repository{ID: "repo1", Path: "/tmp/repo1"}, dir)
	assert.Error(t, err)
}
