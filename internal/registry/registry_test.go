package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repository_registry.json")
	r := Open(path)

	err := r.Register(Entry{
		RepositoryID: "repo1",
		Name:         "widgets",
		Path:         "/repos/widgets",
		IndexPath:    "/data/index/repo1",
		Active:       true,
		Priority:     10,
	})
	require.NoError(t, err)

	got, ok, err := r.Get("repo1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "widgets", got.Name)
	require.Equal(t, 10, got.Priority)
}

func TestGetMissingIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repository_registry.json")
	r := Open(path)

	_, ok, err := r.Get("nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestListActiveOnlyAndOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repository_registry.json")
	r := Open(path)

	require.NoError(t, r.Register(Entry{RepositoryID: "low", Active: true, Priority: 1}))
	require.NoError(t, r.Register(Entry{RepositoryID: "high", Active: true, Priority: 100}))
	require.NoError(t, r.Register(Entry{RepositoryID: "inactive", Active: false, Priority: 50}))

	all, err := r.List(false)
	require.NoError(t, err)
	require.Len(t, all, 3)

	active, err := r.List(true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, "high", active[0].RepositoryID)
	require.Equal(t, "low", active[1].RepositoryID)
}

func TestUpdateStatsIgnoresUnknownRepo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repository_registry.json")
	r := Open(path)

	require.NoError(t, r.Register(Entry{RepositoryID: "repo1", Active: true}))
	now := time.Now()
	require.NoError(t, r.UpdateStats("repo1", map[string]int{"go": 12}, 5, 40, now))
	require.NoError(t, r.UpdateStats("unknown", map[string]int{"go": 1}, 1, 1, now))

	got, ok, err := r.Get("repo1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 5, got.TotalFiles)
	require.Equal(t, 40, got.TotalSymbols)
	require.Equal(t, 12, got.LanguageStats["go"])

	_, ok, err = r.Get("unknown")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeactivateAndActivate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repository_registry.json")
	r := Open(path)

	require.NoError(t, r.Register(Entry{RepositoryID: "repo1", Active: true}))
	require.NoError(t, r.Deactivate("repo1"))

	got, ok, err := r.Get("repo1")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, got.Active)

	require.NoError(t, r.Activate("repo1"))
	got, ok, err = r.Get("repo1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Active)
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repository_registry.json")
	r := Open(path)

	require.NoError(t, r.Register(Entry{RepositoryID: "repo1", Active: true}))
	require.NoError(t, r.Remove("repo1"))

	_, ok, err := r.Get("repo1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestResolveByPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repository_registry.json")
	r := Open(path)

	require.NoError(t, r.Register(Entry{RepositoryID: "repo1", Path: "/repos/widgets", Active: true}))

	got, ok, err := r.ResolveByPath("/repos/widgets")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "repo1", got.RepositoryID)

	_, ok, err = r.ResolveByPath("/repos/other")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRegistryPersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repository_registry.json")

	r1 := Open(path)
	require.NoError(t, r1.Register(Entry{RepositoryID: "repo1", Name: "widgets", Active: true}))

	r2 := Open(path)
	got, ok, err := r2.Get("repo1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "widgets", got.Name)
}

func TestToRepositoryRoundTrip(t *testing.T) {
	e := Entry{
		RepositoryID: "repo1",
		Name:         "widgets",
		Path:         "/repos/widgets",
		IndexPath:    "/data/index/repo1",
		Active:       true,
		Priority:     5,
	}
	repo := e.ToRepository()
	require.Equal(t, e.RepositoryID, repo.ID)
	require.Equal(t, e.Name, repo.Name)

	back := EntryFromRepository(repo)
	require.Equal(t, e.RepositoryID, back.RepositoryID)
	require.Equal(t, e.Path, back.Path)
}
