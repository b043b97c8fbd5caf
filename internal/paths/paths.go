// Package paths resolves the filesystem locations the core uses to store
// indexes, registry state, and logs, and derives the stable repository id
// used everywhere else in the module.
//
// Every function here is pure apart from reading environment variables and
// statting candidate marker directories; none of them create files. Callers
// that need a directory to exist are responsible for creating it.
package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// Environment variable names recognized for overriding resolved paths.
// Unknown environment variables are ignored by the rest of the module.
const (
	EnvWorkspaceRoot = "CODEINDEX_WORKSPACE_ROOT"
	EnvStorageRoot   = "CODEINDEX_STORAGE_ROOT"
	EnvRegistryPath  = "CODEINDEX_REGISTRY_PATH"
	EnvMultiRepo     = "CODEINDEX_MULTI_REPO"
	EnvSemantic      = "CODEINDEX_SEMANTIC"
	EnvEmbeddingKey  = "CODEINDEX_EMBEDDING_API_KEY"

	// EnvContainerRoot, when set, marks the process as running inside a
	// container whose filesystem layout is rooted at this path. Used by
	// TranslateContainerPath.
	EnvContainerRoot = "CODEINDEX_CONTAINER_ROOT"
	// EnvHostRoot is the host-visible prefix that replaces EnvContainerRoot.
	EnvHostRoot = "CODEINDEX_HOST_ROOT"

	registryFileName = "repository_registry.json"
	dataDirName       = ".codeindex"
)

// projectMarkers are files whose presence in a directory marks it as a
// project root when no explicit override or container root is found.
var projectMarkers = []string{"go.mod", ".git", "package.json", "pyproject.toml"}

// WorkspaceRoot resolves the root directory the dispatcher treats as "the
// current project" when no repository is explicitly named. Resolution
// order: explicit environment override, a detected container-like root,
// the nearest ancestor of the working directory containing a project
// marker, then the working directory itself.
func WorkspaceRoot() string {
	if v := os.Getenv(EnvWorkspaceRoot); v != "" {
		return v
	}
	if root := detectContainerRoot(); root != "" {
		return root
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if root := nearestMarkerAncestor(cwd); root != "" {
		return root
	}
	return cwd
}

// IndexStorageRoot resolves the directory under which per-repository index
// files are stored, one subdirectory per repo id.
func IndexStorageRoot() string {
	if v := os.Getenv(EnvStorageRoot); v != "" {
		return v
	}
	return filepath.Join(DataPath(), "indexes")
}

// RegistryPath resolves the path to the repository registry JSON document.
func RegistryPath() string {
	if v := os.Getenv(EnvRegistryPath); v != "" {
		return v
	}
	return filepath.Join(IndexStorageRoot(), registryFileName)
}

// DataPath resolves the root directory for all persistent state (indexes,
// registry, logs) when no more specific override is set.
func DataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), dataDirName)
	}
	return filepath.Join(home, dataDirName)
}

// TempPath resolves a scratch directory for transient work (e.g. migration
// staging files).
func TempPath() string {
	return filepath.Join(os.TempDir(), dataDirName)
}

// LogPath resolves the default log file path.
func LogPath() string {
	return filepath.Join(DataPath(), "logs", "codeindex.log")
}

// RepoID returns the stable 12-hex-char id for an absolute repository path.
// The same path always yields the same id: it is the first 12 characters
// of sha256 over the cleaned, absolute path.
func RepoID(absPath string) string {
	norm := filepath.Clean(absPath)
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])[:12]
}

// IndexPath returns the on-disk index file path for a repository id under
// the given storage root, per spec layout
// "<index_storage_root>/<repo_id>/code_index.db".
func IndexPath(storageRoot, repoID string) string {
	return filepath.Join(storageRoot, repoID, "code_index.db")
}

// TranslateContainerPath maps a container-internal path to its host-visible
// equivalent when the environment is detected as containerized (both
// EnvContainerRoot and EnvHostRoot are set and the path falls under the
// container root). Otherwise it returns p unchanged.
func TranslateContainerPath(p string) string {
	containerRoot := os.Getenv(EnvContainerRoot)
	hostRoot := os.Getenv(EnvHostRoot)
	if containerRoot == "" || hostRoot == "" {
		return p
	}
	rel, err := filepath.Rel(containerRoot, p)
	if err != nil || len(rel) >= 2 && rel[:2] == ".." {
		return p
	}
	return filepath.Join(hostRoot, rel)
}

// MultiRepoEnabled reports whether multi-repository dispatch is enabled.
// Defaults to true; only the literal value "0" or "false" disables it.
func MultiRepoEnabled() bool {
	v := os.Getenv(EnvMultiRepo)
	return v != "0" && v != "false"
}

// SemanticEnabled reports whether the optional semantic search path should
// be attempted. Defaults to false.
func SemanticEnabled() bool {
	v := os.Getenv(EnvSemantic)
	return v == "1" || v == "true"
}

// EmbeddingAPIKey returns the configured embedding-backend API key, or the
// empty string when unset.
func EmbeddingAPIKey() string {
	return os.Getenv(EnvEmbeddingKey)
}

// detectContainerRoot returns EnvContainerRoot when that variable is set
// and names an existing directory, independent of the working directory;
// otherwise it returns the empty string.
func detectContainerRoot() string {
	root := os.Getenv(EnvContainerRoot)
	if root == "" {
		return ""
	}
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		return root
	}
	return ""
}

// nearestMarkerAncestor walks up from dir looking for a project marker,
// returning the first ancestor (including dir itself) that has one.
func nearestMarkerAncestor(dir string) string {
	cur := dir
	for {
		for _, marker := range projectMarkers {
			if _, err := os.Stat(filepath.Join(cur, marker)); err == nil {
				return cur
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return ""
		}
		cur = parent
	}
}
