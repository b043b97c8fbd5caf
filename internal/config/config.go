// Package config loads the layered configuration for the indexing engine:
// built-in defaults, then the user config file, then a per-project config
// file, then environment variables, each layer overriding the one below.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectType represents the type of project detected at a directory root.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeRuby    ProjectType = "ruby"
	ProjectTypePHP     ProjectType = "php"
	ProjectTypeJVM     ProjectType = "jvm"
	ProjectTypeUnknown ProjectType = "unknown"
)

// Config is the complete configuration document.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Semantic    SemanticConfig    `yaml:"semantic" json:"semantic"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// PathsConfig holds include and exclude glob patterns relative to the
// repository root. They are loaded, merged and validated with the rest of
// the config; the directory walker does not read them and applies its own
// ignore-directory set and the root .gitignore instead.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// SearchConfig tunes query behavior.
type SearchConfig struct {
	// BM25Backend selects the full-text backend: "sqlite" (default,
	// FTS5 inside the index file) or "bleve" (its own sibling directory).
	BM25Backend string `yaml:"bm25_backend" json:"bm25_backend"`

	// MaxResults is the default result limit when a caller passes none.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// ContextLines is the snippet context window on either side of a
	// match. It is loaded and merged, but search does not read it: snippets
	// come from the full-text backend at a fixed token count.
	ContextLines int `yaml:"context_lines" json:"context_lines"`

	// RepoTimeout is the per-repository per-query hard cap. Parsed as a
	// Go duration string ("300ms", "1s").
	RepoTimeout string `yaml:"repo_timeout" json:"repo_timeout"`
}

// SemanticConfig holds the optional vector-search settings. They are
// loaded and merged, but search does not read them: every search runs
// against BM25 whether Enabled is set or not.
type SemanticConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	Dimensions int  `yaml:"dimensions" json:"dimensions"`
}

// PerformanceConfig configures indexing throughput and resource bounds.
type PerformanceConfig struct {
	// IndexWorkers is the parser worker-pool size. 0 means one per CPU,
	// capped at 8.
	IndexWorkers int `yaml:"index_workers" json:"index_workers"`

	// QueueDepth bounds the walker-to-worker queue so memory stays
	// bounded regardless of repository size.
	QueueDepth int `yaml:"queue_depth" json:"queue_depth"`

	// MaxFileSize is the per-file size threshold in bytes; larger files
	// are skipped during directory indexing.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`

	// SQLiteCacheMB is a page-cache size hint for each index file. It is
	// loaded and merged, but index files are opened without reading it.
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// LoggingConfig configures the debug log sink.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// defaultExcludePatterns is the default value of Paths.Exclude.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// Environment variable names recognized by applyEnvOverrides.
const (
	envBM25Backend  = "CODEINDEX_BM25_BACKEND"
	envMaxResults   = "CODEINDEX_MAX_RESULTS"
	envIndexWorkers = "CODEINDEX_INDEX_WORKERS"
	envMaxFileSize  = "CODEINDEX_MAX_FILE_SIZE"
	envSemantic     = "CODEINDEX_SEMANTIC"
	envLogLevel     = "CODEINDEX_LOG_LEVEL"
	envRepoTimeout  = "CODEINDEX_REPO_TIMEOUT"
)

// projectConfigName is the per-project config file looked up at the
// repository root.
const projectConfigName = ".codeindex.yaml"

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include: []string{},
			Exclude: defaultExcludePatterns,
		},
		Search: SearchConfig{
			BM25Backend:  "sqlite",
			MaxResults:   20,
			ContextLines: 2,
			RepoTimeout:  "300ms",
		},
		Semantic: SemanticConfig{
			Enabled:    false,
			Dimensions: 384,
		},
		Performance: PerformanceConfig{
			IndexWorkers:  0,
			QueueDepth:    64,
			MaxFileSize:   1 << 20,
			SQLiteCacheMB: 64,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetUserConfigPath returns the user-level config file path.
func GetUserConfigPath() string {
	return filepath.Join(GetUserConfigDir(), "config.yaml")
}

// GetUserConfigDir returns the user-level config directory, honoring
// XDG_CONFIG_HOME when set.
func GetUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codeindex")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "codeindex")
	}
	return filepath.Join(home, ".config", "codeindex")
}

// UserConfigExists reports whether a user config file is present.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}

// Load builds the effective config for a project directory: defaults,
// then the user config, then the project's .codeindex.yaml, then
// environment variables. A missing file at any layer is not an error.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if UserConfigExists() {
		user := &Config{}
		if err := user.loadYAML(GetUserConfigPath()); err != nil {
			return nil, fmt.Errorf("load user config: %w", err)
		}
		cfg.mergeWith(user)
	}

	projectPath := filepath.Join(dir, projectConfigName)
	if _, err := os.Stat(projectPath); err == nil {
		project := &Config{}
		if err := project.loadYAML(projectPath); err != nil {
			return nil, fmt.Errorf("load project config: %w", err)
		}
		cfg.mergeWith(project)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUserConfig loads only the user-level config merged over defaults.
func LoadUserConfig() (*Config, error) {
	cfg := NewConfig()
	if UserConfigExists() {
		user := &Config{}
		if err := user.loadYAML(GetUserConfigPath()); err != nil {
			return nil, err
		}
		cfg.mergeWith(user)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// mergeWith overlays non-zero fields from other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = other.Paths.Exclude
	}
	if other.Search.BM25Backend != "" {
		c.Search.BM25Backend = other.Search.BM25Backend
	}
	if other.Search.MaxResults > 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.ContextLines > 0 {
		c.Search.ContextLines = other.Search.ContextLines
	}
	if other.Search.RepoTimeout != "" {
		c.Search.RepoTimeout = other.Search.RepoTimeout
	}
	if other.Semantic.Enabled {
		c.Semantic.Enabled = true
	}
	if other.Semantic.Dimensions > 0 {
		c.Semantic.Dimensions = other.Semantic.Dimensions
	}
	if other.Performance.IndexWorkers > 0 {
		c.Performance.IndexWorkers = other.Performance.IndexWorkers
	}
	if other.Performance.QueueDepth > 0 {
		c.Performance.QueueDepth = other.Performance.QueueDepth
	}
	if other.Performance.MaxFileSize > 0 {
		c.Performance.MaxFileSize = other.Performance.MaxFileSize
	}
	if other.Performance.SQLiteCacheMB > 0 {
		c.Performance.SQLiteCacheMB = other.Performance.SQLiteCacheMB
	}
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies recognized environment variables as the
// highest-precedence layer. Unknown variables are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envBM25Backend); v != "" {
		c.Search.BM25Backend = v
	}
	if v := os.Getenv(envMaxResults); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv(envIndexWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Performance.IndexWorkers = n
		}
	}
	if v := os.Getenv(envMaxFileSize); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Performance.MaxFileSize = n
		}
	}
	if v := os.Getenv(envSemantic); v != "" {
		c.Semantic.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envRepoTimeout); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			c.Search.RepoTimeout = v
		}
	}
}

// RepoTimeoutDuration parses Search.RepoTimeout, falling back to 300ms on
// a malformed value so a bad config never disables the hard cap.
func (c *Config) RepoTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Search.RepoTimeout)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Search.BM25Backend {
	case "", "sqlite", "bleve":
	default:
		return fmt.Errorf("invalid bm25_backend %q (want sqlite or bleve)", c.Search.BM25Backend)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("max_results must be >= 0, got %d", c.Search.MaxResults)
	}
	if c.Performance.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must be >= 0, got %d", c.Performance.MaxFileSize)
	}
	if c.Search.RepoTimeout != "" {
		if _, err := time.ParseDuration(c.Search.RepoTimeout); err != nil {
			return fmt.Errorf("invalid repo_timeout %q: %w", c.Search.RepoTimeout, err)
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	return nil
}

// WriteYAML persists the config to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// DetectProjectType inspects dir for well-known project markers.
func DetectProjectType(dir string) ProjectType {
	switch {
	case fileExists(filepath.Join(dir, "go.mod")):
		return ProjectTypeGo
	case fileExists(filepath.Join(dir, "package.json")):
		return ProjectTypeNode
	case fileExists(filepath.Join(dir, "pyproject.toml")) || fileExists(filepath.Join(dir, "setup.py")) || fileExists(filepath.Join(dir, "requirements.txt")):
		return ProjectTypePython
	case fileExists(filepath.Join(dir, "Gemfile")):
		return ProjectTypeRuby
	case fileExists(filepath.Join(dir, "composer.json")):
		return ProjectTypePHP
	case fileExists(filepath.Join(dir, "pom.xml")) || fileExists(filepath.Join(dir, "build.gradle")) || fileExists(filepath.Join(dir, "build.gradle.kts")):
		return ProjectTypeJVM
	default:
		return ProjectTypeUnknown
	}
}

// FindProjectRoot walks up from startDir looking for a project marker or a
// .codeindex.yaml, returning the first directory that has one.
func FindProjectRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	markers := []string{projectConfigName, ".git", "go.mod", "package.json", "pyproject.toml", "Gemfile", "composer.json", "pom.xml"}
	cur := abs
	for {
		for _, m := range markers {
			if fileExists(filepath.Join(cur, m)) || dirExists(filepath.Join(cur, m)) {
				return cur, nil
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("no project root found above %s", startDir)
		}
		cur = parent
	}
}

func (p ProjectType) String() string { return string(p) }

// IsKnown reports whether the project type was recognized.
func (p ProjectType) IsKnown() bool { return p != ProjectTypeUnknown && p != "" }

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
