package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/coderidge/codeindex/internal/config"
	"github.com/coderidge/codeindex/internal/dispatcher"
	"github.com/coderidge/codeindex/internal/lang"
	"github.com/coderidge/codeindex/internal/paths"
	"github.com/coderidge/codeindex/internal/registry"
)

// buildDispatcher wires the repository registry, the plugin registry, and
// the dispatcher the way every subcommand needs them — no package-level
// singleton, a fresh Dispatcher per invocation, tuned by the layered
// config for the current workspace.
func buildDispatcher() *dispatcher.Dispatcher {
	cfg, err := config.Load(paths.WorkspaceRoot())
	if err != nil {
		cfg = config.NewConfig()
	}

	opts := []dispatcher.Option{
		dispatcher.WithMaxFileSize(cfg.Performance.MaxFileSize),
		dispatcher.WithIndexWorkers(cfg.Performance.IndexWorkers),
		dispatcher.WithQueueDepth(cfg.Performance.QueueDepth),
		dispatcher.WithPerRepoHardCap(cfg.RepoTimeoutDuration()),
		dispatcher.WithDefaultLimit(cfg.Search.MaxResults),
	}
	if cfg.Search.BM25Backend == "bleve" {
		opts = append(opts, dispatcher.WithBleveBackend())
	}

	reg := registry.Open(paths.RegistryPath())
	parsers := lang.NewRegistry()
	return dispatcher.New(reg, paths.IndexStorageRoot(), parsers, opts...)
}

// resolveRepository registers (or reuses) the repository rooted at path,
// defaulting to the resolved workspace root when path is empty, and
// returns its registry entry.
func resolveRepository(d *dispatcher.Dispatcher, path string) (registry.Entry, error) {
	root := path
	if root == "" {
		root = paths.WorkspaceRoot()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return registry.Entry{}, fmt.Errorf("resolve path %q: %w", root, err)
	}
	return d.RegisterRepository(abs, filepath.Base(abs), 0)
}
