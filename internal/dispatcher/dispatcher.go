package dispatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/coderidge/codeindex/internal/corerr"
	"github.com/coderidge/codeindex/internal/fuzzy"
	"github.com/coderidge/codeindex/internal/lang"
	"github.com/coderidge/codeindex/internal/paths"
	"github.com/coderidge/codeindex/internal/registry"
	"github.com/coderidge/codeindex/internal/store"
)

// Dispatcher is the single entry point external callers use. It owns one
// open *store.Engine and one in-memory *fuzzy.Index per active repository,
// opened lazily and kept warm across calls.
type Dispatcher struct {
	reg         *registry.Registry
	storageRoot string
	parsers     *lang.Registry
	settings    settings

	mu      sync.RWMutex
	engines map[string]*store.Engine
	fuzzies map[string]*fuzzy.Index
}

// settings holds the tunables an Option can override.
type settings struct {
	maxFileSize    int64
	indexWorkers   int
	queueDepth     int
	perRepoHardCap time.Duration
	defaultLimit   int
	bleveBackend   bool
}

// Option configures New.
type Option func(*settings)

// WithMaxFileSize overrides the per-file size threshold for directory
// indexing. Zero keeps the scanner's default.
func WithMaxFileSize(n int64) Option {
	return func(s *settings) { s.maxFileSize = n }
}

// WithIndexWorkers overrides the parser worker-pool size. Zero sizes the
// pool to the CPU count, capped at 8.
func WithIndexWorkers(n int) Option {
	return func(s *settings) { s.indexWorkers = n }
}

// WithQueueDepth bounds the walker-to-worker queue.
func WithQueueDepth(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.queueDepth = n
		}
	}
}

// WithPerRepoHardCap overrides the per-repository per-query time cap.
func WithPerRepoHardCap(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.perRepoHardCap = d
		}
	}
}

// WithDefaultLimit overrides the result limit used when a caller passes
// none.
func WithDefaultLimit(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// WithBleveBackend opens every repository engine with the Bleve full-text
// backend instead of the default SQLite FTS5 one.
func WithBleveBackend() Option {
	return func(s *settings) { s.bleveBackend = true }
}

// New builds a Dispatcher backed by reg, storing new per-repository index
// files under storageRoot, resolving parsers through parsers.
func New(reg *registry.Registry, storageRoot string, parsers *lang.Registry, opts ...Option) *Dispatcher {
	s := settings{
		queueDepth:     64,
		perRepoHardCap: DefaultPerRepoHardCap,
		defaultLimit:   20,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Dispatcher{
		reg:         reg,
		storageRoot: storageRoot,
		parsers:     parsers,
		settings:    s,
		engines:     make(map[string]*store.Engine),
		fuzzies:     make(map[string]*fuzzy.Index),
	}
}

// RegisterRepository adds absPath as a new repository (or returns the
// existing entry, unchanged, if it is already registered), computing its
// id and on-disk index location the way paths.RepoID/paths.IndexPath
// define.
func (d *Dispatcher) RegisterRepository(absPath, name string, priority int) (registry.Entry, error) {
	if existing, ok, err := d.reg.ResolveByPath(absPath); err != nil {
		return registry.Entry{}, err
	} else if ok {
		return existing, nil
	}

	repoID := paths.RepoID(absPath)
	entry := registry.Entry{
		RepositoryID: repoID,
		Name:         name,
		Path:         absPath,
		IndexPath:    paths.IndexPath(d.storageRoot, repoID),
		Active:       true,
		Priority:     priority,
	}
	if err := d.reg.Register(entry); err != nil {
		return registry.Entry{}, err
	}
	return entry, nil
}

// engineFor returns the cached engine for repoID, opening it on first use.
func (d *Dispatcher) engineFor(entry registry.Entry) (*store.Engine, error) {
	d.mu.RLock()
	eng, ok := d.engines[entry.RepositoryID]
	d.mu.RUnlock()
	if ok {
		return eng, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if eng, ok := d.engines[entry.RepositoryID]; ok {
		return eng, nil
	}

	var storeOpts []store.Option
	if d.settings.bleveBackend {
		storeOpts = append(storeOpts, store.WithBleveBackend(filepath.Dir(entry.IndexPath)))
	}
	eng, err := store.Open(entry.ToRepository(), entry.IndexPath, storeOpts...)
	if err != nil {
		return nil, corerr.StorageFailed(fmt.Sprintf("open index for repository %s", entry.RepositoryID), err)
	}
	d.engines[entry.RepositoryID] = eng
	d.fuzzies[entry.RepositoryID] = fuzzy.New()
	return eng, nil
}

func (d *Dispatcher) fuzzyFor(repoID string) *fuzzy.Index {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.fuzzies[repoID]
}

// repoEntry resolves a registered repository by id, erroring with
// corerr.NotFound if it is absent.
func (d *Dispatcher) repoEntry(repoID string) (registry.Entry, error) {
	entry, ok, err := d.reg.Get(repoID)
	if err != nil {
		return registry.Entry{}, err
	}
	if !ok {
		return registry.Entry{}, corerr.NotFound(fmt.Sprintf("repository %s is not registered", repoID), nil)
	}
	return entry, nil
}

// activeRepos lists every active repository entry, respecting an optional
// filter, in priority order.
func (d *Dispatcher) activeRepos(filter []string) ([]registry.Entry, error) {
	entries, err := d.reg.List(true)
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return entries, nil
	}
	want := make(map[string]bool, len(filter))
	for _, id := range filter {
		want[id] = true
	}
	filtered := entries[:0]
	for _, e := range entries {
		if want[e.RepositoryID] {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// Close shuts down every open engine. Safe to call once, at process exit.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for id, eng := range d.engines {
		if err := eng.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close engine for %s: %w", id, err)
		}
	}
	d.engines = make(map[string]*store.Engine)
	d.fuzzies = make(map[string]*fuzzy.Index)
	return firstErr
}

// refreshStats pushes an engine's current RepositoryStats back into the
// registry so list/health checks reflect the latest counts without callers
// having to remember to do it themselves.
func (d *Dispatcher) refreshStats(ctx context.Context, entry registry.Entry, eng *store.Engine) {
	stats, err := eng.RepositoryStats(ctx)
	if err != nil {
		return
	}
	_ = d.reg.UpdateStats(entry.RepositoryID, stats.LanguageStats, stats.TotalFiles, stats.TotalSymbols, time.Now())
}
