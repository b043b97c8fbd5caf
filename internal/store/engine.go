package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO
)

// schemaVersion is the current relational schema version. Engine refuses to
// open an index file stamped with a newer version than it knows about.
const schemaVersion = 1

const relationalSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS repository (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	name TEXT NOT NULL,
	indexed_at DATETIME
);

CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	repository_id TEXT NOT NULL,
	path TEXT NOT NULL,
	relative_path TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	content_hash TEXT NOT NULL DEFAULT '',
	last_modified DATETIME,
	indexed_at DATETIME,
	UNIQUE(repository_id, relative_path)
);
CREATE INDEX IF NOT EXISTS idx_files_repository ON files(repository_id);

CREATE TABLE IF NOT EXISTS symbols (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	line_start INTEGER NOT NULL DEFAULT 0,
	line_end INTEGER NOT NULL DEFAULT 0,
	column_start INTEGER NOT NULL DEFAULT 0,
	column_end INTEGER NOT NULL DEFAULT 0,
	signature TEXT NOT NULL DEFAULT '',
	documentation TEXT NOT NULL DEFAULT '',
	modifiers TEXT NOT NULL DEFAULT '',
	metadata TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
`

// Engine is the storage engine for exactly one repository index file: the
// relational tables above and the default SQLite FTS5 backend share the one
// *sql.DB connection, so they live in a single file on disk. The Bleve
// backend keeps its index in its own sibling directory, and an attached
// vector store is held outside the database.
type Engine struct {
	mu         sync.RWMutex
	db         *sql.DB
	path       string
	repository Repository
	bm25       BM25Index
	vectors    VectorStore
	closed     bool
}

// Option configures Open.
type Option func(*engineOptions)

type engineOptions struct {
	bm25Config   BM25Config
	bleveDir     string
	vectorStore  VectorStore
}

// WithBM25Config overrides the default tokenizer tuning.
func WithBM25Config(cfg BM25Config) Option {
	return func(o *engineOptions) { o.bm25Config = cfg }
}

// WithBleveBackend swaps the default SQLite FTS5 backend for the legacy
// Bleve backend, stored in its own sibling directory since Bleve cannot
// live inside the SQLite file.
func WithBleveBackend(dir string) Option {
	return func(o *engineOptions) { o.bleveDir = dir }
}

// WithVectorStore attaches an optional semantic search backend.
func WithVectorStore(vs VectorStore) Option {
	return func(o *engineOptions) { o.vectorStore = vs }
}

// Open creates or opens the single-file index at path for repository repo.
// An empty path opens an in-memory database, used by tests.
func Open(repo Repository, path string, opts ...Option) (*Engine, error) {
	options := engineOptions{bm25Config: DefaultBM25Config()}
	for _, opt := range opts {
		opt(&options)
	}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	// FTS5 + WAL writers must be serialized through one connection; modernc's
	// driver otherwise hands concurrent callers distinct connections that
	// each see their own uncommitted state.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if path != "" {
		pragmas := []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA synchronous = NORMAL",
		}
		for _, p := range pragmas {
			if _, err := db.Exec(p); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("set pragma %q: %w", p, err)
			}
		}
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragma %q: %w", "PRAGMA foreign_keys = ON", err)
	}

	if _, err := db.Exec(relationalSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create relational schema: %w", err)
	}
	if err := stampSchemaVersion(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	var bm25 BM25Index
	if options.bleveDir != "" {
		bm25, err = NewBleveBM25Index(filepath.Join(options.bleveDir, "bm25.bleve"), options.bm25Config)
	} else {
		bm25, err = newSQLiteFTSBackend(db, options.bm25Config)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bm25 backend: %w", err)
	}

	if err := upsertRepositoryRow(db, repo); err != nil {
		_ = bm25.Close()
		_ = db.Close()
		return nil, err
	}

	return &Engine{
		db:         db,
		path:       path,
		repository: repo,
		bm25:       bm25,
		vectors:    options.vectorStore,
	}, nil
}

func stampSchemaVersion(db *sql.DB) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}
	if count == 0 {
		_, err := db.Exec(`INSERT INTO schema_version(version) VALUES (?)`, schemaVersion)
		return err
	}
	var version int
	if err := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("index schema version %d is newer than supported version %d", version, schemaVersion)
	}
	return nil
}

func upsertRepositoryRow(db *sql.DB, repo Repository) error {
	_, err := db.Exec(`
		INSERT INTO repository(id, path, name, indexed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET path = excluded.path, name = excluded.name
	`, repo.ID, repo.Path, repo.Name, repo.IndexedAt)
	return err
}

// UpsertFile records a file's metadata and returns its assigned id.
// Re-indexing the same relative path replaces the prior row and its
// symbols, not duplicate it.
func (e *Engine) UpsertFile(ctx context.Context, f *File) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, fmt.Errorf("engine is closed")
	}

	_, err := e.db.ExecContext(ctx, `
		INSERT INTO files(repository_id, path, relative_path, language, size, content_hash, last_modified, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository_id, relative_path) DO UPDATE SET
			path = excluded.path,
			language = excluded.language,
			size = excluded.size,
			content_hash = excluded.content_hash,
			last_modified = excluded.last_modified,
			indexed_at = excluded.indexed_at
	`, e.repository.ID, f.Path, f.RelativePath, f.Language, f.Size, f.ContentHash, f.LastModified, f.IndexedAt)
	if err != nil {
		return 0, fmt.Errorf("upsert file %s: %w", f.RelativePath, err)
	}

	// LastInsertId is unreliable on the conflict path (it reports the last
	// actual INSERT on the connection, which may be another file's row), so
	// the id is always resolved by key.
	var id int64
	if err := e.db.QueryRowContext(ctx, `SELECT id FROM files WHERE repository_id = ? AND relative_path = ?`,
		e.repository.ID, f.RelativePath).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve file id for %s: %w", f.RelativePath, err)
	}
	return id, nil
}

// UpsertSymbols replaces every symbol belonging to fileID with syms.
func (e *Engine) UpsertSymbols(ctx context.Context, fileID int64, syms []*Symbol) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("engine is closed")
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("clear existing symbols for file %d: %w", fileID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symbols(file_id, name, kind, line_start, line_end, column_start, column_end, signature, documentation, modifiers, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare symbol insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range syms {
		meta := ""
		if len(s.Metadata) > 0 {
			encoded, encErr := json.Marshal(s.Metadata)
			if encErr != nil {
				return fmt.Errorf("encode metadata for symbol %s: %w", s.Name, encErr)
			}
			meta = string(encoded)
		}
		if _, err := stmt.ExecContext(ctx, fileID, s.Name, string(s.Kind), s.LineStart, s.LineEnd,
			s.ColumnStart, s.ColumnEnd, s.Signature, s.Documentation,
			strings.Join(s.Modifiers, " "), meta); err != nil {
			return fmt.Errorf("insert symbol %s: %w", s.Name, err)
		}
	}

	return tx.Commit()
}

// IndexBM25 rebuilds the full-text row for a file, delegating to whichever
// BM25Index backend this Engine was opened with.
func (e *Engine) IndexBM25(ctx context.Context, row *BM25Row) error {
	e.mu.RLock()
	bm25 := e.bm25
	e.mu.RUnlock()
	return bm25.Index(ctx, []*BM25Row{row})
}

// SearchBM25 runs a full-text query against the BM25 backend and returns
// its hits as they are; no symbols are attached to them.
func (e *Engine) SearchBM25(ctx context.Context, query string, limit int) ([]*BM25SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, fmt.Errorf("engine is closed")
	}
	return e.bm25.Search(ctx, query, limit)
}

// LookupSymbol finds every symbol named exactly name, ordered by kind
// priority (types before functions before fields) then by file path.
func (e *Engine) LookupSymbol(ctx context.Context, name string) ([]*Symbol, []*File, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, nil, fmt.Errorf("engine is closed")
	}

	rows, err := e.db.QueryContext(ctx, `
		SELECT s.id, s.file_id, s.name, s.kind, s.line_start, s.line_end,
		       s.column_start, s.column_end, s.signature, s.documentation, s.modifiers, s.metadata,
		       f.id, f.repository_id, f.path, f.relative_path, f.language, f.size, f.content_hash
		FROM symbols s
		JOIN files f ON f.id = s.file_id
		WHERE s.name = ?
	`, name)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup symbol %s: %w", name, err)
	}
	defer rows.Close()

	var syms []*Symbol
	var files []*File
	for rows.Next() {
		var s Symbol
		var f File
		var kind, modifiers, metadata string
		if err := rows.Scan(&s.ID, &s.FileID, &s.Name, &kind, &s.LineStart, &s.LineEnd,
			&s.ColumnStart, &s.ColumnEnd, &s.Signature, &s.Documentation, &modifiers, &metadata,
			&f.ID, &f.RepositoryID, &f.Path, &f.RelativePath, &f.Language, &f.Size, &f.ContentHash); err != nil {
			return nil, nil, fmt.Errorf("scan symbol row: %w", err)
		}
		s.Kind = SymbolKind(kind)
		decodeSymbolExtras(&s, modifiers, metadata)
		syms = append(syms, &s)
		files = append(files, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	order := make([]int, len(syms))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		i, j := order[a], order[b]
		pi, pj := kindPriority(syms[i].Kind), kindPriority(syms[j].Kind)
		if pi != pj {
			return pi < pj
		}
		return files[i].RelativePath < files[j].RelativePath
	})
	sortedSyms := make([]*Symbol, len(order))
	sortedFiles := make([]*File, len(order))
	for k, i := range order {
		sortedSyms[k], sortedFiles[k] = syms[i], files[i]
	}
	return sortedSyms, sortedFiles, nil
}

// ListSymbolsInFile returns every symbol owned by the file at relativePath,
// in source order.
func (e *Engine) ListSymbolsInFile(ctx context.Context, relativePath string) ([]*Symbol, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, fmt.Errorf("engine is closed")
	}

	rows, err := e.db.QueryContext(ctx, `
		SELECT s.id, s.file_id, s.name, s.kind, s.line_start, s.line_end,
		       s.column_start, s.column_end, s.signature, s.documentation, s.modifiers, s.metadata
		FROM symbols s
		JOIN files f ON f.id = s.file_id
		WHERE f.repository_id = ? AND f.relative_path = ?
		ORDER BY s.line_start ASC
	`, e.repository.ID, relativePath)
	if err != nil {
		return nil, fmt.Errorf("list symbols in %s: %w", relativePath, err)
	}
	defer rows.Close()

	var syms []*Symbol
	for rows.Next() {
		var s Symbol
		var kind, modifiers, metadata string
		if err := rows.Scan(&s.ID, &s.FileID, &s.Name, &kind, &s.LineStart, &s.LineEnd,
			&s.ColumnStart, &s.ColumnEnd, &s.Signature, &s.Documentation, &modifiers, &metadata); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		s.Kind = SymbolKind(kind)
		decodeSymbolExtras(&s, modifiers, metadata)
		syms = append(syms, &s)
	}
	return syms, rows.Err()
}

// decodeSymbolExtras restores the space-joined modifiers list and the
// JSON-encoded metadata map from their stored columns.
func decodeSymbolExtras(s *Symbol, modifiers, metadata string) {
	if modifiers != "" {
		s.Modifiers = strings.Fields(modifiers)
	}
	if metadata != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(metadata), &m); err == nil {
			s.Metadata = m
		}
	}
}

// RepositoryStats reports current file/symbol counts and per-language
// breakdown for health_check and status reporting.
func (e *Engine) RepositoryStats(ctx context.Context) (Repository, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return Repository{}, fmt.Errorf("engine is closed")
	}

	stats := e.repository
	stats.LanguageStats = make(map[string]int)

	rows, err := e.db.QueryContext(ctx, `
		SELECT language, COUNT(*) FROM files WHERE repository_id = ? GROUP BY language
	`, e.repository.ID)
	if err != nil {
		return Repository{}, fmt.Errorf("language stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lang string
		var count int
		if err := rows.Scan(&lang, &count); err != nil {
			return Repository{}, err
		}
		stats.LanguageStats[lang] = count
		stats.TotalFiles += count
	}
	if err := rows.Err(); err != nil {
		return Repository{}, err
	}

	if err := e.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM symbols s JOIN files f ON f.id = s.file_id WHERE f.repository_id = ?
	`, e.repository.ID).Scan(&stats.TotalSymbols); err != nil {
		return Repository{}, fmt.Errorf("symbol count: %w", err)
	}

	return stats, nil
}

// RemoveFile deletes a file, its symbols (via ON DELETE CASCADE), and its
// bm25_content row, keeping every table consistent for the deleted path.
func (e *Engine) RemoveFile(ctx context.Context, relativePath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("engine is closed")
	}

	var fileID int64
	err := e.db.QueryRowContext(ctx, `SELECT id FROM files WHERE repository_id = ? AND relative_path = ?`,
		e.repository.ID, relativePath).Scan(&fileID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find file %s: %w", relativePath, err)
	}

	if _, err := e.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, fileID); err != nil {
		return fmt.Errorf("delete file %s: %w", relativePath, err)
	}
	return e.bm25.Delete(ctx, []int64{fileID})
}

// AllFiles returns every indexed file for this repository, used by Verify.
func (e *Engine) AllFiles(ctx context.Context) ([]*File, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, fmt.Errorf("engine is closed")
	}

	rows, err := e.db.QueryContext(ctx, `
		SELECT id, repository_id, path, relative_path, language, size, content_hash, last_modified, indexed_at
		FROM files WHERE repository_id = ?
	`, e.repository.ID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.RepositoryID, &f.Path, &f.RelativePath, &f.Language, &f.Size,
			&f.ContentHash, &f.LastModified, &f.IndexedAt); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

// BM25FileIDs exposes the full-text backend's file id set, used by Verify
// to detect rows present in one store but not the other.
func (e *Engine) BM25FileIDs(ctx context.Context) ([]int64, error) {
	e.mu.RLock()
	bm25 := e.bm25
	e.mu.RUnlock()
	return bm25.AllFileIDs(ctx)
}

// VectorStore exposes the optional semantic search backend, nil when none
// was configured.
func (e *Engine) VectorStore() VectorStore {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.vectors
}

// Stats reports combined engine-level counters (BM25 document count).
func (e *Engine) Stats() *IndexStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return &IndexStats{}
	}
	return e.bm25.Stats()
}

// Close shuts down the BM25 backend, the optional vector store, and the
// underlying database connection, in that order.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []string
	if err := e.bm25.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if e.vectors != nil {
		if err := e.vectors.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := e.db.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("close engine: %s", strings.Join(errs, "; "))
	}
	return nil
}

// touchRepositoryTimestamp is called after a successful full rescan so
// RepositoryStats reflects the most recent indexed_at.
func (e *Engine) touchRepositoryTimestamp(ctx context.Context, at time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("engine is closed")
	}
	e.repository.IndexedAt = at
	_, err := e.db.ExecContext(ctx, `UPDATE repository SET indexed_at = ? WHERE id = ?`, at, e.repository.ID)
	return err
}
