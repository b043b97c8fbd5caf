// Package migrate splits a single legacy index holding many
// repositories' rows, identified by common filepath prefixes, into one
// per-repository index file, processing one repository at a time so a
// failure in one never touches the others.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/coderidge/codeindex/internal/paths"
	"github.com/coderidge/codeindex/internal/registry"
	"github.com/coderidge/codeindex/internal/store"
)

// PrefixRule maps a filepath prefix found in the legacy index to the
// repository it should be split into. Prefix
// rules are caller-provided rather than auto-discovered: the legacy
// index's filepath column alone cannot disambiguate "two repos that
// happen to share a parent directory" from "one repo with subfolders," so
// the caller who knows the original checkout layout supplies the mapping.
type PrefixRule struct {
	Prefix   string
	RepoPath string
	Name     string
	Priority int
}

// Options configures a Migrate run.
type Options struct {
	LegacyIndexPath string
	StorageRoot     string
	Registry        *registry.Registry
	Rules           []PrefixRule
	// Force re-migrates a repository even if its target index already
	// exists and is non-empty.
	Force bool
}

// RepoResult reports one repository's migration outcome. Failures are
// isolated per repository: one repository failing does not prevent the
// others from completing.
type RepoResult struct {
	RepoID          string
	RepoPath        string
	Skipped         bool
	FilesMigrated   int
	SymbolsMigrated int
	Err             error
}

// Result is the overall outcome of one Migrate call.
type Result struct {
	Repos     []RepoResult
	Cancelled bool
}

// legacyFileRow is one row of the pre-migration files table, joined with
// its bm25_content row so a single source-of-truth read carries everything
// a new per-repository index needs.
type legacyFileRow struct {
	id           int64
	path         string
	relativePath string
	language     string
	size         int64
	contentHash  string
	lastModified sql.NullTime
	indexedAt    sql.NullTime

	bm25FileName string
	bm25Content  string
	bm25Language string
	bm25Symbols  string
	bm25Imports  string
	bm25Comments string
	hasBM25      bool
}

type legacySymbolRow struct {
	name          string
	kind          string
	lineStart     int
	lineEnd       int
	columnStart   int
	columnEnd     int
	signature     string
	documentation string
}

// Migrate runs the full split: for each rule, a
// fresh index is created (or skipped, if already migrated and non-empty),
// every matching legacy row is copied across with remapped ids, and the
// registry is updated with the new index path and statistics.
func Migrate(ctx context.Context, opts Options) (*Result, error) {
	legacyDB, err := sql.Open("sqlite", opts.LegacyIndexPath)
	if err != nil {
		return nil, fmt.Errorf("open legacy index %s: %w", opts.LegacyIndexPath, err)
	}
	defer legacyDB.Close()

	result := &Result{}
	for _, rule := range opts.Rules {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		repoResult := migrateOne(ctx, legacyDB, opts, rule)
		result.Repos = append(result.Repos, repoResult)
	}
	return result, nil
}

func migrateOne(ctx context.Context, legacyDB *sql.DB, opts Options, rule PrefixRule) RepoResult {
	repoID := paths.RepoID(rule.RepoPath)
	indexPath := paths.IndexPath(opts.StorageRoot, repoID)

	if !opts.Force && targetAlreadyMigrated(indexPath, repoID) {
		return RepoResult{RepoID: repoID, RepoPath: rule.RepoPath, Skipped: true}
	}

	rows, err := fetchLegacyFiles(ctx, legacyDB, rule.Prefix)
	if err != nil {
		return RepoResult{RepoID: repoID, RepoPath: rule.RepoPath, Err: fmt.Errorf("scan legacy files: %w", err)}
	}

	repo := store.Repository{ID: repoID, Path: rule.RepoPath, Name: coalesceName(rule), IndexPath: indexPath, Active: true, Priority: rule.Priority}
	eng, err := store.Open(repo, indexPath)
	if err != nil {
		return RepoResult{RepoID: repoID, RepoPath: rule.RepoPath, Err: fmt.Errorf("open new index: %w", err)}
	}
	defer eng.Close()

	filesMigrated, symbolsMigrated, err := copyRows(ctx, legacyDB, eng, rows)
	if err != nil {
		return RepoResult{RepoID: repoID, RepoPath: rule.RepoPath, Err: err, FilesMigrated: filesMigrated, SymbolsMigrated: symbolsMigrated}
	}

	if opts.Registry != nil {
		stats, statErr := eng.RepositoryStats(ctx)
		if statErr == nil {
			entry := registry.EntryFromRepository(stats)
			entry.RepositoryID = repoID
			entry.Path = rule.RepoPath
			entry.IndexPath = indexPath
			entry.Name = coalesceName(rule)
			entry.Active = true
			entry.Priority = rule.Priority
			entry.IndexedAt = time.Now()
			if regErr := opts.Registry.Register(entry); regErr != nil {
				return RepoResult{RepoID: repoID, RepoPath: rule.RepoPath, Err: fmt.Errorf("update registry: %w", regErr), FilesMigrated: filesMigrated, SymbolsMigrated: symbolsMigrated}
			}
		}
	}

	return RepoResult{RepoID: repoID, RepoPath: rule.RepoPath, FilesMigrated: filesMigrated, SymbolsMigrated: symbolsMigrated}
}

func coalesceName(rule PrefixRule) string {
	if rule.Name != "" {
		return rule.Name
	}
	return rule.RepoPath
}

// targetAlreadyMigrated reports whether indexPath exists and its
// repository already has at least one file, making a rerun a no-op
// unless forced.
func targetAlreadyMigrated(indexPath, repoID string) bool {
	if _, err := os.Stat(indexPath); err != nil {
		return false
	}
	eng, err := store.Open(store.Repository{ID: repoID}, indexPath)
	if err != nil {
		return false
	}
	defer eng.Close()
	files, err := eng.AllFiles(context.Background())
	return err == nil && len(files) > 0
}

// fetchLegacyFiles reads every files row (left-joined with its
// bm25_content row) whose path begins with prefix.
func fetchLegacyFiles(ctx context.Context, db *sql.DB, prefix string) ([]legacyFileRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT f.id, f.path, f.relative_path, f.language, f.size, f.content_hash, f.last_modified, f.indexed_at,
		       b.filename, b.content, b.language, b.symbols, b.imports, b.comments
		FROM files f
		LEFT JOIN bm25_content b ON b.file_id = f.id
		WHERE f.path LIKE ?
		ORDER BY f.path ASC
	`, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []legacyFileRow
	for rows.Next() {
		var r legacyFileRow
		var bmFileName, bmContent, bmLanguage, bmSymbols, bmImports, bmComments sql.NullString
		if err := rows.Scan(&r.id, &r.path, &r.relativePath, &r.language, &r.size, &r.contentHash,
			&r.lastModified, &r.indexedAt, &bmFileName, &bmContent, &bmLanguage, &bmSymbols, &bmImports, &bmComments); err != nil {
			return nil, fmt.Errorf("scan legacy file row: %w", err)
		}
		r.hasBM25 = bmContent.Valid
		r.bm25FileName = bmFileName.String
		r.bm25Content = bmContent.String
		r.bm25Language = bmLanguage.String
		r.bm25Symbols = bmSymbols.String
		r.bm25Imports = bmImports.String
		r.bm25Comments = bmComments.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func fetchLegacySymbols(ctx context.Context, db *sql.DB, oldFileID int64) ([]legacySymbolRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name, kind, line_start, line_end, column_start, column_end, signature, documentation
		FROM symbols WHERE file_id = ?
	`, oldFileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []legacySymbolRow
	for rows.Next() {
		var s legacySymbolRow
		if err := rows.Scan(&s.name, &s.kind, &s.lineStart, &s.lineEnd, &s.columnStart, &s.columnEnd, &s.signature, &s.documentation); err != nil {
			return nil, fmt.Errorf("scan legacy symbol row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// copyRows replays each legacy file row (and its symbols and BM25 row)
// into eng, assigning fresh file ids.
func copyRows(ctx context.Context, legacyDB *sql.DB, eng *store.Engine, rows []legacyFileRow) (filesMigrated, symbolsMigrated int, err error) {
	for _, old := range rows {
		if ctx.Err() != nil {
			return filesMigrated, symbolsMigrated, ctx.Err()
		}

		relPath := old.relativePath
		if relPath == "" {
			relPath = strings.TrimPrefix(old.path, "/")
		}

		newFile := &store.File{
			Path:         old.path,
			RelativePath: relPath,
			Language:     old.language,
			Size:         old.size,
			ContentHash:  old.contentHash,
		}
		if old.lastModified.Valid {
			newFile.LastModified = old.lastModified.Time
		}
		if old.indexedAt.Valid {
			newFile.IndexedAt = old.indexedAt.Time
		}

		newFileID, err := eng.UpsertFile(ctx, newFile)
		if err != nil {
			return filesMigrated, symbolsMigrated, fmt.Errorf("insert file %s: %w", old.path, err)
		}

		legacySyms, err := fetchLegacySymbols(ctx, legacyDB, old.id)
		if err != nil {
			return filesMigrated, symbolsMigrated, fmt.Errorf("fetch symbols for %s: %w", old.path, err)
		}
		newSyms := make([]*store.Symbol, 0, len(legacySyms))
		for _, s := range legacySyms {
			newSyms = append(newSyms, &store.Symbol{
				FileID: newFileID, Name: s.name, Kind: store.SymbolKind(s.kind),
				LineStart: s.lineStart, LineEnd: s.lineEnd,
				ColumnStart: s.columnStart, ColumnEnd: s.columnEnd,
				Signature: s.signature, Documentation: s.documentation,
			})
		}
		if err := eng.UpsertSymbols(ctx, newFileID, newSyms); err != nil {
			return filesMigrated, symbolsMigrated, fmt.Errorf("insert symbols for %s: %w", old.path, err)
		}
		symbolsMigrated += len(newSyms)

		if old.hasBM25 {
			bm25Row := &store.BM25Row{
				FileID:   newFileID,
				FilePath: relPath,
				FileName: old.bm25FileName,
				Content:  old.bm25Content,
				Language: coalesceStr(old.bm25Language, old.language),
				Symbols:  old.bm25Symbols,
				Imports:  old.bm25Imports,
				Comments: old.bm25Comments,
			}
			if err := eng.IndexBM25(ctx, bm25Row); err != nil {
				return filesMigrated, symbolsMigrated, fmt.Errorf("copy bm25 row for %s: %w", old.path, err)
			}
		}

		filesMigrated++
	}
	return filesMigrated, symbolsMigrated, nil
}

func coalesceStr(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
