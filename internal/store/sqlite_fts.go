package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// sqliteFTSBackend is the default BM25Index implementation. It shares the
// Engine's own *sql.DB connection so the relational tables and the
// bm25_content virtual table live in exactly one on-disk file per
// repository.
type sqliteFTSBackend struct {
	db     *sql.DB
	config BM25Config
}

var _ BM25Index = (*sqliteFTSBackend)(nil)

// bm25ContentSchema creates the FTS5 virtual table with the columns
// the search surface needs, a porter-stemming unicode61 tokenizer, and
// prefix indexes of length 2 and 3 so short substrings resolve quickly.
const bm25ContentSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS bm25_content USING fts5(
	file_id UNINDEXED,
	filepath,
	filename,
	content,
	language,
	symbols,
	imports,
	comments,
	tokenize = 'porter unicode61',
	prefix = '2 3'
);
`

func newSQLiteFTSBackend(db *sql.DB, config BM25Config) (*sqliteFTSBackend, error) {
	if _, err := db.Exec(bm25ContentSchema); err != nil {
		return nil, fmt.Errorf("create bm25_content: %w", err)
	}
	return &sqliteFTSBackend{db: db, config: config}, nil
}

// Index replaces the bm25_content row for each given file (FTS5 has no
// UPSERT, so existing rows are deleted first), per the re-indexing
// idempotence law: indexing a file twice leaves the BM25 row replaced,
// not duplicated.
func (b *sqliteFTSBackend) Index(ctx context.Context, rows []*BM25Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	del, err := tx.PrepareContext(ctx, `DELETE FROM bm25_content WHERE file_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer del.Close()

	ins, err := tx.PrepareContext(ctx, `
		INSERT INTO bm25_content(file_id, filepath, filename, content, language, symbols, imports, comments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()

	for _, row := range rows {
		if _, err := del.ExecContext(ctx, row.FileID); err != nil {
			return fmt.Errorf("delete existing bm25 row for file %d: %w", row.FileID, err)
		}
		if _, err := ins.ExecContext(ctx, row.FileID, row.FilePath, row.FileName,
			row.Content, row.Language, row.Symbols, row.Imports, row.Comments); err != nil {
			return fmt.Errorf("insert bm25 row for file %d: %w", row.FileID, err)
		}
	}

	return tx.Commit()
}

// Search runs a MATCH query against bm25_content and builds a short
// snippet with match markers, ordered by BM25 rank ascending (smaller
// rank = more relevant) then file_id ascending for stable ties.
func (b *sqliteFTSBackend) Search(ctx context.Context, query string, limit int) ([]*BM25SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	malformed := func(err error) bool {
		msg := err.Error()
		return strings.Contains(msg, "fts5:") || strings.Contains(msg, "syntax error") ||
			strings.Contains(msg, "unterminated string")
	}

	rows, err := b.db.QueryContext(ctx, `
		SELECT file_id, filepath,
		       snippet(bm25_content, 3, '[', ']', '...', 10) AS snip,
		       bm25(bm25_content) AS rank
		FROM bm25_content
		WHERE bm25_content MATCH ?
		ORDER BY rank ASC, file_id ASC
		LIMIT ?
	`, query, limit)
	if err != nil {
		if malformed(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bm25 search: %w", err)
	}
	defer rows.Close()

	var results []*BM25SearchResult
	for rows.Next() {
		var r BM25SearchResult
		if err := rows.Scan(&r.FileID, &r.FilePath, &r.Snippet, &r.Rank); err != nil {
			return nil, fmt.Errorf("scan bm25 result: %w", err)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		if malformed(err) {
			return nil, nil
		}
		return nil, err
	}
	return results, nil
}

// Delete removes the bm25_content rows for the given file ids.
func (b *sqliteFTSBackend) Delete(ctx context.Context, fileIDs []int64) error {
	if len(fileIDs) == 0 {
		return nil
	}
	placeholders := make([]string, len(fileIDs))
	args := make([]any, len(fileIDs))
	for i, id := range fileIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	q := fmt.Sprintf("DELETE FROM bm25_content WHERE file_id IN (%s)", strings.Join(placeholders, ","))
	_, err := b.db.ExecContext(ctx, q, args...)
	return err
}

// AllFileIDs returns every file_id with a bm25_content row, used by
// consistency checking.
func (b *sqliteFTSBackend) AllFileIDs(ctx context.Context) ([]int64, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT file_id FROM bm25_content ORDER BY file_id`)
	if err != nil {
		return nil, fmt.Errorf("query file ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats reports the row count of bm25_content.
func (b *sqliteFTSBackend) Stats() *IndexStats {
	var count int
	if err := b.db.QueryRow(`SELECT COUNT(*) FROM bm25_content`).Scan(&count); err != nil {
		return &IndexStats{}
	}
	return &IndexStats{DocumentCount: count}
}

// Close is a no-op: the underlying *sql.DB is owned and closed by Engine.
func (b *sqliteFTSBackend) Close() error {
	return nil
}
