package dispatcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/coderidge/codeindex/internal/corerr"
	"github.com/coderidge/codeindex/internal/fuzzy"
	"github.com/coderidge/codeindex/internal/lang"
	"github.com/coderidge/codeindex/internal/registry"
	"github.com/coderidge/codeindex/internal/scanner"
	"github.com/coderidge/codeindex/internal/store"
)

// IndexFile resolves a parser for path, extracts its symbol stream, and
// upserts the file/symbols/BM25 row in one pass. A parser-resolution miss
// is reported as corerr.InvalidInput rather than silently dropped, so
// IndexDirectory's caller can count it as ignored instead of indexed.
func (d *Dispatcher) IndexFile(ctx context.Context, repoID, path string, content []byte) (*IndexShard, error) {
	entry, err := d.repoEntry(repoID)
	if err != nil {
		return nil, err
	}
	eng, err := d.engineFor(entry)
	if err != nil {
		return nil, err
	}

	parser, ok := d.parsers.Resolve(path)
	if !ok {
		return nil, corerr.InvalidInput(fmt.Sprintf("no parser registered for %s", path), nil)
	}

	return d.indexOne(ctx, entry, eng, d.fuzzyFor(repoID), path, content, parser)
}

func (d *Dispatcher) indexOne(ctx context.Context, entry registry.Entry, eng *store.Engine, fz *fuzzy.Index, path string, content []byte, parser lang.Parser) (*IndexShard, error) {
	clean := toValidUTF8(content)

	result, err := parser.Parse(ctx, path, clean)
	if err != nil {
		return nil, corerr.ParseFailed(fmt.Sprintf("parse %s", path), err)
	}

	relPath := path
	if entry.Path != "" {
		if rel, relErr := filepath.Rel(entry.Path, path); relErr == nil && !strings.HasPrefix(rel, "..") {
			relPath = rel
		}
	}

	sum := sha256.Sum256(clean)
	now := time.Now()
	file := &store.File{
		Path:         path,
		RelativePath: relPath,
		Language:     result.Language,
		Size:         int64(len(clean)),
		ContentHash:  hex.EncodeToString(sum[:]),
		LastModified: now,
		IndexedAt:    now,
	}

	fileID, err := eng.UpsertFile(ctx, file)
	if err != nil {
		return nil, corerr.StorageFailed(fmt.Sprintf("upsert file %s", relPath), err)
	}
	file.ID = fileID

	storeSyms := make([]*store.Symbol, 0, len(result.Symbols))
	for _, s := range result.Symbols {
		storeSyms = append(storeSyms, &store.Symbol{
			FileID:        fileID,
			Name:          s.Name,
			Kind:          s.Kind,
			LineStart:     s.LineStart,
			LineEnd:       s.LineEnd,
			ColumnStart:   s.ColumnStart,
			ColumnEnd:     s.ColumnEnd,
			Signature:     s.Signature,
			Documentation: s.Documentation,
			Modifiers:     s.Modifiers,
			Metadata:      s.Metadata,
		})
	}
	if err := eng.UpsertSymbols(ctx, fileID, storeSyms); err != nil {
		return nil, corerr.StorageFailed(fmt.Sprintf("upsert symbols for %s", relPath), err)
	}

	symbolNames := make([]string, 0, len(result.Symbols))
	var docs []string
	for _, s := range result.Symbols {
		symbolNames = append(symbolNames, s.Name)
		if s.Documentation != "" {
			docs = append(docs, s.Documentation)
		}
	}
	// An empty file keeps its file row (size 0) but gets no BM25 row:
	// there is nothing to match against.
	if len(clean) > 0 {
		bm25Row := &store.BM25Row{
			FileID:   fileID,
			FilePath: relPath,
			FileName: filepath.Base(path),
			Content:  string(clean),
			Language: result.Language,
			Symbols:  strings.Join(symbolNames, " "),
			Imports:  strings.Join(result.Imports, " "),
			Comments: strings.Join(docs, "\n"),
		}
		if err := eng.IndexBM25(ctx, bm25Row); err != nil {
			return nil, corerr.StorageFailed(fmt.Sprintf("index bm25 row for %s", relPath), err)
		}
	}

	if fz != nil {
		fz.AddFile(relPath, string(clean))
		refs := make([]fuzzy.SymbolRef, 0, len(result.Symbols))
		for _, s := range result.Symbols {
			refs = append(refs, fuzzy.SymbolRef{Name: s.Name, Line: s.LineStart})
		}
		fz.IndexSymbols(relPath, refs)
	}

	return &IndexShard{
		File:     file,
		Symbols:  storeSyms,
		Language: result.Language,
		Package:  result.Package,
		Imports:  result.Imports,
	}, nil
}

// toValidUTF8 replaces invalid byte sequences with the Unicode
// replacement character so downstream storage always holds valid text.
func toValidUTF8(content []byte) []byte {
	if utf8.Valid(content) {
		return content
	}
	return []byte(strings.ToValidUTF8(string(content), "�"))
}

// indexTask is one indexable entry on its way from the walker to the
// collector, carrying the channel its outcome will arrive on so the
// collector can tally outcomes in scan order regardless of which worker
// finishes first.
type indexTask struct {
	entry  scanner.Entry
	result chan indexOutcome
}

type indexOutcome struct {
	shard *IndexShard
	err   error
}

// IndexDirectory walks root, dispatching every indexable file to the
// parser pool. Parsing and the file writes both run on a bounded worker
// pool, so with more than one worker files are written, and their file_id
// values assigned, in completion order rather than walk order; only the
// per-file outcomes are tallied in walk order.
// The queue between walker and workers is bounded, so memory stays flat
// regardless of repository size.
func (d *Dispatcher) IndexDirectory(ctx context.Context, repoID, root string, recursive bool) (*DirectoryStats, error) {
	entry, err := d.repoEntry(repoID)
	if err != nil {
		return nil, err
	}
	eng, err := d.engineFor(entry)
	if err != nil {
		return nil, err
	}
	fz := d.fuzzyFor(repoID)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, corerr.InvalidInput("resolve root path", err)
	}

	sc, err := scanner.New()
	if err != nil {
		return nil, corerr.StorageFailed("create scanner", err)
	}

	walkCh, err := sc.Walk(ctx, scanner.Options{
		RootDir:          absRoot,
		RespectGitignore: true,
		MaxFileSize:      d.settings.maxFileSize,
	})
	if err != nil {
		return nil, corerr.InvalidInput("walk root", err)
	}

	stats := &DirectoryStats{}
	workerCount := d.settings.indexWorkers
	if workerCount <= 0 {
		workerCount = runtime.GOMAXPROCS(0)
		if workerCount > 8 {
			workerCount = 8
		}
	}
	if workerCount < 1 {
		workerCount = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount)
	ordered := make(chan *indexTask, d.settings.queueDepth)

	go func() {
		defer close(ordered)
		for e := range walkCh {
			if !recursive && filepath.Dir(e.Path) != "." {
				continue
			}
			switch e.Classification {
			case scanner.Indexable:
				task := &indexTask{entry: e, result: make(chan indexOutcome, 1)}
				select {
				case ordered <- task:
				case <-gctx.Done():
					return
				}
				g.Go(func() error {
					content, readErr := os.ReadFile(e.AbsPath)
					if readErr != nil {
						task.result <- indexOutcome{err: readErr}
						return nil
					}
					parser, ok := d.parsers.Resolve(e.AbsPath)
					if !ok {
						task.result <- indexOutcome{err: errUnsupported}
						return nil
					}
					shard, parseErr := d.indexOne(gctx, entry, eng, fz, e.AbsPath, content, parser)
					task.result <- indexOutcome{shard: shard, err: parseErr}
					return nil
				})
			case scanner.SkipIgnoredDir:
				// not counted; directories themselves are not files.
			case scanner.ErrorIO:
				task := &indexTask{entry: e, result: make(chan indexOutcome, 1)}
				task.result <- indexOutcome{err: fmt.Errorf("walk error: %w", e.Err)}
				select {
				case ordered <- task:
				case <-gctx.Done():
					return
				}
			default:
				// SkipSize, SkipBinary.
				task := &indexTask{entry: e, result: make(chan indexOutcome, 1)}
				task.result <- indexOutcome{err: errSkippedEntry}
				select {
				case ordered <- task:
				case <-gctx.Done():
					return
				}
			}
		}
	}()

	for task := range ordered {
		stats.Total++
		select {
		case outcome := <-task.result:
			switch {
			case outcome.err == errUnsupported || outcome.err == errSkippedEntry:
				stats.Ignored++
			case outcome.err != nil:
				stats.Failed++
				stats.FailedPaths = append(stats.FailedPaths, task.entry.Path)
			default:
				stats.Indexed++
			}
		case <-ctx.Done():
			stats.Cancelled = true
		}
		if ctx.Err() != nil {
			stats.Cancelled = true
			break
		}
	}

	_ = g.Wait()
	if ctx.Err() != nil {
		stats.Cancelled = true
	}
	d.refreshStats(context.WithoutCancel(ctx), entry, eng)
	return stats, nil
}

var (
	errUnsupported  = fmt.Errorf("no parser for file")
	errSkippedEntry = fmt.Errorf("entry skipped by scanner")
)
