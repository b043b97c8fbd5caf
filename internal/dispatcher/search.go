package dispatcher

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coderidge/codeindex/internal/corerr"
	"github.com/coderidge/codeindex/internal/store"
)

// Lookup finds the first exact-name symbol match across every active
// repository, ordered by repository priority then the per-repository kind
// priority the storage engine already applies.
func (d *Dispatcher) Lookup(ctx context.Context, name string, kind store.SymbolKind) (*SymbolDef, error) {
	entries, err := d.activeRepos(nil)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		eng, err := d.engineFor(entry)
		if err != nil {
			continue
		}
		syms, files, err := eng.LookupSymbol(ctx, name)
		if err != nil {
			continue
		}
		for i, s := range syms {
			if kind != "" && s.Kind != kind {
				continue
			}
			return &SymbolDef{
				Symbol:       s.Name,
				Kind:         s.Kind,
				Language:     files[i].Language,
				Signature:    s.Signature,
				Doc:          s.Documentation,
				DefinedIn:    files[i].RelativePath,
				RepositoryID: entry.RepositoryID,
				Line:         s.LineStart,
				LineEnd:      s.LineEnd,
			}, nil
		}
	}
	return nil, corerr.NotFound("symbol "+name+" not found", nil)
}

// Search routes a query across every active (or filtered) repository,
// fanning reads out with errgroup (one BM25 query per repository, each
// bounded by the per-repository hard cap) and merging them round-robin.
// opts.Semantic is not consulted and no vector store is queried: every
// search runs against BM25.
func (d *Dispatcher) Search(ctx context.Context, query string, opts SearchOptions) (*SearchOutcome, error) {
	entries, err := d.activeRepos(opts.RepositoryFilter)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = d.settings.defaultLimit
	}
	hardCap := opts.PerRepoHardCap
	if hardCap <= 0 {
		hardCap = d.settings.perRepoHardCap
	}

	perRepo := make([]repoHits, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			repoCtx, cancel := context.WithTimeout(gctx, hardCap)
			defer cancel()

			eng, err := d.engineFor(entry)
			if err != nil {
				return nil
			}
			rows, err := eng.SearchBM25(repoCtx, query, limit)
			if err != nil {
				return nil
			}
			hits := make([]SearchResult, 0, len(rows))
			for _, r := range rows {
				hits = append(hits, SearchResult{
					Repository: entry.RepositoryID,
					File:       r.FilePath,
					Snippet:    r.Snippet,
					Score:      r.Rank,
				})
			}
			perRepo[i] = repoHits{repoID: entry.RepositoryID, hits: hits}
			return nil
		})
	}
	_ = g.Wait()

	truncated := false
	if !opts.Deadline.IsZero() && time.Now().After(opts.Deadline) {
		truncated = true
	}

	results := roundRobinMerge(perRepo, limit)
	return &SearchOutcome{
		Results:   results,
		Truncated: truncated,
		Cancelled: ctx.Err() != nil,
	}, nil
}

// repoHits pairs a repository's search hits with its id, used to merge
// results round-robin once every repository's fan-out query has returned.
type repoHits struct {
	repoID string
	hits   []SearchResult
}

func roundRobinMerge(perRepo []repoHits, limit int) []SearchResult {
	results := make([]SearchResult, 0, limit)
	cursor := 0
	for len(results) < limit {
		progressed := false
		for i := range perRepo {
			if cursor < len(perRepo[i].hits) {
				results = append(results, perRepo[i].hits[cursor])
				progressed = true
				if len(results) >= limit {
					break
				}
			}
		}
		if !progressed {
			break
		}
		cursor++
	}
	return results
}

// FindReferences runs a textual whole-word search for name across every
// active repository's BM25 content, deduplicating by (file, line), where
// line is the line number within the hit's snippet. Each repository
// contributes at most 10000 BM25 hits.
func (d *Dispatcher) FindReferences(ctx context.Context, name string) ([]Reference, error) {
	entries, err := d.activeRepos(nil)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var refs []Reference
	type refKey struct {
		repo, file string
		line       int
	}
	seen := make(map[refKey]bool)

	g, gctx := errgroup.WithContext(ctx)
	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			eng, err := d.engineFor(entry)
			if err != nil {
				return nil
			}
			// A generous limit stands in for "no cap": BM25 already ranks by
			// relevance, so this is a large-but-bounded scan rather than a
			// literal unlimited one, matching the storage engine's own
			// query-time limits.
			rows, err := eng.SearchBM25(gctx, name, 10000)
			if err != nil {
				return nil
			}
			for _, r := range rows {
				for _, line := range matchingLines(r.Snippet, name) {
					key := refKey{entry.RepositoryID, r.FilePath, line.number}
					mu.Lock()
					if !seen[key] {
						seen[key] = true
						refs = append(refs, Reference{
							Repository: entry.RepositoryID,
							File:       r.FilePath,
							Line:       line.number,
							Snippet:    line.text,
						})
					}
					mu.Unlock()
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Repository != refs[j].Repository {
			return refs[i].Repository < refs[j].Repository
		}
		if refs[i].File != refs[j].File {
			return refs[i].File < refs[j].File
		}
		return refs[i].Line < refs[j].Line
	})
	return refs, nil
}

type snippetLine struct {
	number int
	text   string
}

// matchingLines finds whole-word occurrences of name within snippet,
// returning one entry per matching line (snippets are typically a small
// context window, so "line" here means line-within-snippet).
func matchingLines(snippet, name string) []snippetLine {
	var out []snippetLine
	for i, line := range strings.Split(snippet, "\n") {
		if containsWholeWord(line, name) {
			out = append(out, snippetLine{number: i + 1, text: strings.TrimSpace(line)})
		}
	}
	return out
}

func containsWholeWord(line, word string) bool {
	idx := 0
	for {
		pos := strings.Index(line[idx:], word)
		if pos < 0 {
			return false
		}
		pos += idx
		before := pos == 0 || !isWordByte(line[pos-1])
		afterIdx := pos + len(word)
		after := afterIdx >= len(line) || !isWordByte(line[afterIdx])
		if before && after {
			return true
		}
		idx = pos + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// HealthCheck runs a quick sanity pass across the registry and every
// active index: the registry loads, each active index opens, and a
// sampled bm25 row contains literal text rather than a hash or
// placeholder.
func (d *Dispatcher) HealthCheck(ctx context.Context) (*HealthReport, error) {
	entries, err := d.activeRepos(nil)
	if err != nil {
		return &HealthReport{Status: "unhealthy", Warnings: []string{"registry failed to load: " + err.Error()}}, nil
	}

	report := &HealthReport{Status: "healthy", IndexedRepos: len(entries)}
	for _, entry := range entries {
		eng, err := d.engineFor(entry)
		if err != nil {
			report.Status = "degraded"
			report.Warnings = append(report.Warnings, "repository "+entry.RepositoryID+" failed to open: "+err.Error())
			continue
		}

		files, err := eng.AllFiles(ctx)
		if err != nil {
			report.Status = "degraded"
			report.Warnings = append(report.Warnings, "repository "+entry.RepositoryID+" failed to list files: "+err.Error())
			continue
		}
		report.TotalFiles += len(files)

		if len(files) == 0 {
			continue
		}
		rows, err := eng.SearchBM25(ctx, files[0].RelativePath, 1)
		if err == nil && len(rows) > 0 && looksLikeHash(rows[0].Snippet) {
			report.Status = "degraded"
			report.Warnings = append(report.Warnings, "repository "+entry.RepositoryID+" bm25 content looks like a hash, not text")
		}

		if verify, err := eng.Verify(ctx); err == nil {
			for _, inc := range verify.Inconsistencies {
				report.Status = "degraded"
				report.Warnings = append(report.Warnings, "repository "+entry.RepositoryID+" "+inc.Type.String()+": "+inc.Details)
			}
		}
	}
	return report, nil
}

// looksLikeHash flags content that is suspiciously hash-shaped: a single
// long token of only hex characters with no whitespace, the signature of
// a content hash stored where the file text belongs.
func looksLikeHash(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 32 || strings.ContainsAny(s, " \t\n") {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}
