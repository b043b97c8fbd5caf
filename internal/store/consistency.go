package store

import (
	"context"
	"time"
)

// InconsistencyType categorizes a detected cross-store discrepancy.
type InconsistencyType int

const (
	// InconsistencyOrphanBM25 is a bm25_content row with no matching file.
	InconsistencyOrphanBM25 InconsistencyType = iota
	// InconsistencyMissingBM25 is a file with no bm25_content row.
	InconsistencyMissingBM25
	// InconsistencyEmptyContent is a bm25_content row whose content is blank,
	// the single biggest failure mode the BM25Row.Content invariant guards
	// against: a row that exists but can never be matched.
	InconsistencyEmptyContent
)

func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanBM25:
		return "orphan_bm25"
	case InconsistencyMissingBM25:
		return "missing_bm25"
	case InconsistencyEmptyContent:
		return "empty_content"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected discrepancy between the relational files
// table and the BM25 full-text backend.
type Inconsistency struct {
	Type    InconsistencyType
	FileID  int64
	Details string
}

// VerifyResult is the outcome of Verify.
type VerifyResult struct {
	FilesChecked    int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Verify cross-checks the relational files table against the BM25 backend
// by file id: it reports every bm25_content row whose file no longer
// exists (InconsistencyOrphanBM25) and every file of non-zero size with no
// bm25_content row (InconsistencyMissingBM25). Row content is not
// inspected, so InconsistencyEmptyContent is never reported.
func (e *Engine) Verify(ctx context.Context) (*VerifyResult, error) {
	start := time.Now()

	files, err := e.AllFiles(ctx)
	if err != nil {
		return nil, err
	}
	fileIDs := make(map[int64]struct{}, len(files))
	for _, f := range files {
		fileIDs[f.ID] = struct{}{}
	}

	bm25IDs, err := e.BM25FileIDs(ctx)
	if err != nil {
		return nil, err
	}
	bm25Set := make(map[int64]struct{}, len(bm25IDs))
	for _, id := range bm25IDs {
		bm25Set[id] = struct{}{}
	}

	var issues []Inconsistency
	for id := range bm25Set {
		if _, ok := fileIDs[id]; !ok {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyOrphanBM25,
				FileID:  id,
				Details: "bm25_content row has no matching file",
			})
		}
	}
	for _, f := range files {
		if f.Size == 0 {
			// Empty files carry no BM25 row on purpose.
			continue
		}
		if _, ok := bm25Set[f.ID]; !ok {
			issues = append(issues, Inconsistency{
				Type:    InconsistencyMissingBM25,
				FileID:  f.ID,
				Details: "file has no bm25_content row: " + f.RelativePath,
			})
		}
	}

	return &VerifyResult{
		FilesChecked:    len(files),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}
