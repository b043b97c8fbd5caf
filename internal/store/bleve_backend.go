package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

// Legacy, single-process BM25 backend kept alongside the SQLite FTS5
// default to demonstrate that bm25_content's contract isn't tied to any
// one engine. It stores the same columns as bm25_content,
// just as separate mapped fields in a Bleve document.

const (
	codeTokenizerName = "code_tokenizer"
	codeStopFilterName = "code_stop"
	codeAnalyzerName   = "code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(codeTokenizerName, codeTokenizerConstructor)
	_ = registry.RegisterTokenFilter(codeStopFilterName, codeStopFilterConstructor)
}

// BleveBM25Index wraps Bleve v2, indexed by a string key built from the
// file id so Bleve's string-keyed API can still satisfy the int64-keyed
// BM25Index contract.
type BleveBM25Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config BM25Config
	closed bool
}

var _ BM25Index = (*BleveBM25Index)(nil)

// bleveDocument mirrors bm25_content's columns as Bleve document fields.
type bleveDocument struct {
	FilePath string `json:"filepath"`
	FileName string `json:"filename"`
	Content  string `json:"content"`
	Language string `json:"language"`
	Symbols  string `json:"symbols"`
	Imports  string `json:"imports"`
	Comments string `json:"comments"`
}

// NewBleveBM25Index opens (or creates) a Bleve index at path. An empty
// path creates an in-memory index, used by tests.
func NewBleveBM25Index(path string, config BM25Config) (*BleveBM25Index, error) {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("build index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("create directory: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}

	return &BleveBM25Index{index: idx, path: path, config: config}, nil
}

func buildIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(codeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": codeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			codeStopFilterName,
		},
	})
	if err != nil {
		return nil, err
	}
	im.DefaultAnalyzer = codeAnalyzerName
	return im, nil
}

func docKey(fileID int64) string {
	return strconv.FormatInt(fileID, 10)
}

// Index adds or replaces documents.
func (b *BleveBM25Index) Index(ctx context.Context, rows []*BM25Row) error {
	if len(rows) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, row := range rows {
		doc := bleveDocument{
			FilePath: row.FilePath,
			FileName: row.FileName,
			Content:  row.Content,
			Language: row.Language,
			Symbols:  row.Symbols,
			Imports:  row.Imports,
			Comments: row.Comments,
		}
		if err := batch.Index(docKey(row.FileID), doc); err != nil {
			return fmt.Errorf("index document %d: %w", row.FileID, err)
		}
	}
	return b.index.Batch(batch)
}

// Search runs a match query over the content field.
func (b *BleveBM25Index) Search(ctx context.Context, query string, limit int) ([]*BM25SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	mq := bleve.NewMatchQuery(query)
	mq.SetField("content")
	req := bleve.NewSearchRequest(mq)
	req.Size = limit
	req.Fields = []string{"filepath", "content"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	results := make([]*BM25SearchResult, 0, len(res.Hits))
	for rank, hit := range res.Hits {
		fileID, _ := strconv.ParseInt(hit.ID, 10, 64)
		filepathVal, _ := hit.Fields["filepath"].(string)
		content, _ := hit.Fields["content"].(string)
		results = append(results, &BM25SearchResult{
			FileID:   fileID,
			FilePath: filepathVal,
			Snippet:  snippetFrom(content, query),
			Rank:     float64(rank), // Bleve scores descending; rank by position for ordering parity
		})
	}
	return results, nil
}

// Delete removes documents by file id.
func (b *BleveBM25Index) Delete(ctx context.Context, fileIDs []int64) error {
	if len(fileIDs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index is closed")
	}
	batch := b.index.NewBatch()
	for _, id := range fileIDs {
		batch.Delete(docKey(id))
	}
	return b.index.Batch(batch)
}

// AllFileIDs returns every indexed file id.
func (b *BleveBM25Index) AllFileIDs(ctx context.Context) ([]int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}
	count, _ := b.index.DocCount()
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	req.Fields = nil

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list all ids: %w", err)
	}
	ids := make([]int64, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, _ := strconv.ParseInt(hit.ID, 10, 64)
		ids = append(ids, id)
	}
	return ids, nil
}

// Stats reports the document count.
func (b *BleveBM25Index) Stats() *IndexStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return &IndexStats{}
	}
	count, _ := b.index.DocCount()
	return &IndexStats{DocumentCount: int(count)}
}

// Close closes the underlying Bleve index.
func (b *BleveBM25Index) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

// snippetFrom builds a short excerpt around the first matched query term,
// with an ellipsis on either side, mirroring the sqlite backend's
// snippet() behavior closely enough for display parity between backends.
func snippetFrom(content, query string) string {
	const window = 40
	lowerContent := strings.ToLower(content)
	terms := strings.Fields(strings.ToLower(query))
	idx := -1
	for _, t := range terms {
		if i := strings.Index(lowerContent, t); i >= 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		if len(content) > 2*window {
			return content[:2*window] + "..."
		}
		return content
	}
	start := idx - window
	if start < 0 {
		start = 0
	}
	end := idx + window
	if end > len(content) {
		end = len(content)
	}
	prefix, suffix := "", ""
	if start > 0 {
		prefix = "..."
	}
	if end < len(content) {
		suffix = "..."
	}
	return prefix + content[start:end] + suffix
}

// codeTokenizerConstructor builds the camelCase/snake_case-aware tokenizer
// used by the custom analyzer above.
func codeTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &codeTokenizer{}, nil
}

type codeTokenizer struct{}

func (t *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeCode(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0
	for _, token := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), token)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)
		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}
	return result
}

func codeStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &codeStopFilter{stopWords: BuildStopWordMap(DefaultCodeStopWords)}, nil
}

type codeStopFilter struct {
	stopWords map[string]struct{}
}

func (f *codeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
