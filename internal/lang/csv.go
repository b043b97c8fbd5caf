package lang

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coderidge/codeindex/internal/store"
)

// csvParser handles tabular data: delimiter detection by per-line
// consistency scoring, header detection by non-numeric/numeric cell-type
// contrast, per-column type inference over a bounded sample, and basic
// statistics for numeric columns. There is no tabular tree-sitter
// grammar to reach for, so this is a hand-written, structural (non-AST)
// parser.
type csvParser struct{}

func newCSVParser() *csvParser { return &csvParser{} }

func (p *csvParser) Extensions() []string { return []string{".csv", ".tsv", ".tab", ".dat"} }
func (p *csvParser) Filenames() []string  { return nil }
func (p *csvParser) Language() string     { return "csv" }

const (
	csvDelimiterProbeLines = 10
	csvTypeSampleRows      = 1000
)

var csvCandidateDelimiters = []rune{',', '\t', '|', ';', ':', ' '}

func (p *csvParser) Parse(ctx context.Context, path string, content []byte) (*ParseResult, error) {
	result := &ParseResult{Language: "csv", FileMetadata: map[string]string{}}

	rawLines := splitNonBlankLines(string(content))
	if len(rawLines) == 0 {
		return result, nil
	}

	delim := detectDelimiter(rawLines)
	rows := make([][]string, 0, len(rawLines))
	for _, l := range rawLines {
		rows = append(rows, splitRow(l, delim))
	}

	hasHeader := detectHeader(rows)
	columnCount := maxRowWidth(rows)

	var headerNames []string
	dataRows := rows
	headerLine := 1
	if hasHeader {
		headerNames = rows[0]
		dataRows = rows[1:]
	} else {
		for i := 0; i < columnCount; i++ {
			headerNames = append(headerNames, fmt.Sprintf("column_%d", i+1))
		}
	}

	columns := inferColumns(headerNames, dataRows, columnCount)

	schemaLine := headerLine
	if !hasHeader {
		schemaLine = 0
	}
	result.Symbols = append(result.Symbols, Symbol{
		Name:        "schema",
		Kind:        store.KindSchema,
		LineStart:   max1(schemaLine),
		LineEnd:     max1(schemaLine),
		ColumnStart: 0,
		ColumnEnd:   0,
		Signature:   fmt.Sprintf("%d columns x %d rows", columnCount, len(dataRows)),
		Metadata: map[string]string{
			"column_count": strconv.Itoa(columnCount),
			"row_count":    strconv.Itoa(len(dataRows)),
			"has_header":   strconv.FormatBool(hasHeader),
			"delimiter":    delimiterName(delim),
		},
	})

	numericColumns := 0
	for i, col := range columns {
		meta := map[string]string{
			"data_type": col.dataType,
			"index":     strconv.Itoa(i),
		}
		if col.dataType == "number" {
			numericColumns++
			meta["statistics.mean"] = formatFloat(col.mean)
			meta["statistics.median"] = formatFloat(col.median)
			meta["statistics.min"] = formatFloat(col.min)
			meta["statistics.max"] = formatFloat(col.max)
			meta["statistics.stdev"] = formatFloat(col.stdev)
		}
		lineNo := headerLine
		if !hasHeader {
			lineNo = 0
		}
		result.Symbols = append(result.Symbols, Symbol{
			Name:        col.name,
			Kind:        store.KindHeader,
			LineStart:   max1(lineNo),
			LineEnd:     max1(lineNo),
			ColumnStart: i,
			ColumnEnd:   i + 1,
			Signature:   fmt.Sprintf("%s: %s", col.name, col.dataType),
			Metadata:    meta,
		})
	}

	result.Symbols = append(result.Symbols, Symbol{
		Name:      "statistics",
		Kind:      store.KindStatistic,
		LineStart: 1,
		LineEnd:   max1(len(rows)),
		Signature: fmt.Sprintf("%d numeric columns", numericColumns),
		Metadata: map[string]string{
			"numeric_columns": strconv.Itoa(numericColumns),
			"total_rows":      strconv.Itoa(len(dataRows)),
		},
	})

	return result, nil
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func splitNonBlankLines(content string) []string {
	raw := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	var out []string
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// detectDelimiter tries each candidate over the first csvDelimiterProbeLines
// non-blank lines, scoring it by how consistent (identical, non-zero)
// the per-line occurrence count is. Ties, and inputs where no delimiter
// scores above zero, default to comma.
func detectDelimiter(lines []string) rune {
	probe := lines
	if len(probe) > csvDelimiterProbeLines {
		probe = probe[:csvDelimiterProbeLines]
	}

	bestScore := -1
	best := ','
	tied := false
	for _, d := range csvCandidateDelimiters {
		counts := make([]int, len(probe))
		for i, l := range probe {
			counts[i] = strings.Count(l, string(d))
		}
		score := consistencyScore(counts)
		if score > bestScore {
			bestScore = score
			best = d
			tied = false
		} else if score == bestScore {
			tied = true
		}
	}
	if bestScore <= 0 || tied {
		return ','
	}
	return best
}

// consistencyScore is the count of lines sharing the modal non-zero
// occurrence count, or 0 if every line has zero occurrences.
func consistencyScore(counts []int) int {
	freq := make(map[int]int)
	for _, c := range counts {
		if c > 0 {
			freq[c]++
		}
	}
	best := 0
	for _, n := range freq {
		if n > best {
			best = n
		}
	}
	return best
}

func delimiterName(d rune) string {
	switch d {
	case '\t':
		return "tab"
	case ' ':
		return "space"
	default:
		return string(d)
	}
}

func splitRow(line string, delim rune) []string {
	parts := strings.Split(line, string(delim))
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func maxRowWidth(rows [][]string) int {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	return width
}

// detectHeader classifies the first row as header-like by comparing it
// against the next up-to-ten rows: more than 70% of the first row's
// cells must be non-numeric, and more than 30% of the comparison rows'
// cells must be numeric.
func detectHeader(rows [][]string) bool {
	if len(rows) < 2 {
		return false
	}
	first := rows[0]
	if len(first) == 0 {
		return false
	}
	nonNumeric := 0
	for _, cell := range first {
		if !looksNumeric(cell) {
			nonNumeric++
		}
	}
	if float64(nonNumeric)/float64(len(first)) <= 0.7 {
		return false
	}

	sampleEnd := len(rows)
	if sampleEnd > 11 {
		sampleEnd = 11
	}
	sample := rows[1:sampleEnd]

	total, numeric := 0, 0
	for _, row := range sample {
		for _, cell := range row {
			total++
			if looksNumeric(cell) {
				numeric++
			}
		}
	}
	if total == 0 {
		return false
	}
	return float64(numeric)/float64(total) > 0.3
}

func looksNumeric(cell string) bool {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return false
	}
	_, err := strconv.ParseFloat(cell, 64)
	return err == nil
}

var csvDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"01-02-2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"Jan 2, 2006",
	"2 Jan 2006",
}

var csvBooleanValues = map[string]bool{
	"true": true, "false": true, "yes": true, "no": true, "1": true, "0": true,
}

type columnInfo struct {
	name     string
	dataType string
	mean     float64
	median   float64
	min      float64
	max      float64
	stdev    float64
}

// inferColumns classifies each column's dominant type over at most
// csvTypeSampleRows rows, with boolean > numeric > date > string
// precedence and a >80%-agreement rule, computing numeric stats when the
// column's type is "number".
func inferColumns(names []string, rows [][]string, columnCount int) []columnInfo {
	sample := rows
	if len(sample) > csvTypeSampleRows {
		sample = sample[:csvTypeSampleRows]
	}

	columns := make([]columnInfo, columnCount)
	for i := 0; i < columnCount; i++ {
		name := fmt.Sprintf("column_%d", i+1)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}

		counts := map[string]int{"boolean": 0, "number": 0, "date": 0, "string": 0}
		var numbers []float64
		total := 0

		for _, row := range sample {
			if i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			total++
			switch {
			case csvBooleanValues[strings.ToLower(cell)]:
				counts["boolean"]++
			case looksNumeric(cell):
				counts["number"]++
				if f, err := strconv.ParseFloat(cell, 64); err == nil {
					numbers = append(numbers, f)
				}
			case looksDate(cell):
				counts["date"]++
			default:
				counts["string"]++
			}
		}

		dataType := dominantType(counts, total)
		col := columnInfo{name: name, dataType: dataType}
		if dataType == "number" && len(numbers) > 0 {
			col.mean, col.median, col.min, col.max, col.stdev = numericStats(numbers)
		}
		columns[i] = col
	}
	return columns
}

func looksDate(cell string) bool {
	for _, layout := range csvDateLayouts {
		if _, err := time.Parse(layout, cell); err == nil {
			return true
		}
	}
	return false
}

func dominantType(counts map[string]int, total int) string {
	if total == 0 {
		return "string"
	}
	best, bestCount := "string", -1
	for _, t := range []string{"boolean", "number", "date", "string"} {
		if counts[t] > bestCount {
			best, bestCount = t, counts[t]
		}
	}
	if float64(bestCount)/float64(total) > 0.8 {
		return best
	}
	return "mixed"
}

// numericStats computes mean, median, min, max, and sample stdev (0 for a
// single value).
func numericStats(values []float64) (mean, median, min, max, stdev float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	min, max = sorted[0], sorted[len(sorted)-1]

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean = sum / float64(len(sorted))

	n := len(sorted)
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	if n < 2 {
		return mean, median, min, max, 0
	}
	var variance float64
	for _, v := range sorted {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n - 1)
	stdev = math.Sqrt(variance)
	return mean, median, min, max, stdev
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
