package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderidge/codeindex/internal/store"
)

func parseCSV(t *testing.T, content string) *ParseResult {
	t.Helper()
	result, err := newCSVParser().Parse(context.Background(), "data.csv", []byte(content))
	require.NoError(t, err)
	return result
}

func symbolsByKind(result *ParseResult, kind store.SymbolKind) []Symbol {
	var out []Symbol
	for _, s := range result.Symbols {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func TestCSVParser_SchemaHeadersAndStats(t *testing.T) {
	content := "name,age,city,active\n" +
		"alice,30,paris,1\n" +
		"bob,25,london,0\n" +
		"carol,40,berlin,1\n" +
		"dave,22,madrid,0\n" +
		"erin,35,rome,1\n"

	result := parseCSV(t, content)

	schemas := symbolsByKind(result, store.KindSchema)
	require.Len(t, schemas, 1)
	assert.Equal(t, "4", schemas[0].Metadata["column_count"])
	assert.Equal(t, "5", schemas[0].Metadata["row_count"])
	assert.Equal(t, "true", schemas[0].Metadata["has_header"])
	assert.Equal(t, ",", schemas[0].Metadata["delimiter"])

	headers := symbolsByKind(result, store.KindHeader)
	require.Len(t, headers, 4)

	byName := map[string]Symbol{}
	for _, h := range headers {
		byName[h.Name] = h
	}
	age := byName["age"]
	assert.Equal(t, "number", age.Metadata["data_type"])
	assert.Equal(t, "22", age.Metadata["statistics.min"])
	assert.Equal(t, "40", age.Metadata["statistics.max"])
	assert.Equal(t, "30.4", age.Metadata["statistics.mean"])
	assert.Equal(t, "string", byName["name"].Metadata["data_type"])
	assert.Equal(t, "boolean", byName["active"].Metadata["data_type"])

	stats := symbolsByKind(result, store.KindStatistic)
	require.Len(t, stats, 1)
	assert.Equal(t, "1", stats[0].Metadata["numeric_columns"])
}

func TestCSVParser_TabDelimiter(t *testing.T) {
	content := "id\tscore\n1\t9.5\n2\t8.1\n3\t7.7\n"

	result := parseCSV(t, content)

	schemas := symbolsByKind(result, store.KindSchema)
	require.Len(t, schemas, 1)
	assert.Equal(t, "tab", schemas[0].Metadata["delimiter"])
	assert.Equal(t, "2", schemas[0].Metadata["column_count"])
}

func TestCSVParser_NoHeader(t *testing.T) {
	content := "1,2,3\n4,5,6\n7,8,9\n"

	result := parseCSV(t, content)

	schemas := symbolsByKind(result, store.KindSchema)
	require.Len(t, schemas, 1)
	assert.Equal(t, "false", schemas[0].Metadata["has_header"])

	headers := symbolsByKind(result, store.KindHeader)
	require.Len(t, headers, 3)
	assert.Equal(t, "column_1", headers[0].Name)
	// "1" is in the boolean set, so column_1 holds one boolean and two
	// numbers and no type reaches the 80% agreement threshold.
	assert.Equal(t, "mixed", headers[0].Metadata["data_type"])
}

func TestCSVParser_EmptyInput(t *testing.T) {
	result := parseCSV(t, "")
	assert.Empty(t, result.Symbols)
}

func TestCSVParser_MixedColumnType(t *testing.T) {
	content := "val\n1\ntwo\n3\nfour\nfive\n"

	result := parseCSV(t, content)
	headers := symbolsByKind(result, store.KindHeader)
	require.Len(t, headers, 1)
	assert.Equal(t, "mixed", headers[0].Metadata["data_type"])
}

func TestCSVParser_SingleNumericValue_ZeroStdev(t *testing.T) {
	content := "label,count\nonly,7\n"

	result := parseCSV(t, content)
	headers := symbolsByKind(result, store.KindHeader)
	byName := map[string]Symbol{}
	for _, h := range headers {
		byName[h.Name] = h
	}
	require.Contains(t, byName, "count")
	assert.Equal(t, "0", byName["count"].Metadata["statistics.stdev"])
}

func TestCSVParser_DateColumn(t *testing.T) {
	content := "when,qty\n2026-01-02,5\n2026-02-03,6\n2026-03-04,7\n"

	result := parseCSV(t, content)
	headers := symbolsByKind(result, store.KindHeader)
	require.Len(t, headers, 2)
	assert.Equal(t, "when", headers[0].Name)
	assert.Equal(t, "date", headers[0].Metadata["data_type"])
}

func TestCSVParser_Deterministic(t *testing.T) {
	content := "a,b\n1,x\n2,y\n"
	first := parseCSV(t, content)
	second := parseCSV(t, content)
	assert.Equal(t, first, second)
}
