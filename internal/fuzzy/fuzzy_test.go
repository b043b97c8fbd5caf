package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchRanksWholeWordBeforePrefixBeforeSubstring(t *testing.T) {
	idx := New()
	idx.AddSymbol("Calculator", "a.py", 1, nil)
	idx.AddSymbol("CalculatorFactory", "b.py", 5, nil)
	idx.AddSymbol("MyCalculatorHelper", "c.py", 9, nil)

	results := idx.Search("calculator", 0)
	require.Len(t, results, 3)
	assert.Equal(t, "Calculator", results[0].Name)
	assert.Equal(t, "CalculatorFactory", results[1].Name)
	assert.Equal(t, "MyCalculatorHelper", results[2].Name)
}

func TestSearchTiebreaksByShorterNameThenLine(t *testing.T) {
	idx := New()
	idx.AddSymbol("fooBar", "a.py", 10, nil)
	idx.AddSymbol("foo", "b.py", 20, nil)
	idx.AddSymbol("foo", "c.py", 5, nil)

	results := idx.Search("foo", 0)
	require.Len(t, results, 3)
	assert.Equal(t, "c.py", results[0].File)
	assert.Equal(t, "b.py", results[1].File)
	assert.Equal(t, "fooBar", results[2].Name)
}

func TestSearchEmptyQueryReturnsNil(t *testing.T) {
	idx := New()
	idx.AddSymbol("foo", "a.py", 1, nil)
	assert.Nil(t, idx.Search("   ", 0))
}

func TestSearchLimit(t *testing.T) {
	idx := New()
	for i := 0; i < 10; i++ {
		idx.AddSymbol("widget", "a.py", i, nil)
	}
	assert.Len(t, idx.Search("widget", 3), 3)
}

func TestIndexSymbolsRegistersSubTokens(t *testing.T) {
	idx := New()
	idx.IndexSymbols("a.go", []SymbolRef{{Name: "getUserById", Line: 12}})

	results := idx.Search("user", 0)
	require.NotEmpty(t, results)
	assert.Equal(t, "User", results[0].Name)
}

func TestStats(t *testing.T) {
	idx := New()
	idx.AddFile("a.go", "package main")
	idx.AddSymbol("main", "a.go", 1, nil)
	stats := idx.Stats()
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Symbols)
}
