package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderidge/codeindex/internal/store"
)

func parseWith(t *testing.T, language, path, content string) *ParseResult {
	t.Helper()
	r := NewRegistry()
	parser, ok := r.Resolve(path)
	require.True(t, ok, "no parser for %s", path)
	require.Equal(t, language, parser.Language())

	result, err := parser.Parse(context.Background(), path, []byte(content))
	require.NoError(t, err)
	return result
}

func findSymbol(t *testing.T, result *ParseResult, name string) Symbol {
	t.Helper()
	for _, s := range result.Symbols {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("symbol %q not found in %v", name, result.Symbols)
	return Symbol{}
}

func TestPythonParser_ClassAndMethod(t *testing.T) {
	content := "class Calculator:\n    def add(self, a, b): return a + b\n"
	result := parseWith(t, "python", "demo.py", content)

	cls := findSymbol(t, result, "Calculator")
	assert.Equal(t, store.KindClass, cls.Kind)
	assert.Equal(t, 1, cls.LineStart)
	assert.Equal(t, 2, cls.LineEnd)

	add := findSymbol(t, result, "add")
	assert.Equal(t, store.KindFunction, add.Kind)
	assert.Equal(t, 2, add.LineStart)
}

func TestPythonParser_Imports(t *testing.T) {
	content := "import os\nfrom typing import List\n"
	result := parseWith(t, "python", "demo.py", content)

	require.Len(t, result.Imports, 2)
	assert.Contains(t, result.Imports[0], "os")
	assert.Contains(t, result.Imports[1], "typing")
}

func TestPythonParser_ModuleVariable(t *testing.T) {
	content := "MAX_SIZE = 1024\n"
	result := parseWith(t, "python", "conf.py", content)

	sym := findSymbol(t, result, "MAX_SIZE")
	assert.Equal(t, store.KindVariable, sym.Kind)
}

func TestGoParser_FunctionsMethodsTypes(t *testing.T) {
	content := `package demo

import "fmt"

type Server struct {
	addr string
}

func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

func (s *Server) Start() error {
	fmt.Println(s.addr)
	return nil
}
`
	result := parseWith(t, "go", "server.go", content)

	assert.Equal(t, "demo", result.Package)
	require.Len(t, result.Imports, 1)

	srv := findSymbol(t, result, "Server")
	assert.Equal(t, store.KindType, srv.Kind)

	ctor := findSymbol(t, result, "NewServer")
	assert.Equal(t, store.KindFunction, ctor.Kind)

	start := findSymbol(t, result, "Start")
	assert.Equal(t, store.KindMethod, start.Kind)
	assert.Equal(t, 13, start.LineStart)
	assert.Equal(t, 16, start.LineEnd)
}

func TestJavaScriptParser_ClassAndFunction(t *testing.T) {
	content := `class Cart {
  addItem(item) {
    this.items.push(item)
  }
}

function checkout(cart) {
  return cart.total()
}
`
	result := parseWith(t, "javascript", "cart.js", content)

	cart := findSymbol(t, result, "Cart")
	assert.Equal(t, store.KindClass, cart.Kind)

	addItem := findSymbol(t, result, "addItem")
	assert.Equal(t, store.KindMethod, addItem.Kind)

	checkout := findSymbol(t, result, "checkout")
	assert.Equal(t, store.KindFunction, checkout.Kind)
}

func TestTypeScriptParser_InterfaceAndTypeAlias(t *testing.T) {
	content := `interface Billing {
  charge(amount: number): void
}

type Cents = number
`
	result := parseWith(t, "typescript", "billing.ts", content)

	billing := findSymbol(t, result, "Billing")
	assert.Equal(t, store.KindInterface, billing.Kind)

	cents := findSymbol(t, result, "Cents")
	assert.Equal(t, store.KindType, cents.Kind)
}

func TestJavaParser_ClassWithModifiers(t *testing.T) {
	content := `package com.acme;

public class Ledger {
    private int balance;

    public int getBalance() {
        return balance;
    }
}
`
	result := parseWith(t, "java", "Ledger.java", content)

	ledger := findSymbol(t, result, "Ledger")
	assert.Contains(t, string(ledger.Kind), "class")

	get := findSymbol(t, result, "getBalance")
	assert.Equal(t, store.SymbolKind("public_method"), get.Kind)
	assert.Contains(t, get.Modifiers, "public")
}

func TestParser_DeterministicOutput(t *testing.T) {
	content := "def greet():\n    return 'hi'\n"
	first := parseWith(t, "python", "a.py", content)
	second := parseWith(t, "python", "a.py", content)
	assert.Equal(t, first, second)
}

func TestParser_MalformedInputStillPartial(t *testing.T) {
	content := "class Broken(:\n    def ok(self): pass\n"
	result := parseWith(t, "python", "b.py", content)
	// Parsers never error on malformed input; whatever was parseable is kept.
	assert.NotNil(t, result)
}
