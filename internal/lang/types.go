// Package lang implements the language parsers and the plugin registry
// that dispatches source files to them. Every parser emits
// the same uniform symbol stream regardless of whether it is backed by a
// tree-sitter grammar or a hand-written scanner.
package lang

import (
	"context"

	"github.com/coderidge/codeindex/internal/store"
)

// Point is a 0-indexed row/column position in source text.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is a language-agnostic AST node built from a tree-sitter parse
// tree, so every tree-sitter-backed parser can share the same
// Symbol-extraction helpers. The regex-based parsers do not build Nodes.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
}

// Content returns the node's source slice.
func (n *Node) Content(source []byte) string {
	if n == nil || n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// FindChildByType returns the first direct child with the given type.
func (n *Node) FindChildByType(nodeType string) *Node {
	for _, c := range n.Children {
		if c.Type == nodeType {
			return c
		}
	}
	return nil
}

// Walk traverses the tree depth-first, calling fn for every node. fn
// returning false stops descending into that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Tree is a parsed file: the node tree plus the language that produced it.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Symbol is one program entity extracted from a file, in the shape the
// storage engine's Symbol type expects, plus the fields a parser fills
// before a FileID has been assigned.
type Symbol struct {
	Name          string
	Kind          store.SymbolKind
	LineStart     int
	LineEnd       int
	ColumnStart   int
	ColumnEnd     int
	Signature     string
	Documentation string
	Modifiers     []string
	Metadata      map[string]string
}

// FileInput pairs a path with its content. Parse itself takes the two as
// separate arguments.
type FileInput struct {
	Path    string // as seen by the caller, used only for parser dispatch
	Content []byte
}

// ParseResult is what every Parser implementation returns.
type ParseResult struct {
	Language     string
	Package      string
	Imports      []string
	Symbols      []Symbol
	FileMetadata map[string]string
}

// Parser is the uniform contract every language parser implements,
// whether tree-sitter-backed or a hand-written scanner. Parsers never
// return an error for malformed input: they emit whatever they can
// parse, so Parse's error return is reserved for context cancellation
// and catastrophic failures (e.g. tree-sitter itself refusing to produce
// a tree), never for parse-quality issues.
type Parser interface {
	// Parse extracts a uniform symbol stream from content.
	Parse(ctx context.Context, path string, content []byte) (*ParseResult, error)

	// Extensions lists the file extensions (lowercase, with leading dot)
	// this parser claims by default.
	Extensions() []string

	// Filenames lists exact base filenames (e.g. "go.mod") this parser
	// claims ahead of any extension match.
	Filenames() []string

	// Language is the parser's canonical language name, used as the
	// File.Language column and in search-result annotations.
	Language() string
}
