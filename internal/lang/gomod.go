package lang

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/coderidge/codeindex/internal/store"
)

// goModParser extracts the module declaration and require-block
// dependencies from a go.mod file. go.mod has no tree-sitter grammar in
// this module's dependency set, so it is parsed the way the CSV parser
// handles tabular data: a structural, line-oriented scan rather than an
// AST walk.
type goModParser struct{}

func newGoModParser() *goModParser { return &goModParser{} }

func (p *goModParser) Extensions() []string { return nil }
func (p *goModParser) Filenames() []string  { return []string{"go.mod"} }
func (p *goModParser) Language() string     { return "gomod" }

func (p *goModParser) Parse(ctx context.Context, path string, content []byte) (*ParseResult, error) {
	result := &ParseResult{Language: "gomod", FileMetadata: map[string]string{}}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	lineNo := 0
	inRequireBlock := false

	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "module "):
			name := strings.TrimSpace(strings.Split(strings.TrimPrefix(line, "module "), "//")[0])
			result.Package = name
			result.Symbols = append(result.Symbols, Symbol{
				Name:        name,
				Kind:        store.KindModule,
				LineStart:   lineNo,
				LineEnd:     lineNo,
				ColumnStart: 0,
				ColumnEnd:   len(raw),
				Signature:   line,
			})

		case line == "require (":
			inRequireBlock = true

		case inRequireBlock && line == ")":
			inRequireBlock = false

		case inRequireBlock:
			if sym, ok := parseRequireLine(line, lineNo, len(raw)); ok {
				result.Imports = append(result.Imports, sym.Name)
				result.Symbols = append(result.Symbols, sym)
			}

		case strings.HasPrefix(line, "require "):
			rest := strings.TrimSpace(strings.TrimPrefix(line, "require "))
			if sym, ok := parseRequireLine(rest, lineNo, len(raw)); ok {
				result.Imports = append(result.Imports, sym.Name)
				result.Symbols = append(result.Symbols, sym)
			}

		case strings.HasPrefix(line, "go "):
			result.FileMetadata["go_version"] = strings.TrimSpace(strings.TrimPrefix(line, "go "))
		}
	}

	return result, nil
}

// parseRequireLine parses one "module/path v1.2.3 // indirect" entry,
// inside or outside a require(...) block.
func parseRequireLine(line string, lineNo, width int) (Symbol, bool) {
	indirect := strings.Contains(line, "// indirect")
	line = strings.TrimSpace(strings.Split(line, "//")[0])
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Symbol{}, false
	}
	modPath, version := fields[0], fields[1]

	meta := map[string]string{"version": version}
	if indirect {
		meta["indirect"] = strconv.FormatBool(true)
	}

	return Symbol{
		Name:        modPath,
		Kind:        store.KindDependency,
		LineStart:   lineNo,
		LineEnd:     lineNo,
		ColumnStart: 0,
		ColumnEnd:   width,
		Signature:   line,
		Metadata:    meta,
	}, true
}
