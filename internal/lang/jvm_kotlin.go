package lang

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/coderidge/codeindex/internal/store"
)

// kotlinParser is a hand-written, brace-counting parser for Kotlin source.
// No tree-sitter grammar for Kotlin ships in this module's dependency
// set, so symbol boundaries are found the usual way for C-like
// languages: brace counting from the declaration line. Extension
// functions, data/sealed/inline/value classes, and typed properties are
// Kotlin-specific shapes the shared tree-sitter path has no slot for.
type kotlinParser struct{}

func newKotlinParser() *kotlinParser { return &kotlinParser{} }

func (p *kotlinParser) Extensions() []string { return []string{".kt", ".kts"} }
func (p *kotlinParser) Filenames() []string  { return nil }
func (p *kotlinParser) Language() string     { return "kotlin" }

var (
	kotlinPackageRe = regexp.MustCompile(`^package\s+([\w.]+)`)
	kotlinImportRe  = regexp.MustCompile(`^import\s+([\w.]+)`)
	// classRe captures an optional modifier set, the declaration keyword
	// (class/object/interface), and the name. The receiver type of an
	// extension declaration ("fun ReceiverType.name") is captured by
	// kotlinFunRe instead.
	kotlinClassRe = regexp.MustCompile(
		`^((?:(?:data|sealed|inline|value|abstract|open|private|internal|public)\s+)*)(class|interface|object)\s+(\w+)`)
	kotlinFunRe = regexp.MustCompile(
		`^((?:(?:private|internal|public|protected|suspend|inline|override)\s+)*)fun\s+(?:<[^>]*>\s*)?(?:([\w<>, ]+?)\.)?(\w+)\s*\(`)
	kotlinPropertyRe = regexp.MustCompile(
		`^((?:(?:private|internal|public|protected|override|const)\s+)*)(val|var)\s+(\w+)\s*:\s*([\w<>?,. ]+)`)
)

func (p *kotlinParser) Parse(ctx context.Context, path string, content []byte) (*ParseResult, error) {
	result := &ParseResult{Language: "kotlin", FileMetadata: map[string]string{}}
	lines := splitLinesKeepEnding(content)

	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		lineNo := i + 1

		switch {
		case kotlinPackageRe.MatchString(trimmed):
			m := kotlinPackageRe.FindStringSubmatch(trimmed)
			result.Package = m[1]

		case kotlinImportRe.MatchString(trimmed):
			m := kotlinImportRe.FindStringSubmatch(trimmed)
			result.Imports = append(result.Imports, m[1])

		case kotlinClassRe.MatchString(trimmed):
			m := kotlinClassRe.FindStringSubmatch(trimmed)
			modifiers := splitWords(m[1])
			kind := store.KindClass
			if m[2] == "interface" {
				kind = store.KindInterface
			}
			meta := map[string]string{}
			for _, mod := range []string{"data", "sealed", "inline", "value"} {
				if containsWord(modifiers, mod) {
					meta["class_modifier"] = mod
				}
			}
			if m[2] == "object" {
				meta["object"] = "true"
			}
			end := braceMatchEnd(lines, i)
			result.Symbols = append(result.Symbols, Symbol{
				Name:        m[3],
				Kind:        store.WithVisibility(kind, visibilityModifier(modifiers)),
				LineStart:   lineNo,
				LineEnd:     end,
				ColumnStart: 0,
				ColumnEnd:   len(lines[i]),
				Signature:   trimmed,
				Modifiers:   modifiers,
				Metadata:    meta,
			})

		case kotlinFunRe.MatchString(trimmed):
			m := kotlinFunRe.FindStringSubmatch(trimmed)
			modifiers := splitWords(m[1])
			receiver := strings.TrimSpace(m[2])
			name := m[3]
			kind := store.KindFunction
			meta := map[string]string{}
			if receiver != "" {
				kind = store.KindExtension
				meta["receiver"] = receiver
				name = receiver + "." + name
			}
			end := braceMatchEnd(lines, i)
			result.Symbols = append(result.Symbols, Symbol{
				Name:        name,
				Kind:        store.WithVisibility(kind, visibilityModifier(modifiers)),
				LineStart:   lineNo,
				LineEnd:     end,
				ColumnStart: 0,
				ColumnEnd:   len(lines[i]),
				Signature:   trimmed,
				Modifiers:   modifiers,
				Metadata:    meta,
			})

		case kotlinPropertyRe.MatchString(trimmed):
			m := kotlinPropertyRe.FindStringSubmatch(trimmed)
			modifiers := splitWords(m[1])
			result.Symbols = append(result.Symbols, Symbol{
				Name:        m[3],
				Kind:        store.WithVisibility(store.KindProperty, visibilityModifier(modifiers)),
				LineStart:   lineNo,
				LineEnd:     lineNo,
				ColumnStart: 0,
				ColumnEnd:   len(lines[i]),
				Signature:   trimmed,
				Modifiers:   modifiers,
				Metadata:    map[string]string{"data_type": strings.TrimSpace(m[4])},
			})
		}
	}

	return result, nil
}

// braceMatchEnd returns the 1-based line number where the brace opened on
// startIdx's line (or the nearest following line, for signatures spanning
// multiple lines before the body) closes. Returns the start line when no
// opening brace is found (e.g. a single-expression function body).
func braceMatchEnd(lines []string, startIdx int) int {
	depth := 0
	seenOpen := false
	for i := startIdx; i < len(lines); i++ {
		for _, c := range lines[i] {
			switch c {
			case '{':
				depth++
				seenOpen = true
			case '}':
				depth--
				if seenOpen && depth == 0 {
					return i + 1
				}
			}
		}
		if !seenOpen && i-startIdx > 2 {
			// No brace within a few lines: treat as a single-line/expression body.
			return startIdx + 1
		}
	}
	if !seenOpen {
		return startIdx + 1
	}
	return len(lines)
}

func splitLinesKeepEnding(content []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func containsWord(words []string, target string) bool {
	for _, w := range words {
		if w == target {
			return true
		}
	}
	return false
}

// visibilityModifier returns the first visibility/storage modifier worth
// folding into a kind string: the tree-sitter path's primaryModifier set
// plus Kotlin's "internal".
func visibilityModifier(modifiers []string) string {
	for _, m := range modifiers {
		switch m {
		case "private", "public", "protected", "internal", "static":
			return m
		}
	}
	return ""
}
