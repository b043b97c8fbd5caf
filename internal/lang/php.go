package lang

import (
	"context"
	"regexp"
	"strings"

	"github.com/coderidge/codeindex/internal/store"
)

// phpParser is a brace-counting, regex-based parser, like the Kotlin
// one: no PHP tree-sitter grammar ships in this module's dependency set,
// so symbol boundaries come from counting braces from the declaration
// line.
type phpParser struct{}

func newPHPParser() *phpParser { return &phpParser{} }

func (p *phpParser) Extensions() []string { return []string{".php"} }
func (p *phpParser) Filenames() []string  { return nil }
func (p *phpParser) Language() string     { return "php" }

var (
	phpNamespaceRe = regexp.MustCompile(`^namespace\s+([\w\\]+)`)
	phpUseRe       = regexp.MustCompile(`^use\s+([\w\\]+)`)
	phpClassRe     = regexp.MustCompile(
		`^((?:(?:abstract|final)\s+)*)(class|interface|trait)\s+(\w+)(?:\s+extends\s+([\w\\]+))?(?:\s+implements\s+([\w\\, ]+))?`)
	phpMethodRe = regexp.MustCompile(
		`^((?:(?:public|private|protected|static|abstract|final)\s+)*)function\s+(\w+)\s*\(`)
	phpPropertyRe = regexp.MustCompile(
		`^((?:(?:public|private|protected|static|readonly)\s+)*)\$(\w+)\s*(?:=|;)`)
	phpConstRe = regexp.MustCompile(`^((?:(?:public|private|protected)\s+)*)const\s+(\w+)\s*=`)
)

// laravelBaseKinds maps a parent class name fragment to a Laravel
// symbol kind, recognized the same way the Ruby parser detects Rails
// classes: by what the class extends, not by file path convention.
var laravelBaseKinds = map[string]store.SymbolKind{
	"Model":      "model",
	"Controller": "controller",
	"Middleware": "middleware",
	"Migration":  "migration",
	"Seeder":     "seeder",
}

func (p *phpParser) Parse(ctx context.Context, path string, content []byte) (*ParseResult, error) {
	result := &ParseResult{Language: "php", FileMetadata: map[string]string{}}
	lines := splitLinesKeepEnding(content)

	var currentClassEnd int
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		lineNo := i + 1
		if trimmed == "" {
			continue
		}

		switch {
		case phpNamespaceRe.MatchString(trimmed):
			m := phpNamespaceRe.FindStringSubmatch(trimmed)
			result.Package = strings.TrimSuffix(m[1], ";")
			result.Symbols = append(result.Symbols, Symbol{
				Name: result.Package, Kind: "namespace", LineStart: lineNo, LineEnd: lineNo, Signature: trimmed,
			})

		case phpUseRe.MatchString(trimmed):
			m := phpUseRe.FindStringSubmatch(trimmed)
			result.Imports = append(result.Imports, strings.TrimSuffix(m[1], ";"))

		case phpClassRe.MatchString(trimmed):
			m := phpClassRe.FindStringSubmatch(trimmed)
			modifiers := splitWords(m[1])
			kind := classKeywordKind(m[2], modifiers)
			parent := m[4]
			if laravelKind, ok := laravelBaseForParent(parent); ok {
				kind = laravelKind
			}
			end := braceMatchEnd(lines, i)
			currentClassEnd = end
			meta := map[string]string{}
			if parent != "" {
				meta["extends"] = parent
			}
			if m[5] != "" {
				meta["implements"] = strings.TrimSpace(m[5])
			}
			result.Symbols = append(result.Symbols, Symbol{
				Name:        m[3],
				Kind:        kind,
				LineStart:   lineNo,
				LineEnd:     end,
				ColumnStart: 0,
				ColumnEnd:   len(lines[i]),
				Signature:   trimmed,
				Modifiers:   modifiers,
				Metadata:    meta,
			})

		case phpMethodRe.MatchString(trimmed):
			m := phpMethodRe.FindStringSubmatch(trimmed)
			modifiers := splitWords(m[1])
			end := braceMatchEnd(lines, i)
			kind := store.KindFunction
			if lineNo <= currentClassEnd {
				kind = store.WithVisibility(store.KindMethod, visibilityModifier(modifiers))
			}
			result.Symbols = append(result.Symbols, Symbol{
				Name:        m[2],
				Kind:        kind,
				LineStart:   lineNo,
				LineEnd:     end,
				ColumnStart: 0,
				ColumnEnd:   len(lines[i]),
				Signature:   trimmed,
				Modifiers:   modifiers,
			})

		case phpConstRe.MatchString(trimmed):
			m := phpConstRe.FindStringSubmatch(trimmed)
			result.Symbols = append(result.Symbols, Symbol{
				Name: m[2], Kind: store.KindConstant, LineStart: lineNo, LineEnd: lineNo, Signature: trimmed,
				Modifiers: splitWords(m[1]),
			})

		case phpPropertyRe.MatchString(trimmed):
			m := phpPropertyRe.FindStringSubmatch(trimmed)
			modifiers := splitWords(m[1])
			result.Symbols = append(result.Symbols, Symbol{
				Name: m[2], Kind: store.WithVisibility(store.KindProperty, visibilityModifier(modifiers)),
				LineStart: lineNo, LineEnd: lineNo, Signature: trimmed, Modifiers: modifiers,
			})
		}
	}

	return result, nil
}

func classKeywordKind(keyword string, modifiers []string) store.SymbolKind {
	switch keyword {
	case "interface":
		return store.KindInterface
	case "trait":
		return store.KindTrait
	default:
		if containsWord(modifiers, "abstract") {
			return "abstract_class"
		}
		return store.KindClass
	}
}

func laravelBaseForParent(parent string) (store.SymbolKind, bool) {
	if parent == "" {
		return "", false
	}
	// Strip a leading namespace, e.g. "Illuminate\Database\Eloquent\Model".
	short := parent
	if i := strings.LastIndexByte(parent, '\\'); i >= 0 {
		short = parent[i+1:]
	}
	for suffix, kind := range laravelBaseKinds {
		if short == suffix || strings.HasSuffix(short, suffix) {
			return kind, true
		}
	}
	return "", false
}
