package lang

import (
	"context"
	"regexp"
	"strings"

	"github.com/coderidge/codeindex/internal/store"
)

// rubyParser wraps the tree-sitter Ruby grammar with a second, line-level
// pass for the things an AST walk alone cannot see: visibility sections
// (a bare `private` re-kinds every following method), Rails base classes,
// and the methods that metaprogramming macros like attr_accessor, scope,
// and has_many generate at class-load time.
type rubyParser struct {
	base *treeSitterParser
}

func newRubyParser() *rubyParser {
	return &rubyParser{base: newTreeSitterParser(grammars["ruby"])}
}

func (p *rubyParser) Extensions() []string { return []string{".rb", ".rake", ".gemspec"} }
func (p *rubyParser) Filenames() []string  { return nil }
func (p *rubyParser) Language() string     { return "ruby" }

var (
	rubyRequireRe    = regexp.MustCompile(`^require(?:_relative)?\s+['"]([^'"]+)['"]`)
	rubyModuleRe     = regexp.MustCompile(`^module\s+([A-Z]\w*(?:::[A-Z]\w*)*)`)
	rubyClassRe      = regexp.MustCompile(`^class\s+([A-Z]\w*(?:::[A-Z]\w*)*)(?:\s*<\s*([\w:]+))?`)
	rubyVisibilityRe = regexp.MustCompile(`^(private|protected|public)\s*$`)
	rubySelfDefRe    = regexp.MustCompile(`^def\s+self\.(\w+[?!=]?)`)
	rubyAttrRe       = regexp.MustCompile(`^attr_(accessor|reader|writer)\s+(.+)$`)
	rubyScopeRe      = regexp.MustCompile(`^scope\s+:(\w+)`)
	rubyAssocRe      = regexp.MustCompile(`^(has_many|has_one|belongs_to|has_and_belongs_to_many)\s+:(\w+)`)
	rubyValidatesRe  = regexp.MustCompile(`^validates?\s+:(\w+)`)
	rubySymbolListRe = regexp.MustCompile(`:(\w+[?!]?)`)
)

// railsBaseKinds maps a superclass name to the Rails symbol kind it
// implies for the subclass.
var railsBaseKinds = map[string]store.SymbolKind{
	"ApplicationRecord":      "model",
	"ActiveRecord::Base":     "model",
	"ApplicationController":  "controller",
	"ActionController::Base": "controller",
	"ActionController::API":  "controller",
}

func (p *rubyParser) Parse(ctx context.Context, path string, content []byte) (*ParseResult, error) {
	result, err := p.base.Parse(ctx, path, content)
	if err != nil {
		return nil, err
	}

	lines := splitLinesKeepEnding(content)
	visibility := visibilityRegions(lines)

	for i := range result.Symbols {
		s := &result.Symbols[i]
		switch s.Kind {
		case store.KindMethod, store.KindFunction:
			if rubySelfDefRe.MatchString(strings.TrimSpace(s.Signature)) {
				s.Kind = "class_method"
				continue
			}
			if vis := visibility.at(s.LineStart); vis != "" && vis != "public" {
				s.Kind = store.WithVisibility(store.KindMethod, vis)
				if s.Modifiers == nil {
					s.Modifiers = []string{vis}
				}
			} else {
				s.Kind = store.KindMethod
			}
		case store.KindClass:
			if s.LineStart >= 1 && s.LineStart <= len(lines) {
				if m := rubyClassRe.FindStringSubmatch(strings.TrimSpace(lines[s.LineStart-1])); m != nil && m[2] != "" {
					if kind, ok := railsBaseForParent(m[2]); ok {
						s.Kind = kind
						if s.Metadata == nil {
							s.Metadata = map[string]string{}
						}
						s.Metadata["superclass"] = m[2]
					}
				}
			}
		}
	}

	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if m := rubyRequireRe.FindStringSubmatch(trimmed); m != nil {
			result.Imports = append(result.Imports, m[1])
			continue
		}
		if m := rubyModuleRe.FindStringSubmatch(trimmed); m != nil {
			if result.Package == "" {
				result.Package = m[1]
			}
			result.Symbols = append(result.Symbols, Symbol{
				Name:      m[1],
				Kind:      store.KindModule,
				LineStart: i + 1,
				LineEnd:   i + 1,
				Signature: trimmed,
			})
		}
	}

	result.Symbols = append(result.Symbols, expandMacros(lines)...)
	return result, nil
}

func railsBaseForParent(parent string) (store.SymbolKind, bool) {
	if kind, ok := railsBaseKinds[parent]; ok {
		return kind, true
	}
	switch {
	case strings.HasSuffix(parent, "Record"):
		return "model", true
	case strings.HasSuffix(parent, "Controller"):
		return "controller", true
	}
	return "", false
}

// visibilityMap records, per line, which visibility section is in effect.
// A bare `private`/`protected`/`public` line switches the section for
// everything after it until the next switch or end of file. Nested
// re-opened sections inside one class body are rare enough that a flat
// file-level map matches real-world Ruby closely.
type visibilityMap struct {
	switches []visibilitySwitch
}

type visibilitySwitch struct {
	line int
	vis  string
}

func visibilityRegions(lines []string) visibilityMap {
	var vm visibilityMap
	for i, l := range lines {
		if m := rubyVisibilityRe.FindStringSubmatch(strings.TrimSpace(l)); m != nil {
			vm.switches = append(vm.switches, visibilitySwitch{line: i + 1, vis: m[1]})
		}
	}
	return vm
}

func (vm visibilityMap) at(line int) string {
	vis := ""
	for _, sw := range vm.switches {
		if sw.line < line {
			vis = sw.vis
		}
	}
	return vis
}

// expandMacros emits the symbols Ruby metaprogramming macros generate:
// reader/writer methods from attr_*, class methods from scope, association
// methods from has_many and friends, and validation markers.
func expandMacros(lines []string) []Symbol {
	var out []Symbol
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		lineNo := i + 1

		switch {
		case rubyAttrRe.MatchString(trimmed):
			m := rubyAttrRe.FindStringSubmatch(trimmed)
			kind := m[1] // accessor, reader, writer
			for _, sym := range rubySymbolListRe.FindAllStringSubmatch(m[2], -1) {
				name := sym[1]
				if kind == "accessor" || kind == "reader" {
					out = append(out, generatedMethod(name, lineNo, trimmed, "attr_"+kind))
				}
				if kind == "accessor" || kind == "writer" {
					out = append(out, generatedMethod(name+"=", lineNo, trimmed, "attr_"+kind))
				}
			}

		case rubyScopeRe.MatchString(trimmed):
			m := rubyScopeRe.FindStringSubmatch(trimmed)
			out = append(out, Symbol{
				Name:      m[1],
				Kind:      "class_method",
				LineStart: lineNo,
				LineEnd:   lineNo,
				Signature: trimmed,
				Metadata:  map[string]string{"generated_by": "scope"},
			})

		case rubyAssocRe.MatchString(trimmed):
			m := rubyAssocRe.FindStringSubmatch(trimmed)
			out = append(out, generatedMethod(m[2], lineNo, trimmed, m[1]))

		case rubyValidatesRe.MatchString(trimmed):
			m := rubyValidatesRe.FindStringSubmatch(trimmed)
			out = append(out, Symbol{
				Name:      "validates_" + m[1],
				Kind:      store.KindMethod,
				LineStart: lineNo,
				LineEnd:   lineNo,
				Signature: trimmed,
				Metadata:  map[string]string{"generated_by": "validates", "attribute": m[1]},
			})
		}
	}
	return out
}

func generatedMethod(name string, line int, signature, macro string) Symbol {
	return Symbol{
		Name:      name,
		Kind:      store.KindMethod,
		LineStart: line,
		LineEnd:   line,
		Signature: signature,
		Metadata:  map[string]string{"generated_by": macro},
	}
}
