package lang

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/coderidge/codeindex/internal/store"
)

// grammarSpec describes how one tree-sitter grammar maps onto the uniform
// Symbol stream: which node types are functions, classes, and so on, and
// how to pull a name and modifiers out of a matched node.
type grammarSpec struct {
	name           string
	extensions     []string
	tsLanguage     *sitter.Language
	functionTypes  []string
	methodTypes    []string
	classTypes     []string
	interfaceTypes []string
	typeDefTypes   []string
	constantTypes  []string
	variableTypes  []string
	importTypes    []string
	packageTypes   []string
	nameOf         func(n *Node, source []byte) (name string, modifiers []string)
}

var grammars = buildGrammars()

func buildGrammars() map[string]*grammarSpec {
	specs := make(map[string]*grammarSpec)

	specs["go"] = &grammarSpec{
		name:          "go",
		extensions:    []string{".go"},
		tsLanguage:    golang.GetLanguage(),
		functionTypes: []string{"function_declaration"},
		methodTypes:   []string{"method_declaration"},
		typeDefTypes:  []string{"type_declaration"},
		constantTypes: []string{"const_declaration"},
		variableTypes: []string{"var_declaration"},
		importTypes:   []string{"import_declaration"},
		packageTypes:  []string{"package_clause"},
		nameOf:        goSymbolName,
	}

	tsShared := []string{"function_declaration"}
	specs["typescript"] = &grammarSpec{
		name:           "typescript",
		extensions:     []string{".ts"},
		tsLanguage:     typescript.GetLanguage(),
		functionTypes:  tsShared,
		methodTypes:    []string{"method_definition"},
		classTypes:     []string{"class_declaration"},
		interfaceTypes: []string{"interface_declaration"},
		typeDefTypes:   []string{"type_alias_declaration"},
		constantTypes:  []string{"lexical_declaration"},
		variableTypes:  []string{"variable_declaration"},
		importTypes:    []string{"import_statement"},
		nameOf:         jsFamilySymbolName,
	}
	specs["tsx"] = cloneGrammarWithLanguage(specs["typescript"], "tsx", []string{".tsx"}, tsx.GetLanguage())

	specs["javascript"] = &grammarSpec{
		name:          "javascript",
		extensions:    []string{".js", ".mjs"},
		tsLanguage:    javascript.GetLanguage(),
		functionTypes: []string{"function_declaration", "function"},
		methodTypes:   []string{"method_definition"},
		classTypes:    []string{"class_declaration"},
		constantTypes: []string{"lexical_declaration"},
		variableTypes: []string{"variable_declaration"},
		importTypes:   []string{"import_statement"},
		nameOf:        jsFamilySymbolName,
	}
	specs["jsx"] = cloneGrammarWithLanguage(specs["javascript"], "jsx", []string{".jsx"}, javascript.GetLanguage())

	specs["python"] = &grammarSpec{
		name:          "python",
		extensions:    []string{".py"},
		tsLanguage:    python.GetLanguage(),
		functionTypes: []string{"function_definition"},
		classTypes:    []string{"class_definition"},
		variableTypes: []string{"assignment"},
		importTypes:   []string{"import_statement", "import_from_statement"},
		nameOf:        pythonSymbolName,
	}

	specs["java"] = &grammarSpec{
		name:           "java",
		extensions:     []string{".java"},
		tsLanguage:     java.GetLanguage(),
		methodTypes:    []string{"method_declaration", "constructor_declaration"},
		classTypes:     []string{"class_declaration", "enum_declaration"},
		interfaceTypes: []string{"interface_declaration"},
		constantTypes:  []string{"field_declaration"},
		importTypes:    []string{"import_declaration"},
		packageTypes:   []string{"package_declaration"},
		nameOf:         javaSymbolName,
	}

	// Requires and module names are line-shaped in Ruby, so the wrapping
	// parser handles them with a line scan instead of AST node types.
	specs["ruby"] = &grammarSpec{
		name:          "ruby",
		extensions:    []string{".rb", ".rake", ".gemspec"},
		tsLanguage:    ruby.GetLanguage(),
		methodTypes:   []string{"method", "singleton_method"},
		classTypes:    []string{"class"},
		variableTypes: []string{"assignment"},
		nameOf:        rubySymbolName,
	}

	return specs
}

func cloneGrammarWithLanguage(base *grammarSpec, name string, exts []string, tsLang *sitter.Language) *grammarSpec {
	clone := *base
	clone.name = name
	clone.extensions = exts
	clone.tsLanguage = tsLang
	return &clone
}

// treeSitterParser adapts one grammarSpec to the Parser interface. A
// sync.Pool of sitter.Parser instances lets multiple files of the same
// language parse concurrently without serializing on one parser object,
// since smacker's sitter.Parser is not safe for concurrent use.
type treeSitterParser struct {
	spec *grammarSpec
	pool sync.Pool
}

func newTreeSitterParser(spec *grammarSpec) *treeSitterParser {
	return &treeSitterParser{
		spec: spec,
		pool: sync.Pool{New: func() any { return sitter.NewParser() }},
	}
}

func (p *treeSitterParser) Extensions() []string { return p.spec.extensions }
func (p *treeSitterParser) Filenames() []string   { return nil }
func (p *treeSitterParser) Language() string       { return p.spec.name }

func (p *treeSitterParser) Parse(ctx context.Context, path string, content []byte) (*ParseResult, error) {
	raw := p.pool.Get().(*sitter.Parser)
	defer p.pool.Put(raw)

	raw.SetLanguage(p.spec.tsLanguage)
	tsTree, err := raw.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if tsTree == nil {
		return &ParseResult{Language: p.spec.name, FileMetadata: map[string]string{}}, nil
	}

	root := convertNode(tsTree.RootNode())
	tree := &Tree{Root: root, Source: content, Language: p.spec.name}

	result := &ParseResult{Language: p.spec.name, FileMetadata: map[string]string{}}
	tree.Root.Walk(func(n *Node) bool {
		p.collectPackageAndImports(n, content, result)
		if sym := p.extractSymbol(n, content); sym != nil {
			result.Symbols = append(result.Symbols, *sym)
		}
		return true
	})
	return result, nil
}

func (p *treeSitterParser) collectPackageAndImports(n *Node, source []byte, result *ParseResult) {
	for _, t := range p.spec.packageTypes {
		if n.Type == t {
			result.Package = strings.TrimSpace(strings.NewReplacer("package", "", ";", "").Replace(n.Content(source)))
		}
	}
	for _, t := range p.spec.importTypes {
		if n.Type == t {
			result.Imports = append(result.Imports, n.Content(source))
		}
	}
}

func (p *treeSitterParser) extractSymbol(n *Node, source []byte) *Symbol {
	kind, ok := p.classifyNode(n)
	if !ok {
		return nil
	}
	name, modifiers := p.spec.nameOf(n, source)
	if name == "" {
		return nil
	}
	return &Symbol{
		Name:        name,
		Kind:        store.WithVisibility(kind, primaryModifier(modifiers)),
		LineStart:   int(n.StartPoint.Row) + 1,
		LineEnd:     int(n.EndPoint.Row) + 1,
		ColumnStart: int(n.StartPoint.Column),
		ColumnEnd:   int(n.EndPoint.Column),
		Signature:   firstLine(n.Content(source)),
		Modifiers:   modifiers,
	}
}

// classifyNode resolves a symbol kind with class/struct/interface taking
// priority over a same-range constructor-as-method match.
func (p *treeSitterParser) classifyNode(n *Node) (store.SymbolKind, bool) {
	for _, t := range p.spec.classTypes {
		if n.Type == t {
			return store.KindClass, true
		}
	}
	for _, t := range p.spec.interfaceTypes {
		if n.Type == t {
			return store.KindInterface, true
		}
	}
	for _, t := range p.spec.methodTypes {
		if n.Type == t {
			return store.KindMethod, true
		}
	}
	for _, t := range p.spec.functionTypes {
		if n.Type == t {
			return store.KindFunction, true
		}
	}
	for _, t := range p.spec.typeDefTypes {
		if n.Type == t {
			return store.KindType, true
		}
	}
	for _, t := range p.spec.constantTypes {
		if n.Type == t {
			return store.KindConstant, true
		}
	}
	for _, t := range p.spec.variableTypes {
		if n.Type == t {
			return store.KindVariable, true
		}
	}
	return "", false
}

// primaryModifier returns the first visibility/storage-class modifier
// worth folding into the kind string ("private_method", "static_property");
// other modifiers stay in the Modifiers slice only.
func primaryModifier(modifiers []string) string {
	for _, m := range modifiers {
		switch m {
		case "private", "public", "protected", "static":
			return m
		}
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

func convertNode(tsNode *sitter.Node) *Node {
	if tsNode == nil {
		return nil
	}
	n := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartPoint: Point{Row: tsNode.StartPoint().Row, Column: tsNode.StartPoint().Column},
		EndPoint:   Point{Row: tsNode.EndPoint().Row, Column: tsNode.EndPoint().Column},
		Children:  make([]*Node, 0, int(tsNode.ChildCount())),
	}
	for i := 0; i < int(tsNode.ChildCount()); i++ {
		if child := tsNode.Child(i); child != nil {
			n.Children = append(n.Children, convertNode(child))
		}
	}
	return n
}

// --- per-language name extraction ---

func goSymbolName(n *Node, source []byte) (string, []string) {
	switch n.Type {
	case "function_declaration":
		if id := n.FindChildByType("identifier"); id != nil {
			return id.Content(source), nil
		}
	case "method_declaration":
		if id := n.FindChildByType("field_identifier"); id != nil {
			return id.Content(source), nil
		}
	case "type_declaration", "const_declaration", "var_declaration":
		return firstIdentifierDeep(n, source), nil
	}
	return "", nil
}

func jsFamilySymbolName(n *Node, source []byte) (string, []string) {
	if id := n.FindChildByType("identifier"); id != nil {
		return id.Content(source), nil
	}
	if id := n.FindChildByType("property_identifier"); id != nil {
		return id.Content(source), nil
	}
	// TypeScript names interfaces and type aliases with type_identifier.
	if id := n.FindChildByType("type_identifier"); id != nil {
		return id.Content(source), nil
	}
	if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
		return firstIdentifierDeep(n, source), nil
	}
	return "", nil
}

func pythonSymbolName(n *Node, source []byte) (string, []string) {
	if id := n.FindChildByType("identifier"); id != nil {
		return id.Content(source), nil
	}
	return "", nil
}

func javaSymbolName(n *Node, source []byte) (string, []string) {
	var modifiers []string
	if mods := n.FindChildByType("modifiers"); mods != nil {
		modifiers = splitWords(mods.Content(source))
	}
	if id := n.FindChildByType("identifier"); id != nil {
		return id.Content(source), modifiers
	}
	return "", modifiers
}

func rubySymbolName(n *Node, source []byte) (string, []string) {
	if id := n.FindChildByType("identifier"); id != nil {
		return id.Content(source), nil
	}
	if id := n.FindChildByType("constant"); id != nil {
		return id.Content(source), nil
	}
	return "", nil
}

func firstIdentifierDeep(n *Node, source []byte) string {
	var found string
	n.Walk(func(c *Node) bool {
		if found != "" {
			return false
		}
		if c.Type == "identifier" || c.Type == "type_identifier" {
			found = c.Content(source)
			return false
		}
		return true
	})
	return found
}

func splitWords(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
