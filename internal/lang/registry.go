package lang

import (
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Registry is the plugin registry: the extension/filename → parser map
// the dispatcher consults before parsing a file. Filenames take
// precedence over extensions. Parser instances are constructed lazily
// and cached.
type Registry struct {
	mu          sync.RWMutex
	byExtension map[string]func() Parser
	byFilename  map[string]func() Parser
	cache       *lru.Cache[string, Parser]
}

// registryCacheSize bounds how many distinct parser instances the
// registry keeps warm; one per language family is typical, so this is
// generous headroom rather than a real limit in practice.
const registryCacheSize = 64

// NewRegistry builds the default registry: every parser this module
// ships, registered by the extensions/filenames each declares at
// construction.
func NewRegistry() *Registry {
	cache, _ := lru.New[string, Parser](registryCacheSize)
	r := &Registry{
		byExtension: make(map[string]func() Parser),
		byFilename:  make(map[string]func() Parser),
		cache:       cache,
	}

	for _, spec := range grammars {
		if spec.name == "ruby" {
			// Ruby gets the macro-expanding wrapper below instead of the
			// plain tree-sitter parser.
			continue
		}
		spec := spec
		r.registerFactory(spec.name, spec.extensions, nil, func() Parser { return newTreeSitterParser(spec) })
	}

	r.registerFactory("ruby", []string{".rb", ".rake", ".gemspec"}, nil, func() Parser { return newRubyParser() })
	r.registerFactory("gomod", []string{}, []string{"go.mod"}, func() Parser { return newGoModParser() })
	r.registerFactory("kotlin", []string{".kt", ".kts"}, nil, func() Parser { return newKotlinParser() })
	r.registerFactory("maven", []string{}, []string{"pom.xml"}, func() Parser { return newMavenParser() })
	r.registerFactory("gradle", []string{".gradle", ".gradle.kts"}, []string{"build.gradle", "build.gradle.kts"}, func() Parser { return newGradleParser() })
	r.registerFactory("php", []string{".php"}, nil, func() Parser { return newPHPParser() })
	r.registerFactory("csv", []string{".csv", ".tsv", ".tab", ".dat"}, nil, func() Parser { return newCSVParser() })

	return r
}

func (r *Registry) registerFactory(key string, extensions, filenames []string, factory func() Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range extensions {
		r.byExtension[strings.ToLower(ext)] = factory
	}
	for _, fn := range filenames {
		r.byFilename[fn] = factory
	}
	if len(extensions) == 0 && len(filenames) == 0 {
		return
	}
	_ = key // key exists for future introspection/debugging use, not matching logic
}

// Register adds or replaces a parser factory, used by callers that want
// to extend the default set (tests, embedders of this package).
func (r *Registry) Register(p Parser) {
	factory := func() Parser { return p }
	r.registerFactory(p.Language(), p.Extensions(), p.Filenames(), factory)
}

// Resolve returns the parser that claims path, preferring an exact
// filename match over an extension match. The second return value is
// false when no parser claims the path.
func (r *Registry) Resolve(path string) (Parser, bool) {
	base := baseName(path)

	r.mu.RLock()
	filenameFactory, byFilename := r.byFilename[base]
	var extFactory func() Parser
	var byExt bool
	if !byFilename {
		ext := strings.ToLower(extension(base))
		extFactory, byExt = r.byExtension[ext]
	}
	r.mu.RUnlock()

	switch {
	case byFilename:
		return r.instance(base, filenameFactory), true
	case byExt:
		ext := strings.ToLower(extension(base))
		return r.instance(ext, extFactory), true
	default:
		return nil, false
	}
}

// instance returns the cached parser for key, constructing it on first use.
func (r *Registry) instance(key string, factory func() Parser) Parser {
	if p, ok := r.cache.Get(key); ok {
		return p
	}
	p := factory()
	r.cache.Add(key, p)
	return p
}

// Languages lists every distinct language tag the registry can dispatch
// to, sorted for stable `list-plugins` output.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for ext, factory := range r.byExtension {
		_ = ext
		seen[factory().Language()] = true
	}
	for fn, factory := range r.byFilename {
		_ = fn
		seen[factory().Language()] = true
	}
	langs := make([]string, 0, len(seen))
	for l := range seen {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

func baseName(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func extension(base string) string {
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		return base[i:]
	}
	return ""
}
