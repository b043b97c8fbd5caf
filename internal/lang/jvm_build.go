package lang

import (
	"context"
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/coderidge/codeindex/internal/store"
)

// mavenParser extracts artifact/dependency/plugin symbols from pom.xml,
// as build-file symbols. XML is structural enough that a
// real decoder is the idiomatic choice here rather than a regex scan.
type mavenParser struct{}

func newMavenParser() *mavenParser { return &mavenParser{} }

func (p *mavenParser) Extensions() []string { return nil }
func (p *mavenParser) Filenames() []string  { return []string{"pom.xml"} }
func (p *mavenParser) Language() string     { return "maven" }

type pomProject struct {
	GroupID      string        `xml:"groupId"`
	ArtifactID   string        `xml:"artifactId"`
	Version      string        `xml:"version"`
	Dependencies []pomGAV      `xml:"dependencies>dependency"`
	Plugins      []pomGAV      `xml:"build>plugins>plugin"`
}

type pomGAV struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
}

func (p *mavenParser) Parse(ctx context.Context, path string, content []byte) (*ParseResult, error) {
	result := &ParseResult{Language: "maven", FileMetadata: map[string]string{}}

	var project pomProject
	if err := xml.Unmarshal(content, &project); err != nil {
		// Parsers never raise on malformed input; emit
		// whatever was parseable (nothing here) and return.
		return result, nil
	}

	if project.ArtifactID != "" {
		result.Package = coalesce(project.GroupID, "") + ":" + project.ArtifactID
		result.Symbols = append(result.Symbols, Symbol{
			Name:      project.ArtifactID,
			Kind:      store.KindArtifact,
			LineStart: 1,
			LineEnd:   1,
			Signature: result.Package + "@" + project.Version,
			Metadata: map[string]string{
				"group_id": project.GroupID,
				"version":  project.Version,
			},
		})
	}

	for _, dep := range project.Dependencies {
		name := dep.GroupID + ":" + dep.ArtifactID
		result.Imports = append(result.Imports, name)
		result.Symbols = append(result.Symbols, Symbol{
			Name:      name,
			Kind:      store.KindDependency,
			LineStart: 1,
			LineEnd:   1,
			Signature: name + "@" + dep.Version,
			Metadata: map[string]string{
				"group_id": dep.GroupID,
				"version":  dep.Version,
				"scope":    coalesce(dep.Scope, "compile"),
			},
		})
	}

	for _, plugin := range project.Plugins {
		name := plugin.GroupID + ":" + plugin.ArtifactID
		result.Symbols = append(result.Symbols, Symbol{
			Name:      name,
			Kind:      store.KindPlugin,
			LineStart: 1,
			LineEnd:   1,
			Signature: name + "@" + plugin.Version,
			Metadata: map[string]string{
				"group_id": plugin.GroupID,
				"version":  plugin.Version,
			},
		})
	}

	return result, nil
}

func coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// gradleParser handles build.gradle and build.gradle.kts. Both the Groovy
// and Kotlin DSL variants express dependencies and plugins as simple
// function-call-looking lines, so one regex-based scan covers both —
// grammar-based parsing buys nothing extra for either DSL's build-script
// subset worth indexing.
type gradleParser struct{}

func newGradleParser() *gradleParser { return &gradleParser{} }

func (p *gradleParser) Extensions() []string { return []string{".gradle", ".gradle.kts"} }
func (p *gradleParser) Filenames() []string  { return []string{"build.gradle", "build.gradle.kts"} }
func (p *gradleParser) Language() string     { return "gradle" }

var (
	gradleDependencyRe = regexp.MustCompile(
		`^(implementation|api|testImplementation|compileOnly|runtimeOnly|annotationProcessor)\s*\(?\s*['"]([\w.\-]+):([\w.\-]+):([\w.\-+]+)['"]`)
	gradlePluginIDRe = regexp.MustCompile(`^id\s*\(?\s*['"]([\w.\-]+)['"]\)?(?:\s+version\s*\(?\s*['"]([\w.\-]+)['"])?`)
)

func (p *gradleParser) Parse(ctx context.Context, path string, content []byte) (*ParseResult, error) {
	result := &ParseResult{Language: "gradle", FileMetadata: map[string]string{}}
	lines := splitLinesKeepEnding(content)

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := i + 1

		if m := gradleDependencyRe.FindStringSubmatch(line); m != nil {
			name := m[2] + ":" + m[3]
			result.Imports = append(result.Imports, name)
			result.Symbols = append(result.Symbols, Symbol{
				Name:      name,
				Kind:      store.KindDependency,
				LineStart: lineNo,
				LineEnd:   lineNo,
				Signature: line,
				Metadata: map[string]string{
					"configuration": m[1],
					"version":       m[4],
				},
			})
			continue
		}

		if m := gradlePluginIDRe.FindStringSubmatch(line); m != nil {
			meta := map[string]string{}
			if m[2] != "" {
				meta["version"] = m[2]
			}
			result.Symbols = append(result.Symbols, Symbol{
				Name:      m[1],
				Kind:      store.KindPlugin,
				LineStart: lineNo,
				LineEnd:   lineNo,
				Signature: line,
				Metadata:  meta,
			})
		}
	}

	return result, nil
}
