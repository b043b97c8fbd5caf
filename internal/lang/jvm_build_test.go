package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderidge/codeindex/internal/store"
)

func TestMavenParser_ArtifactDependenciesPlugins(t *testing.T) {
	content := `<?xml version="1.0"?>
<project>
  <groupId>com.acme</groupId>
  <artifactId>billing</artifactId>
  <version>2.1.0</version>
  <dependencies>
    <dependency>
      <groupId>org.junit.jupiter</groupId>
      <artifactId>junit-jupiter</artifactId>
      <version>5.10.0</version>
      <scope>test</scope>
    </dependency>
  </dependencies>
  <build>
    <plugins>
      <plugin>
        <groupId>org.apache.maven.plugins</groupId>
        <artifactId>maven-compiler-plugin</artifactId>
        <version>3.11.0</version>
      </plugin>
    </plugins>
  </build>
</project>
`
	result, err := newMavenParser().Parse(context.Background(), "pom.xml", []byte(content))
	require.NoError(t, err)

	assert.Equal(t, "com.acme:billing", result.Package)
	require.Len(t, result.Symbols, 3)

	artifact := result.Symbols[0]
	assert.Equal(t, store.KindArtifact, artifact.Kind)
	assert.Equal(t, "billing", artifact.Name)
	assert.Equal(t, "2.1.0", artifact.Metadata["version"])

	dep := result.Symbols[1]
	assert.Equal(t, store.KindDependency, dep.Kind)
	assert.Equal(t, "org.junit.jupiter:junit-jupiter", dep.Name)
	assert.Equal(t, "test", dep.Metadata["scope"])

	plugin := result.Symbols[2]
	assert.Equal(t, store.KindPlugin, plugin.Kind)
	assert.Equal(t, "org.apache.maven.plugins:maven-compiler-plugin", plugin.Name)
}

func TestMavenParser_MalformedXMLReturnsEmpty(t *testing.T) {
	result, err := newMavenParser().Parse(context.Background(), "pom.xml", []byte("<project><unclosed"))
	require.NoError(t, err)
	assert.Empty(t, result.Symbols)
}

func TestGradleParser_DependenciesAndPlugins(t *testing.T) {
	content := `plugins {
    id 'org.springframework.boot' version '3.2.0'
}

dependencies {
    implementation 'org.springframework.boot:spring-boot-starter-web:3.2.0'
    testImplementation("org.junit.jupiter:junit-jupiter:5.10.0")
}
`
	result, err := newGradleParser().Parse(context.Background(), "build.gradle", []byte(content))
	require.NoError(t, err)

	var deps, plugins []Symbol
	for _, s := range result.Symbols {
		switch s.Kind {
		case store.KindDependency:
			deps = append(deps, s)
		case store.KindPlugin:
			plugins = append(plugins, s)
		}
	}

	require.Len(t, plugins, 1)
	assert.Equal(t, "org.springframework.boot", plugins[0].Name)
	assert.Equal(t, "3.2.0", plugins[0].Metadata["version"])

	require.Len(t, deps, 2)
	assert.Equal(t, "org.springframework.boot:spring-boot-starter-web", deps[0].Name)
	assert.Equal(t, "implementation", deps[0].Metadata["configuration"])
	assert.Equal(t, "org.junit.jupiter:junit-jupiter", deps[1].Name)
	assert.Equal(t, "testImplementation", deps[1].Metadata["configuration"])
}

func TestGradleParser_KotlinDSL(t *testing.T) {
	content := `implementation("io.ktor:ktor-server-core:2.3.7")
`
	result, err := newGradleParser().Parse(context.Background(), "build.gradle.kts", []byte(content))
	require.NoError(t, err)

	require.Len(t, result.Symbols, 1)
	assert.Equal(t, "io.ktor:ktor-server-core", result.Symbols[0].Name)
	assert.Equal(t, "2.3.7", result.Symbols[0].Metadata["version"])
}
