package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderidge/codeindex/internal/store"
)

func parseKotlin(t *testing.T, content string) *ParseResult {
	t.Helper()
	result, err := newKotlinParser().Parse(context.Background(), "main.kt", []byte(content))
	require.NoError(t, err)
	return result
}

func TestKotlinParser_ExtensionFunction(t *testing.T) {
	result := parseKotlin(t, "fun String.isPalindrome(): Boolean = this == this.reversed()\n")

	require.Len(t, result.Symbols, 1)
	sym := result.Symbols[0]
	assert.Equal(t, "String.isPalindrome", sym.Name)
	assert.Equal(t, store.KindExtension, sym.Kind)
	assert.Equal(t, "String", sym.Metadata["receiver"])
	assert.Equal(t, 1, sym.LineStart)
	assert.Equal(t, 1, sym.LineEnd)
}

func TestKotlinParser_DataClass(t *testing.T) {
	result := parseKotlin(t, "package demo\n\ndata class User(val name: String) {\n}\n")

	assert.Equal(t, "demo", result.Package)
	require.NotEmpty(t, result.Symbols)
	sym := result.Symbols[0]
	assert.Equal(t, "User", sym.Name)
	assert.Equal(t, store.KindClass, sym.Kind)
	assert.Equal(t, "data", sym.Metadata["class_modifier"])
	assert.Equal(t, 3, sym.LineStart)
	assert.Equal(t, 4, sym.LineEnd)
}

func TestKotlinParser_ObjectAndInterface(t *testing.T) {
	content := `interface Repo {
    fun load(): String
}

object Singleton {
}
`
	result := parseKotlin(t, content)

	var iface, obj *Symbol
	for i := range result.Symbols {
		switch result.Symbols[i].Name {
		case "Repo":
			iface = &result.Symbols[i]
		case "Singleton":
			obj = &result.Symbols[i]
		}
	}
	require.NotNil(t, iface)
	assert.Equal(t, store.KindInterface, iface.Kind)
	require.NotNil(t, obj)
	assert.Equal(t, "true", obj.Metadata["object"])
}

func TestKotlinParser_PrivateFunctionFoldsVisibility(t *testing.T) {
	result := parseKotlin(t, "private fun helper() {\n}\n")

	require.Len(t, result.Symbols, 1)
	assert.Equal(t, store.SymbolKind("private_function"), result.Symbols[0].Kind)
	assert.Contains(t, result.Symbols[0].Modifiers, "private")
}

func TestKotlinParser_TypedProperty(t *testing.T) {
	result := parseKotlin(t, "val retries: Int = 3\n")

	require.Len(t, result.Symbols, 1)
	sym := result.Symbols[0]
	assert.Equal(t, "retries", sym.Name)
	assert.Equal(t, store.KindProperty, sym.Kind)
	assert.Equal(t, "Int", sym.Metadata["data_type"])
}

func TestKotlinParser_ImportsCollected(t *testing.T) {
	result := parseKotlin(t, "import kotlin.math.abs\nimport java.io.File\n")
	assert.Equal(t, []string{"kotlin.math.abs", "java.io.File"}, result.Imports)
}
