package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderidge/codeindex/internal/store"
)

func parsePHP(t *testing.T, content string) *ParseResult {
	t.Helper()
	result, err := newPHPParser().Parse(context.Background(), "app.php", []byte(content))
	require.NoError(t, err)
	return result
}

func phpSymbol(t *testing.T, result *ParseResult, name string) Symbol {
	t.Helper()
	for _, s := range result.Symbols {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("symbol %q not found", name)
	return Symbol{}
}

func TestPHPParser_NamespaceAndUse(t *testing.T) {
	content := `<?php
namespace App\Services;
use Illuminate\Support\Str;
use App\Models\User;
`
	result := parsePHP(t, content)

	assert.Equal(t, `App\Services`, result.Package)
	assert.Equal(t, []string{`Illuminate\Support\Str`, `App\Models\User`}, result.Imports)
}

func TestPHPParser_ClassWithMethodsAndVisibility(t *testing.T) {
	content := `<?php
class OrderService
{
    private $repository;

    const MAX_RETRIES = 3;

    public function place($order)
    {
        return true;
    }

    private function validate($order)
    {
        return true;
    }
}
`
	result := parsePHP(t, content)

	cls := phpSymbol(t, result, "OrderService")
	assert.Equal(t, store.KindClass, cls.Kind)

	place := phpSymbol(t, result, "place")
	assert.Equal(t, store.SymbolKind("public_method"), place.Kind)

	validate := phpSymbol(t, result, "validate")
	assert.Equal(t, store.SymbolKind("private_method"), validate.Kind)

	repo := phpSymbol(t, result, "repository")
	assert.Equal(t, store.SymbolKind("private_property"), repo.Kind)

	max := phpSymbol(t, result, "MAX_RETRIES")
	assert.Equal(t, store.KindConstant, max.Kind)
}

func TestPHPParser_InterfaceTraitAbstract(t *testing.T) {
	content := `<?php
interface Shippable
{
}
trait Timestamps
{
}
abstract class BaseJob
{
}
`
	result := parsePHP(t, content)

	assert.Equal(t, store.KindInterface, phpSymbol(t, result, "Shippable").Kind)
	assert.Equal(t, store.KindTrait, phpSymbol(t, result, "Timestamps").Kind)
	assert.Equal(t, store.SymbolKind("abstract_class"), phpSymbol(t, result, "BaseJob").Kind)
}

func TestPHPParser_LaravelModelAndController(t *testing.T) {
	content := `<?php
namespace App\Models;
class Invoice extends Model
{
}
class InvoiceController extends Controller
{
}
`
	result := parsePHP(t, content)

	assert.Equal(t, store.SymbolKind("model"), phpSymbol(t, result, "Invoice").Kind)
	assert.Equal(t, store.SymbolKind("controller"), phpSymbol(t, result, "InvoiceController").Kind)
}

func TestPHPParser_TopLevelFunction(t *testing.T) {
	content := `<?php
function format_money($cents)
{
    return $cents / 100;
}
`
	result := parsePHP(t, content)
	assert.Equal(t, store.KindFunction, phpSymbol(t, result, "format_money").Kind)
}

func TestPHPParser_MalformedInputStillPartial(t *testing.T) {
	content := `<?php
class Broken {
    public function ok() {
`
	result := parsePHP(t, content)
	assert.Equal(t, store.KindClass, phpSymbol(t, result, "Broken").Kind)
	assert.NotEmpty(t, phpSymbol(t, result, "ok").Name)
}
