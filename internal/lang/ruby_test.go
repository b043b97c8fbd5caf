package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderidge/codeindex/internal/store"
)

func parseRuby(t *testing.T, content string) *ParseResult {
	t.Helper()
	result, err := newRubyParser().Parse(context.Background(), "app.rb", []byte(content))
	require.NoError(t, err)
	return result
}

func TestRubyParser_RailsModelWithMacros(t *testing.T) {
	content := `class Invoice < ApplicationRecord
  attr_accessor :total
  scope :paid
  has_many :line_items
  belongs_to :customer
  validates :total

  def compute
  end

  def self.recent
  end

  private

  def internal_helper
  end
end
`
	result := parseRuby(t, content)

	invoice := findSymbol(t, result, "Invoice")
	assert.Equal(t, store.SymbolKind("model"), invoice.Kind)
	assert.Equal(t, "ApplicationRecord", invoice.Metadata["superclass"])

	compute := findSymbol(t, result, "compute")
	assert.Equal(t, store.KindMethod, compute.Kind)

	recent := findSymbol(t, result, "recent")
	assert.Equal(t, store.SymbolKind("class_method"), recent.Kind)

	helper := findSymbol(t, result, "internal_helper")
	assert.Equal(t, store.SymbolKind("private_method"), helper.Kind)

	// attr_accessor generates both reader and writer.
	reader := findSymbol(t, result, "total")
	assert.Equal(t, "attr_accessor", reader.Metadata["generated_by"])
	writer := findSymbol(t, result, "total=")
	assert.Equal(t, store.KindMethod, writer.Kind)

	paid := findSymbol(t, result, "paid")
	assert.Equal(t, store.SymbolKind("class_method"), paid.Kind)
	assert.Equal(t, "scope", paid.Metadata["generated_by"])

	lineItems := findSymbol(t, result, "line_items")
	assert.Equal(t, "has_many", lineItems.Metadata["generated_by"])
	customer := findSymbol(t, result, "customer")
	assert.Equal(t, "belongs_to", customer.Metadata["generated_by"])

	validation := findSymbol(t, result, "validates_total")
	assert.Equal(t, "total", validation.Metadata["attribute"])
}

func TestRubyParser_ControllerDetectedBySuperclass(t *testing.T) {
	content := `class InvoicesController < ApplicationController
  def index
  end
end
`
	result := parseRuby(t, content)

	ctrl := findSymbol(t, result, "InvoicesController")
	assert.Equal(t, store.SymbolKind("controller"), ctrl.Kind)
}

func TestRubyParser_PlainClassKeepsClassKind(t *testing.T) {
	content := `class Tokenizer
  def next_token
  end
end
`
	result := parseRuby(t, content)
	assert.Equal(t, store.KindClass, findSymbol(t, result, "Tokenizer").Kind)
	assert.Equal(t, store.KindMethod, findSymbol(t, result, "next_token").Kind)
}

func TestRubyParser_ModuleAndRequires(t *testing.T) {
	content := `require 'json'
require_relative 'helpers/format'

module Billing
  def self.rate
  end
end
`
	result := parseRuby(t, content)

	assert.Equal(t, []string{"json", "helpers/format"}, result.Imports)
	assert.Equal(t, "Billing", result.Package)

	mod := findSymbol(t, result, "Billing")
	assert.Equal(t, store.KindModule, mod.Kind)
}

func TestRubyParser_AttrReaderOnlyGeneratesReader(t *testing.T) {
	content := `class Config
  attr_reader :path, :mode
end
`
	result := parseRuby(t, content)

	findSymbol(t, result, "path")
	findSymbol(t, result, "mode")
	for _, s := range result.Symbols {
		assert.NotEqual(t, "path=", s.Name)
	}
}

func TestRubyParser_VisibilityResetsOnPublic(t *testing.T) {
	content := `class Widget
  private

  def hidden
  end

  public

  def shown
  end
end
`
	result := parseRuby(t, content)

	assert.Equal(t, store.SymbolKind("private_method"), findSymbol(t, result, "hidden").Kind)
	assert.Equal(t, store.KindMethod, findSymbol(t, result, "shown").Kind)
}
