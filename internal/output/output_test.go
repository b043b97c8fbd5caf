package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Status("🔍", "sampling bm25 content")

	out := buf.String()
	assert.Contains(t, out, "🔍")
	assert.Contains(t, out, "sampling bm25 content")
}

func TestWriter_Status_EmptyIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Status("", "detail line")

	assert.True(t, strings.HasPrefix(buf.String(), "   "))
}

func TestWriter_Success_PrintsCheckmark(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Success("index complete")

	out := buf.String()
	assert.Contains(t, out, "✅")
	assert.Contains(t, out, "index complete")
}

func TestWriter_Warning_PrintsWarningIcon(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Warning("registry entry missing")

	assert.Contains(t, buf.String(), "⚠️")
}

func TestWriter_Error_PrintsErrorIcon(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Errorf("open index: %s", "schema mismatch")

	out := buf.String()
	assert.Contains(t, out, "❌")
	assert.Contains(t, out, "schema mismatch")
}

func TestWriter_BufferOutputHasNoANSICodes(t *testing.T) {
	// A bytes.Buffer is not a terminal, so color must be off.
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Success("plain")
	w.Warning("plain")
	w.Error("plain")

	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestNoColor_ForcesPlainOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NoColor(buf)

	w.Success("machine readable")

	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestWriter_Code_IndentsEveryLine(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Code("line one\nline two")

	out := buf.String()
	assert.Contains(t, out, "  line one")
	assert.Contains(t, out, "  line two")
}

func TestWriter_Statusf_FormatsMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Statusf("📦", "indexed %d files", 42)

	assert.Contains(t, buf.String(), "indexed 42 files")
}

func TestWriter_Progress_PrintsBarAndPercent(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(5, 10, "halfway")

	out := buf.String()
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "halfway")
}

func TestWriter_Progress_ZeroTotal_NoOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(1, 0, "nothing")

	assert.Empty(t, buf.String())
}

func TestWriter_Progress_CompleteEndsWithNewline(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(10, 10, "done")

	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestRenderProgressBar_Bounds(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", 10), renderProgressBar(0, 0, 10))
	assert.Equal(t, strings.Repeat("█", 10), renderProgressBar(10, 10, 10))
	assert.Equal(t, strings.Repeat("█", 5)+strings.Repeat("░", 5), renderProgressBar(5, 10, 10))
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Newline()

	assert.Equal(t, "\n", buf.String())
}
