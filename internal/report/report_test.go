package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRender(t *testing.T) {
	tbl := New("Export", "Outcome", "Count").AlignRight(1)
	tbl.Row("written", 12)
	tbl.Row("score", 0.5)
	tbl.Row("short")

	out := tbl.Render(false)
	assert.Contains(t, out, "Export")
	assert.Contains(t, out, "OUTCOME")
	assert.Contains(t, out, "written")
	assert.Contains(t, out, "0.5000")
	assert.Equal(t, 3, tbl.Len())
	assert.NotContains(t, out, "\x1b[", "plain rendering must not contain escape codes")
}

func TestTableRenderEmptyHeaders(t *testing.T) {
	assert.Empty(t, New("nothing").Render(true))
}

func TestFprintToBufferIsPlain(t *testing.T) {
	var buf bytes.Buffer
	tbl := New("", "Key", "Value")
	tbl.Row("epochs", 3)
	require.NoError(t, tbl.Fprint(&buf))

	assert.False(t, ShouldColorize(&buf))
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "epochs")
}
