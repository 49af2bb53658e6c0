package score

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCommand(t *testing.T) {
	dir := t.TempDir()
	solution := writeCSV(t, dir, "solution.csv", "row_id,amapar,blfnun\nr1,1,0\nr2,0,1\n")
	submission := writeCSV(t, dir, "submission.csv", "row_id,amapar,blfnun\nr1,0.9,0.1\nr2,0.2,0.8\n")

	var out bytes.Buffer
	cmd := Command()
	cmd.SetArgs([]string{"--solution", solution, "--submission", submission})
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "padded cmAP")
	assert.Contains(t, out.String(), "1.0000")
}

func TestCommandRequiresFiles(t *testing.T) {
	cmd := Command()
	cmd.SetArgs([]string{"--solution", "solution.csv"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	require.Error(t, cmd.Execute())
}

func TestRunMismatchedFiles(t *testing.T) {
	dir := t.TempDir()
	solution := writeCSV(t, dir, "solution.csv", "row_id,amapar\nr1,1\n")
	submission := writeCSV(t, dir, "submission.csv", "row_id,blfnun\nr1,1\n")
	require.Error(t, Run(io.Discard, solution, submission, 5))
}
