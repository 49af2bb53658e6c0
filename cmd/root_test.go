package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/logger"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := RootCommand(&conf.Settings{})

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"train", "evaluate", "chunk", "species", "split", "runs", "score", "version"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("debug"))
}

func TestScoreSkipsSettingsValidation(t *testing.T) {
	dir := t.TempDir()
	solution := filepath.Join(dir, "solution.csv")
	submission := filepath.Join(dir, "submission.csv")
	require.NoError(t, os.WriteFile(solution, []byte("row_id,a,b\nr1,1,0\n"), 0o644))
	require.NoError(t, os.WriteFile(submission, []byte("row_id,a,b\nr1,0.7,0.3\n"), 0o644))

	var out bytes.Buffer
	root := RootCommand(&conf.Settings{})
	root.SetArgs([]string{"score", "--solution", solution, "--submission", submission})
	root.SetOut(&out)
	root.SetErr(io.Discard)

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "padded cmAP")
}

func TestInvalidSettingsAreRejected(t *testing.T) {
	root := RootCommand(&conf.Settings{})
	root.SetArgs([]string{"split", t.TempDir(), t.TempDir()})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "split.fraction")
}

func TestInitLoggingDebug(t *testing.T) {
	settings := &conf.Settings{Debug: true}
	settings.Logging.Console = &logger.ConsoleOutput{Enabled: true, Level: "info"}
	require.NoError(t, initLogging(settings))
	assert.Equal(t, "info", settings.Logging.Console.Level, "settings are not modified")
}
