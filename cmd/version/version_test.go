package version

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdclef-go/internal/buildinfo"
	"github.com/tphakala/birdclef-go/internal/conf"
)

func TestVersionCommand(t *testing.T) {
	oldVersion := buildinfo.Version
	buildinfo.Version = "v1.2.3"
	t.Cleanup(func() { buildinfo.Version = oldVersion })

	configPath := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(conf.EnvConfigFile, configPath)

	var out bytes.Buffer
	cmd := Command()
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "v1.2.3")
	assert.Contains(t, out.String(), configPath)
}

func TestVersionCommandRejectsArgs(t *testing.T) {
	cmd := Command()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}
