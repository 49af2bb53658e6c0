package conf

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlags(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaultConfig()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("epochs", viper.GetInt("train.epochs"), "")
	require.NoError(t, BindFlags(flags, map[string]string{"epochs": "train.epochs"}))

	assert.Equal(t, 10, viper.GetInt("train.epochs"), "unset flag keeps the default")
	require.NoError(t, flags.Parse([]string{"--epochs", "3"}))
	assert.Equal(t, 3, viper.GetInt("train.epochs"))

	err := BindFlags(flags, map[string]string{"missing": "train.seed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
