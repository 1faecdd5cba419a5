package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestNegativeIntervalRejected(t *testing.T) {
	c := Default()
	c.DefaultUnitLimitIntervalMinutes = -1
	assert.Error(t, c.Validate())
}

func TestZeroIntervalIsLegal(t *testing.T) {
	c := Default()
	c.DefaultUnitLimitIntervalMinutes = 0
	assert.NoError(t, c.Validate())
}

func TestBindFlagsOverridesDefault(t *testing.T) {
	c := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--listen", ":9000"}))
	assert.Equal(t, ":9000", c.ListenAddr)
}
