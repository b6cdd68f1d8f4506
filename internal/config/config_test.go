package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPositionLimit, cfg.PositionLimit)
	assert.Equal(t, DefaultOrderCountLimit, cfg.OrderCountLimit)
	assert.Equal(t, DefaultVolumeLimit, cfg.VolumeLimit)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimit)
	assert.Equal(t, DefaultTickSize, cfg.TickSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autotrader.yaml")
	yaml := `
positionLimit: 50
halfSpreadCents: 300
traderName: alice
exchangeURL: ws://localhost:9000
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.PositionLimit)
	assert.Equal(t, 300, cfg.HalfSpreadCents)
	assert.Equal(t, "alice", cfg.TraderName)
	// 未写的字段保持默认
	assert.Equal(t, DefaultVolumeLimit, cfg.VolumeLimit)
}

func TestEnvironmentOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autotrader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("positionLimit: 50\n"), 0o644))

	t.Setenv("AUTOTRADER_POSITION_LIMIT", "75")
	t.Setenv("AUTOTRADER_TRADER_NAME", "bob")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 75, cfg.PositionLimit)
	assert.Equal(t, "bob", cfg.TraderName)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPositionLimit, cfg.PositionLimit)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"position limit zero", func(c *Config) { c.PositionLimit = -1 }},
		{"rate limit negative", func(c *Config) { c.RateLimit = -5 }},
		{"tick size zero", func(c *Config) { c.TickSize = -1 }},
		{"quote size zero", func(c *Config) { c.QuoteSize = -1 }},
		{"quote size over position", func(c *Config) { c.QuoteSize = 500 }},
		{"half spread negative", func(c *Config) { c.HalfSpreadCents = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, "1s", cfg.RateInterval().String())
	assert.Equal(t, "5s", cfg.HedgeWindow().String())
}
