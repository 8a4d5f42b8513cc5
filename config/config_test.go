package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/option-hedging-sim/pkg/utils/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "option-hedging-sim", cfg.App.Name)
	assert.Equal(t, 10000, cfg.Pricing.NumPaths)
	assert.Equal(t, 100, cfg.Pricing.Steps)
	assert.Equal(t, 1024, cfg.Pricing.ChunkSize)
	assert.Equal(t, uint64(0), cfg.Pricing.Seed)
	assert.Equal(t, 0.01, cfg.Hedging.BumpRatio)
	assert.Equal(t, 0.99, cfg.Hedging.ConfidenceLevel)
	assert.Equal(t, 100.0, cfg.Market.Spot)
	assert.Positive(t, cfg.Pricing.Workers)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
pricing:
  num_paths: 2500
  seed: 42
hedging:
  bump_ratio: 0.005
metrics:
  enabled: true
`)
	t.Setenv("PRICER_PRICING_STEPS", "64")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 2500, cfg.Pricing.NumPaths)
	assert.Equal(t, 64, cfg.Pricing.Steps)
	assert.Equal(t, uint64(42), cfg.Pricing.Seed)
	assert.Equal(t, 0.005, cfg.Hedging.BumpRatio)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, "pricing:\n  steps: 0\n")

	_, err := Load(path)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfiguration))

	path = writeConfig(t, "hedging:\n  bump_ratio: 2\n")
	_, err = Load(path)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidConfiguration))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
