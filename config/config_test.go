package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/datadash/engine"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datadash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.Report.TopN)
	assert.Equal(t, engine.RankSales, cfg.RankMetric())
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
	assert.Len(t, cfg.EngineOptions(), 2)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
report:
  top_n: 5
  rank_by: profit
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
	assert.True(t, cfg.Log.Pretty, "unset keys keep defaults")
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Report.TopN)
	assert.Equal(t, engine.RankProfit, cfg.RankMetric())
	assert.Equal(t, 10.0, cfg.Report.ReturnRateHigh)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
log: {level: loud}
report: {top_n: 0, rank_by: margin, return_rate_high: 2, return_rate_moderate: 4}
`)
	_, err := Load(path)
	require.Error(t, err)
	for _, want := range []string{"log.level", "top_n", "rank_by", "return_rate_moderate"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "report: [unclosed"))
	assert.ErrorContains(t, err, "parse")
}
