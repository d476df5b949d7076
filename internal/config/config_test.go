package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorlab/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.2, cfg.Portfolio.QuantileFraction)
	assert.Equal(t, string(domain.WeightLongShort), cfg.Portfolio.WeightingScheme)
	assert.Equal(t, string(domain.FillAtClose), cfg.Costs.FillTiming)
	assert.Equal(t, []int{1, 5, 10, 20}, cfg.Analytics.ForwardHorizons)
	assert.Equal(t, 1_000_000.0, cfg.Backtest.InitialCapital)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
portfolio:
  weighting_scheme: "equal_long_only"
  quantile_fraction: 0.25
  max_weight: 0.0
costs:
  slippage_k: 0.001
  fill_timing: "next_open"
backtest:
  run_id: "exp-7"
  initial_capital: 250000
analytics:
  forward_horizons: [1, 10]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.25, cfg.Portfolio.QuantileFraction)
	assert.Equal(t, "exp-7", cfg.Backtest.RunID)
	assert.Equal(t, 250_000.0, cfg.Backtest.InitialCapital)
	assert.Equal(t, []int{1, 10}, cfg.Analytics.ForwardHorizons)

	// Untouched sections keep defaults.
	assert.Equal(t, 5.0, cfg.Costs.HalfSpreadBps)
	assert.Equal(t, 20, cfg.Portfolio.VolLookback)

	opts := cfg.CostOptions()
	assert.Equal(t, domain.FillAtNextOpen, opts.FillTiming)
	assert.Equal(t, 0.001, opts.SlippageK)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://env-host/lab")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("INITIAL_CAPITAL", "500000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-host/lab", cfg.Storage.PostgresDSN)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 500_000.0, cfg.Backtest.InitialCapital)
}

func TestLoad_InvalidOptionFails(t *testing.T) {
	cases := map[string]string{
		"bad scheme":   "portfolio:\n  weighting_scheme: \"martingale\"\n",
		"bad fraction": "portfolio:\n  quantile_fraction: 1.5\n",
		"bad timing":   "costs:\n  fill_timing: \"vwap\"\n",
		"bad policy":   "data:\n  missing_data_policy: \"interpolate\"\n",
		"no capital":   "backtest:\n  initial_capital: 0\n",
		"no horizons":  "analytics:\n  forward_horizons: []\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			require.Error(t, err)
			var cfgErr *domain.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestPortfolioOptions_ResolvesGroups(t *testing.T) {
	cfg := Default()
	cfg.Portfolio.Neutralization = string(domain.NeutralizeGroup)
	cfg.Portfolio.Groups = map[string]string{"AAA": "tech", "ZZZ": "energy"}

	u := domain.NewUniverse()
	aaa := u.Add("AAA")
	u.Add("BBB")

	opts := cfg.PortfolioOptions(u)
	require.Len(t, opts.Groups, 1) // unknown symbols are skipped
	assert.Equal(t, "tech", opts.Groups[aaa])
}

func TestYAML_RoundTrips(t *testing.T) {
	cfg := Default()
	cfg.Backtest.RunID = "exp-9"

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, out, "run_id: exp-9")
	assert.Contains(t, out, "quantile_fraction: 0.2")
}
