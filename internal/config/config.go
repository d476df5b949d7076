// Package config loads the lab's YAML configuration, applies environment
// overrides and maps the result onto the engine option structs. Validation is
// fatal: a bad option stops the run before any data is touched.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"factorlab/internal/analytics"
	"factorlab/internal/domain"
	"factorlab/internal/ingest"
)

// Config is the top-level configuration for a run.
type Config struct {
	Data      Data      `yaml:"data"`
	Storage   Storage   `yaml:"storage"`
	Factors   Factors   `yaml:"factors"`
	Portfolio Portfolio `yaml:"portfolio"`
	Costs     Costs     `yaml:"costs"`
	Backtest  Backtest  `yaml:"backtest"`
	Analytics Analytics `yaml:"analytics"`
	Logging   Logging   `yaml:"logging"`
	Metrics   Metrics   `yaml:"metrics"`
}

// Data selects the bar source and the missing-data policy.
type Data struct {
	BarsCSV           string `yaml:"bars_csv"`
	FeedEndpoint      string `yaml:"feed_endpoint"`
	MissingDataPolicy string `yaml:"missing_data_policy"`
}

// Storage holds connection strings and output paths.
type Storage struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	DataDir       string `yaml:"data_dir"`
	OutputDir     string `yaml:"output_dir"`
}

// Factors names the registered factors a run evaluates.
type Factors struct {
	Enabled []string `yaml:"enabled"`
}

// Portfolio mirrors domain.PortfolioOptions in YAML form.
type Portfolio struct {
	Transform        string  `yaml:"signal_transform"`
	Neutralization   string  `yaml:"neutralization"`
	WeightingScheme  string  `yaml:"weighting_scheme"`
	QuantileFraction float64 `yaml:"quantile_fraction"`
	MaxWeight        float64 `yaml:"max_weight"`
	TurnoverCap      float64 `yaml:"turnover_cap"`
	GrossExposure    float64 `yaml:"gross_exposure"`
	NetExposure      float64 `yaml:"net_exposure"`
	VolLookback      int     `yaml:"vol_lookback"`

	// Groups maps symbols to neutralization groups; resolved to asset IDs
	// once the universe exists.
	Groups map[string]string `yaml:"groups"`
}

// Costs mirrors domain.CostOptions in YAML form.
type Costs struct {
	SlippageK     float64 `yaml:"slippage_k"`
	HalfSpreadBps float64 `yaml:"half_spread_bps"`
	FillTiming    string  `yaml:"fill_timing"`
}

// Backtest holds simulation parameters.
type Backtest struct {
	RunID          string  `yaml:"run_id"`
	InitialCapital float64 `yaml:"initial_capital"`
}

// Analytics holds the evaluation horizons.
type Analytics struct {
	ForwardHorizons []int `yaml:"forward_horizons"`
	BaseHorizon     int   `yaml:"base_horizon"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Data: Data{
			MissingDataPolicy: string(ingest.PolicyDrop),
		},
		Storage: Storage{
			DataDir:   "data",
			OutputDir: "out",
		},
		Factors: Factors{
			Enabled: []string{"momentum_20", "reversal_5", "trailing_vol_20"},
		},
		Portfolio: Portfolio{
			Transform:        string(domain.TransformRank),
			Neutralization:   string(domain.NeutralizeNone),
			WeightingScheme:  string(domain.WeightLongShort),
			QuantileFraction: 0.2,
			MaxWeight:        0.1,
			TurnoverCap:      0,
			GrossExposure:    1.0,
			NetExposure:      0,
			VolLookback:      20,
		},
		Costs: Costs{
			SlippageK:     0.0005,
			HalfSpreadBps: 5,
			FillTiming:    string(domain.FillAtClose),
		},
		Backtest: Backtest{
			InitialCapital: 1_000_000,
		},
		Analytics: Analytics{
			ForwardHorizons: []int{1, 5, 10, 20},
			BaseHorizon:     1,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		Metrics: Metrics{
			Addr: ":9090",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies environment
// variable overrides. Returns the validated configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Storage.OutputDir = v
	}
	if v := os.Getenv("FEED_ENDPOINT"); v != "" {
		cfg.Data.FeedEndpoint = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("INITIAL_CAPITAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Backtest.InitialCapital = f
		}
	}
}

// Validate checks every section; the engine option structs carry their own
// validation, reused here.
func (c *Config) Validate() error {
	switch ingest.MissingDataPolicy(c.Data.MissingDataPolicy) {
	case ingest.PolicyDrop, ingest.PolicyFFill, ingest.PolicyFlag:
	default:
		return &domain.ConfigError{Option: "missing_data_policy", Reason: "unknown policy " + c.Data.MissingDataPolicy}
	}
	if len(c.Factors.Enabled) == 0 {
		return &domain.ConfigError{Option: "factors.enabled", Reason: "at least one factor required"}
	}
	if c.Backtest.InitialCapital <= 0 {
		return &domain.ConfigError{Option: "initial_capital", Reason: "must be > 0"}
	}
	if err := c.PortfolioOptions(nil).Validate(); err != nil {
		return err
	}
	if err := c.CostOptions().Validate(); err != nil {
		return err
	}
	return c.AnalyticsOptions().Validate()
}

// PortfolioOptions maps the portfolio section onto the engine options.
// universe resolves group symbols to asset IDs; pass nil when no universe
// exists yet (validation only).
func (c *Config) PortfolioOptions(universe *domain.Universe) domain.PortfolioOptions {
	opts := domain.PortfolioOptions{
		Transform:        domain.SignalTransform(c.Portfolio.Transform),
		Neutralization:   domain.Neutralization(c.Portfolio.Neutralization),
		Scheme:           domain.WeightingScheme(c.Portfolio.WeightingScheme),
		QuantileFraction: c.Portfolio.QuantileFraction,
		MaxWeight:        c.Portfolio.MaxWeight,
		TurnoverCap:      c.Portfolio.TurnoverCap,
		GrossExposure:    c.Portfolio.GrossExposure,
		NetExposure:      c.Portfolio.NetExposure,
		VolLookback:      c.Portfolio.VolLookback,
	}
	if universe != nil && len(c.Portfolio.Groups) > 0 {
		opts.Groups = make(map[domain.AssetID]string, len(c.Portfolio.Groups))
		for sym, group := range c.Portfolio.Groups {
			if id, ok := universe.Lookup(sym); ok {
				opts.Groups[id] = group
			}
		}
	}
	return opts
}

// CostOptions maps the costs section onto the engine options.
func (c *Config) CostOptions() domain.CostOptions {
	return domain.CostOptions{
		SlippageK:     c.Costs.SlippageK,
		HalfSpreadBps: c.Costs.HalfSpreadBps,
		FillTiming:    domain.FillTiming(c.Costs.FillTiming),
	}
}

// AnalyticsOptions maps the analytics section onto the evaluator options.
func (c *Config) AnalyticsOptions() analytics.Options {
	return analytics.Options{
		Horizons:    c.Analytics.ForwardHorizons,
		BaseHorizon: c.Analytics.BaseHorizon,
	}
}

// YAML renders the resolved configuration back to YAML, the form persisted on
// a backtest run.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
