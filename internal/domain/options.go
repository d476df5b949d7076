package domain

// WeightingScheme selects how transformed signals become target weights.
type WeightingScheme string

// Weighting scheme constants.
const (
	WeightEqualLongOnly WeightingScheme = "equal_long_only"
	WeightLongShort     WeightingScheme = "long_short"
	WeightRiskScaled    WeightingScheme = "risk_scaled"
)

// Neutralization selects the cross-sectional demeaning applied to the
// transformed signal before weighting.
type Neutralization string

// Neutralization constants.
const (
	NeutralizeNone   Neutralization = "none"
	NeutralizeDemean Neutralization = "demean"
	NeutralizeGroup  Neutralization = "group"
)

// SignalTransform selects the cross-sectional transform of raw factor values.
type SignalTransform string

// Signal transform constants.
const (
	TransformRank   SignalTransform = "rank"
	TransformZScore SignalTransform = "zscore"
)

// FillTiming selects the price at which trades settle.
type FillTiming string

// Fill timing constants.
const (
	FillAtClose    FillTiming = "close"
	FillAtNextOpen FillTiming = "next_open"
)

// PortfolioOptions configures the portfolio constructor.
type PortfolioOptions struct {
	Transform        SignalTransform
	Neutralization   Neutralization
	Scheme           WeightingScheme
	QuantileFraction float64 // fraction of the cross-section per leg, in (0, 1)
	MaxWeight        float64 // per-asset magnitude cap; 0 disables
	TurnoverCap      float64 // max L1 distance to previous weights; 0 disables
	GrossExposure    float64 // target Σ|w|
	NetExposure      float64 // max |Σw|; 0 disables the bound
	VolLookback      int     // sessions of realized vol for risk scaling

	// Groups assigns assets to neutralization groups. Assets without an
	// entry form their own implicit group. Only read when Neutralization
	// is NeutralizeGroup.
	Groups map[AssetID]string
}

// DefaultPortfolioOptions returns the documented defaults.
func DefaultPortfolioOptions() PortfolioOptions {
	return PortfolioOptions{
		Transform:        TransformRank,
		Neutralization:   NeutralizeNone,
		Scheme:           WeightLongShort,
		QuantileFraction: 0.2,
		MaxWeight:        0.1,
		TurnoverCap:      0,
		GrossExposure:    1.0,
		NetExposure:      0,
		VolLookback:      20,
	}
}

// Validate checks the options and returns a ConfigError on the first invalid
// one. Called before any run starts; a failure here is fatal.
func (o PortfolioOptions) Validate() error {
	switch o.Transform {
	case TransformRank, TransformZScore:
	default:
		return &ConfigError{Option: "signal_transform", Reason: "unknown transform " + string(o.Transform)}
	}
	switch o.Neutralization {
	case NeutralizeNone, NeutralizeDemean, NeutralizeGroup:
	default:
		return &ConfigError{Option: "neutralization", Reason: "unknown neutralization " + string(o.Neutralization)}
	}
	switch o.Scheme {
	case WeightEqualLongOnly, WeightLongShort, WeightRiskScaled:
	default:
		return &ConfigError{Option: "weighting_scheme", Reason: "unknown scheme " + string(o.Scheme)}
	}
	if o.QuantileFraction <= 0 || o.QuantileFraction >= 1 {
		return &ConfigError{Option: "quantile_fraction", Reason: "must be inside (0, 1)"}
	}
	if o.MaxWeight < 0 {
		return &ConfigError{Option: "max_weight", Reason: "must be >= 0"}
	}
	if o.TurnoverCap < 0 {
		return &ConfigError{Option: "turnover_cap", Reason: "must be >= 0"}
	}
	if o.GrossExposure <= 0 {
		return &ConfigError{Option: "gross_exposure", Reason: "must be > 0"}
	}
	if o.NetExposure < 0 {
		return &ConfigError{Option: "net_exposure", Reason: "must be >= 0"}
	}
	if o.NetExposure > 0 && o.NetExposure > o.GrossExposure {
		return &ConfigError{Option: "net_exposure", Reason: "net bound exceeds gross exposure"}
	}
	if o.MaxWeight > 0 && o.MaxWeight > o.GrossExposure {
		return &ConfigError{Option: "max_weight", Reason: "cap exceeds gross exposure"}
	}
	if o.Scheme == WeightRiskScaled && o.VolLookback < 2 {
		return &ConfigError{Option: "vol_lookback", Reason: "risk scaling needs at least 2 sessions"}
	}
	return nil
}

// CostOptions configures the execution and cost model.
type CostOptions struct {
	SlippageK     float64 // linear slippage coefficient on |trade notional|
	HalfSpreadBps float64 // half-spread charge in basis points
	FillTiming    FillTiming
}

// DefaultCostOptions returns the documented defaults.
func DefaultCostOptions() CostOptions {
	return CostOptions{
		SlippageK:     0.0005,
		HalfSpreadBps: 5,
		FillTiming:    FillAtClose,
	}
}

// Validate checks the options and returns a ConfigError on the first invalid one.
func (o CostOptions) Validate() error {
	if o.SlippageK < 0 {
		return &ConfigError{Option: "slippage_k", Reason: "must be >= 0"}
	}
	if o.HalfSpreadBps < 0 {
		return &ConfigError{Option: "half_spread_bps", Reason: "must be >= 0"}
	}
	switch o.FillTiming {
	case FillAtClose, FillAtNextOpen:
	default:
		return &ConfigError{Option: "fill_timing", Reason: "unknown timing " + string(o.FillTiming)}
	}
	return nil
}
