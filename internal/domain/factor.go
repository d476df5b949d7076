package domain

// FactorID identifies one registered factor.
type FactorID string

// ScoreFunc is the pure scoring function of a factor. It sees only the one
// asset's window and must have no side effects; this is what makes factor
// evaluation embarrassingly parallel across the (date, asset) grid.
// The boolean is false when the factor declines to produce a score for the
// window (treated as absence, never as zero).
type ScoreFunc func(asset AssetID, date Date, w Window) (float64, bool)

// FactorDefinition describes one factor: identity, required lookback length,
// evaluation frequency and the scoring function. Definitions are registered
// once before a run and are immutable thereafter.
type FactorDefinition struct {
	ID FactorID

	// Lookback is the window length in sessions required by Score.
	Lookback int

	// Frequency evaluates the factor every Frequency-th session of the run,
	// counted from the first configured date. 1 means every session.
	Frequency int

	Score ScoreFunc
}

// FactorScore is one stored factor observation, the row shape handed to the
// timeseries store.
type FactorScore struct {
	Factor FactorID
	Date   Date
	Asset  AssetID
	Score  float64
}
