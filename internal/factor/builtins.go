package factor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"factorlab/internal/domain"
)

// Momentum returns a price momentum factor: total close-to-close return over
// the window, close[L-1]/close[0] - 1.
func Momentum(lookback int) domain.FactorDefinition {
	return domain.FactorDefinition{
		ID:        domain.FactorID(fmt.Sprintf("momentum_%d", lookback)),
		Lookback:  lookback,
		Frequency: 1,
		Score: func(_ domain.AssetID, _ domain.Date, w domain.Window) (float64, bool) {
			first := w.First().Close
			if first == 0 {
				return 0, false
			}
			return w.Last().Close/first - 1, true
		},
	}
}

// Reversal returns a short-horizon reversal factor: the negated window
// return, so recent losers score high.
func Reversal(lookback int) domain.FactorDefinition {
	mom := Momentum(lookback)
	return domain.FactorDefinition{
		ID:        domain.FactorID(fmt.Sprintf("reversal_%d", lookback)),
		Lookback:  lookback,
		Frequency: 1,
		Score: func(a domain.AssetID, d domain.Date, w domain.Window) (float64, bool) {
			v, ok := mom.Score(a, d, w)
			if !ok {
				return 0, false
			}
			return -v, true
		},
	}
}

// TrailingVol returns a realized-volatility factor: the sample standard
// deviation of daily close-to-close returns inside the window. A window of
// length L yields L-1 returns, so Lookback must be at least 3 to have the
// two observations sample stddev needs.
func TrailingVol(lookback int) domain.FactorDefinition {
	return domain.FactorDefinition{
		ID:        domain.FactorID(fmt.Sprintf("trailing_vol_%d", lookback)),
		Lookback:  lookback,
		Frequency: 1,
		Score: func(_ domain.AssetID, _ domain.Date, w domain.Window) (float64, bool) {
			return WindowVol(w)
		},
	}
}

// FromName resolves a builtin factor by its ID, e.g. "momentum_20" or
// "trailing_vol_5". The trailing integer is the lookback.
func FromName(name string) (domain.FactorDefinition, error) {
	idx := strings.LastIndexByte(name, '_')
	if idx < 0 {
		return domain.FactorDefinition{}, &domain.ConfigError{Option: "factors.enabled", Reason: "unknown factor " + name}
	}
	lookback, err := strconv.Atoi(name[idx+1:])
	if err != nil || lookback < 2 {
		return domain.FactorDefinition{}, &domain.ConfigError{Option: "factors.enabled", Reason: "bad lookback in " + name}
	}
	switch name[:idx] {
	case "momentum":
		return Momentum(lookback), nil
	case "reversal":
		return Reversal(lookback), nil
	case "trailing_vol":
		return TrailingVol(lookback), nil
	default:
		return domain.FactorDefinition{}, &domain.ConfigError{Option: "factors.enabled", Reason: "unknown factor " + name}
	}
}

// RegistryFromNames builds a registry holding the named builtins.
func RegistryFromNames(names []string) (*Registry, error) {
	reg := NewRegistry()
	for _, name := range names {
		def, err := FromName(name)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(def); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// WindowVol computes the sample standard deviation of daily returns in a
// window. Shared with risk-scaled weighting.
func WindowVol(w domain.Window) (float64, bool) {
	n := w.Len() - 1
	if n < 2 {
		return 0, false
	}
	rets := make([]float64, 0, n)
	for i := 1; i < w.Len(); i++ {
		prev := w.At(i - 1).Close
		if prev == 0 {
			return 0, false
		}
		rets = append(rets, w.At(i).Close/prev-1)
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	sumSq := 0.0
	for _, r := range rets {
		d := r - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(rets)-1)), true
}
