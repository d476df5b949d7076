package portfolio

import (
	"math"
	"sort"

	"factorlab/internal/domain"
)

// quantileCut returns the number of assets in a leg of size fraction over a
// cross-section of n, after resolving ties at the boundary. Ties at the
// boundary value move as a block to whichever side keeps the leg size
// closest to fraction*n; an exact tie includes them.
func quantileCut(sorted []float64, fraction float64) int {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	target := fraction * float64(n)
	k := int(math.Round(target))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}

	boundary := sorted[k-1]
	above := 0
	for above < n && sorted[above] != boundary {
		above++
	}
	ties := 0
	for above+ties < n && sorted[above+ties] == boundary {
		ties++
	}

	withTies := above + ties
	if above == 0 {
		return withTies
	}
	if math.Abs(float64(withTies)-target) <= math.Abs(float64(above)-target) {
		return withTies
	}
	return above
}

// Weigh maps a transformed signal cross-section to raw target weights under
// the configured scheme. The result is pre-constraint: long-short legs sum
// to +1 and -1, long-only weights sum to +1, risk-scaled weights sum to the
// gross exposure target in absolute value.
func Weigh(signal map[domain.AssetID]float64, vols map[domain.AssetID]float64, opts domain.PortfolioOptions) map[domain.AssetID]float64 {
	if len(signal) == 0 {
		return map[domain.AssetID]float64{}
	}
	switch opts.Scheme {
	case domain.WeightEqualLongOnly:
		return equalLongOnly(signal, opts.QuantileFraction)
	case domain.WeightRiskScaled:
		return riskScaled(signal, vols, opts.GrossExposure)
	default:
		return longShort(signal, opts.QuantileFraction)
	}
}

// equalLongOnly holds the top quantile at equal weight, summing to 1.
func equalLongOnly(signal map[domain.AssetID]float64, fraction float64) map[domain.AssetID]float64 {
	assets, values := sortedEntries(signal)
	desc := descending(values)
	k := quantileCut(desc, fraction)
	if k == 0 {
		return map[domain.AssetID]float64{}
	}
	cutoff := desc[k-1]

	out := make(map[domain.AssetID]float64, k)
	w := 1.0 / float64(k)
	taken := 0
	for i, a := range assets {
		if values[i] >= cutoff && taken < k {
			out[a] = w
			taken++
		}
	}
	return out
}

// longShort holds the top quantile long and the bottom quantile short, each
// leg equal-weighted to unit absolute size. An asset falling in both legs
// (possible only when every value ties) nets to zero and is dropped.
func longShort(signal map[domain.AssetID]float64, fraction float64) map[domain.AssetID]float64 {
	assets, values := sortedEntries(signal)
	desc := descending(values)
	asc := make([]float64, len(desc))
	for i := range desc {
		asc[i] = desc[len(desc)-1-i]
	}

	kLong := quantileCut(desc, fraction)
	kShort := quantileCut(asc, fraction)
	out := make(map[domain.AssetID]float64, kLong+kShort)
	if kLong > 0 {
		cutoff := desc[kLong-1]
		w := 1.0 / float64(kLong)
		taken := 0
		for i, a := range assets {
			if values[i] >= cutoff && taken < kLong {
				out[a] += w
				taken++
			}
		}
	}
	if kShort > 0 {
		cutoff := asc[kShort-1]
		w := 1.0 / float64(kShort)
		taken := 0
		for i, a := range assets {
			if values[i] <= cutoff && taken < kShort {
				out[a] -= w
				taken++
			}
		}
	}
	for a, w := range out {
		if w == 0 {
			delete(out, a)
		}
	}
	return out
}

// riskScaled sizes each asset by signal over realized volatility and
// renormalizes the absolute weights to the gross exposure target. Assets
// with missing or zero volatility are excluded from the cross-section.
func riskScaled(signal map[domain.AssetID]float64, vols map[domain.AssetID]float64, gross float64) map[domain.AssetID]float64 {
	raw := make(map[domain.AssetID]float64, len(signal))
	sumAbs := 0.0
	for a, s := range signal {
		v, ok := vols[a]
		if !ok || v <= 0 {
			continue
		}
		w := s / v
		raw[a] = w
		sumAbs += math.Abs(w)
	}
	if sumAbs == 0 {
		return map[domain.AssetID]float64{}
	}
	scale := gross / sumAbs
	for a := range raw {
		raw[a] *= scale
	}
	return raw
}

func descending(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}
