// Package portfolio turns factor cross-sections into constrained target
// weights through three ordered, total stages: signal transform, weighting,
// constraint enforcement. Every stage always produces an output, possibly
// "no positions".
package portfolio

import (
	"math"
	"sort"
	"strconv"

	"factorlab/internal/domain"
)

// Transform converts one date's raw factor cross-section into a transformed
// signal per the configured options, then applies neutralization.
func Transform(row map[domain.AssetID]float64, opts domain.PortfolioOptions) map[domain.AssetID]float64 {
	if len(row) == 0 {
		return map[domain.AssetID]float64{}
	}
	var signal map[domain.AssetID]float64
	switch opts.Transform {
	case domain.TransformZScore:
		signal = zscoreSignal(row)
	default:
		signal = rankSignal(row)
	}
	return neutralize(signal, opts)
}

// rankSignal maps values to [-1, 1] by average rank: the lowest value maps
// to -1, the highest to +1. A singleton cross-section maps to 0.
func rankSignal(row map[domain.AssetID]float64) map[domain.AssetID]float64 {
	assets, values := sortedEntries(row)
	n := len(values)
	out := make(map[domain.AssetID]float64, n)
	if n == 1 {
		out[assets[0]] = 0
		return out
	}
	ranks := averageRanks(values)
	for i, a := range assets {
		out[a] = 2*(ranks[i]-1)/float64(n-1) - 1
	}
	return out
}

// zscoreSignal standardizes values by the cross-sectional mean and sample
// standard deviation. Zero variance maps every asset to 0.
func zscoreSignal(row map[domain.AssetID]float64) map[domain.AssetID]float64 {
	assets, values := sortedEntries(row)
	out := make(map[domain.AssetID]float64, len(assets))

	m := mean(values)
	std, ok := sampleStd(values)
	if !ok || std == 0 {
		for _, a := range assets {
			out[a] = 0
		}
		return out
	}
	for i, a := range assets {
		out[a] = (values[i] - m) / std
	}
	return out
}

// neutralize subtracts the cross-sectional (or group) mean so the signal
// sums to ~0 within each neutralization group.
func neutralize(signal map[domain.AssetID]float64, opts domain.PortfolioOptions) map[domain.AssetID]float64 {
	switch opts.Neutralization {
	case domain.NeutralizeDemean:
		return demeanGroup(signal, func(domain.AssetID) string { return "" })
	case domain.NeutralizeGroup:
		return demeanGroup(signal, func(a domain.AssetID) string {
			if g, ok := opts.Groups[a]; ok {
				return g
			}
			// Assets without a group form their own implicit group.
			return "__asset__" + strconv.Itoa(int(a))
		})
	default:
		return signal
	}
}

func demeanGroup(signal map[domain.AssetID]float64, groupOf func(domain.AssetID) string) map[domain.AssetID]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for a, v := range signal {
		g := groupOf(a)
		sums[g] += v
		counts[g]++
	}
	out := make(map[domain.AssetID]float64, len(signal))
	for a, v := range signal {
		g := groupOf(a)
		out[a] = v - sums[g]/float64(counts[g])
	}
	return out
}

// sortedEntries returns the row's assets in ascending ID order with their
// values aligned, for deterministic iteration.
func sortedEntries(row map[domain.AssetID]float64) ([]domain.AssetID, []float64) {
	assets := make([]domain.AssetID, 0, len(row))
	for a := range row {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })
	values := make([]float64, len(assets))
	for i, a := range assets {
		values[i] = row[a]
	}
	return assets, values
}

// averageRanks assigns 1-based ranks with ties broken by average rank.
func averageRanks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sampleStd(xs []float64) (float64, bool) {
	n := len(xs)
	if n < 2 {
		return 0, false
	}
	m := mean(xs)
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1)), true
}
