package portfolio

import (
	"math"

	"factorlab/internal/domain"
)

const (
	maxClipIterations = 100
	clipTolerance     = 1e-9
)

// EnforceConstraints applies the constraint pipeline in its fixed order:
// per-asset max-weight clipping with redistribution, turnover limiting
// against the previous weights, then gross/net exposure rescaling. The
// rescale factor is capped at 1 so constraints never lever the book up.
//
// Applying the pipeline to an already-compliant vector returns it unchanged.
func EnforceConstraints(target, prev map[domain.AssetID]float64, opts domain.PortfolioOptions) (map[domain.AssetID]float64, error) {
	out := make(map[domain.AssetID]float64, len(target))
	for a, w := range target {
		out[a] = w
	}

	if opts.MaxWeight > 0 {
		if err := clipRedistribute(out, opts.MaxWeight); err != nil {
			return nil, err
		}
	}
	if opts.TurnoverCap > 0 {
		out = limitTurnover(out, prev, opts.TurnoverCap)
	}
	rescaleExposure(out, opts)
	return out, nil
}

// clipRedistribute caps each |w| at max and redistributes the clipped excess
// pro rata across unclipped assets, iterating until no asset violates the
// cap. Redistribution can push another asset over the cap, hence the fixed
// point loop. If every asset ends up clipped the excess is dropped and the
// gross shrinks, which the exposure stage tolerates.
func clipRedistribute(w map[domain.AssetID]float64, max float64) error {
	clipped := make(map[domain.AssetID]bool, len(w))
	for iter := 0; iter < maxClipIterations; iter++ {
		excess := 0.0
		unclippedAbs := 0.0
		for a, v := range w {
			if clipped[a] {
				continue
			}
			if abs := math.Abs(v); abs > max+clipTolerance {
				excess += abs - max
				w[a] = math.Copysign(max, v)
				clipped[a] = true
			} else {
				unclippedAbs += math.Abs(v)
			}
		}
		if excess <= clipTolerance {
			return nil
		}
		if unclippedAbs == 0 {
			// Everything at the cap: nowhere to put the excess.
			return nil
		}
		grow := 1 + excess/unclippedAbs
		for a, v := range w {
			if !clipped[a] {
				w[a] = v * grow
			}
		}
	}
	return &domain.ConsistencyError{
		Op:     "portfolio.clip",
		Reason: "max-weight redistribution did not converge",
	}
}

// limitTurnover blends the target back toward the previous weights when the
// L1 distance between them exceeds the cap. The blend is linear, so the
// result sits exactly at the cap and stays inside every bound both
// endpoints satisfy.
func limitTurnover(target, prev map[domain.AssetID]float64, maxL1 float64) map[domain.AssetID]float64 {
	l1 := Turnover(target, prev)
	if l1 <= maxL1 {
		return target
	}

	alpha := maxL1 / l1
	out := make(map[domain.AssetID]float64, len(target)+len(prev))
	for a, w := range target {
		out[a] = prev[a] + alpha*(w-prev[a])
	}
	for a, w := range prev {
		if _, ok := target[a]; !ok {
			out[a] = w + alpha*(0-w)
		}
	}
	for a, w := range out {
		if w == 0 {
			delete(out, a)
		}
	}
	return out
}

// rescaleExposure scales the whole vector down to satisfy the gross and net
// exposure bounds. Scaling is never above 1: a book below its gross target
// stays below rather than being levered back up through the weight cap.
func rescaleExposure(w map[domain.AssetID]float64, opts domain.PortfolioOptions) {
	gross := 0.0
	net := 0.0
	for _, v := range w {
		gross += math.Abs(v)
		net += v
	}
	scale := 1.0
	if gross > opts.GrossExposure {
		scale = opts.GrossExposure / gross
	}
	if opts.NetExposure > 0 && math.Abs(net) > opts.NetExposure {
		if s := opts.NetExposure / math.Abs(net); s < scale {
			scale = s
		}
	}
	if scale >= 1 {
		return
	}
	for a, v := range w {
		w[a] = v * scale
	}
}

// Turnover reports the L1 distance between two weight vectors.
func Turnover(target, prev map[domain.AssetID]float64) float64 {
	l1 := 0.0
	for a, w := range target {
		l1 += math.Abs(w - prev[a])
	}
	for a, w := range prev {
		if _, ok := target[a]; !ok {
			l1 += math.Abs(w)
		}
	}
	return l1
}
