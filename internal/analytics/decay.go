package analytics

import (
	"factorlab/internal/calendar"
	"factorlab/internal/domain"
)

// DecayPoint is one horizon of a factor's decay curve.
type DecayPoint struct {
	Horizon int
	MeanIC  float64
	Dates   int // IC observations behind the mean
}

// DecayCurve recomputes the mean Spearman IC for each configured forward
// horizon. Dates without enough future sessions for a horizon drop out of
// that horizon's series; a horizon with no valid dates yields a point with
// Dates == 0 and is reported as such rather than silently dropped.
func DecayCurve(
	factorPanel *domain.Panel[float64],
	hist *domain.History,
	cal *calendar.Calendar,
	assets []domain.AssetID,
	horizons []int,
) ([]DecayPoint, error) {
	dates := factorPanel.Dates()
	points := make([]DecayPoint, 0, len(horizons))
	for _, h := range horizons {
		returns, err := ForwardReturns(hist, cal, dates, assets, h)
		if err != nil {
			return nil, err
		}
		series := ComputeICSeries(factorPanel, returns, Spearman)
		point := DecayPoint{Horizon: h, Dates: series.Len()}
		if series.Len() > 0 {
			point.MeanIC = mean(series.Values)
		}
		points = append(points, point)
	}
	return points, nil
}
