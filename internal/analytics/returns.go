package analytics

import (
	"factorlab/internal/calendar"
	"factorlab/internal/domain"
)

// ForwardReturns builds the h-session forward return panel over the given
// dates: return(d) = close(d+h)/close(d) - 1, where d+h is resolved on the
// trading calendar. Dates without h further sessions, and assets missing a
// close on either end, are excluded rather than filled.
func ForwardReturns(
	hist *domain.History,
	cal *calendar.Calendar,
	dates []domain.Date,
	assets []domain.AssetID,
	horizon int,
) (*domain.Panel[float64], error) {
	if horizon <= 0 {
		return nil, &domain.ConfigError{Option: "forward_horizons", Reason: "horizon must be > 0"}
	}
	panel := domain.NewPanel[float64]()
	for _, d := range domain.SortedDates(dates) {
		future, ok := cal.Shift(d, horizon)
		if !ok {
			continue
		}
		for _, a := range assets {
			base, ok := hist.Close(a, d)
			if !ok || base == 0 {
				continue
			}
			next, ok := hist.Close(a, future)
			if !ok {
				continue
			}
			if err := panel.Set(d, a, next/base-1); err != nil {
				return nil, err
			}
		}
	}
	return panel, nil
}
