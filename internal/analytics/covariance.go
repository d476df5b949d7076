package analytics

import (
	"factorlab/internal/domain"
)

// Covariance computes the pairwise sample covariance matrix of the given
// columns, each column being one factor's aligned time series.
//
// The matrix is built as XᵀX/(n-1) on centered columns, never assembled
// entry-by-entry from independently estimated pairs, which keeps it
// symmetric and positive-semidefinite by construction. Requires at least 2
// rows and equal column lengths.
func Covariance(columns [][]float64) ([][]float64, error) {
	k := len(columns)
	if k == 0 {
		return nil, domain.ErrInsufficientData
	}
	n := len(columns[0])
	if n < 2 {
		return nil, domain.ErrInsufficientData
	}
	for _, col := range columns {
		if len(col) != n {
			return nil, &domain.ConsistencyError{Op: "covariance", Reason: "ragged factor series"}
		}
	}

	// Center each column.
	centered := make([][]float64, k)
	for j, col := range columns {
		m := mean(col)
		c := make([]float64, n)
		for i, v := range col {
			c[i] = v - m
		}
		centered[j] = c
	}

	cov := make([][]float64, k)
	for i := range cov {
		cov[i] = make([]float64, k)
	}
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			var sum float64
			for t := 0; t < n; t++ {
				sum += centered[i][t] * centered[j][t]
			}
			v := sum / float64(n-1)
			cov[i][j] = v
			cov[j][i] = v
		}
	}
	return cov, nil
}

// AlignSeries intersects the dates of several IC series and returns one
// aligned column per series, in input order, over the common dates sorted
// ascending. Factors whose series never overlap produce zero-length columns,
// surfaced to the caller as ErrInsufficientData by Covariance.
func AlignSeries(series []ICSeries) [][]float64 {
	if len(series) == 0 {
		return nil
	}
	counts := make(map[domain.Date]int)
	for _, s := range series {
		for _, d := range s.Dates {
			counts[d]++
		}
	}
	var common []domain.Date
	for d, c := range counts {
		if c == len(series) {
			common = append(common, d)
		}
	}
	common = domain.SortedDates(common)

	columns := make([][]float64, len(series))
	for i, s := range series {
		byDate := make(map[domain.Date]float64, len(s.Dates))
		for j, d := range s.Dates {
			byDate[d] = s.Values[j]
		}
		col := make([]float64, len(common))
		for j, d := range common {
			col[j] = byDate[d]
		}
		columns[i] = col
	}
	return columns
}
