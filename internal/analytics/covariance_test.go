package analytics

import (
	"errors"
	"math"
	"testing"

	"factorlab/internal/domain"
)

func TestCovariance_KnownMatrix(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{2, 4, 6, 8} // exactly 2*a

	cov, err := Covariance([][]float64{a, b})
	if err != nil {
		t.Fatalf("covariance: %v", err)
	}

	// var(a) = 5/3, cov(a,b) = 10/3, var(b) = 20/3.
	if math.Abs(cov[0][0]-5.0/3.0) > 1e-12 {
		t.Errorf("var(a): got %v", cov[0][0])
	}
	if math.Abs(cov[0][1]-10.0/3.0) > 1e-12 {
		t.Errorf("cov(a,b): got %v", cov[0][1])
	}
	if math.Abs(cov[1][1]-20.0/3.0) > 1e-12 {
		t.Errorf("var(b): got %v", cov[1][1])
	}
}

func TestCovariance_SymmetricAndPSD(t *testing.T) {
	cols := [][]float64{
		{0.1, -0.2, 0.05, 0.3, -0.1},
		{-0.05, 0.1, 0.2, -0.15, 0.0},
		{0.02, 0.03, -0.01, 0.02, 0.05},
	}
	cov, err := Covariance(cols)
	if err != nil {
		t.Fatalf("covariance: %v", err)
	}

	for i := range cov {
		// Non-negative diagonal.
		if cov[i][i] < 0 {
			t.Errorf("negative variance at %d: %v", i, cov[i][i])
		}
		for j := range cov {
			if cov[i][j] != cov[j][i] {
				t.Errorf("asymmetry at (%d,%d)", i, j)
			}
			// Cauchy-Schwarz, a necessary PSD condition.
			bound := math.Sqrt(cov[i][i]*cov[j][j]) + 1e-12
			if math.Abs(cov[i][j]) > bound {
				t.Errorf("|cov(%d,%d)| exceeds variance bound", i, j)
			}
		}
	}

	// Quadratic form on a few probe vectors must be non-negative.
	probes := [][]float64{{1, 1, 1}, {1, -1, 0}, {0.5, 0.25, -1}}
	for _, v := range probes {
		var q float64
		for i := range v {
			for j := range v {
				q += v[i] * cov[i][j] * v[j]
			}
		}
		if q < -1e-12 {
			t.Errorf("negative quadratic form %v for probe %v", q, v)
		}
	}
}

func TestCovariance_InsufficientData(t *testing.T) {
	if _, err := Covariance(nil); !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
	if _, err := Covariance([][]float64{{1}}); !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData for single row, got %v", err)
	}
	if _, err := Covariance([][]float64{{1, 2}, {1}}); err == nil {
		t.Error("expected error for ragged columns")
	}
}

func TestAlignSeries_CommonDates(t *testing.T) {
	s1 := ICSeries{Dates: []domain.Date{100, 200, 300}, Values: []float64{0.1, 0.2, 0.3}}
	s2 := ICSeries{Dates: []domain.Date{200, 300, 400}, Values: []float64{0.5, 0.6, 0.7}}

	cols := AlignSeries([]ICSeries{s1, s2})
	if len(cols) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(cols))
	}
	if len(cols[0]) != 2 || len(cols[1]) != 2 {
		t.Fatalf("expected 2 common dates, got %d and %d", len(cols[0]), len(cols[1]))
	}
	if cols[0][0] != 0.2 || cols[0][1] != 0.3 {
		t.Errorf("misaligned first column: %v", cols[0])
	}
	if cols[1][0] != 0.5 || cols[1][1] != 0.6 {
		t.Errorf("misaligned second column: %v", cols[1])
	}
}
