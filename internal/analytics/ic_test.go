package analytics

import (
	"math"
	"testing"

	"factorlab/internal/domain"
)

func TestSpearmanIC_PerfectInversion(t *testing.T) {
	// Four assets, factor scores [1,2,3,4] against forward returns
	// [4,3,2,1]: Spearman IC must equal -1.0 exactly.
	factors := map[domain.AssetID]float64{0: 1, 1: 2, 2: 3, 3: 4}
	returns := map[domain.AssetID]float64{0: 4, 1: 3, 2: 2, 3: 1}

	ic, ok := SpearmanIC(factors, returns)
	if !ok {
		t.Fatal("expected IC to be defined")
	}
	if ic != -1.0 {
		t.Errorf("expected IC exactly -1.0, got %v", ic)
	}
}

func TestSpearmanIC_MonotonicTransformInvariance(t *testing.T) {
	factors := map[domain.AssetID]float64{0: 0.3, 1: -1.2, 2: 2.5, 3: 0.9, 4: -0.4}
	returns := map[domain.AssetID]float64{0: 0.01, 1: -0.05, 2: 0.04, 3: 0.02, 4: -0.01}

	base, ok := SpearmanIC(factors, returns)
	if !ok {
		t.Fatal("expected IC to be defined")
	}

	// exp is strictly monotonic on factors; cubing is strictly monotonic
	// on returns. Neither may change the rank correlation.
	tf := make(map[domain.AssetID]float64)
	tr := make(map[domain.AssetID]float64)
	for a, v := range factors {
		tf[a] = math.Exp(v)
	}
	for a, v := range returns {
		tr[a] = v * v * v
	}

	got, ok := SpearmanIC(tf, tr)
	if !ok {
		t.Fatal("expected transformed IC to be defined")
	}
	if got != base {
		t.Errorf("Spearman IC changed under monotonic transform: %v vs %v", base, got)
	}
}

func TestSpearmanIC_AverageRankTies(t *testing.T) {
	// Two tied factor values share rank (1+2)/2.
	factors := map[domain.AssetID]float64{0: 1, 1: 1, 2: 3}
	returns := map[domain.AssetID]float64{0: 0.1, 1: 0.2, 2: 0.3}

	ic, ok := SpearmanIC(factors, returns)
	if !ok {
		t.Fatal("expected IC to be defined")
	}
	// ranks(factors) = [1.5, 1.5, 3], ranks(returns) = [1, 2, 3]
	// Pearson of those is sqrt(3)/2.
	want := math.Sqrt(3) / 2
	if math.Abs(ic-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, ic)
	}
}

func TestICSeries_ExcludesDegenerateDates(t *testing.T) {
	factorPanel := domain.NewPanel[float64]()
	returnPanel := domain.NewPanel[float64]()

	// Date 100: only one complete pair -> excluded.
	mustSet(t, factorPanel, 100, 0, 1.0)
	mustSet(t, factorPanel, 100, 1, 2.0)
	mustSet(t, returnPanel, 100, 0, 0.5)

	// Date 200: constant factor cross-section -> zero variance, excluded.
	mustSet(t, factorPanel, 200, 0, 7.0)
	mustSet(t, factorPanel, 200, 1, 7.0)
	mustSet(t, returnPanel, 200, 0, 0.1)
	mustSet(t, returnPanel, 200, 1, 0.2)

	// Date 300: a valid pair of pairs.
	mustSet(t, factorPanel, 300, 0, 1.0)
	mustSet(t, factorPanel, 300, 1, 2.0)
	mustSet(t, returnPanel, 300, 0, 0.1)
	mustSet(t, returnPanel, 300, 1, 0.2)

	series := ComputeICSeries(factorPanel, returnPanel, Spearman)
	if series.Len() != 1 {
		t.Fatalf("expected 1 IC observation, got %d", series.Len())
	}
	if series.Dates[0] != 300 {
		t.Errorf("expected date 300, got %d", series.Dates[0])
	}
	if series.Values[0] != 1.0 {
		t.Errorf("expected IC 1.0, got %v", series.Values[0])
	}
	if series.Pairs[0] != 2 {
		t.Errorf("expected 2 pairs, got %d", series.Pairs[0])
	}
}

func TestPearsonIC_LinearData(t *testing.T) {
	factors := map[domain.AssetID]float64{0: 1, 1: 2, 2: 3, 3: 4}
	returns := map[domain.AssetID]float64{0: 0.02, 1: 0.04, 2: 0.06, 3: 0.08}

	ic, ok := PearsonIC(factors, returns)
	if !ok {
		t.Fatal("expected IC to be defined")
	}
	if math.Abs(ic-1.0) > 1e-12 {
		t.Errorf("expected IC 1.0, got %v", ic)
	}
}

func TestInformationRatio_UndefinedCases(t *testing.T) {
	// Fewer than 2 observations: missing, not zero.
	if _, ok := InformationRatio(ICSeries{Values: []float64{0.5}}); ok {
		t.Error("expected IR undefined for a single observation")
	}

	// Zero variance: missing, not infinity.
	if _, ok := InformationRatio(ICSeries{Values: []float64{0.3, 0.3, 0.3}}); ok {
		t.Error("expected IR undefined for zero variance")
	}

	ir, ok := InformationRatio(ICSeries{Values: []float64{0.1, 0.3}})
	if !ok {
		t.Fatal("expected IR to be defined")
	}
	// mean = 0.2, sample std = sqrt(0.02)
	want := 0.2 / math.Sqrt(0.02)
	if math.Abs(ir-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, ir)
	}
}

func mustSet(t *testing.T, p *domain.Panel[float64], d domain.Date, a domain.AssetID, v float64) {
	t.Helper()
	if err := p.Set(d, a, v); err != nil {
		t.Fatalf("set panel cell: %v", err)
	}
}
