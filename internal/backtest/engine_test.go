package backtest

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"factorlab/internal/calendar"
	"factorlab/internal/domain"
	"factorlab/internal/execution"
)

func dayMs(n int) domain.Date {
	return domain.Date(int64(n) * 86_400_000)
}

// trendingMarket builds five sessions for two assets: asset 0 rallies a
// point a day, asset 1 bleeds one. Opens sit half a point under the close.
func trendingMarket(t *testing.T) (*domain.History, *calendar.Calendar) {
	t.Helper()
	var bars []domain.Bar
	var sessions []domain.Date
	for day := 1; day <= 5; day++ {
		d := dayMs(day)
		sessions = append(sessions, d)
		c0 := 10.0 + float64(day-1)
		c1 := 20.0 - float64(day-1)
		bars = append(bars,
			domain.Bar{Asset: 0, Date: d, Open: c0 - 0.5, High: c0, Low: c0 - 1, Close: c0},
			domain.Bar{Asset: 1, Date: d, Open: c1 + 0.5, High: c1 + 1, Low: c1, Close: c1},
		)
	}
	hist, err := domain.BuildHistory(bars)
	if err != nil {
		t.Fatalf("build history: %v", err)
	}
	cal, err := calendar.New(sessions)
	if err != nil {
		t.Fatalf("build calendar: %v", err)
	}
	return hist, cal
}

func longShortTargets(t *testing.T, days ...int) *domain.Panel[float64] {
	t.Helper()
	panel := domain.NewPanel[float64]()
	for _, day := range days {
		err := panel.SetRow(dayMs(day), map[domain.AssetID]float64{0: 0.5, 1: -0.5})
		if err != nil {
			t.Fatalf("set targets: %v", err)
		}
	}
	return panel
}

func newEngine(t *testing.T, opts domain.CostOptions) *Engine {
	t.Helper()
	model, err := execution.NewModel(opts)
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	return NewEngine(model, zerolog.Nop())
}

func TestRun_AccountingIdentitiesHoldEveryDate(t *testing.T) {
	hist, cal := trendingMarket(t)
	targets := longShortTargets(t, 1, 2, 3, 4, 5)
	engine := newEngine(t, domain.CostOptions{
		SlippageK:     0.001,
		HalfSpreadBps: 10,
		FillTiming:    domain.FillAtClose,
	})

	const initial = 100_000.0
	result, err := engine.Run(context.Background(), hist, cal, targets, initial)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(result.Records))
	}

	prev := initial
	for _, r := range result.Records {
		// equity(d) = equity(d-1) + PnL(d), no external flows.
		if math.Abs(r.Equity-(prev+r.PnL)) > 1e-9 {
			t.Errorf("date %d: equity chain broken: %v vs %v", r.Date, r.Equity, prev+r.PnL)
		}
		// PnL = gross - costs, exactly.
		if math.Abs(r.PnL-(r.GrossPnL-r.TotalCost)) > 1e-9 {
			t.Errorf("date %d: cost attribution broken", r.Date)
		}
		if math.Abs(r.TotalCost-(r.SlippageCost+r.SpreadCost)) > 1e-9 {
			t.Errorf("date %d: cost components do not sum", r.Date)
		}
		if r.Turnover < 0 {
			t.Errorf("date %d: negative turnover", r.Date)
		}
		prev = r.Equity
	}

	// The long leg rallies and the short leg falls: the run must profit
	// before costs on every date after entry.
	for _, r := range result.Records[1:] {
		if r.GrossPnL <= 0 {
			t.Errorf("date %d: expected positive gross PnL, got %v", r.Date, r.GrossPnL)
		}
	}
}

func TestRun_ZeroCostRoundTripHitsTargetWeights(t *testing.T) {
	hist, cal := trendingMarket(t)
	targets := longShortTargets(t, 1, 2, 3)
	engine := newEngine(t, domain.CostOptions{FillTiming: domain.FillAtClose})

	result, err := engine.Run(context.Background(), hist, cal, targets, 50_000)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Accumulate fills into positions and check realized weights at each
	// close against the targets. Costs are zero, so the post-trade equity
	// is the sizing equity and the reproduction must be exact.
	positions := map[domain.AssetID]float64{}
	byDate := map[domain.Date][]domain.Fill{}
	for _, f := range result.Fills {
		byDate[f.Date] = append(byDate[f.Date], f)
	}
	for _, r := range result.Records {
		for _, f := range byDate[r.Date] {
			positions[f.Asset] += f.Quantity
		}
		for a, want := range map[domain.AssetID]float64{0: 0.5, 1: -0.5} {
			price, ok := hist.Close(a, r.Date)
			if !ok {
				t.Fatalf("missing close for asset %d", a)
			}
			got := positions[a] * price / r.Equity
			if math.Abs(got-want) > 1e-12 {
				t.Errorf("date %d asset %d: realized weight %v, target %v", r.Date, a, got, want)
			}
		}
	}
}

func TestRun_NextOpenTimingDefersFills(t *testing.T) {
	hist, cal := trendingMarket(t)
	targets := longShortTargets(t, 1)
	engine := newEngine(t, domain.CostOptions{FillTiming: domain.FillAtNextOpen})

	result, err := engine.Run(context.Background(), hist, cal, targets, 10_000)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Day 1 decides, day 2 executes: two records, fills only on day 2 at
	// the day-2 open.
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}
	if result.Records[0].Turnover != 0 {
		t.Errorf("expected no trading on the decision date")
	}
	if len(result.Fills) == 0 {
		t.Fatal("expected fills on the execution date")
	}
	for _, f := range result.Fills {
		if f.Date != dayMs(2) {
			t.Errorf("fill on %d, expected day 2", f.Date)
		}
		open, _ := hist.Open(f.Asset, dayMs(2))
		if f.Price != open {
			t.Errorf("asset %d filled at %v, expected open %v", f.Asset, f.Price, open)
		}
	}
}

func TestRun_DrawdownTracksPeak(t *testing.T) {
	// One long position riding a falling price produces a growing drawdown.
	var bars []domain.Bar
	var sessions []domain.Date
	closes := []float64{10, 12, 9, 8}
	for i, c := range closes {
		d := dayMs(i + 1)
		sessions = append(sessions, d)
		bars = append(bars, domain.Bar{Asset: 0, Date: d, Open: c, High: c, Low: c, Close: c})
	}
	hist, err := domain.BuildHistory(bars)
	if err != nil {
		t.Fatal(err)
	}
	cal, err := calendar.New(sessions)
	if err != nil {
		t.Fatal(err)
	}

	targets := domain.NewPanel[float64]()
	if err := targets.SetRow(dayMs(1), map[domain.AssetID]float64{0: 1.0}); err != nil {
		t.Fatal(err)
	}
	for day := 2; day <= 4; day++ {
		if err := targets.SetRow(dayMs(day), map[domain.AssetID]float64{0: 1.0}); err != nil {
			t.Fatal(err)
		}
	}

	engine := newEngine(t, domain.CostOptions{FillTiming: domain.FillAtClose})
	result, err := engine.Run(context.Background(), hist, cal, targets, 1_000)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Peak is set on day 2 (close 12); days 3 and 4 sink below it.
	if result.Records[1].Drawdown != 0 {
		t.Errorf("expected zero drawdown at the peak, got %v", result.Records[1].Drawdown)
	}
	if result.Records[2].Drawdown <= 0 {
		t.Errorf("expected positive drawdown after the peak")
	}
	if result.Records[3].Drawdown <= result.Records[2].Drawdown {
		t.Errorf("expected the drawdown to deepen")
	}
	if got := MaxDrawdown(result.Records); got != result.Records[3].Drawdown {
		t.Errorf("max drawdown %v should match the final record", got)
	}

	run := Summarize("run-1", "config: {}", 0, 1_000, result.Records)
	if run.MaxDrawdown != result.Records[3].Drawdown {
		t.Errorf("summary drawdown mismatch")
	}
	if run.Days != 4 || run.DateFrom != dayMs(1) || run.DateTo != dayMs(4) {
		t.Errorf("summary span wrong: %+v", run)
	}
	wantReturn := result.Records[3].Equity/1_000 - 1
	if math.Abs(run.TotalReturn-wantReturn) > 1e-12 {
		t.Errorf("summary return mismatch: %v vs %v", run.TotalReturn, wantReturn)
	}
}

func TestRun_RejectsOffCalendarTargets(t *testing.T) {
	hist, cal := trendingMarket(t)
	targets := domain.NewPanel[float64]()
	if err := targets.SetRow(dayMs(99), map[domain.AssetID]float64{0: 1}); err != nil {
		t.Fatal(err)
	}

	engine := newEngine(t, domain.DefaultCostOptions())
	_, err := engine.Run(context.Background(), hist, cal, targets, 1_000)
	if !domain.IsConsistencyError(err) {
		t.Errorf("expected ConsistencyError, got %v", err)
	}
}

func TestRun_HonorsCancellation(t *testing.T) {
	hist, cal := trendingMarket(t)
	targets := longShortTargets(t, 1, 2, 3)
	engine := newEngine(t, domain.DefaultCostOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := engine.Run(ctx, hist, cal, targets, 1_000); err == nil {
		t.Error("expected an error from a cancelled context")
	}
}
