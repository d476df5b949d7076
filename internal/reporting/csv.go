package reporting

import (
	"fmt"
	"strings"

	"factorlab/internal/domain"
)

// RenderStatsCSV renders per-date factor stats as a CSV string.
func RenderStatsCSV(stats []domain.FactorStat) string {
	var sb strings.Builder

	sb.WriteString("factor,date,horizon,spearman_ic,pearson_ic,n\n")
	for _, s := range stats {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%.6f,%.6f,%d\n",
			s.Factor, s.Date, s.Horizon, s.SpearmanIC, s.PearsonIC, s.N))
	}

	return sb.String()
}

// RenderRecordsCSV renders backtest performance records as a CSV string.
func RenderRecordsCSV(records []domain.PerformanceRecord) string {
	var sb strings.Builder

	sb.WriteString("date,equity,pnl,gross_pnl,turnover,")
	sb.WriteString("slippage_cost,spread_cost,total_cost,peak_equity,drawdown\n")
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f\n",
			r.Date, r.Equity, r.PnL, r.GrossPnL, r.Turnover,
			r.SlippageCost, r.SpreadCost, r.TotalCost, r.PeakEquity, r.Drawdown))
	}

	return sb.String()
}

// RenderDecayCSV renders the decay curve as a CSV string.
func RenderDecayCSV(rows []DecayRow) string {
	var sb strings.Builder

	sb.WriteString("factor,horizon,mean_ic,dates\n")
	for _, d := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%.6f,%d\n", d.Factor, d.Horizon, d.MeanIC, d.Dates))
	}

	return sb.String()
}
