package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Factor Research Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Factors: %d\n\n", r.RunID, r.FactorCount))

	// Backtest Summary
	if r.Run != nil {
		sb.WriteString("## Backtest Summary\n\n")
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Sessions | %d |\n", r.Run.Days))
		sb.WriteString(fmt.Sprintf("| Date Range Start (ms) | %d |\n", r.Run.DateFrom))
		sb.WriteString(fmt.Sprintf("| Date Range End (ms) | %d |\n", r.Run.DateTo))
		sb.WriteString(fmt.Sprintf("| Initial Capital | %.2f |\n", r.Run.InitialCapital))
		sb.WriteString(fmt.Sprintf("| Final Equity | %.2f |\n", r.Run.FinalEquity))
		sb.WriteString(fmt.Sprintf("| Total Return | %.4f |\n", r.Run.TotalReturn))
		sb.WriteString(fmt.Sprintf("| Max Drawdown | %.4f |\n", r.Run.MaxDrawdown))
		sb.WriteString(fmt.Sprintf("| Total Costs | %.2f |\n", r.Run.TotalCosts))
		sb.WriteString(fmt.Sprintf("| Avg Daily Turnover | %.4f |\n", r.Run.AvgTurnover))
		sb.WriteString("\n")
	}

	// Factor Summary
	sb.WriteString("## Factor Summary\n\n")
	if len(r.FactorSummaries) > 0 {
		sb.WriteString("| Factor | Horizon | Dates | Mean Spearman IC | Mean Pearson IC | Spearman IR | Pearson IR |\n")
		sb.WriteString("|--------|---------|-------|------------------|-----------------|-------------|------------|\n")
		for _, f := range r.FactorSummaries {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.4f | %.4f | %s | %s |\n",
				f.Factor, f.Horizon, f.Dates, f.MeanSpearman, f.MeanPearson,
				fmtIR(f.SpearmanIR), fmtIR(f.PearsonIR)))
		}
	} else {
		sb.WriteString("No factor statistics available.\n")
	}
	sb.WriteString("\n")

	// IC Decay
	sb.WriteString("## IC Decay\n\n")
	if len(r.Decay) > 0 {
		sb.WriteString("| Factor | Horizon | Mean IC | Dates |\n")
		sb.WriteString("|--------|---------|---------|-------|\n")
		for _, d := range r.Decay {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %d |\n",
				d.Factor, d.Horizon, d.MeanIC, d.Dates))
		}
	} else {
		sb.WriteString("No decay data available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// fmtIR renders an IR value, "n/a" when undefined.
func fmtIR(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *v)
}
