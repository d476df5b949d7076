package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"factorlab/internal/domain"
)

// ParquetWriter persists per-run panels as Parquet files for hand-off to
// external analysis tooling. Layout:
//
//	<DataDir>/runs/<runID>/records.parquet
//	<DataDir>/runs/<runID>/scores/<factor>.parquet
type ParquetWriter struct {
	DataDir string
}

// NewParquetWriter creates a writer rooted at the given data directory.
func NewParquetWriter(dataDir string) *ParquetWriter {
	return &ParquetWriter{DataDir: dataDir}
}

// ScoreRow is the Parquet schema for factor scores.
type ScoreRow struct {
	Factor string  `parquet:"factor"`
	Date   int64   `parquet:"date,timestamp(millisecond)"` // Unix ms
	Asset  int32   `parquet:"asset"`
	Score  float64 `parquet:"score"`
}

// RecordRow is the Parquet schema for performance records.
type RecordRow struct {
	Date         int64   `parquet:"date,timestamp(millisecond)"` // Unix ms
	Equity       float64 `parquet:"equity"`
	PnL          float64 `parquet:"pnl"`
	GrossPnL     float64 `parquet:"gross_pnl"`
	Turnover     float64 `parquet:"turnover"`
	SlippageCost float64 `parquet:"slippage_cost"`
	SpreadCost   float64 `parquet:"spread_cost"`
	TotalCost    float64 `parquet:"total_cost"`
	PeakEquity   float64 `parquet:"peak_equity"`
	Drawdown     float64 `parquet:"drawdown"`
}

// WriteScores writes one factor's score panel for a run.
func (w *ParquetWriter) WriteScores(runID string, factor domain.FactorID, scores []domain.FactorScore) error {
	rows := make([]ScoreRow, len(scores))
	for i, s := range scores {
		rows[i] = ScoreRow{
			Factor: string(s.Factor),
			Date:   int64(s.Date),
			Asset:  int32(s.Asset),
			Score:  s.Score,
		}
	}
	path := w.scorePath(runID, factor)
	if err := writeParquetFile(path, rows); err != nil {
		return fmt.Errorf("writing scores for %s: %w", factor, err)
	}
	return nil
}

// WriteRecords writes a run's performance trail.
func (w *ParquetWriter) WriteRecords(runID string, records []domain.PerformanceRecord) error {
	rows := make([]RecordRow, len(records))
	for i, r := range records {
		rows[i] = RecordRow{
			Date:         int64(r.Date),
			Equity:       r.Equity,
			PnL:          r.PnL,
			GrossPnL:     r.GrossPnL,
			Turnover:     r.Turnover,
			SlippageCost: r.SlippageCost,
			SpreadCost:   r.SpreadCost,
			TotalCost:    r.TotalCost,
			PeakEquity:   r.PeakEquity,
			Drawdown:     r.Drawdown,
		}
	}
	path := w.recordPath(runID)
	if err := writeParquetFile(path, rows); err != nil {
		return fmt.Errorf("writing records for %s: %w", runID, err)
	}
	return nil
}

// ReadScores reads one factor's score panel back.
func (w *ParquetWriter) ReadScores(runID string, factor domain.FactorID) ([]domain.FactorScore, error) {
	rows, err := readParquetFile[ScoreRow](w.scorePath(runID, factor))
	if err != nil {
		return nil, err
	}
	out := make([]domain.FactorScore, len(rows))
	for i, r := range rows {
		out[i] = domain.FactorScore{
			Factor: domain.FactorID(r.Factor),
			Date:   domain.Date(r.Date),
			Asset:  domain.AssetID(r.Asset),
			Score:  r.Score,
		}
	}
	return out, nil
}

// ReadRecords reads a run's performance trail back.
func (w *ParquetWriter) ReadRecords(runID string) ([]domain.PerformanceRecord, error) {
	rows, err := readParquetFile[RecordRow](w.recordPath(runID))
	if err != nil {
		return nil, err
	}
	out := make([]domain.PerformanceRecord, len(rows))
	for i, r := range rows {
		out[i] = domain.PerformanceRecord{
			Date:         domain.Date(r.Date),
			Equity:       r.Equity,
			PnL:          r.PnL,
			GrossPnL:     r.GrossPnL,
			Turnover:     r.Turnover,
			SlippageCost: r.SlippageCost,
			SpreadCost:   r.SpreadCost,
			TotalCost:    r.TotalCost,
			PeakEquity:   r.PeakEquity,
			Drawdown:     r.Drawdown,
		}
	}
	return out, nil
}

func (w *ParquetWriter) scorePath(runID string, factor domain.FactorID) string {
	return filepath.Join(w.DataDir, "runs", runID, "scores", string(factor)+".parquet")
}

func (w *ParquetWriter) recordPath(runID string) string {
	return filepath.Join(w.DataDir, "runs", runID, "records.parquet")
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
