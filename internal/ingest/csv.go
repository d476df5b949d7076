// Package ingest turns external bar data, CSV files, the bar store, or the
// live feed, into the aligned Dataset the engine runs on: a Universe of
// dense asset IDs, a bar History and the trading Calendar derived from it.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"factorlab/internal/domain"
)

// SymbolBar is one parsed input row before universe assignment.
type SymbolBar struct {
	Symbol string
	Bar    domain.Bar
}

// csvLayout is the required header: symbol,date,open,high,low,close,volume.
var csvLayout = []string{"symbol", "date", "open", "high", "low", "close", "volume"}

// LoadCSVFile reads bar rows from a CSV file.
func LoadCSVFile(path string) ([]SymbolBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars csv: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// LoadCSV reads bar rows from CSV data. The first row must be the header;
// dates are ISO days (2006-01-02) interpreted as UTC sessions.
func LoadCSV(r io.Reader) ([]SymbolBar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) != len(csvLayout) {
		return nil, fmt.Errorf("csv header has %d columns, want %d", len(header), len(csvLayout))
	}
	for i, want := range csvLayout {
		if header[i] != want {
			return nil, fmt.Errorf("csv column %d is %q, want %q", i, header[i], want)
		}
	}

	var rows []SymbolBar
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		row, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(record []string) (SymbolBar, error) {
	if record[0] == "" {
		return SymbolBar{}, fmt.Errorf("empty symbol")
	}

	day, err := time.Parse("2006-01-02", record[1])
	if err != nil {
		return SymbolBar{}, fmt.Errorf("parse date %q: %w", record[1], err)
	}

	fields := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(record[2+i], 64)
		if err != nil {
			return SymbolBar{}, fmt.Errorf("parse %s %q: %w", csvLayout[2+i], record[2+i], err)
		}
		fields[i] = v
	}

	open, high, low, close, volume := fields[0], fields[1], fields[2], fields[3], fields[4]
	if close <= 0 || open <= 0 {
		return SymbolBar{}, fmt.Errorf("non-positive price for %s on %s", record[0], record[1])
	}
	if high < low {
		return SymbolBar{}, fmt.Errorf("high below low for %s on %s", record[0], record[1])
	}

	return SymbolBar{
		Symbol: record[0],
		Bar: domain.Bar{
			Date:   domain.DateOf(day),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
		},
	}, nil
}
