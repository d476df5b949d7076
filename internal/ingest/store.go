package ingest

import (
	"context"
	"fmt"

	"factorlab/internal/storage"
)

// LoadFromStore reads every symbol's bars out of a bar store. The result
// feeds BuildDataset the same way CSV rows do.
func LoadFromStore(ctx context.Context, store storage.BarStore) ([]SymbolBar, error) {
	symbols, err := store.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	var rows []SymbolBar
	for _, sym := range symbols {
		bars, err := store.GetBySymbol(ctx, sym)
		if err != nil {
			return nil, fmt.Errorf("load bars for %s: %w", sym, err)
		}
		for _, b := range bars {
			rows = append(rows, SymbolBar{Symbol: sym, Bar: b})
		}
	}
	return rows, nil
}
