package repository

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yourorg/market-refresh/internal/model"

	"go.uber.org/zap"
)

// priceHeader is the canonical column order of persisted price files.
var priceHeader = []string{"Date", "Symbol", "Open", "High", "Low", "Close", "Volume"}

// PriceStore persists per-symbol daily price history as CSV files under
// <pricesDir>/<market>/. One file per (market, symbol, start year,
// exchange); a refresh overwrites the symbol's file.
type PriceStore struct {
	pricesDir string
	logger    *zap.Logger
}

// NewPriceStore creates a price store rooted at pricesDir
func NewPriceStore(pricesDir string, logger *zap.Logger) *PriceStore {
	return &PriceStore{
		pricesDir: pricesDir,
		logger:    logger,
	}
}

// SeriesPath returns the file a symbol's history is written to.
func (s *PriceStore) SeriesPath(market, symbol string, startYear int, exchange string) string {
	name := fmt.Sprintf("%s_%d_%s.csv", symbol, startYear, exchange)
	return filepath.Join(s.pricesDir, market, name)
}

// WriteSeries persists a symbol's history, replacing any previous file.
func (s *PriceStore) WriteSeries(market, symbol string, startYear int, exchange string, series model.PriceSeries) (string, error) {
	path := s.SeriesPath(market, symbol, startYear, exchange)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create price directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create price file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(priceHeader); err != nil {
		return "", fmt.Errorf("failed to write price header: %w", err)
	}

	for _, p := range series {
		rec := []string{
			p.Date.Format(model.DateOnly),
			p.Symbol,
			strconv.FormatFloat(p.Open, 'f', -1, 64),
			strconv.FormatFloat(p.High, 'f', -1, 64),
			strconv.FormatFloat(p.Low, 'f', -1, 64),
			strconv.FormatFloat(p.Close, 'f', -1, 64),
			strconv.FormatInt(p.Volume, 10),
		}
		if err := w.Write(rec); err != nil {
			return "", fmt.Errorf("failed to write price row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush price file: %w", err)
	}

	return path, nil
}

// PurgeMarket removes every persisted price file for a market. Removing an
// absent directory is a no-op, so a full refresh is safe to re-run.
func (s *PriceStore) PurgeMarket(market string) error {
	dir := filepath.Join(s.pricesDir, market)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to purge price directory %s: %w", dir, err)
	}
	s.logger.Info("Purged persisted price history", zap.String("market", market), zap.String("dir", dir))
	return nil
}
