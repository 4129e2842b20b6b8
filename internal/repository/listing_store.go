package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yourorg/market-refresh/internal/model"

	"go.uber.org/zap"
)

// ErrSnapshotUnavailable is returned when no listing snapshot exists. A
// refresh run cannot enumerate symbols without one, so callers treat it as
// fatal for the run.
var ErrSnapshotUnavailable = errors.New("listing snapshot unavailable")

// listingHeader is the canonical column order of snapshot sections.
var listingHeader = []string{"Symbol", "Name", "IPO", "Sector", "Industry"}

// ListingStore persists listing snapshots as dated directories under
// listingsDir, one CSV section per exchange:
//
//	<listingsDir>/<yyyy-mm-dd>/<exchange>.csv
type ListingStore struct {
	listingsDir string
	logger      *zap.Logger
}

// NewListingStore creates a listing store rooted at listingsDir
func NewListingStore(listingsDir string, logger *zap.Logger) *ListingStore {
	return &ListingStore{
		listingsDir: listingsDir,
		logger:      logger,
	}
}

// SnapshotDir returns the directory for a snapshot taken on the given day.
func (s *ListingStore) SnapshotDir(date time.Time) string {
	return filepath.Join(s.listingsDir, date.Format(model.DateOnly))
}

// WriteSection writes one exchange's listings into the dated snapshot.
func (s *ListingStore) WriteSection(date time.Time, exchange string, entries []model.ListingEntry) (string, error) {
	dir := s.SnapshotDir(date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	path := filepath.Join(dir, exchange+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot section: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(listingHeader); err != nil {
		return "", fmt.Errorf("failed to write snapshot header: %w", err)
	}
	for _, e := range entries {
		if err := w.Write([]string{e.Symbol, e.Name, e.IPOYear, e.Sector, e.Industry}); err != nil {
			return "", fmt.Errorf("failed to write snapshot row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush snapshot section: %w", err)
	}

	return path, nil
}

// LatestSnapshotDir resolves the most recent dated snapshot directory.
// Returns ErrSnapshotUnavailable when none exists.
func (s *ListingStore) LatestSnapshotDir() (string, error) {
	dirEntries, err := os.ReadDir(s.listingsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrSnapshotUnavailable
		}
		return "", fmt.Errorf("failed to scan listings directory: %w", err)
	}

	latest := ""
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		if _, err := time.Parse(model.DateOnly, de.Name()); err != nil {
			continue
		}
		if de.Name() > latest {
			latest = de.Name()
		}
	}
	if latest == "" {
		return "", ErrSnapshotUnavailable
	}

	return filepath.Join(s.listingsDir, latest), nil
}

// ReadSnapshot loads every exchange section of a snapshot directory, in
// exchange-name order. Returns ErrSnapshotUnavailable when the directory
// does not exist or holds no sections.
func (s *ListingStore) ReadSnapshot(dir string) ([]model.ExchangeListing, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotUnavailable
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	names := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".csv") {
			continue
		}
		names = append(names, de.Name())
	}
	if len(names) == 0 {
		return nil, ErrSnapshotUnavailable
	}
	sort.Strings(names)

	listings := make([]model.ExchangeListing, 0, len(names))
	for _, name := range names {
		exchange := strings.TrimSuffix(name, ".csv")
		entries, err := s.readSection(filepath.Join(dir, name), exchange)
		if err != nil {
			return nil, err
		}
		listings = append(listings, model.ExchangeListing{Exchange: exchange, Entries: entries})
	}

	return listings, nil
}

func (s *ListingStore) readSection(path, exchange string) ([]model.ListingEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot section: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot section %s: %w", path, err)
	}

	entries := make([]model.ListingEntry, 0, len(records))
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && strings.EqualFold(rec[0], "Symbol") {
			continue
		}
		if len(rec) < 1 || strings.TrimSpace(rec[0]) == "" {
			continue
		}

		e := model.ListingEntry{Symbol: strings.TrimSpace(rec[0]), Exchange: exchange}
		if len(rec) > 1 {
			e.Name = rec[1]
		}
		if len(rec) > 2 {
			e.IPOYear = strings.TrimSpace(rec[2])
		}
		if len(rec) > 3 {
			e.Sector = rec[3]
		}
		if len(rec) > 4 {
			e.Industry = rec[4]
		}
		entries = append(entries, e)
	}

	return entries, nil
}
