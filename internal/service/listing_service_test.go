package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/yourorg/market-refresh/internal/model"
	"github.com/yourorg/market-refresh/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeCatalog serves scripted listings per exchange.
type fakeCatalog struct {
	listings map[string][]model.ListingEntry
	errs     map[string]error
}

func (f *fakeCatalog) GetListings(ctx context.Context, exchange string) ([]model.ListingEntry, error) {
	if err, ok := f.errs[exchange]; ok {
		return nil, err
	}
	return f.listings[exchange], nil
}

func newListingFixture(t *testing.T, catalog *fakeCatalog, exchanges []string) (*ListingService, *repository.ListingStore, *fakeLedger) {
	t.Helper()
	store := repository.NewListingStore(filepath.Join(t.TempDir(), "listings"), zap.NewNop())
	ledger := &fakeLedger{}
	svc := NewListingService("us", exchanges, catalog, store, ledger, nil, zap.NewNop())
	return svc, store, ledger
}

func TestRefreshListings_WritesReadableSnapshot(t *testing.T) {
	catalog := &fakeCatalog{listings: map[string][]model.ListingEntry{
		"nasdaq": {
			{Symbol: "AAPL", Name: "Apple Inc.", IPOYear: "1980"},
			{Symbol: "MSFT", Name: "Microsoft", IPOYear: "1986"},
		},
		"nyse": {
			{Symbol: "IBM", Name: "IBM", IPOYear: "n/a"},
		},
	}}
	svc, store, ledger := newListingFixture(t, catalog, []string{"nasdaq", "nyse"})

	result, err := svc.RefreshListings(context.Background(), model.RunTriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 2, result.ExchangesRefreshed)
	assert.Equal(t, 0, result.ExchangesFailed)
	assert.Equal(t, 3, result.SymbolsListed)

	// The snapshot the refresh wrote is what the price refresh enumerates.
	dir, err := store.LatestSnapshotDir()
	require.NoError(t, err)
	listings, err := store.ReadSnapshot(dir)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "AAPL", listings[0].Entries[0].Symbol)
	assert.Equal(t, "n/a", listings[1].Entries[0].IPOYear)

	assert.Equal(t, 1, ledger.completedCount())
}

func TestRefreshListings_SkipsFailingExchange(t *testing.T) {
	catalog := &fakeCatalog{
		listings: map[string][]model.ListingEntry{
			"nasdaq": {{Symbol: "AAPL", Name: "Apple Inc."}},
		},
		errs: map[string]error{"nyse": errors.New("endpoint gone")},
	}
	svc, store, _ := newListingFixture(t, catalog, []string{"nasdaq", "nyse"})

	result, err := svc.RefreshListings(context.Background(), model.RunTriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ExchangesRefreshed)
	assert.Equal(t, 1, result.ExchangesFailed)

	dir, err := store.LatestSnapshotDir()
	require.NoError(t, err)
	listings, err := store.ReadSnapshot(dir)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "nasdaq", listings[0].Exchange)
}

func TestRefreshListings_AllExchangesFailing(t *testing.T) {
	catalog := &fakeCatalog{errs: map[string]error{
		"nasdaq": errors.New("endpoint gone"),
		"nyse":   errors.New("endpoint gone"),
	}}
	svc, _, ledger := newListingFixture(t, catalog, []string{"nasdaq", "nyse"})

	result, err := svc.RefreshListings(context.Background(), model.RunTriggerManual)
	assert.Error(t, err)
	assert.Equal(t, 0, result.ExchangesRefreshed)
	assert.Equal(t, 2, result.ExchangesFailed)

	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	assert.Len(t, ledger.failed, 1)
	assert.Empty(t, ledger.completed)
}
