package repository_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yourorg/market-refresh/internal/model"
	"github.com/yourorg/market-refresh/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestListingStore_Roundtrip(t *testing.T) {
	store := repository.NewListingStore(t.TempDir(), zap.NewNop())
	date := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	nasdaq := []model.ListingEntry{
		{Symbol: "AAPL", Name: "Apple Inc.", IPOYear: "1980", Sector: "Technology", Industry: "Consumer Electronics"},
		{Symbol: "MSFT", Name: "Microsoft", IPOYear: "1986", Sector: "Technology", Industry: "Software"},
	}
	nyse := []model.ListingEntry{
		{Symbol: "IBM", Name: "IBM", IPOYear: "n/a", Sector: "Technology", Industry: "IT Services"},
	}

	_, err := store.WriteSection(date, "nasdaq", nasdaq)
	require.NoError(t, err)
	_, err = store.WriteSection(date, "nyse", nyse)
	require.NoError(t, err)

	dir, err := store.LatestSnapshotDir()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", filepath.Base(dir))

	listings, err := store.ReadSnapshot(dir)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	// Sections come back in exchange-name order
	assert.Equal(t, "nasdaq", listings[0].Exchange)
	assert.Equal(t, "nyse", listings[1].Exchange)

	require.Len(t, listings[0].Entries, 2)
	assert.Equal(t, "AAPL", listings[0].Entries[0].Symbol)
	assert.Equal(t, "1980", listings[0].Entries[0].IPOYear)
	assert.Equal(t, "nasdaq", listings[0].Entries[0].Exchange)
	assert.Equal(t, "n/a", listings[1].Entries[0].IPOYear)
}

func TestListingStore_LatestSnapshotDirPicksNewest(t *testing.T) {
	store := repository.NewListingStore(t.TempDir(), zap.NewNop())
	entries := []model.ListingEntry{{Symbol: "AAPL", Name: "Apple Inc."}}

	_, err := store.WriteSection(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), "nasdaq", entries)
	require.NoError(t, err)
	_, err = store.WriteSection(time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), "nasdaq", entries)
	require.NoError(t, err)

	dir, err := store.LatestSnapshotDir()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-05", filepath.Base(dir))
}

func TestListingStore_LatestSnapshotDirIgnoresStrayDirs(t *testing.T) {
	root := t.TempDir()
	store := repository.NewListingStore(root, zap.NewNop())

	require.NoError(t, os.MkdirAll(filepath.Join(root, "tmp-workdir"), 0o755))
	_, err := store.LatestSnapshotDir()
	assert.ErrorIs(t, err, repository.ErrSnapshotUnavailable)

	_, err = store.WriteSection(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), "nasdaq",
		[]model.ListingEntry{{Symbol: "AAPL"}})
	require.NoError(t, err)

	dir, err := store.LatestSnapshotDir()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", filepath.Base(dir))
}

func TestListingStore_NoSnapshot(t *testing.T) {
	store := repository.NewListingStore(filepath.Join(t.TempDir(), "never-created"), zap.NewNop())

	_, err := store.LatestSnapshotDir()
	assert.ErrorIs(t, err, repository.ErrSnapshotUnavailable)

	_, err = store.ReadSnapshot(filepath.Join(t.TempDir(), "2024-01-01"))
	assert.ErrorIs(t, err, repository.ErrSnapshotUnavailable)
}

func TestListingStore_ReadSnapshotEmptyDir(t *testing.T) {
	root := t.TempDir()
	store := repository.NewListingStore(root, zap.NewNop())

	empty := filepath.Join(root, "2024-01-01")
	require.NoError(t, os.MkdirAll(empty, 0o755))

	_, err := store.ReadSnapshot(empty)
	assert.ErrorIs(t, err, repository.ErrSnapshotUnavailable)
}
