package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yourorg/market-refresh/internal/model"
	"github.com/yourorg/market-refresh/internal/repository"

	"go.uber.org/zap"
)

// CatalogSource fetches the raw listing directory for one exchange.
// Implemented by client.CatalogClient.
type CatalogSource interface {
	GetListings(ctx context.Context, exchange string) ([]model.ListingEntry, error)
}

// ListingService refreshes the symbol catalog: it pulls the listing
// directory for every configured exchange and writes a dated snapshot the
// price refresh enumerates from.
type ListingService struct {
	market    string
	exchanges []string
	catalog   CatalogSource
	store     *repository.ListingStore
	runs      RunLedger
	events    EventPublisher
	logger    *zap.Logger
}

// NewListingService creates a listing refresh service for the given
// exchanges.
func NewListingService(
	market string,
	exchanges []string,
	catalog CatalogSource,
	store *repository.ListingStore,
	runs RunLedger,
	events EventPublisher,
	logger *zap.Logger,
) *ListingService {
	return &ListingService{
		market:    market,
		exchanges: exchanges,
		catalog:   catalog,
		store:     store,
		runs:      runs,
		events:    events,
		logger:    logger,
	}
}

// RefreshListings pulls listings for every configured exchange into a
// snapshot dated today. A failing exchange is logged and skipped; the
// refresh fails only when no exchange could be fetched at all.
func (s *ListingService) RefreshListings(ctx context.Context, triggeredBy string) (*model.ListingRefreshResult, error) {
	started := time.Now()

	runID, err := s.runs.StartRun(ctx, s.market, model.RunKindListings, triggeredBy)
	if err != nil {
		s.logger.Warn("Run ledger unavailable, proceeding without run record", zap.Error(err))
		runID = 0
	}

	date := time.Now().UTC()
	result := &model.ListingRefreshResult{SnapshotDir: s.store.SnapshotDir(date)}

	for _, exchange := range s.exchanges {
		entries, err := s.catalog.GetListings(ctx, exchange)
		if err != nil {
			s.logger.Error("Failed to fetch exchange listings",
				zap.String("exchange", exchange),
				zap.Error(err))
			result.ExchangesFailed++
			continue
		}

		path, err := s.store.WriteSection(date, exchange, entries)
		if err != nil {
			s.logger.Error("Failed to write listing section",
				zap.String("exchange", exchange),
				zap.Error(err))
			result.ExchangesFailed++
			continue
		}

		s.logger.Info("Saved exchange listings",
			zap.String("exchange", exchange),
			zap.Int("symbols", len(entries)),
			zap.String("path", path))
		result.ExchangesRefreshed++
		result.SymbolsListed += len(entries)
	}

	if result.ExchangesRefreshed == 0 {
		err := fmt.Errorf("no exchange listings could be fetched (%d exchanges failed)", result.ExchangesFailed)
		s.logger.Error("Listing refresh failed", zap.Int64("run_id", runID), zap.Error(err))
		if runID != 0 {
			if ferr := s.runs.FailRun(ctx, runID, err.Error()); ferr != nil {
				s.logger.Warn("Failed to record failed run", zap.Int64("run_id", runID), zap.Error(ferr))
			}
		}
		return result, err
	}

	duration := time.Since(started)
	summary := model.RunSummary{TotalSymbols: result.SymbolsListed}
	s.logger.Info("Listing refresh completed",
		zap.Int64("run_id", runID),
		zap.String("snapshot_dir", result.SnapshotDir),
		zap.Int("exchanges_refreshed", result.ExchangesRefreshed),
		zap.Int("exchanges_failed", result.ExchangesFailed),
		zap.Int("symbols_listed", result.SymbolsListed),
		zap.Duration("duration", duration))

	if runID != 0 {
		if err := s.runs.CompleteRun(ctx, runID, summary); err != nil {
			s.logger.Warn("Failed to record completed run", zap.Int64("run_id", runID), zap.Error(err))
		}
	}

	if s.events != nil {
		event := model.RunCompletedEvent{
			RunID:       runID,
			Market:      s.market,
			Kind:        model.RunKindListings,
			TriggeredBy: triggeredBy,
			Summary:     summary,
			DurationMS:  duration.Milliseconds(),
			FinishedAt:  time.Now().UTC(),
		}
		if err := s.events.PublishRunCompleted(ctx, event); err != nil {
			s.logger.Warn("Failed to publish run completed event", zap.Int64("run_id", runID), zap.Error(err))
		}
	}

	return result, nil
}
