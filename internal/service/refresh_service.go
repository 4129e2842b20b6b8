package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/market-refresh/internal/model"
	"github.com/yourorg/market-refresh/internal/repository"

	"go.uber.org/zap"
)

// ErrRunInProgress is returned when a refresh is requested while another
// run holds the guard.
var ErrRunInProgress = errors.New("a refresh run is already in progress")

// RunLedger records run lifecycle in durable storage. Implemented by
// repository.RunRepository.
type RunLedger interface {
	StartRun(ctx context.Context, market, kind, triggeredBy string) (int64, error)
	CompleteRun(ctx context.Context, id int64, summary model.RunSummary) error
	FailRun(ctx context.Context, id int64, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]model.RefreshRun, error)
	LatestRun(ctx context.Context) (*model.RefreshRun, error)
}

// EventPublisher announces finished runs to the event stream. A nil
// publisher disables events.
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, event model.RunCompletedEvent) error
}

// RefreshService coordinates a price refresh run: it enumerates the symbol
// catalog from the latest listing snapshot, fans the per-symbol work out to
// a bounded worker pool and folds the outcomes into a run summary. At most
// one run is in flight at a time.
type RefreshService struct {
	market       string
	historyStart time.Time
	concurrency  int

	primary   QuoteSource
	secondary QuoteSource
	listings  *repository.ListingStore
	prices    *repository.PriceStore
	runs      RunLedger
	events    EventPublisher
	logger    *zap.Logger

	mu         sync.Mutex
	refreshing bool
}

// NewRefreshService creates a refresh coordinator. historyStart is the
// fallback start date for symbols whose listing carries no usable IPO year.
func NewRefreshService(
	market string,
	historyStart time.Time,
	concurrency int,
	primary, secondary QuoteSource,
	listings *repository.ListingStore,
	prices *repository.PriceStore,
	runs RunLedger,
	events EventPublisher,
	logger *zap.Logger,
) *RefreshService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RefreshService{
		market:       market,
		historyStart: historyStart,
		concurrency:  concurrency,
		primary:      primary,
		secondary:    secondary,
		listings:     listings,
		prices:       prices,
		runs:         runs,
		events:       events,
		logger:       logger,
	}
}

// IsRefreshing reports whether a run currently holds the guard.
func (s *RefreshService) IsRefreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshing
}

// RefreshPrices runs one price refresh to completion. An empty symbolFilter
// refreshes the whole catalog and purges the market's price directory
// first; a non-empty filter touches only the named symbols. Returns
// ErrRunInProgress when another run is active.
func (s *RefreshService) RefreshPrices(ctx context.Context, symbolFilter []string, triggeredBy string) (*model.RunSummary, error) {
	if !s.beginRun() {
		return nil, ErrRunInProgress
	}
	defer s.endRun()
	return s.run(ctx, symbolFilter, triggeredBy)
}

// RefreshPricesAsync starts a refresh run in the background. It fails fast
// with ErrRunInProgress when the guard is held; the run itself is detached
// from the caller's context and its result lands in the run ledger.
func (s *RefreshService) RefreshPricesAsync(symbolFilter []string, triggeredBy string) error {
	if !s.beginRun() {
		return ErrRunInProgress
	}
	go func() {
		defer s.endRun()
		if _, err := s.run(context.Background(), symbolFilter, triggeredBy); err != nil {
			s.logger.Error("Background refresh run failed", zap.Error(err))
		}
	}()
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *RefreshService) ListRuns(ctx context.Context, limit int) ([]model.RefreshRun, error) {
	return s.runs.ListRuns(ctx, limit)
}

// LatestRun returns the most recently started run, or nil when the ledger
// is empty.
func (s *RefreshService) LatestRun(ctx context.Context) (*model.RefreshRun, error) {
	return s.runs.LatestRun(ctx)
}

func (s *RefreshService) beginRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshing {
		return false
	}
	s.refreshing = true
	return true
}

func (s *RefreshService) endRun() {
	s.mu.Lock()
	s.refreshing = false
	s.mu.Unlock()
}

func (s *RefreshService) run(ctx context.Context, symbolFilter []string, triggeredBy string) (*model.RunSummary, error) {
	started := time.Now()

	runID, err := s.runs.StartRun(ctx, s.market, model.RunKindPrices, triggeredBy)
	if err != nil {
		s.logger.Warn("Run ledger unavailable, proceeding without run record", zap.Error(err))
		runID = 0
	}

	s.logger.Info("Starting price refresh run",
		zap.Int64("run_id", runID),
		zap.String("market", s.market),
		zap.String("triggered_by", triggeredBy),
		zap.Int("symbol_filter", len(symbolFilter)),
		zap.Int("concurrency", s.concurrency))

	summary, err := s.refreshAll(ctx, symbolFilter)
	if err != nil {
		s.logger.Error("Price refresh run failed", zap.Int64("run_id", runID), zap.Error(err))
		if runID != 0 {
			if ferr := s.runs.FailRun(ctx, runID, err.Error()); ferr != nil {
				s.logger.Warn("Failed to record failed run", zap.Int64("run_id", runID), zap.Error(ferr))
			}
		}
		return nil, err
	}

	duration := time.Since(started)
	s.logger.Info("Price refresh run completed",
		zap.Int64("run_id", runID),
		zap.Int("total_symbols", summary.TotalSymbols),
		zap.Int("symbols_with_no_data", summary.SymbolsWithNoData),
		zap.Int("primary_errors", summary.PrimaryErrorCount),
		zap.Int("secondary_errors", summary.SecondaryErrorCount),
		zap.Duration("duration", duration))

	if runID != 0 {
		if err := s.runs.CompleteRun(ctx, runID, *summary); err != nil {
			s.logger.Warn("Failed to record completed run", zap.Int64("run_id", runID), zap.Error(err))
		}
	}
	s.publishCompleted(ctx, runID, model.RunKindPrices, triggeredBy, *summary, duration)

	return summary, nil
}

func (s *RefreshService) publishCompleted(ctx context.Context, runID int64, kind, triggeredBy string, summary model.RunSummary, duration time.Duration) {
	if s.events == nil {
		return
	}
	event := model.RunCompletedEvent{
		RunID:       runID,
		Market:      s.market,
		Kind:        kind,
		TriggeredBy: triggeredBy,
		Summary:     summary,
		DurationMS:  duration.Milliseconds(),
		FinishedAt:  time.Now().UTC(),
	}
	if err := s.events.PublishRunCompleted(ctx, event); err != nil {
		s.logger.Warn("Failed to publish run completed event", zap.Int64("run_id", runID), zap.Error(err))
	}
}

// refreshAll walks the catalog snapshot and refreshes every matching
// symbol through the worker pool. Outcomes are collected in submission
// order; no per-symbol failure aborts the run.
func (s *RefreshService) refreshAll(ctx context.Context, symbolFilter []string) (*model.RunSummary, error) {
	if len(symbolFilter) == 0 {
		if err := s.prices.PurgeMarket(s.market); err != nil {
			return nil, err
		}
	}

	snapshotDir, err := s.listings.LatestSnapshotDir()
	if err != nil {
		return nil, err
	}
	catalog, err := s.listings.ReadSnapshot(snapshotDir)
	if err != nil {
		return nil, err
	}

	filter := make(map[string]struct{}, len(symbolFilter))
	for _, sym := range symbolFilter {
		filter[sym] = struct{}{}
	}

	type job struct {
		exchange string
		entry    model.ListingEntry
	}
	var jobs []job
	for _, section := range catalog {
		for _, entry := range section.Entries {
			if !model.ValidSymbol(entry.Symbol) {
				s.logger.Debug("Skipping invalid symbol",
					zap.String("symbol", entry.Symbol),
					zap.String("exchange", section.Exchange))
				continue
			}
			if len(filter) > 0 {
				if _, ok := filter[entry.Symbol]; !ok {
					continue
				}
			}
			jobs = append(jobs, job{exchange: section.Exchange, entry: entry})
		}
	}

	pool := newWorkerPool(s.concurrency, len(jobs))
	futures := make([]<-chan model.RefreshOutcome, 0, len(jobs))
	for _, j := range jobs {
		j := j
		futures = append(futures, pool.submit(func() model.RefreshOutcome {
			return s.refreshSymbol(ctx, j.exchange, j.entry)
		}))
	}

	summary := &model.RunSummary{}
	for _, future := range futures {
		summary.Add(<-future)
	}
	pool.close()

	return summary, nil
}

// refreshSymbol fetches and persists one symbol's daily history. The
// primary source is tried first; on error or an empty answer the secondary
// takes over. Never panics or returns an error: every path produces an
// outcome.
func (s *RefreshService) refreshSymbol(ctx context.Context, exchange string, entry model.ListingEntry) model.RefreshOutcome {
	outcome := model.RefreshOutcome{Symbol: entry.Symbol, Exchange: exchange}

	start := s.resolveStartDate(entry.IPOYear)
	end := time.Now().UTC().Truncate(24 * time.Hour)

	// The primary provider treats the end bound as exclusive, so it is
	// queried one day past the target to include the run day's bar. The
	// secondary treats it as inclusive and gets the date as-is.
	series, err := s.primary.Fetch(ctx, entry.Symbol, exchange, start, end.AddDate(0, 0, 1))
	if err != nil || len(series) == 0 {
		if err != nil {
			s.logger.Warn("Primary source failed",
				zap.String("symbol", entry.Symbol),
				zap.String("exchange", exchange),
				zap.Error(err))
		}
		outcome.PrimaryFailed = true

		series, err = s.secondary.Fetch(ctx, entry.Symbol, exchange, start, end)
		if err != nil || len(series) == 0 {
			if err != nil {
				s.logger.Warn("Secondary source failed",
					zap.String("symbol", entry.Symbol),
					zap.String("exchange", exchange),
					zap.Error(err))
			}
			outcome.SecondaryFailed = true
		}
	}

	if len(series) == 0 {
		s.logger.Warn("No price data from any source",
			zap.String("symbol", entry.Symbol),
			zap.String("exchange", exchange))
		return outcome
	}

	outcome.HadData = true
	path, err := s.prices.WriteSeries(s.market, entry.Symbol, start.Year(), exchange, series)
	if err != nil {
		s.logger.Error("Failed to persist price series",
			zap.String("symbol", entry.Symbol),
			zap.String("exchange", exchange),
			zap.Error(err))
		return outcome
	}

	s.logger.Info("Refreshed price history",
		zap.String("symbol", entry.Symbol),
		zap.String("exchange", exchange),
		zap.String("from", series[0].Date.Format(model.DateOnly)),
		zap.String("to", series[len(series)-1].Date.Format(model.DateOnly)),
		zap.Int("rows", len(series)),
		zap.String("path", path))
	return outcome
}

// resolveStartDate turns a listing's IPO year hint into the series start
// date. A 4-digit year becomes January 1st of that year; a full date is
// used as-is; anything unusable falls back to the configured history start.
func (s *RefreshService) resolveStartDate(hint string) time.Time {
	h := strings.TrimSpace(hint)
	if h == "" || strings.EqualFold(h, "n/a") {
		return s.historyStart
	}
	if year, err := strconv.Atoi(h); err == nil {
		if len(h) == 4 {
			return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
		return s.historyStart
	}
	if d, err := time.Parse(model.DateOnly, h); err == nil {
		return d
	}
	return s.historyStart
}
