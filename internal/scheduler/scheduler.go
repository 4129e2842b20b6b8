package scheduler

import (
	"context"
	"time"

	"github.com/yourorg/market-refresh/internal/model"
	"github.com/yourorg/market-refresh/internal/service"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Scheduler runs the daily refresh cycle: an optional listing refresh
// followed by a full price refresh.
type Scheduler struct {
	cron            *gocron.Scheduler
	refreshService  *service.RefreshService
	listingService  *service.ListingService
	dailyAt         string
	refreshListings bool
	logger          *zap.Logger
}

// NewScheduler creates a scheduler that fires the daily refresh at the
// given wall-clock time (UTC, "HH:MM").
func NewScheduler(
	refreshService *service.RefreshService,
	listingService *service.ListingService,
	dailyAt string,
	refreshListings bool,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cron:            gocron.NewScheduler(time.UTC),
		refreshService:  refreshService,
		listingService:  listingService,
		dailyAt:         dailyAt,
		refreshListings: refreshListings,
		logger:          logger,
	}
}

// Start registers the daily job and starts the scheduler in the background.
func (s *Scheduler) Start() error {
	if _, err := s.cron.Every(1).Day().At(s.dailyAt).Do(s.runDaily); err != nil {
		return err
	}
	s.cron.StartAsync()
	s.logger.Info("Scheduler started",
		zap.String("daily_at", s.dailyAt),
		zap.Bool("refresh_listings", s.refreshListings))
	return nil
}

// Stop stops the scheduler. Jobs already running are not interrupted.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) runDaily() {
	ctx := context.Background()

	if s.refreshListings {
		if _, err := s.listingService.RefreshListings(ctx, model.RunTriggerScheduled); err != nil {
			// A stale snapshot still feeds the price refresh, keep going.
			s.logger.Error("Scheduled listing refresh failed", zap.Error(err))
		}
	}

	if _, err := s.refreshService.RefreshPrices(ctx, nil, model.RunTriggerScheduled); err != nil {
		s.logger.Error("Scheduled price refresh failed", zap.Error(err))
	}
}
