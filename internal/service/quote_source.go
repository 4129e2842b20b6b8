package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yourorg/market-refresh/internal/model"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// QuoteClient is the transport contract a quote provider client satisfies.
type QuoteClient interface {
	GetDailyHistory(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error)
}

// QuoteSource is one upstream data source as the refresh pipeline sees it:
// a named provider whose Fetch has the retry policy already applied. A
// non-nil error means the source is unavailable for that symbol; a nil
// error with an empty series means the provider answered with no rows.
type QuoteSource interface {
	Name() string
	Fetch(ctx context.Context, symbol, exchange string, start, end time.Time) (model.PriceSeries, error)
}

// RetrySource wraps a provider client with bounded retry. Each failed
// attempt is logged with symbol and exchange context; once the attempt
// budget is spent the last error is returned so the caller can fall back.
type RetrySource struct {
	name          string
	client        QuoteClient
	retryCount    int
	retryInterval time.Duration
	logger        *zap.Logger
}

// NewRetrySource creates a retrying quote source over a provider client.
// retryCount is the total attempt budget, not the number of retries.
func NewRetrySource(name string, client QuoteClient, retryCount int, retryInterval time.Duration, logger *zap.Logger) *RetrySource {
	return &RetrySource{
		name:          name,
		client:        client,
		retryCount:    retryCount,
		retryInterval: retryInterval,
		logger:        logger,
	}
}

// Name identifies the source in logs and outcomes
func (s *RetrySource) Name() string {
	return s.name
}

// Fetch retrieves the daily series for a symbol, retrying transient
// failures up to the attempt budget. The returned series is normalized:
// date-ascending with the symbol stamped on every row.
func (s *RetrySource) Fetch(ctx context.Context, symbol, exchange string, start, end time.Time) (model.PriceSeries, error) {
	var series model.PriceSeries

	operation := func() error {
		var err error
		series, err = s.client.GetDailyHistory(ctx, symbol, start, end)
		return err
	}

	notify := func(err error, wait time.Duration) {
		s.logger.Warn("Quote fetch attempt failed",
			zap.String("source", s.name),
			zap.String("symbol", symbol),
			zap.String("exchange", exchange),
			zap.Duration("retry_in", wait),
			zap.Error(err))
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retryInterval
	// The attempt budget is the only bound; never give up on elapsed time.
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.retryCount-1)), ctx)

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, fmt.Errorf("source %s unavailable for %s after %d attempts: %w", s.name, symbol, s.retryCount, err)
	}

	for i := range series {
		series[i].Symbol = symbol
	}
	return series, nil
}
