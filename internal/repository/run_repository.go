package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/yourorg/market-refresh/internal/model"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// migrations are applied in order at startup; all statements are
// re-runnable.
var migrations = []string{
	`PRAGMA journal_mode=WAL`,
	`CREATE TABLE IF NOT EXISTS refresh_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		market TEXT NOT NULL,
		kind TEXT NOT NULL,
		triggered_by TEXT NOT NULL,
		status TEXT NOT NULL,
		total_symbols INTEGER NOT NULL DEFAULT 0,
		no_data_symbols INTEGER NOT NULL DEFAULT 0,
		primary_errors INTEGER NOT NULL DEFAULT 0,
		secondary_errors INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_runs_started_at ON refresh_runs(started_at)`,
}

// RunRepository persists the refresh run ledger
type RunRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB, logger *zap.Logger) *RunRepository {
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the run ledger schema if it does not exist
func (r *RunRepository) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			r.logger.Error("Failed to apply run ledger migration",
				zap.Error(err),
				zap.String("statement", stmt))
			return err
		}
	}
	return nil
}

// StartRun inserts a new run in the running state and returns its ID
func (r *RunRepository) StartRun(ctx context.Context, market, kind, triggeredBy string) (int64, error) {
	query := `INSERT INTO refresh_runs (market, kind, triggered_by, status, started_at)
		VALUES (?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query, market, kind, triggeredBy, model.RunStatusRunning, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to insert refresh run",
			zap.Error(err),
			zap.String("market", market),
			zap.String("kind", kind))
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CompleteRun marks a run completed and stores its summary counters
func (r *RunRepository) CompleteRun(ctx context.Context, id int64, summary model.RunSummary) error {
	query := `UPDATE refresh_runs
		SET status = ?, total_symbols = ?, no_data_symbols = ?, primary_errors = ?, secondary_errors = ?, finished_at = ?
		WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query,
		model.RunStatusCompleted,
		summary.TotalSymbols,
		summary.SymbolsWithNoData,
		summary.PrimaryErrorCount,
		summary.SecondaryErrorCount,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		r.logger.Error("Failed to complete refresh run",
			zap.Error(err),
			zap.Int64("runID", id))
		return err
	}
	return nil
}

// FailRun marks a run failed with the error text
func (r *RunRepository) FailRun(ctx context.Context, id int64, errMsg string) error {
	query := `UPDATE refresh_runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, model.RunStatusFailed, errMsg, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark refresh run failed",
			zap.Error(err),
			zap.Int64("runID", id))
		return err
	}
	return nil
}

// ListRuns returns the most recent runs, newest first
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]model.RefreshRun, error) {
	query := `SELECT * FROM refresh_runs ORDER BY started_at DESC, id DESC LIMIT ?`

	runs := []model.RefreshRun{}
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		r.logger.Error("Failed to list refresh runs", zap.Error(err))
		return nil, err
	}
	return runs, nil
}

// LatestRun returns the most recent run, or nil when the ledger is empty
func (r *RunRepository) LatestRun(ctx context.Context) (*model.RefreshRun, error) {
	query := `SELECT * FROM refresh_runs ORDER BY started_at DESC, id DESC LIMIT 1`

	var run model.RefreshRun
	err := r.db.GetContext(ctx, &run, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get latest refresh run", zap.Error(err))
		return nil, err
	}
	return &run, nil
}
