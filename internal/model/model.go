package model

import (
	"regexp"
	"time"
)

// DateOnly is the canonical date layout used in price files, listing
// snapshots and provider queries.
const DateOnly = "2006-01-02"

// symbolPattern matches ticker symbols made of word characters and dots.
// Anything else (spaces, dashes, unit suffixes like "ABC^") is skipped at
// enumeration time and never becomes a refresh task.
var symbolPattern = regexp.MustCompile(`^(\w|\.)+$`)

// ValidSymbol reports whether s is a refreshable ticker symbol.
func ValidSymbol(s string) bool {
	return symbolPattern.MatchString(s)
}

// Refresh run kinds
const (
	RunKindPrices   = "prices"
	RunKindListings = "listings"
)

// Refresh run triggers
const (
	RunTriggerManual    = "manual"
	RunTriggerScheduled = "scheduled"
)

// Refresh run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ListingEntry is one row of an exchange listing snapshot
type ListingEntry struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	IPOYear  string `json:"ipo_year"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
}

// ExchangeListing is one exchange's section of a listing snapshot
type ExchangeListing struct {
	Exchange string         `json:"exchange"`
	Entries  []ListingEntry `json:"entries"`
}

// DateRange is a half-open interval of trading days resolved per symbol
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PricePoint is a single daily OHLCV bar
type PricePoint struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceSeries is a date-ascending sequence of daily bars for one symbol.
// It may be empty: a provider can answer successfully with no rows.
type PriceSeries []PricePoint

// RefreshOutcome is the per-symbol result of one refresh task. Exactly one
// outcome is produced per enumerated symbol per run.
type RefreshOutcome struct {
	Symbol          string `json:"symbol"`
	Exchange        string `json:"exchange"`
	HadData         bool   `json:"had_data"`
	PrimaryFailed   bool   `json:"primary_failed"`
	SecondaryFailed bool   `json:"secondary_failed"`
}

// RunSummary aggregates all outcomes of a refresh run
type RunSummary struct {
	TotalSymbols        int `json:"total_symbols"`
	SymbolsWithNoData   int `json:"symbols_with_no_data"`
	PrimaryErrorCount   int `json:"primary_error_count"`
	SecondaryErrorCount int `json:"secondary_error_count"`
}

// Add folds a single outcome into the summary counters. A symbol counts as
// no-data only when both sources failed for it.
func (s *RunSummary) Add(o RefreshOutcome) {
	s.TotalSymbols++
	if o.PrimaryFailed {
		s.PrimaryErrorCount++
	}
	if o.SecondaryFailed {
		s.SecondaryErrorCount++
	}
	if o.PrimaryFailed && o.SecondaryFailed {
		s.SymbolsWithNoData++
	}
}

// RefreshRun is a persisted record of one refresh run
type RefreshRun struct {
	ID              int64      `json:"id" db:"id"`
	Market          string     `json:"market" db:"market"`
	Kind            string     `json:"kind" db:"kind"`
	TriggeredBy     string     `json:"triggered_by" db:"triggered_by"`
	Status          string     `json:"status" db:"status"`
	TotalSymbols    int        `json:"total_symbols" db:"total_symbols"`
	NoDataSymbols   int        `json:"no_data_symbols" db:"no_data_symbols"`
	PrimaryErrors   int        `json:"primary_errors" db:"primary_errors"`
	SecondaryErrors int        `json:"secondary_errors" db:"secondary_errors"`
	Error           string     `json:"error,omitempty" db:"error"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// ListingRefreshResult reports the outcome of a listing snapshot refresh
type ListingRefreshResult struct {
	SnapshotDir        string `json:"snapshot_dir"`
	ExchangesRefreshed int    `json:"exchanges_refreshed"`
	ExchangesFailed    int    `json:"exchanges_failed"`
	SymbolsListed      int    `json:"symbols_listed"`
}

// RunCompletedEvent is published to the event stream when a refresh run
// finishes, so downstream consumers can react without polling the run API.
type RunCompletedEvent struct {
	RunID       int64      `json:"run_id"`
	Market      string     `json:"market"`
	Kind        string     `json:"kind"`
	TriggeredBy string     `json:"triggered_by"`
	Summary     RunSummary `json:"summary"`
	DurationMS  int64      `json:"duration_ms"`
	FinishedAt  time.Time  `json:"finished_at"`
}

// RefreshPricesRequest is the body of a manual price refresh trigger. An
// empty symbol list requests a full refresh of the whole catalog.
type RefreshPricesRequest struct {
	Symbols []string `json:"symbols" binding:"omitempty,dive,symbol"`
	Async   bool     `json:"async"`
}
