package client

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/market-refresh/internal/model"

	"go.uber.org/zap"
)

const dailyCSVPath = "/q/d/l/"

// CSVQuoteClient retrieves daily OHLCV history from a provider that serves
// it as a downloadable CSV. Symbols are mapped to the provider's ticker
// form by lowercasing and appending the market suffix.
type CSVQuoteClient struct {
	baseURL      string
	marketSuffix string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewCSVQuoteClient creates a client for the CSV download quote provider
func NewCSVQuoteClient(baseURL, marketSuffix string, timeout time.Duration, logger *zap.Logger) *CSVQuoteClient {
	return &CSVQuoteClient{
		baseURL:      baseURL,
		marketSuffix: marketSuffix,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *CSVQuoteClient) providerSymbol(symbol string) string {
	if c.marketSuffix == "" {
		return strings.ToLower(symbol)
	}
	return strings.ToLower(symbol) + "." + c.marketSuffix
}

// GetDailyHistory retrieves daily bars for a symbol between start and end,
// both inclusive.
func (c *CSVQuoteClient) GetDailyHistory(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error) {
	params := url.Values{}
	params.Add("s", c.providerSymbol(symbol))
	params.Add("d1", start.Format("20060102"))
	params.Add("d2", end.Format("20060102"))
	params.Add("i", "d")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, dailyCSVPath, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Debug("CSV provider error response",
			zap.String("symbol", symbol),
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(bodyBytes)))
		return nil, fmt.Errorf("CSV provider returned status code %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return c.parseDailyCSV(symbol, resp.Body)
}

// parseDailyCSV reads rows of Date,Open,High,Low,Close,Volume. Malformed
// rows are skipped with a warning; a header-only or "no data" body yields
// an empty series.
func (c *CSVQuoteClient) parseDailyCSV(symbol string, r io.Reader) (model.PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV response: %w", err)
	}
	if len(records) == 0 {
		return model.PriceSeries{}, nil
	}

	// Some providers answer a bare "No data" line instead of a CSV table.
	if len(records[0]) < 5 {
		return model.PriceSeries{}, nil
	}

	series := make(model.PriceSeries, 0, len(records))
	for i, rec := range records {
		if i == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "Date") {
			continue
		}
		if len(rec) < 5 {
			c.logger.Warn("Skipping malformed CSV row",
				zap.String("symbol", symbol),
				zap.Int("row", i),
				zap.Strings("fields", rec))
			continue
		}

		date, err := time.Parse(model.DateOnly, strings.TrimSpace(rec[0]))
		if err != nil {
			c.logger.Warn("Skipping CSV row with bad date",
				zap.String("symbol", symbol),
				zap.Int("row", i),
				zap.String("date", rec[0]))
			continue
		}

		open, err1 := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		high, err2 := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		low, err3 := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		closePrice, err4 := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			c.logger.Warn("Skipping CSV row with bad prices",
				zap.String("symbol", symbol),
				zap.Int("row", i))
			continue
		}

		// Volume is absent for some instruments.
		var volume int64
		if len(rec) > 5 {
			volume, _ = strconv.ParseInt(strings.TrimSpace(rec[5]), 10, 64)
		}

		series = append(series, model.PricePoint{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: volume,
		})
	}

	return series, nil
}
