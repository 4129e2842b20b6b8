package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/yourorg/market-refresh/internal/model"

	"go.uber.org/zap"
)

const chartPath = "/v8/finance/chart"

// ChartQuoteClient retrieves daily OHLCV history from a chart-style JSON
// quote API (timestamps plus parallel quote arrays).
type ChartQuoteClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewChartQuoteClient creates a client for the chart-style quote provider
func NewChartQuoteClient(baseURL string, timeout time.Duration, logger *zap.Logger) *ChartQuoteClient {
	return &ChartQuoteClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// chartResponse is the provider's chart payload. OHLCV arrays run parallel
// to the timestamp array; entries are null on non-trading days.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetDailyHistory retrieves daily bars for a symbol between start and end.
// A successful response with no rows yields an empty series, not an error.
func (c *ChartQuoteClient) GetDailyHistory(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error) {
	params := url.Values{}
	params.Add("period1", strconv.FormatInt(start.Unix(), 10))
	params.Add("period2", strconv.FormatInt(end.Unix(), 10))
	params.Add("interval", "1d")
	params.Add("includeAdjustedClose", "true")

	reqURL := fmt.Sprintf("%s%s/%s?%s", c.baseURL, chartPath, url.PathEscape(symbol), params.Encode())

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
		c.logger.Debug("Chart API error response",
			zap.String("symbol", symbol),
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(bodyBytes)))
		return nil, fmt.Errorf("chart API returned status code %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("failed to decode chart response: %w", err)
	}

	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error %s: %s", chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return model.PriceSeries{}, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	// Adjusted closes replace raw closes when the provider supplies them.
	var adjClose []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjClose = result.Indicators.AdjClose[0].AdjClose
	}

	series := make(model.PriceSeries, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			c.logger.Warn("Skipping truncated chart row",
				zap.String("symbol", symbol),
				zap.Int("index", i))
			continue
		}
		// Null bars mark non-trading days.
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}

		closePrice := *quote.Close[i]
		if adjClose != nil && i < len(adjClose) && adjClose[i] != nil {
			closePrice = *adjClose[i]
		}

		var volume int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}

		series = append(series, model.PricePoint{
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   *quote.Open[i],
			High:   *quote.High[i],
			Low:    *quote.Low[i],
			Close:  closePrice,
			Volume: volume,
		})
	}

	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })

	return series, nil
}
