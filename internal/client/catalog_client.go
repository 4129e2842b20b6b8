package client

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yourorg/market-refresh/internal/model"

	"go.uber.org/zap"
)

// catalogColumns maps the catalog endpoint's column headers to canonical
// listing fields. Applied once, here, when a response is parsed.
var catalogColumns = map[string]string{
	"symbol":   "Symbol",
	"name":     "Name",
	"ipoyear":  "IPO",
	"sector":   "Sector",
	"industry": "Industry",
}

// CatalogClient downloads the exchange-provided listing catalog. The URL
// template carries one %s verb interpolated with the exchange name.
type CatalogClient struct {
	urlTemplate string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewCatalogClient creates a client for the listing catalog endpoint
func NewCatalogClient(urlTemplate string, timeout time.Duration, logger *zap.Logger) *CatalogClient {
	return &CatalogClient{
		urlTemplate: urlTemplate,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// GetListings downloads and parses the catalog CSV for one exchange.
func (c *CatalogClient) GetListings(ctx context.Context, exchange string) ([]model.ListingEntry, error) {
	reqURL := fmt.Sprintf(c.urlTemplate, exchange)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog for %s: %w", exchange, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Error("Catalog endpoint error response",
			zap.String("exchange", exchange),
			zap.Int("statusCode", resp.StatusCode),
			zap.String("response", string(bodyBytes)))
		return nil, fmt.Errorf("catalog endpoint returned status code %d for %s", resp.StatusCode, exchange)
	}

	return c.parseCatalogCSV(exchange, resp.Body)
}

// parseCatalogCSV maps the response columns by header name. Only the Symbol
// column is mandatory; the rest default to empty when the endpoint omits
// them. Rows shorter than the symbol column are skipped with a warning.
func (c *CatalogClient) parseCatalogCSV(exchange string, r io.Reader) ([]model.ListingEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog CSV for %s: %w", exchange, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("catalog response for %s is empty", exchange)
	}

	// Resolve canonical field positions from the header row.
	columns := make(map[string]int)
	for i, header := range records[0] {
		key := strings.ToLower(strings.TrimSpace(header))
		if canonical, ok := catalogColumns[key]; ok {
			columns[canonical] = i
		}
	}
	symbolCol, ok := columns["Symbol"]
	if !ok {
		return nil, fmt.Errorf("catalog response for %s has no Symbol column", exchange)
	}

	field := func(rec []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[idx])
	}

	entries := make([]model.ListingEntry, 0, len(records)-1)
	for i, rec := range records[1:] {
		if symbolCol >= len(rec) {
			c.logger.Warn("Skipping short catalog row",
				zap.String("exchange", exchange),
				zap.Int("row", i+1))
			continue
		}
		symbol := strings.TrimSpace(rec[symbolCol])
		if symbol == "" {
			continue
		}

		entries = append(entries, model.ListingEntry{
			Symbol:   symbol,
			Name:     field(rec, "Name"),
			Exchange: exchange,
			IPOYear:  field(rec, "IPO"),
			Sector:   field(rec, "Sector"),
			Industry: field(rec, "Industry"),
		})
	}

	return entries, nil
}
