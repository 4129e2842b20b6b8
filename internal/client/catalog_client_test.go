package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yourorg/market-refresh/internal/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCatalogGetListings(t *testing.T) {
	// The endpoint's own header names, with columns the catalog ignores.
	body := `Symbol,Name,LastSale,MarketCap,IPOyear,Sector,Industry,Summary Quote
AAPL,Apple Inc.,150.0,2.4T,1980,Technology,Consumer Electronics,https://example.com/aapl
MSFT,Microsoft Corporation,300.0,2.2T,1986,Technology,Software,https://example.com/msft
`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nasdaq", r.URL.Query().Get("exchange"))
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := client.NewCatalogClient(srv.URL+"/screener?exchange=%s&render=download", 5*time.Second, zap.NewNop())
	entries, err := c.GetListings(context.Background(), "nasdaq")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "AAPL", entries[0].Symbol)
	assert.Equal(t, "Apple Inc.", entries[0].Name)
	assert.Equal(t, "nasdaq", entries[0].Exchange)
	assert.Equal(t, "1980", entries[0].IPOYear)
	assert.Equal(t, "Technology", entries[0].Sector)
	assert.Equal(t, "Software", entries[1].Industry)
}

func TestCatalogGetListings_ReorderedColumns(t *testing.T) {
	body := "Name,IPOyear,Symbol\nApple Inc.,1980,AAPL\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := client.NewCatalogClient(srv.URL+"?exchange=%s", 5*time.Second, zap.NewNop())
	entries, err := c.GetListings(context.Background(), "nasdaq")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "AAPL", entries[0].Symbol)
	assert.Equal(t, "1980", entries[0].IPOYear)
	assert.Empty(t, entries[0].Sector)
}

func TestCatalogGetListings_MissingSymbolColumn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Name,Sector\nApple Inc.,Technology\n"))
	}))
	defer srv.Close()

	c := client.NewCatalogClient(srv.URL+"?exchange=%s", 5*time.Second, zap.NewNop())
	_, err := c.GetListings(context.Background(), "nasdaq")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Symbol column")
}

func TestCatalogGetListings_SkipsEmptySymbols(t *testing.T) {
	body := "Symbol,Name\nAAPL,Apple Inc.\n,Nameless Corp\nMSFT,Microsoft\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := client.NewCatalogClient(srv.URL+"?exchange=%s", 5*time.Second, zap.NewNop())
	entries, err := c.GetListings(context.Background(), "nyse")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "AAPL", entries[0].Symbol)
	assert.Equal(t, "MSFT", entries[1].Symbol)
}

func TestCatalogGetListings_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := client.NewCatalogClient(srv.URL+"?exchange=%s", 5*time.Second, zap.NewNop())
	_, err := c.GetListings(context.Background(), "nasdaq")
	assert.Error(t, err)
}
