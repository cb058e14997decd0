package poolapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const poolResponse = `{
  "id": "req-1",
  "success": true,
  "data": [{
    "id": "pool-1",
    "mintA": {"address": "mint-a", "symbol": "SOL", "decimals": 9},
    "mintB": {"address": "mint-b", "symbol": "USDC", "decimals": 6},
    "price": 150.5,
    "feeRate": 0.0025,
    "tvl": 1250000.75,
    "day": {"volume": 300000, "volumeQuote": 299000, "volumeFee": 750}
  }]
}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/pools/info/ids", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "pool-1" {
			_, _ = w.Write([]byte(`{"success": true, "data": []}`))
			return
		}
		_, _ = w.Write([]byte(poolResponse))
	})
	mux.HandleFunc("/mint/price", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("mints") == "mint-b" {
			_, _ = w.Write([]byte(`{"success": true, "data": {"mint-b": "0.9998"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success": true, "data": {}}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestPoolStats(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL+"/", 0, nil)

	stats, err := client.PoolStats(context.Background(), "pool-1")
	if err != nil {
		t.Fatalf("pool stats: %v", err)
	}
	if stats.TVLUSD != 1250000.75 || stats.DailyVolumeUSD != 300000 || stats.FeeRate != 0.0025 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.DailyFeesUSD != 750 {
		t.Fatalf("expected fees 750, got %v", stats.DailyFeesUSD)
	}
	if stats.QuotePriceUSD != 0.9998 {
		t.Fatalf("expected quote price 0.9998, got %v", stats.QuotePriceUSD)
	}
	if stats.CapturedAt.IsZero() {
		t.Fatalf("expected capture time")
	}
}

func TestPoolStatsUnknownPool(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL, 0, nil)

	_, err := client.PoolStats(context.Background(), "pool-2")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTokenPriceMissing(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(server.URL, 0, nil)

	if _, err := client.TokenPriceUSD(context.Background(), "mint-x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServerErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, nil)
	if _, err := client.PoolStats(context.Background(), "pool-1"); err == nil {
		t.Fatalf("expected error on 502")
	}
}
