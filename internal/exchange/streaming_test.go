package exchange

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func newStreamingTestClient(t *testing.T, restCalls *atomic.Int64) *StreamingClient {
	t.Helper()
	rc, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ticker":
			restCalls.Add(1)
			w.Write([]byte(`{"symbol": "BTC/USDT", "bid": 100, "ask": 101, "timestamp": 1700000000000}`))
		case "/tickers":
			restCalls.Add(1)
			w.Write([]byte(`[
				{"symbol": "BTC/USDT", "bid": 100, "ask": 101, "timestamp": 1700000000000},
				{"symbol": "ETH/USDT", "bid": 10, "ask": 11, "timestamp": 1700000000000}
			]`))
		default:
			http.NotFound(w, r)
		}
	}))

	// Поток не стартует: кадры подаются напрямую через absorb
	return NewStreamingClient(rc, "wss://gateway.internal/testex/stream", testLogger(t))
}

func TestStreamingClientPrefersFreshQuote(t *testing.T) {
	var restCalls atomic.Int64
	client := newStreamingTestClient(t, &restCalls)

	client.absorb(&Ticker{Symbol: "BTC/USDT", Bid: 200, Ask: 201, Timestamp: time.Now().UTC()})

	ticker, err := client.FetchTicker(context.Background(), "BTC/USDT")
	if err != nil {
		t.Fatalf("FetchTicker failed: %v", err)
	}
	if ticker.Bid != 200 {
		t.Errorf("Bid = %v, want live quote 200", ticker.Bid)
	}
	if restCalls.Load() != 0 {
		t.Errorf("REST calls = %d, fresh quote must not hit REST", restCalls.Load())
	}
}

func TestStreamingClientFallsBackOnStaleQuote(t *testing.T) {
	var restCalls atomic.Int64
	client := newStreamingTestClient(t, &restCalls)

	stale := time.Now().UTC().Add(-liveQuoteTTL - time.Second)
	client.absorb(&Ticker{Symbol: "BTC/USDT", Bid: 200, Ask: 201, Timestamp: stale})

	ticker, err := client.FetchTicker(context.Background(), "BTC/USDT")
	if err != nil {
		t.Fatalf("FetchTicker failed: %v", err)
	}
	if ticker.Bid != 100 {
		t.Errorf("Bid = %v, want REST quote 100", ticker.Bid)
	}
	if restCalls.Load() != 1 {
		t.Errorf("REST calls = %d, want 1", restCalls.Load())
	}
}

func TestStreamingClientOverlaysBulkSnapshot(t *testing.T) {
	var restCalls atomic.Int64
	client := newStreamingTestClient(t, &restCalls)

	client.absorb(&Ticker{Symbol: "ETH/USDT", Bid: 20, Ask: 21, Timestamp: time.Now().UTC()})

	tickers, err := client.FetchTickers(context.Background())
	if err != nil {
		t.Fatalf("FetchTickers failed: %v", err)
	}
	if tickers["ETH/USDT"].Bid != 20 {
		t.Errorf("ETH/USDT bid = %v, want live 20", tickers["ETH/USDT"].Bid)
	}
	// BTC без потоковой котировки остаётся из REST снимка
	if tickers["BTC/USDT"].Bid != 100 {
		t.Errorf("BTC/USDT bid = %v, want REST 100", tickers["BTC/USDT"].Bid)
	}
}

func TestRegistryWrapsStreamingVenues(t *testing.T) {
	r := NewRegistry(testLogger(t))

	client, err := r.NewClient("binance")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, ok := client.(*StreamingClient); !ok {
		t.Errorf("binance client type = %T, want *StreamingClient", client)
	}

	client, err = r.NewClient("kraken")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, ok := client.(*RESTClient); !ok {
		t.Errorf("kraken client type = %T, want *RESTClient", client)
	}
}
