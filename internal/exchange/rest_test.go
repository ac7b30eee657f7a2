package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"arbscan/pkg/utils"
)

func testLogger(t *testing.T) *utils.Logger {
	t.Helper()
	return utils.InitLogger(utils.LogConfig{Level: "error", Format: "text"})
}

func newTestClient(t *testing.T, handler http.Handler) (*RESTClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	desc := Descriptor{
		ID:        "testex",
		Name:      "Test Exchange",
		BaseURL:   server.URL,
		RateLimit: 1000, // тесты не должны ждать limiter
		Features:  map[string]bool{FeatureFetchTickers: true, FeatureFetchOrderBook: true},
	}
	return NewRESTClient(desc, testLogger(t)), server
}

func TestLoadMarkets(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[
			{"symbol": "BTC/USDT", "taker": 0.001, "maker": 0.0008, "active": true},
			{"symbol": "ETH/BTC", "taker": 0.002, "active": true},
			{"symbol": "WEIRDFUTURE", "taker": 0.001, "active": true}
		]`))
	}))

	if err := client.LoadMarkets(context.Background()); err != nil {
		t.Fatalf("LoadMarkets failed: %v", err)
	}

	// Символ без разделителя отброшен
	if got := len(client.Symbols()); got != 2 {
		t.Errorf("Symbols() len = %d, want 2", got)
	}

	m, ok := client.Market("BTC/USDT")
	if !ok {
		t.Fatal("BTC/USDT market missing")
	}
	if m.Base != "BTC" || m.Quote != "USDT" {
		t.Errorf("base/quote = %s/%s, want BTC/USDT", m.Base, m.Quote)
	}
	if client.TakerFee("BTC/USDT") != 0.001 {
		t.Errorf("TakerFee = %v, want 0.001", client.TakerFee("BTC/USDT"))
	}

	// Неизвестный рынок - комиссия 0
	if client.TakerFee("XRP/USDT") != 0 {
		t.Error("unknown market must have zero fee")
	}

	currencies := client.Currencies()
	want := map[string]bool{"BTC": true, "USDT": true, "ETH": true}
	if len(currencies) != len(want) {
		t.Errorf("Currencies() = %v, want 3 unique", currencies)
	}
	for _, c := range currencies {
		if !want[c] {
			t.Errorf("unexpected currency %q", c)
		}
	}
}

func TestFetchTicker(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "BTC/USDT" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"symbol": "BTC/USDT", "bid": 50000, "ask": 50010,
			"bidVolume": 1.5, "askVolume": 2.0, "timestamp": 1705312245123}`))
	}))

	ticker, err := client.FetchTicker(context.Background(), "BTC/USDT")
	if err != nil {
		t.Fatalf("FetchTicker failed: %v", err)
	}

	if ticker.Bid != 50000 || ticker.Ask != 50010 {
		t.Errorf("bid/ask = %v/%v, want 50000/50010", ticker.Bid, ticker.Ask)
	}
	if ticker.BidVolume != 1.5 || ticker.AskVolume != 2.0 {
		t.Errorf("volumes = %v/%v, want 1.5/2.0", ticker.BidVolume, ticker.AskVolume)
	}
	if ticker.Timestamp.UnixMilli() != 1705312245123 {
		t.Errorf("timestamp = %v", ticker.Timestamp)
	}
}

func TestFetchTickers(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol": "BTC/USDT", "bid": 50000, "ask": 50010},
			{"symbol": "ETH/USDT", "bid": 3000, "ask": 3001}
		]`))
	}))

	tickers, err := client.FetchTickers(context.Background())
	if err != nil {
		t.Fatalf("FetchTickers failed: %v", err)
	}
	if len(tickers) != 2 {
		t.Fatalf("got %d tickers, want 2", len(tickers))
	}
	if tickers["ETH/USDT"].Bid != 3000 {
		t.Errorf("ETH/USDT bid = %v, want 3000", tickers["ETH/USDT"].Bid)
	}
}

func TestFetchTickersUnsupported(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	desc := Descriptor{ID: "nofeature", BaseURL: server.URL, RateLimit: 1000}
	client := NewRESTClient(desc, testLogger(t))

	_, err := client.FetchTickers(context.Background())
	if !IsNotAvailable(err) {
		t.Errorf("expected not_available error, got %v", err)
	}
}

func TestFetchOrderBook(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("depth") != "5" {
			t.Errorf("depth query = %q, want 5", r.URL.Query().Get("depth"))
		}
		w.Write([]byte(`{"symbol": "BTC/USDT",
			"bids": [[50000, 1.5], [49999, 3.0]],
			"asks": [[50010, 2.0]],
			"timestamp": 1705312245123}`))
	}))

	ob, err := client.FetchOrderBook(context.Background(), "BTC/USDT", 5)
	if err != nil {
		t.Fatalf("FetchOrderBook failed: %v", err)
	}

	if len(ob.Bids) != 2 || len(ob.Asks) != 1 {
		t.Fatalf("levels = %d/%d, want 2/1", len(ob.Bids), len(ob.Asks))
	}
	if best := ob.BestBid(); best == nil || best.Price != 50000 || best.Volume != 1.5 {
		t.Errorf("BestBid = %+v", best)
	}
	if best := ob.BestAsk(); best == nil || best.Price != 50010 {
		t.Errorf("BestAsk = %+v", best)
	}
}

func TestErrorClassificationFromStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"rate limited", 429, `{"error": {"code": "RATE", "message": "slow down"}}`, IsRateLimited},
		{"unknown market", 404, ``, IsUnknownMarket},
		{"auth refused", 401, ``, IsAuthRefused},
		{"maintenance", 503, ``, IsNotAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			_, err := client.FetchTicker(context.Background(), "BTC/USDT")
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("wrong classification for status %d: %v", tt.status, err)
			}
		})
	}
}

func TestErrorEnvelopeParsed(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(429)
		w.Write([]byte(`{"error": {"code": "EGeneral:Too many requests", "message": "rate limit exceeded"}}`))
	}))

	_, err := client.FetchTicker(context.Background(), "BTC/USDT")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Code != "EGeneral:Too many requests" {
		t.Errorf("Code = %q", e.Code)
	}
	if e.Message != "rate limit exceeded" {
		t.Errorf("Message = %q", e.Message)
	}
}

func TestMalformedResponse(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))

	_, err := client.FetchTicker(context.Background(), "BTC/USDT")
	if KindOf(err) != KindMalformed {
		t.Errorf("expected malformed, got %v", err)
	}
}

func TestCredentialHeaders(t *testing.T) {
	var gotKey, gotSecret string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotSecret = r.Header.Get("X-API-Secret")
		w.Write([]byte(`{"symbol": "BTC/USDT", "bid": 1, "ask": 2}`))
	}))
	WithCredentials(Credentials{APIKey: "key", Secret: "sec"})(client)

	if _, err := client.FetchTicker(context.Background(), "BTC/USDT"); err != nil {
		t.Fatalf("FetchTicker failed: %v", err)
	}
	if gotKey != "key" || gotSecret != "sec" {
		t.Errorf("credential headers = %q/%q", gotKey, gotSecret)
	}
}
