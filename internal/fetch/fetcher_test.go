package fetch

import (
	"context"
	"testing"

	"arbscan/internal/exchange"
	"arbscan/pkg/utils"
)

func testLogger(t *testing.T) *utils.Logger {
	t.Helper()
	return utils.InitLogger(utils.LogConfig{Level: "error", Format: "text"})
}

func TestAllTickersIsolatesFailure(t *testing.T) {
	good := exchange.NewStaticClient("good", map[string]*exchange.Ticker{
		"BTC/USDT": {Symbol: "BTC/USDT", Bid: 50000, Ask: 50010},
	})
	bad := exchange.NewStaticClient("bad", nil)
	bad.FailFetchTickers = exchange.NewError("bad", exchange.KindTransient, "timeout", nil)

	tickers, errs := NewFetcher(testLogger(t)).AllTickers(context.Background(),
		[]exchange.Client{good, bad})

	if len(tickers) != 1 || tickers["good"]["BTC/USDT"] == nil {
		t.Errorf("tickers = %v", tickers)
	}
	if err := errs["bad"]; exchange.KindOf(err) != exchange.KindTransient {
		t.Errorf("bad venue error = %v", err)
	}
}

func TestVenueTickersFallsBackPerSymbol(t *testing.T) {
	client := exchange.NewStaticClient("legacy", map[string]*exchange.Ticker{
		"BTC/USDT": {Symbol: "BTC/USDT", Bid: 50000, Ask: 50010},
		"ETH/USDT": {Symbol: "ETH/USDT", Bid: 3000, Ask: 3001},
	})
	// Биржа без bulk-эндпоинта
	client.Features = map[string]bool{exchange.FeatureFetchOrderBook: true}

	tickers, err := NewFetcher(testLogger(t)).VenueTickers(context.Background(), client)
	if err != nil {
		t.Fatalf("VenueTickers failed: %v", err)
	}
	if len(tickers) != 2 {
		t.Errorf("tickers = %v, want both symbols", tickers)
	}
	if calls := client.FetchTickersCalls(); calls != 0 {
		t.Errorf("bulk endpoint called %d times on a venue without it", calls)
	}
}

func TestVenueTickersSkipsBrokenSymbol(t *testing.T) {
	client := exchange.NewStaticClient("legacy", map[string]*exchange.Ticker{
		"BTC/USDT": {Symbol: "BTC/USDT", Bid: 50000, Ask: 50010},
		"ETH/USDT": {Symbol: "ETH/USDT", Bid: 3000, Ask: 3001},
	})
	client.Features = nil
	client.FailTicker = map[string]error{
		"ETH/USDT": exchange.NewError("legacy", exchange.KindMalformed, "null bid", nil),
	}

	tickers, err := NewFetcher(testLogger(t)).VenueTickers(context.Background(), client)
	if err != nil {
		t.Fatalf("VenueTickers failed: %v", err)
	}
	if len(tickers) != 1 || tickers["BTC/USDT"] == nil {
		t.Errorf("tickers = %v, want BTC/USDT only", tickers)
	}
}

func TestOrderBooksClassifiedErrors(t *testing.T) {
	client := exchange.NewStaticClient("v1", map[string]*exchange.Ticker{
		"BTC/USDT": {Symbol: "BTC/USDT", Bid: 50000, Ask: 50010, BidVolume: 1, AskVolume: 2},
	})
	client.FailOrderBook = map[string]error{
		"X/Y": exchange.NewError("v1", exchange.KindUnknownMarket, "delisted", nil),
	}
	client.Tickers["X/Y"] = &exchange.Ticker{Symbol: "X/Y", Bid: 1, Ask: 2}

	books, errs := NewFetcher(testLogger(t)).OrderBooks(context.Background(),
		client, []string{"BTC/USDT", "X/Y"}, 1)

	if len(books) != 1 {
		t.Fatalf("books = %v", books)
	}
	if best := books["BTC/USDT"].BestBid(); best == nil || best.Price != 50000 {
		t.Errorf("best bid = %v", best)
	}
	if exchange.KindOf(errs["X/Y"]) != exchange.KindUnknownMarket {
		t.Errorf("X/Y error = %v", errs["X/Y"])
	}
}
