// Package fetch забирает котировки и стаканы с бирж параллельно.
//
// Отказ одной биржи или одного рынка никогда не роняет выборку:
// результат и ошибки возвращаются раздельно, классификацию ошибок
// выполняет exchange.KindOf.
package fetch

import (
	"context"
	"sync"

	"arbscan/internal/exchange"
	"arbscan/pkg/utils"
)

// Fetcher - параллельный сборщик рыночных данных
type Fetcher struct {
	log *utils.Logger
}

// NewFetcher создаёт сборщик
func NewFetcher(log *utils.Logger) *Fetcher {
	return &Fetcher{log: log}
}

// VenueTickers забирает все котировки одной биржи
//
// Биржа с bulk-эндпоинтом опрашивается одним запросом; без него -
// веером по символам. Рынки с постоянными ошибками (UnknownMarket,
// Malformed) пропускаются с предупреждением, transient-ошибка одного
// символа не отменяет остальные.
func (f *Fetcher) VenueTickers(ctx context.Context, client exchange.Client) (map[string]*exchange.Ticker, error) {
	if client.Has(exchange.FeatureFetchTickers) {
		return client.FetchTickers(ctx)
	}

	symbols := client.Symbols()
	type symbolTicker struct {
		symbol string
		ticker *exchange.Ticker
		err    error
	}

	results := make([]symbolTicker, len(symbols))
	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			t, err := client.FetchTicker(ctx, symbol)
			results[i] = symbolTicker{symbol: symbol, ticker: t, err: err}
		}(i, symbol)
	}
	wg.Wait()

	out := make(map[string]*exchange.Ticker, len(symbols))
	for _, r := range results {
		if r.err != nil {
			f.log.Warn("ticker fetch failed",
				utils.Exchange(client.ID()), utils.Symbol(r.symbol),
				utils.String("kind", exchange.KindOf(r.err).String()), utils.Err(r.err))
			continue
		}
		out[r.symbol] = r.ticker
	}
	return out, nil
}

// AllTickers опрашивает биржи параллельно
//
// Возвращает котировки по успешным биржам и ошибки по отказавшим;
// обе карты ключуются идентификатором биржи. Каждый опрос отменяется
// независимо через производный контекст.
func (f *Fetcher) AllTickers(ctx context.Context, clients []exchange.Client) (map[string]map[string]*exchange.Ticker, map[string]error) {
	type venueResult struct {
		venue   string
		tickers map[string]*exchange.Ticker
		err     error
	}

	results := make([]venueResult, len(clients))
	var wg sync.WaitGroup
	for i, client := range clients {
		wg.Add(1)
		go func(i int, client exchange.Client) {
			defer wg.Done()
			vctx, cancel := context.WithCancel(ctx)
			defer cancel()
			tickers, err := f.VenueTickers(vctx, client)
			results[i] = venueResult{venue: client.ID(), tickers: tickers, err: err}
		}(i, client)
	}
	wg.Wait()

	tickers := make(map[string]map[string]*exchange.Ticker, len(clients))
	errs := make(map[string]error)
	for _, r := range results {
		if r.err != nil {
			errs[r.venue] = r.err
			f.log.Warn("venue fetch failed",
				utils.Exchange(r.venue),
				utils.String("kind", exchange.KindOf(r.err).String()), utils.Err(r.err))
			continue
		}
		tickers[r.venue] = r.tickers
	}
	return tickers, errs
}

// OrderBooks забирает стаканы перечисленных рынков одной биржи
//
// Постоянные ошибки исключают рынок из результата и попадают в errs;
// вызывающий решает, убирать ли рынок из активного набора скана.
func (f *Fetcher) OrderBooks(ctx context.Context, client exchange.Client, symbols []string, depth int) (map[string]*exchange.OrderBook, map[string]error) {
	type bookResult struct {
		symbol string
		book   *exchange.OrderBook
		err    error
	}

	results := make([]bookResult, len(symbols))
	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			book, err := client.FetchOrderBook(ctx, symbol, depth)
			results[i] = bookResult{symbol: symbol, book: book, err: err}
		}(i, symbol)
	}
	wg.Wait()

	books := make(map[string]*exchange.OrderBook, len(symbols))
	errs := make(map[string]error)
	for _, r := range results {
		if r.err != nil {
			errs[r.symbol] = r.err
			continue
		}
		books[r.symbol] = r.book
	}
	return books, errs
}
