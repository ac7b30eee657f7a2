package graph

import (
	"context"
	"math"
	"sort"
	"time"

	"arbscan/internal/exchange"
	"arbscan/internal/fetch"
	"arbscan/pkg/retry"
	"arbscan/pkg/utils"
)

// builder.go - построение графа курсов одной биржи
//
// Каждый рынок BASE/QUOTE даёт до двух рёбер:
//   BASE→QUOTE по биду (SELL), QUOTE→BASE по аску (BUY).
// Непригодные тикеры пропускаются с предупреждением: скан не падает
// из-за одного битого рынка.

// BuildOptions управляет построением графа
type BuildOptions struct {
	// Fees - учитывать тейкер-комиссии (требует загрузки метаданных рынков)
	Fees bool

	// Depth - записывать глубины рёбер; рынки без объёмов пропускаются
	Depth bool
}

// EnsureMarkets загружает метаданные рынков с повторами
//
// Единственный блокирующий retry в ядре: граф без комиссий бесполезен.
// Повторяются только rate-limit и unavailable; остальное поднимается сразу.
func EnsureMarkets(ctx context.Context, client exchange.Client) error {
	cfg := retry.MarketLoadConfig()
	cfg.RetryIf = func(err error) bool {
		return exchange.IsRateLimited(err) || exchange.IsNotAvailable(err)
	}
	return retry.Do(ctx, func() error {
		return client.LoadMarkets(ctx)
	}, cfg)
}

// BuildVenueGraph строит граф курсов биржи из её тикеров
func BuildVenueGraph(ctx context.Context, client exchange.Client, opts BuildOptions, log *utils.Logger) (*Digraph, error) {
	log = log.WithExchange(client.ID())

	if opts.Fees {
		if err := EnsureMarkets(ctx, client); err != nil {
			return nil, err
		}
	}

	// Через fetch.Fetcher: биржа без bulk-эндпоинта опрашивается
	// веером по символам, а не выпадает из скана
	tickers, err := fetch.NewFetcher(log).VenueTickers(ctx, client)
	if err != nil {
		return nil, err
	}

	g := NewDigraph()
	g.Venue = client.ID()
	g.Timestamp = time.Now().UTC()

	// Сортировка даёт детерминированный порядок рёбер при одинаковом входе
	symbols := make([]string, 0, len(tickers))
	for s := range tickers {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	added := 0
	for _, symbol := range symbols {
		fee := 0.0
		if opts.Fees {
			fee = client.TakerFee(symbol)
		}
		n := addTickerEdges(g, client.ID(), symbol, tickers[symbol], fee, opts.Depth, log)
		added += n
	}

	log.Info("venue graph built",
		utils.Int("nodes", g.NodeCount()),
		utils.Int("edges", added))
	return g, nil
}

// addTickerEdges добавляет рёбра одного рынка в граф
// Возвращает число добавленных рёбер (0, 1 или 2)
func addTickerEdges(g interface{ AddEdge(Edge) }, venue, symbol string, t *exchange.Ticker, fee float64, depth bool, log *utils.Logger) int {
	base, quote, err := utils.SplitSymbol(symbol)
	if err != nil {
		log.Warn("skipping malformed symbol", utils.Market(symbol))
		return 0
	}
	if t == nil || t.Bid <= 0 || t.Ask <= 0 {
		log.Warn("skipping unusable ticker", utils.Market(symbol))
		return 0
	}
	if depth && (t.BidVolume <= 0 || t.AskVolume <= 0) {
		log.Warn("skipping market without depth", utils.Market(symbol))
		return 0
	}

	feeScalar := 1 - fee
	added := 0

	// BASE→QUOTE: продаём base по биду
	sellDepth := NoDepth()
	if depth {
		sellDepth = -math.Log(t.BidVolume)
	}
	sell := Edge{
		From:       base,
		To:         quote,
		Weight:     -math.Log(t.Bid * feeScalar),
		Depth:      sellDepth,
		MarketName: symbol,
		Venue:      venue,
		TradeType:  Sell,
		Fee:        fee,
		NoFeeRate:  t.Bid,
	}
	if isFiniteWeight(sell.Weight) {
		g.AddEdge(sell)
		added++
	}

	// QUOTE→BASE: покупаем base по аску; глубина в quote-валюте
	buyDepth := NoDepth()
	if depth {
		buyDepth = -math.Log(t.AskVolume * t.Ask)
	}
	buy := Edge{
		From:       quote,
		To:         base,
		Weight:     -math.Log(feeScalar / t.Ask),
		Depth:      buyDepth,
		MarketName: symbol,
		Venue:      venue,
		TradeType:  Buy,
		Fee:        fee,
		NoFeeRate:  1 / t.Ask,
	}
	if isFiniteWeight(buy.Weight) {
		g.AddEdge(buy)
		added++
	}

	return added
}

func isFiniteWeight(w float64) bool {
	return !math.IsNaN(w) && !math.IsInf(w, 0)
}
