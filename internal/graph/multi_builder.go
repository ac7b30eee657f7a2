package graph

import (
	"context"
	"sort"
	"sync"
	"time"

	"arbscan/internal/exchange"
	"arbscan/internal/fetch"
	"arbscan/pkg/utils"
)

// multi_builder.go - сводный мультиграф по нескольким биржам
//
// Каждая биржа добавляет свои параллельные рёбра; редукция (Reduce)
// потом выбирает лучший курс на направление. Отказ одной биржи
// не валит построение: её рёбра просто не появятся.

// MultiBuildOptions управляет построением мультиграфа
type MultiBuildOptions struct {
	BuildOptions

	// Strict - поднимать ошибку первой отказавшей биржи
	// вместо молчаливого пропуска
	Strict bool
}

// venueTickers - результат опроса одной биржи
type venueTickers struct {
	venue   string
	tickers map[string]*exchange.Ticker
	fees    map[string]float64
	err     error
}

// BuildMultiVenueGraph строит мультиграф курсов по списку бирж
//
// Биржи опрашиваются параллельно, рёбра вставляются последовательно
// в фиксированном порядке (по списку clients, символы отсортированы):
// порядок рёбер детерминирован при одинаковом входе.
func BuildMultiVenueGraph(ctx context.Context, clients []exchange.Client, opts MultiBuildOptions, log *utils.Logger) (*Multigraph, error) {
	results := make([]venueTickers, len(clients))

	var wg sync.WaitGroup
	for i, client := range clients {
		wg.Add(1)
		go func(i int, client exchange.Client) {
			defer wg.Done()
			results[i] = collectVenue(ctx, client, opts.BuildOptions, log)
		}(i, client)
	}
	wg.Wait()

	g := NewMultigraph()
	g.Timestamp = time.Now().UTC()

	for _, res := range results {
		if res.err != nil {
			if opts.Strict {
				return nil, res.err
			}
			log.Warn("venue dropped from multigraph",
				utils.Exchange(res.venue), utils.Err(res.err))
			continue
		}

		symbols := make([]string, 0, len(res.tickers))
		for s := range res.tickers {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)

		for _, symbol := range symbols {
			addTickerEdges(g, res.venue, symbol, res.tickers[symbol], res.fees[symbol], opts.Depth, log)
		}
	}

	log.Info("multigraph built",
		utils.Int("venues", len(clients)),
		utils.Int("nodes", g.NodeCount()),
		utils.Int("edges", g.EdgeCount()))
	return g, nil
}

// collectVenue загружает комиссии и тикеры одной биржи
func collectVenue(ctx context.Context, client exchange.Client, opts BuildOptions, log *utils.Logger) venueTickers {
	res := venueTickers{venue: client.ID()}

	if opts.Fees {
		if err := EnsureMarkets(ctx, client); err != nil {
			res.err = err
			return res
		}
	}

	tickers, err := fetch.NewFetcher(log.WithExchange(client.ID())).VenueTickers(ctx, client)
	if err != nil {
		res.err = err
		return res
	}
	res.tickers = tickers

	if opts.Fees {
		res.fees = make(map[string]float64, len(tickers))
		for symbol := range tickers {
			res.fees[symbol] = client.TakerFee(symbol)
		}
	}
	return res
}
