// Package scanner ищет межбиржевые ценовые расхождения:
// по каждому символу сравнивает лучший бид и лучший аск всех бирж,
// на которых он торгуется.
package scanner

import (
	"context"
	"sync"
	"time"

	"arbscan/internal/exchange"
	"arbscan/internal/models"
	"arbscan/pkg/utils"
)

type bookResult struct {
	venue string
	book  *exchange.OrderBook
	err   error
}

// FindOpportunity собирает лучшие котировки символа по списку бирж
//
// Стаканы запрашиваются параллельно; биржа с пустым стаканом или
// ошибкой отбрасывается для этой возможности. Обновления пары
// (highest_bid, lowest_ask) сериализованы в вызывающей горутине.
func FindOpportunity(ctx context.Context, symbol string, clients []exchange.Client, depth int, log *utils.Logger) *models.SpreadOpportunity {
	results := make([]bookResult, len(clients))
	var wg sync.WaitGroup
	for i, client := range clients {
		wg.Add(1)
		go func(i int, client exchange.Client) {
			defer wg.Done()
			start := time.Now()
			book, err := client.FetchOrderBook(ctx, symbol, depth)
			RecordFetchLatency(client.ID(), "orderbook", float64(time.Since(start).Microseconds())/1000)
			results[i] = bookResult{venue: client.ID(), book: book, err: err}
		}(i, client)
	}
	wg.Wait()

	opp := &models.SpreadOpportunity{Symbol: symbol, Timestamp: time.Now().UTC()}
	for _, r := range results {
		if r.err != nil {
			log.Warn("order book fetch failed",
				utils.Exchange(r.venue), utils.Symbol(symbol),
				utils.String("kind", exchange.KindOf(r.err).String()), utils.Err(r.err))
			continue
		}
		applyBook(opp, r.venue, r.book)
	}

	RecordOpportunity("spread", opp.Valuable())
	return opp
}

// applyBook вливает стакан биржи в бегущий лучший бид/аск
// Пустая сторона стакана - биржа не участвует
func applyBook(opp *models.SpreadOpportunity, venue string, book *exchange.OrderBook) bool {
	bid, ask := book.BestBid(), book.BestAsk()
	if bid == nil || ask == nil {
		return false
	}

	if opp.HighestBid.Venue == "" || bid.Price > opp.HighestBid.Price {
		opp.HighestBid = models.Quote{Venue: venue, Price: bid.Price, Volume: bid.Volume}
	}
	if opp.LowestAsk.Venue == "" || ask.Price < opp.LowestAsk.Price {
		opp.LowestAsk = models.Quote{Venue: venue, Price: ask.Price, Volume: ask.Volume}
	}
	return true
}
