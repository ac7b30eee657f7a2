package exchange

import (
	"context"
	"sync"
	"time"

	"arbscan/pkg/utils"
)

// StaticClient - клиент с заранее заданными данными
//
// Используется в тестах графа и сканера: детерминированные котировки
// без сети. Ошибки подставляются через Fail* поля чтобы проверять
// изоляцию частичных отказов.
type StaticClient struct {
	VenueID      string
	VenueName    string
	VenueCountry []string
	Markets      map[string]*Market
	Tickers      map[string]*Ticker
	OrderBooks   map[string]*OrderBook
	Features     map[string]bool

	// Подставные ошибки
	FailLoadMarkets      error
	FailLoadMarketsTimes int // 0 = всегда; N = только первые N вызовов
	FailFetchTickers     error
	FailTicker           map[string]error // по символу
	FailOrderBook        map[string]error // по символу
	FailOrderBookTimes   map[string]int   // 0/нет = всегда; N = только первые N вызовов

	mu          sync.Mutex
	loadCalls   int
	tickerCalls int
	bookCalls   map[string]int
	closeCalls  int
}

// NewStaticClient создаёт клиент с котировками
// Комиссии задаются через Markets; отсутствующий рынок = fee 0
func NewStaticClient(id string, tickers map[string]*Ticker) *StaticClient {
	markets := make(map[string]*Market, len(tickers))
	for symbol := range tickers {
		base, quote, err := utils.SplitSymbol(symbol)
		if err != nil {
			continue
		}
		markets[symbol] = &Market{Symbol: symbol, Base: base, Quote: quote, Active: true}
	}

	return &StaticClient{
		VenueID:   id,
		VenueName: id,
		Markets:   markets,
		Tickers:   tickers,
		Features:  map[string]bool{FeatureFetchTickers: true, FeatureFetchOrderBook: true},
	}
}

func (c *StaticClient) ID() string { return c.VenueID }
func (c *StaticClient) Name() string {
	if c.VenueName != "" {
		return c.VenueName
	}
	return c.VenueID
}
func (c *StaticClient) Countries() []string     { return c.VenueCountry }
func (c *StaticClient) Has(feature string) bool { return c.Features[feature] }

func (c *StaticClient) LoadMarkets(ctx context.Context) error {
	c.mu.Lock()
	c.loadCalls++
	calls := c.loadCalls
	c.mu.Unlock()

	if c.FailLoadMarkets != nil {
		if c.FailLoadMarketsTimes == 0 || calls <= c.FailLoadMarketsTimes {
			return c.FailLoadMarkets
		}
	}
	return nil
}

// LoadMarketsCalls возвращает число вызовов LoadMarkets (для проверки retry)
func (c *StaticClient) LoadMarketsCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadCalls
}

func (c *StaticClient) Symbols() []string {
	symbols := make([]string, 0, len(c.Markets))
	for s := range c.Markets {
		symbols = append(symbols, s)
	}
	return symbols
}

func (c *StaticClient) Currencies() []string {
	seen := make(map[string]struct{})
	currencies := make([]string, 0)
	for _, m := range c.Markets {
		if _, ok := seen[m.Base]; !ok {
			seen[m.Base] = struct{}{}
			currencies = append(currencies, m.Base)
		}
		if _, ok := seen[m.Quote]; !ok {
			seen[m.Quote] = struct{}{}
			currencies = append(currencies, m.Quote)
		}
	}
	return currencies
}

func (c *StaticClient) Market(symbol string) (*Market, bool) {
	m, ok := c.Markets[symbol]
	return m, ok
}

func (c *StaticClient) TakerFee(symbol string) float64 {
	if m, ok := c.Markets[symbol]; ok {
		return m.TakerFee
	}
	return 0
}

func (c *StaticClient) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	if err := c.FailTicker[symbol]; err != nil {
		return nil, err
	}
	t, ok := c.Tickers[symbol]
	if !ok {
		return nil, NewError(c.VenueID, KindUnknownMarket, "no such market: "+symbol, nil)
	}
	return t, nil
}

func (c *StaticClient) FetchTickers(ctx context.Context) (map[string]*Ticker, error) {
	c.mu.Lock()
	c.tickerCalls++
	c.mu.Unlock()

	if c.FailFetchTickers != nil {
		return nil, c.FailFetchTickers
	}

	out := make(map[string]*Ticker, len(c.Tickers))
	for s, t := range c.Tickers {
		out[s] = t
	}
	return out, nil
}

// FetchTickersCalls возвращает число вызовов FetchTickers
func (c *StaticClient) FetchTickersCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickerCalls
}

func (c *StaticClient) FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	c.mu.Lock()
	if c.bookCalls == nil {
		c.bookCalls = make(map[string]int)
	}
	c.bookCalls[symbol]++
	calls := c.bookCalls[symbol]
	c.mu.Unlock()

	if err := c.FailOrderBook[symbol]; err != nil {
		if times := c.FailOrderBookTimes[symbol]; times == 0 || calls <= times {
			return nil, err
		}
	}

	if ob, ok := c.OrderBooks[symbol]; ok {
		return ob, nil
	}

	// Синтезируем стакан из тикера
	t, ok := c.Tickers[symbol]
	if !ok {
		return nil, NewError(c.VenueID, KindUnknownMarket, "no such market: "+symbol, nil)
	}
	return &OrderBook{
		Symbol:    symbol,
		Bids:      []PriceLevel{{Price: t.Bid, Volume: t.BidVolume}},
		Asks:      []PriceLevel{{Price: t.Ask, Volume: t.AskVolume}},
		Timestamp: time.Now().UTC(),
	}, nil
}

// OrderBookCalls возвращает число запросов стакана по символу
func (c *StaticClient) OrderBookCalls(symbol string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bookCalls[symbol]
}

func (c *StaticClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	return nil
}

// Closed сообщает был ли клиент закрыт
func (c *StaticClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls > 0
}

// CloseCalls возвращает число вызовов Close (закрытие должно быть однократным)
func (c *StaticClient) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

var _ Client = (*StaticClient)(nil)
