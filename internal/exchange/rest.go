package exchange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"arbscan/pkg/ratelimit"
	"arbscan/pkg/utils"
)

// rest.go - REST клиент унифицированного биржевого шлюза
//
// Сканеру всё равно какой у биржи нативный API: запросы идут через
// шлюз, который отдаёт единый JSON формат для любой биржи
// (/ markets, /ticker, /tickers, /orderbook). Один адаптер
// обслуживает все биржи, различаются только Descriptor'ы.

var restJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Descriptor описывает биржу для REST клиента
type Descriptor struct {
	ID        string          `json:"id"`   // машинный идентификатор: "kraken"
	Name      string          `json:"name"` // человекочитаемое имя: "Kraken"
	Countries []string        `json:"countries"`
	BaseURL   string          `json:"base_url"`
	WSURL     string          `json:"ws_url,omitempty"` // поток котировок; пусто - только REST
	RateLimit float64         `json:"rate_limit"` // запросов в секунду
	Features  map[string]bool `json:"features"`   // возможности для Has()
}

// RESTClient реализует Client поверх унифицированного шлюза
type RESTClient struct {
	desc    Descriptor
	http    *HTTPClient
	limiter *ratelimit.RateLimiter
	creds   *Credentials
	log     *utils.Logger

	mu      sync.RWMutex
	markets map[string]*Market // заполняется LoadMarkets
}

// RESTOption настраивает RESTClient
type RESTOption func(*RESTClient)

// WithCredentials задаёт API ключи для приватных эндпоинтов
func WithCredentials(creds Credentials) RESTOption {
	return func(c *RESTClient) { c.creds = &creds }
}

// WithHTTPClient подменяет HTTP клиент (для тестов)
func WithHTTPClient(hc *HTTPClient) RESTOption {
	return func(c *RESTClient) { c.http = hc }
}

// NewRESTClient создаёт клиент биржи по её дескриптору
func NewRESTClient(desc Descriptor, log *utils.Logger, opts ...RESTOption) *RESTClient {
	rate := desc.RateLimit
	if rate <= 0 {
		rate = 10
	}

	c := &RESTClient{
		desc:    desc,
		http:    GetGlobalHTTPClient(),
		limiter: ratelimit.NewRateLimiter(rate, rate*2),
		log:     log.WithExchange(desc.ID),
		markets: make(map[string]*Market),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID возвращает машинный идентификатор биржи
func (c *RESTClient) ID() string { return c.desc.ID }

// Name возвращает человекочитаемое имя биржи
func (c *RESTClient) Name() string { return c.desc.Name }

// Countries возвращает коды стран регистрации биржи
func (c *RESTClient) Countries() []string { return c.desc.Countries }

// Has сообщает поддерживает ли биржа именованную возможность
func (c *RESTClient) Has(feature string) bool { return c.desc.Features[feature] }

// ============================================================
// Wire формат шлюза
// ============================================================

type wireError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type wireMarket struct {
	Symbol string  `json:"symbol"`
	Base   string  `json:"base"`
	Quote  string  `json:"quote"`
	Taker  float64 `json:"taker"`
	Maker  float64 `json:"maker"`
	Active bool    `json:"active"`
}

type wireTicker struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Last      float64 `json:"last"`
	BidVolume float64 `json:"bidVolume"`
	AskVolume float64 `json:"askVolume"`
	Timestamp int64   `json:"timestamp"` // миллисекунды Unix
}

type wireOrderBook struct {
	Symbol    string       `json:"symbol"`
	Bids      [][2]float64 `json:"bids"` // [цена, объём]
	Asks      [][2]float64 `json:"asks"`
	Timestamp int64        `json:"timestamp"`
}

func (t *wireTicker) toTicker() *Ticker {
	return &Ticker{
		Symbol:    t.Symbol,
		Bid:       t.Bid,
		Ask:       t.Ask,
		Last:      t.Last,
		BidVolume: t.BidVolume,
		AskVolume: t.AskVolume,
		Timestamp: utils.FromUnixMillis(t.Timestamp),
	}
}

// get выполняет GET запрос к шлюзу с rate limiting и классификацией ошибок
func (c *RESTClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return NewError(c.desc.ID, KindTransient, "rate limiter wait cancelled", err)
	}

	u := c.desc.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return NewError(c.desc.ID, KindConfiguration, "invalid request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.creds != nil {
		req.Header.Set("X-API-Key", c.creds.APIKey)
		req.Header.Set("X-API-Secret", c.creds.Secret)
		if c.creds.Passphrase != "" {
			req.Header.Set("X-API-Passphrase", c.creds.Passphrase)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Classify(c.desc.ID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return NewError(c.desc.ID, KindTransient, "reading response body", err)
	}

	c.log.Debug("request completed",
		utils.String("path", path),
		utils.Int("status", resp.StatusCode),
		utils.Latency(float64(time.Since(start).Microseconds())/1000))

	if resp.StatusCode != http.StatusOK {
		kind := ClassifyHTTPStatus(resp.StatusCode)
		e := &Error{Venue: c.desc.ID, Kind: kind, Message: http.StatusText(resp.StatusCode)}
		// Шлюз может приложить машинный код ошибки
		var we wireError
		if restJSON.Unmarshal(body, &we) == nil && we.Error.Message != "" {
			e.Code = we.Error.Code
			e.Message = we.Error.Message
		}
		return e
	}

	if err := restJSON.Unmarshal(body, out); err != nil {
		return NewError(c.desc.ID, KindMalformed, "decoding response", err)
	}
	return nil
}

// ============================================================
// Client
// ============================================================

// LoadMarkets загружает метаданные рынков и комиссии
func (c *RESTClient) LoadMarkets(ctx context.Context) error {
	var wire []wireMarket
	if err := c.get(ctx, "/markets", nil, &wire); err != nil {
		return err
	}

	markets := make(map[string]*Market, len(wire))
	for _, m := range wire {
		base, quote, err := utils.SplitSymbol(m.Symbol)
		if err != nil {
			// Нестандартные символы (фьючерсы и т.п.) пропускаем
			continue
		}
		if m.Base == "" {
			m.Base = base
		}
		if m.Quote == "" {
			m.Quote = quote
		}
		markets[m.Symbol] = &Market{
			Symbol:   m.Symbol,
			Base:     m.Base,
			Quote:    m.Quote,
			TakerFee: m.Taker,
			MakerFee: m.Maker,
			Active:   m.Active,
		}
	}

	c.mu.Lock()
	c.markets = markets
	c.mu.Unlock()

	c.log.Info("markets loaded", utils.Int("count", len(markets)))
	return nil
}

// Symbols возвращает список рынков в формате BASE/QUOTE
func (c *RESTClient) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	symbols := make([]string, 0, len(c.markets))
	for s := range c.markets {
		symbols = append(symbols, s)
	}
	return symbols
}

// Currencies возвращает список валют биржи
func (c *RESTClient) Currencies() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	currencies := make([]string, 0)
	for _, m := range c.markets {
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

// Market возвращает метаданные рынка по символу
func (c *RESTClient) Market(symbol string) (*Market, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.markets[symbol]
	return m, ok
}

// TakerFee возвращает тейкер-комиссию рынка как долю
// Для неизвестного рынка возвращает 0: ребро без комиссии
// лучше чем отсутствие ребра
func (c *RESTClient) TakerFee(symbol string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.markets[symbol]; ok {
		return m.TakerFee
	}
	return 0
}

// FetchTicker получает котировку одного рынка
func (c *RESTClient) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	q := url.Values{"symbol": {symbol}}
	var wire wireTicker
	if err := c.get(ctx, "/ticker", q, &wire); err != nil {
		return nil, err
	}
	if wire.Symbol == "" {
		wire.Symbol = symbol
	}
	return wire.toTicker(), nil
}

// FetchTickers получает котировки всех рынков одним запросом
func (c *RESTClient) FetchTickers(ctx context.Context) (map[string]*Ticker, error) {
	if !c.Has(FeatureFetchTickers) {
		return nil, NewError(c.desc.ID, KindNotAvailable, "bulk tickers not supported", nil)
	}

	var wire []wireTicker
	if err := c.get(ctx, "/tickers", nil, &wire); err != nil {
		return nil, err
	}

	tickers := make(map[string]*Ticker, len(wire))
	for i := range wire {
		t := wire[i].toTicker()
		tickers[t.Symbol] = t
	}
	return tickers, nil
}

// FetchOrderBook получает стакан с заданной глубиной
func (c *RESTClient) FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	q := url.Values{"symbol": {symbol}}
	if depth > 0 {
		q.Set("depth", strconv.Itoa(depth))
	}

	var wire wireOrderBook
	if err := c.get(ctx, "/orderbook", q, &wire); err != nil {
		return nil, err
	}

	ob := &OrderBook{
		Symbol:    symbol,
		Bids:      make([]PriceLevel, 0, len(wire.Bids)),
		Asks:      make([]PriceLevel, 0, len(wire.Asks)),
		Timestamp: utils.FromUnixMillis(wire.Timestamp),
	}
	for _, lvl := range wire.Bids {
		ob.Bids = append(ob.Bids, PriceLevel{Price: lvl[0], Volume: lvl[1]})
	}
	for _, lvl := range wire.Asks {
		ob.Asks = append(ob.Asks, PriceLevel{Price: lvl[0], Volume: lvl[1]})
	}
	return ob, nil
}

// Close освобождает ресурсы клиента
// Глобальный HTTP клиент разделяется, его закрывает main
func (c *RESTClient) Close() error {
	return nil
}

// ошибка компиляции если RESTClient перестанет реализовывать Client
var _ Client = (*RESTClient)(nil)

// String для логов и отладки
func (c *RESTClient) String() string {
	return fmt.Sprintf("RESTClient(%s)", c.desc.ID)
}
