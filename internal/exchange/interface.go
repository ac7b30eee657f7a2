package exchange

import (
	"context"
	"time"
)

// Client определяет унифицированный интерфейс для работы с любой биржей
//
// Рабочий цикл сканера:
//  1. LoadMarkets - метаданные рынков и комиссии (обязательно до построения графа)
//  2. FetchTickers / FetchTicker - котировки для рёбер графа
//  3. FetchOrderBook - лучшие bid/ask с объёмами для depth-режима
//
// Методы метаданных (ID, Name, Countries, Symbols, Currencies, Has, TakerFee)
// валидны только после успешного LoadMarkets.
type Client interface {
	// ID возвращает машинный идентификатор биржи ("kraken", "binance")
	ID() string

	// Name возвращает человекочитаемое имя биржи
	Name() string

	// LoadMarkets загружает метаданные рынков: символы, валюты, комиссии
	LoadMarkets(ctx context.Context) error

	// Symbols возвращает список рынков в формате BASE/QUOTE
	Symbols() []string

	// Currencies возвращает список валют биржи
	Currencies() []string

	// Countries возвращает коды стран регистрации биржи
	Countries() []string

	// Has сообщает поддерживает ли биржа именованную возможность
	// ("fetchTickers", "fetchOrderBook", "CORS", ...)
	Has(feature string) bool

	// Market возвращает метаданные рынка по символу
	Market(symbol string) (*Market, bool)

	// TakerFee возвращает тейкер-комиссию рынка как долю (0.0026 = 0.26%)
	TakerFee(symbol string) float64

	// FetchTicker получает котировку одного рынка
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)

	// FetchTickers получает котировки всех рынков одним запросом
	FetchTickers(ctx context.Context) (map[string]*Ticker, error)

	// FetchOrderBook получает стакан с заданной глубиной
	FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error)

	// Close освобождает соединения
	Close() error
}

// Ticker содержит котировку рынка
//
// BidVolume/AskVolume - объёмы на лучших уровнях стакана,
// нужны для оценки пропускной способности цикла.
// Нулевой объём означает "биржа объём не отдаёт".
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`        // лучшая цена покупки
	Ask       float64   `json:"ask"`        // лучшая цена продажи
	Last      float64   `json:"last"`       // последняя сделка
	BidVolume float64   `json:"bid_volume"` // объём на лучшем bid
	AskVolume float64   `json:"ask_volume"` // объём на лучшем ask
	Timestamp time.Time `json:"timestamp"`
}

// OrderBook представляет стакан ордеров
type OrderBook struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"` // заявки на покупку, по убыванию цены
	Asks      []PriceLevel `json:"asks"` // заявки на продажу, по возрастанию цены
	Timestamp time.Time    `json:"timestamp"`
}

// PriceLevel представляет уровень цены в стакане
type PriceLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// BestBid возвращает лучший bid или nil если стакан пуст
func (ob *OrderBook) BestBid() *PriceLevel {
	if len(ob.Bids) == 0 {
		return nil
	}
	return &ob.Bids[0]
}

// BestAsk возвращает лучший ask или nil если стакан пуст
func (ob *OrderBook) BestAsk() *PriceLevel {
	if len(ob.Asks) == 0 {
		return nil
	}
	return &ob.Asks[0]
}

// Market содержит метаданные рынка биржи
type Market struct {
	Symbol   string  `json:"symbol"` // BASE/QUOTE
	Base     string  `json:"base"`
	Quote    string  `json:"quote"`
	TakerFee float64 `json:"taker_fee"` // доля, не процент
	MakerFee float64 `json:"maker_fee"`
	Active   bool    `json:"active"`
}

// Credentials - API ключи для приватных эндпоинтов
// Передаются уже расшифрованными; хранение - задача repository
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string // требуется не всем биржам
}

// Возможности бирж, проверяемые через Has()
const (
	FeatureFetchTickers     = "fetchTickers"
	FeatureFetchOrderBook   = "fetchOrderBook"
	FeatureFetchTradingFees = "fetchTradingFees"
)
