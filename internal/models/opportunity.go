package models

import "time"

// CycleOpportunity - внутрибиржевая возможность: цикл валют, произведение
// курсов с учётом комиссий по которому превышает 1
type CycleOpportunity struct {
	ID        int       `json:"id" db:"id"`
	ScanID    string    `json:"scan_id" db:"scan_id"`
	Venue     string    `json:"venue" db:"venue"`
	Cycle     []string  `json:"cycle" db:"-"` // вершины; первая и последняя совпадают
	Profit    float64   `json:"profit" db:"profit"` // множитель, 1.5 = +50%
	MaxVolume float64   `json:"max_volume,omitempty" db:"max_volume"` // 0 вне depth-режима
	Ledger    []TradeLeg `json:"ledger,omitempty" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProfitPercent возвращает прибыль цикла в процентах
func (o *CycleOpportunity) ProfitPercent() float64 {
	return (o.Profit - 1) * 100
}

// TradeLeg - одна сделка цикла; объём в base-валюте рынка
type TradeLeg struct {
	Market    string  `json:"market"`
	Venue     string  `json:"venue"`
	Side      string  `json:"side"` // SELL / BUY
	Rate      float64 `json:"rate"` // сырой курс без комиссии
	Fee       float64 `json:"fee"`
	Volume    float64 `json:"volume,omitempty"`
}

// Quote - лучшая котировка одной биржи
type Quote struct {
	Venue  string  `json:"venue" db:"venue"`
	Price  float64 `json:"price" db:"price"`
	Volume float64 `json:"volume" db:"volume"`
}

// SpreadOpportunity - межбиржевая возможность по одному символу:
// максимальный бид против минимального аска среди бирж символа
type SpreadOpportunity struct {
	ID         int       `json:"id" db:"id"`
	ScanID     string    `json:"scan_id" db:"scan_id"`
	Symbol     string    `json:"symbol" db:"symbol"`
	HighestBid Quote     `json:"highest_bid"`
	LowestAsk  Quote     `json:"lowest_ask"`
	Timestamp  time.Time `json:"timestamp" db:"ts"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Valuable - возможность имеет смысл только когда бид выше аска
// и котировки пришли с разных бирж
func (o *SpreadOpportunity) Valuable() bool {
	return o.HighestBid.Venue != "" && o.LowestAsk.Venue != "" &&
		o.HighestBid.Venue != o.LowestAsk.Venue &&
		o.HighestBid.Price > o.LowestAsk.Price
}

// SpreadPercent возвращает спред в процентах от аска
func (o *SpreadOpportunity) SpreadPercent() float64 {
	if o.LowestAsk.Price <= 0 {
		return 0
	}
	return (o.HighestBid.Price - o.LowestAsk.Price) / o.LowestAsk.Price * 100
}

// Стороны сделки
const (
	SideSell = "SELL"
	SideBuy  = "BUY"
)
