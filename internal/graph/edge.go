// Package graph содержит граф обменных курсов: валюты как вершины,
// рынки как рёбра с логарифмическими весами.
//
// Вес ребра = -ln(rate × (1 - fee)). Отрицательный цикл в таком графе -
// это последовательность сделок с произведением курсов > 1, то есть
// арбитраж. Глубина ребра = -ln(volume) в валюте исходной вершины:
// exp(-depth) - максимальный объём, проходящий через ребро по лучшей цене.
package graph

import (
	"fmt"
	"math"
)

// TradeType - направление сделки на рынке
type TradeType int

const (
	// Sell - продажа base за quote по биду
	Sell TradeType = iota
	// Buy - покупка base за quote по аску
	Buy
)

func (t TradeType) String() string {
	switch t {
	case Sell:
		return "SELL"
	case Buy:
		return "BUY"
	default:
		return "UNKNOWN"
	}
}

// Edge - ребро графа курсов между двумя валютами
//
// NoFeeRate - сырой курс до комиссии, выраженный так, что умножение
// держания на него даёт сумму в валюте назначения.
type Edge struct {
	From string
	To   string

	Weight float64 // -ln(rate × (1 - fee))
	Depth  float64 // -ln(volume); NaN если объём не отслеживается

	MarketName string // BASE/QUOTE
	Venue      string
	TradeType  TradeType
	Fee        float64 // доля, не процент
	NoFeeRate  float64
}

// HasDepth сообщает задана ли глубина ребра
func (e *Edge) HasDepth() bool {
	return !math.IsNaN(e.Depth)
}

// Volume возвращает объём ребра в валюте исходной вершины
func (e *Edge) Volume() float64 {
	if !e.HasDepth() {
		return math.Inf(1)
	}
	return math.Exp(-e.Depth)
}

// Rate возвращает эффективный курс после комиссии
func (e *Edge) Rate() float64 {
	return math.Exp(-e.Weight)
}

func (e *Edge) String() string {
	return fmt.Sprintf("%s->%s w=%.6f %s@%s", e.From, e.To, e.Weight, e.MarketName, e.Venue)
}

// NoDepth - значение Depth для рёбер без объёма
func NoDepth() float64 {
	return math.NaN()
}
