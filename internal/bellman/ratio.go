package bellman

import (
	"fmt"
	"math"
	"strings"

	"arbscan/internal/graph"
)

// ratio.go - прибыль и объёмы найденного цикла
//
// Цикл хранит только вершины; рёбра добираются из графа по
// упорядоченным парам. Прибыль - произведение no_fee_rate × (1 - fee)
// по рёбрам; в depth-режиме объём каждого шага ограничен глубиной.

// ErrBrokenPath - между соседними вершинами пути нет ребра
type ErrBrokenPath struct {
	From, To string
}

func (e *ErrBrokenPath) Error() string {
	return fmt.Sprintf("no edge between %s and %s", e.From, e.To)
}

// LedgerEntry - одна сделка цикла
type LedgerEntry struct {
	Market    string          `json:"market"`
	Venue     string          `json:"venue"`
	NoFeeRate float64         `json:"no_fee_rate"`
	Fee       float64         `json:"fee"`
	Volume    float64         `json:"volume"` // в base-валюте рынка
	OrderType graph.TradeType `json:"order_type"`
}

// pathEdges собирает рёбра пути по парам соседних вершин
func pathEdges(g *graph.Digraph, path []string) ([]*graph.Edge, error) {
	if len(path) < 2 {
		return nil, nil
	}
	edges := make([]*graph.Edge, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		e, ok := g.EdgeBetween(path[i], path[i+1])
		if !ok {
			return nil, &ErrBrokenPath{From: path[i], To: path[i+1]}
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// ProfitRatio возвращает множитель прибыли цикла
//
// Без depth: произведение exp(-weight) = Π no_fee_rate × (1 - fee).
// С depth: объём шага ограничивается глубиной ребра, множитель -
// отношение конечного объёма к стартовому.
func ProfitRatio(g *graph.Digraph, cycle []string, depth bool) (float64, error) {
	edges, err := pathEdges(g, cycle)
	if err != nil {
		return 0, err
	}

	if !depth {
		ratio := 1.0
		for _, e := range edges {
			ratio *= math.Exp(-e.Weight)
		}
		return ratio, nil
	}

	start := startingVolumeEdges(edges)
	amount := start
	for _, e := range edges {
		amount = math.Min(amount, e.Volume())
		amount *= math.Exp(-e.Weight)
	}
	if start == 0 {
		return 0, nil
	}
	return amount / start, nil
}

// ProfitLedger возвращает множитель прибыли и список сделок
//
// Объём BUY сделки конвертируется из quote в base (умножение на
// no_fee_rate = 1/ask): все объёмы ledger'а в base-валюте рынка.
func ProfitLedger(g *graph.Digraph, cycle []string, depth bool) (float64, []LedgerEntry, error) {
	edges, err := pathEdges(g, cycle)
	if err != nil {
		return 0, nil, err
	}

	amount := 1.0
	if depth {
		amount = startingVolumeEdges(edges)
	}
	start := amount

	ledger := make([]LedgerEntry, 0, len(edges))
	for _, e := range edges {
		if depth {
			amount = math.Min(amount, e.Volume())
		}

		volume := amount
		if e.TradeType == graph.Buy {
			volume = amount * e.NoFeeRate
		}
		ledger = append(ledger, LedgerEntry{
			Market:    e.MarketName,
			Venue:     e.Venue,
			NoFeeRate: e.NoFeeRate,
			Fee:       e.Fee,
			Volume:    volume,
			OrderType: e.TradeType,
		})

		amount *= math.Exp(-e.Weight)
	}

	if start == 0 {
		return 0, ledger, nil
	}
	return amount / start, ledger, nil
}

// StartingVolume вычисляет максимальный стартовый объём пути
// прямой симуляцией: доля пригодного объёма уменьшается каждый раз,
// когда выход предыдущего шага превышает глубину следующего ребра.
//
// Симуляция идёт по сырым курсам (no_fee_rate): глубина стакана не
// зависит от нашей комиссии.
func StartingVolume(g *graph.Digraph, path []string) (float64, error) {
	edges, err := pathEdges(g, path)
	if err != nil {
		return 0, err
	}
	return startingVolumeEdges(edges), nil
}

func startingVolumeEdges(edges []*graph.Edge) float64 {
	if len(edges) == 0 {
		return 0
	}

	initial := edges[0].Volume()
	if math.IsInf(initial, 1) {
		return math.Inf(1)
	}

	scalar := 1.0
	previous := initial
	for _, e := range edges {
		max := e.Volume()
		if previous > max {
			scalar *= max / previous
			previous = max
		}
		previous *= e.NoFeeRate
	}
	return initial * scalar
}

// DescribePath печатает цикл в человекочитаемом виде для логов и UI
func DescribePath(g *graph.Digraph, cycle []string, depth bool) (string, error) {
	ratio, ledger, err := ProfitLedger(g, cycle, depth)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "cycle %s (profit %.4f%%)", strings.Join(cycle, " -> "), (ratio-1)*100)
	for _, entry := range ledger {
		fmt.Fprintf(&b, "\n  %s %s @ %s rate %.8g fee %.4f", entry.OrderType, entry.Market, entry.Venue, entry.NoFeeRate, entry.Fee)
		if depth {
			fmt.Fprintf(&b, " volume %.8g", entry.Volume)
		}
	}
	return b.String(), nil
}
