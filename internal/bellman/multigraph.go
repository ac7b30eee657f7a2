package bellman

import (
	"math"

	"arbscan/internal/graph"
)

// multigraph.go - поиск циклов в сводном мультиграфе
//
// Параллельные рёбра от разных бирж сначала сворачиваются до лучшего
// курса на направление; свёртка совмещена с первой релаксацией,
// поэтому основной цикл делает |V|-2 прохода вместо |V|-1.

// NewMultigraphFinder сворачивает мультиграф и готовит поиск
//
// Возвращает также редуцированный граф: вызывающему он нужен для
// расчёта прибыли по найденным циклам.
func NewMultigraphFinder(mg *graph.Multigraph, source string, opts Options) (*Finder, *graph.Digraph, error) {
	if !mg.HasNode(source) {
		return nil, nil, &ErrUnknownSource{Source: source}
	}

	reduced := mg.Reduce()

	f := &Finder{
		g:      reduced,
		opts:   opts,
		distTo: make(map[string]float64, reduced.NodeCount()),
		predTo: make(map[string]*graph.Edge, reduced.NodeCount()),
		seen:   make(map[string]bool),
		edges:  reduced.Edges(),
	}

	for _, n := range reduced.Nodes() {
		f.distTo[n] = math.Inf(1)
	}
	f.distTo[source] = 0

	// Первая релаксация засчитана проходу свёртки
	f.relaxPass()
	for i := 0; i < reduced.NodeCount()-2; i++ {
		f.relaxPass()
	}

	return f, reduced, nil
}
