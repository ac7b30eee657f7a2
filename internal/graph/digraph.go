package graph

import (
	"math"
	"time"
)

// Digraph - ориентированный граф курсов: не более одного ребра
// на упорядоченную пару вершин
//
// Порядок вершин и рёбер - порядок вставки. Поиск циклов детерминирован
// относительно порядка итерации рёбер, поэтому порядок это контракт,
// а не деталь реализации; map'ы здесь только индексы.
type Digraph struct {
	Venue     string    // биржа-источник; пусто для сводных графов
	Timestamp time.Time // момент снятия котировок

	nodes   []string
	nodeIdx map[string]int

	edges   []Edge
	edgeIdx map[[2]string]int // (from,to) -> позиция в edges
}

// NewDigraph создаёт пустой граф
func NewDigraph() *Digraph {
	return &Digraph{
		nodeIdx: make(map[string]int),
		edgeIdx: make(map[[2]string]int),
	}
}

// AddNode добавляет вершину; повторное добавление - no-op
func (g *Digraph) AddNode(name string) {
	if _, ok := g.nodeIdx[name]; ok {
		return
	}
	g.nodeIdx[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// HasNode проверяет наличие вершины
func (g *Digraph) HasNode(name string) bool {
	_, ok := g.nodeIdx[name]
	return ok
}

// NodeCount возвращает число вершин
func (g *Digraph) NodeCount() int {
	return len(g.nodes)
}

// Nodes возвращает вершины в порядке вставки
// Слайс принадлежит графу, не изменять
func (g *Digraph) Nodes() []string {
	return g.nodes
}

// AddEdge добавляет ребро, создавая недостающие вершины
// Ребро для существующей пары перезаписывается
func (g *Digraph) AddEdge(e Edge) {
	g.AddNode(e.From)
	g.AddNode(e.To)

	key := [2]string{e.From, e.To}
	if i, ok := g.edgeIdx[key]; ok {
		g.edges[i] = e
		return
	}
	g.edgeIdx[key] = len(g.edges)
	g.edges = append(g.edges, e)
}

// EdgeCount возвращает число рёбер
func (g *Digraph) EdgeCount() int {
	return len(g.edges)
}

// Edges возвращает рёбра в порядке вставки
// Слайс принадлежит графу, не изменять
func (g *Digraph) Edges() []Edge {
	return g.edges
}

// EdgeBetween возвращает ребро упорядоченной пары
func (g *Digraph) EdgeBetween(from, to string) (*Edge, bool) {
	if i, ok := g.edgeIdx[[2]string{from, to}]; ok {
		return &g.edges[i], true
	}
	return nil, false
}

// degree считает суммарную степень вершины (входящие + исходящие)
func (g *Digraph) degree(name string) int {
	d := 0
	for i := range g.edges {
		if g.edges[i].From == name {
			d++
		}
		if g.edges[i].To == name {
			d++
		}
	}
	return d
}

// KCore возвращает подграф, где каждая вершина имеет суммарную
// степень не меньше k
//
// Валюты с одним-двумя рынками не могут лежать на цикле длиннее
// пары; отсечение k-core сокращает граф до арбитражно-осмысленной
// части перед запуском поиска.
func (g *Digraph) KCore(k int) *Digraph {
	alive := make(map[string]bool, len(g.nodes))
	for _, n := range g.nodes {
		alive[n] = true
	}

	// Итеративно убираем вершины со степенью < k
	for {
		removed := false
		for _, n := range g.nodes {
			if !alive[n] {
				continue
			}
			d := 0
			for i := range g.edges {
				e := &g.edges[i]
				if e.From == n && alive[e.To] {
					d++
				}
				if e.To == n && alive[e.From] {
					d++
				}
			}
			if d < k {
				alive[n] = false
				removed = true
			}
		}
		if !removed {
			break
		}
	}

	core := NewDigraph()
	core.Venue = g.Venue
	core.Timestamp = g.Timestamp
	for _, n := range g.nodes {
		if alive[n] {
			core.AddNode(n)
		}
	}
	for i := range g.edges {
		e := g.edges[i]
		if alive[e.From] && alive[e.To] {
			core.AddEdge(e)
		}
	}
	return core
}

// ============================================================
// Multigraph - параллельные рёбра от разных бирж
// ============================================================

// Multigraph - ориентированный граф, где упорядоченная пара может
// нести несколько рёбер: по одному на биржу с этим рынком
type Multigraph struct {
	Timestamp time.Time

	nodes   []string
	nodeIdx map[string]int

	edges []Edge

	// Порядок первого появления пар для детерминированной редукции
	pairOrder []([2]string)
	pairSeen  map[[2]string]bool
}

// NewMultigraph создаёт пустой мультиграф
func NewMultigraph() *Multigraph {
	return &Multigraph{
		nodeIdx:  make(map[string]int),
		pairSeen: make(map[[2]string]bool),
	}
}

// AddNode добавляет вершину; повторное добавление - no-op
func (g *Multigraph) AddNode(name string) {
	if _, ok := g.nodeIdx[name]; ok {
		return
	}
	g.nodeIdx[name] = len(g.nodes)
	g.nodes = append(g.nodes, name)
}

// HasNode проверяет наличие вершины
func (g *Multigraph) HasNode(name string) bool {
	_, ok := g.nodeIdx[name]
	return ok
}

// NodeCount возвращает число вершин
func (g *Multigraph) NodeCount() int {
	return len(g.nodes)
}

// Nodes возвращает вершины в порядке вставки
func (g *Multigraph) Nodes() []string {
	return g.nodes
}

// AddEdge добавляет параллельное ребро
func (g *Multigraph) AddEdge(e Edge) {
	g.AddNode(e.From)
	g.AddNode(e.To)

	key := [2]string{e.From, e.To}
	if !g.pairSeen[key] {
		g.pairSeen[key] = true
		g.pairOrder = append(g.pairOrder, key)
	}
	g.edges = append(g.edges, e)
}

// EdgeCount возвращает общее число рёбер включая параллельные
func (g *Multigraph) EdgeCount() int {
	return len(g.edges)
}

// Edges возвращает все рёбра в порядке вставки
func (g *Multigraph) Edges() []Edge {
	return g.edges
}

// EdgesBetween возвращает пучок параллельных рёбер пары
func (g *Multigraph) EdgesBetween(from, to string) []Edge {
	var bunch []Edge
	for i := range g.edges {
		if g.edges[i].From == from && g.edges[i].To == to {
			bunch = append(bunch, g.edges[i])
		}
	}
	return bunch
}

// KCore возвращает мультиграф без вершин с суммарной степенью < k
//
// Степень считается по различным упорядоченным парам, не по
// параллельным рёбрам: десять бирж с одним и тем же рынком не делают
// валюту более связной.
func (g *Multigraph) KCore(k int) *Multigraph {
	alive := make(map[string]bool, len(g.nodes))
	for _, n := range g.nodes {
		alive[n] = true
	}

	for {
		removed := false
		for _, n := range g.nodes {
			if !alive[n] {
				continue
			}
			d := 0
			for _, pair := range g.pairOrder {
				if pair[0] == n && alive[pair[1]] {
					d++
				}
				if pair[1] == n && alive[pair[0]] {
					d++
				}
			}
			if d < k {
				alive[n] = false
				removed = true
			}
		}
		if !removed {
			break
		}
	}

	core := NewMultigraph()
	core.Timestamp = g.Timestamp
	for _, n := range g.nodes {
		if alive[n] {
			core.AddNode(n)
		}
	}
	for i := range g.edges {
		e := g.edges[i]
		if alive[e.From] && alive[e.To] {
			core.AddEdge(e)
		}
	}
	return core
}

// Reduce сворачивает мультиграф в Digraph, оставляя для каждой
// упорядоченной пары ребро с наименьшим весом (лучший курс после
// комиссии). Пучки с минимумом +Inf отбрасываются.
//
// Каждое направление редуцируется независимо: лучший bid может быть
// на одной бирже, лучший ask - на другой.
func (g *Multigraph) Reduce() *Digraph {
	best := make(map[[2]string]int, len(g.pairOrder))
	for i := range g.edges {
		key := [2]string{g.edges[i].From, g.edges[i].To}
		if j, ok := best[key]; !ok || g.edges[i].Weight < g.edges[j].Weight {
			best[key] = i
		}
	}

	out := NewDigraph()
	out.Timestamp = g.Timestamp
	for _, n := range g.nodes {
		out.AddNode(n)
	}
	for _, key := range g.pairOrder {
		e := g.edges[best[key]]
		if math.IsInf(e.Weight, 1) {
			continue
		}
		out.AddEdge(e)
	}
	return out
}
