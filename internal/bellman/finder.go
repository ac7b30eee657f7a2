// Package bellman реализует поиск отрицательных циклов в графе курсов:
// Беллман-Форд с восстановлением цикла по цепочке предшественников.
//
// Отрицательный цикл = сумма лог-весов < 0 = произведение курсов
// с учётом комиссий > 1, то есть арбитражная возможность.
package bellman

import (
	"fmt"
	"math"

	"arbscan/internal/graph"
)

// ErrUnknownSource - источник не является вершиной графа
type ErrUnknownSource struct {
	Source string
}

func (e *ErrUnknownSource) Error() string {
	return fmt.Sprintf("source node %q is not in the graph", e.Source)
}

// Options настраивает поиск циклов
type Options struct {
	// UniquePaths - каждый выданный цикл не делит вершин с предыдущими
	UniquePaths bool

	// Depth - вычислять объёмный bottleneck цикла при восстановлении
	Depth bool
}

// Result - найденный цикл
type Result struct {
	// Cycle - вершины цикла; первая и последняя совпадают,
	// промежуточные различны
	Cycle []string

	// MaxVolume - максимальный объём стартовой валюты, проходящий
	// через цикл без превышения глубины рёбер; +Inf вне depth-режима
	MaxVolume float64
}

// Finder лениво выдаёт отрицательные циклы графа
//
// Релаксация выполняется один раз при создании; Next() досматривает
// рёбра финального прохода. Для фиксированного графа и источника
// последовательность циклов детерминирована (порядок рёбер - порядок
// вставки в граф).
type Finder struct {
	g    *graph.Digraph
	opts Options

	distTo map[string]float64
	predTo map[string]*graph.Edge // ребро, релаксировавшее вершину

	seen map[string]bool // unique-path режим: вершины выданных циклов

	edges   []graph.Edge
	edgeIdx int // позиция детектирующего прохода
}

// NewFinder создаёт поиск от источника
// Источник вне графа - ошибка ErrUnknownSource
func NewFinder(g *graph.Digraph, source string, opts Options) (*Finder, error) {
	if !g.HasNode(source) {
		return nil, &ErrUnknownSource{Source: source}
	}

	f := &Finder{
		g:      g,
		opts:   opts,
		distTo: make(map[string]float64, g.NodeCount()),
		predTo: make(map[string]*graph.Edge, g.NodeCount()),
		seen:   make(map[string]bool),
		edges:  g.Edges(),
	}

	for _, n := range g.Nodes() {
		f.distTo[n] = math.Inf(1)
	}
	f.distTo[source] = 0

	// |V|-1 проходов релаксации
	for i := 0; i < g.NodeCount()-1; i++ {
		f.relaxPass()
	}
	return f, nil
}

// relaxPass выполняет один проход релаксации по всем рёбрам
// Возвращает true если хоть одна дистанция улучшилась
func (f *Finder) relaxPass() bool {
	improved := false
	for i := range f.edges {
		if f.relax(&f.edges[i]) {
			improved = true
		}
	}
	return improved
}

// relax пробует улучшить дистанцию до e.To через e
func (f *Finder) relax(e *graph.Edge) bool {
	if f.distTo[e.From]+e.Weight < f.distTo[e.To] {
		f.distTo[e.To] = f.distTo[e.From] + e.Weight
		f.predTo[e.To] = e
		return true
	}
	return false
}

// Next возвращает следующий цикл; ok=false когда рёбра исчерпаны
//
// Детектирующий проход: ребро, которое всё ещё может улучшить
// дистанцию после |V|-1 релаксаций, указывает на отрицательный цикл,
// достижимый через его вершину назначения.
func (f *Finder) Next() (Result, bool) {
	for f.edgeIdx < len(f.edges) {
		e := &f.edges[f.edgeIdx]
		f.edgeIdx++

		if f.distTo[e.From]+e.Weight < f.distTo[e.To] {
			res, skipped := f.retrace(e.To)
			if skipped {
				continue
			}
			return res, true
		}
	}
	return Result{}, false
}

// All выбирает все оставшиеся циклы
func (f *Finder) All() []Result {
	var out []Result
	for {
		res, ok := f.Next()
		if !ok {
			return out
		}
		out = append(out, res)
	}
}

// retrace восстанавливает цикл обратным проходом по предшественникам
//
// Идём от start назад, пока какая-то вершина не встретится второй раз;
// цикл - срез от первого повторения до него же. В unique-path режиме
// каждая посещённая вершина помечается; выход на помеченную вершину
// означает что цикл делит вершины с уже выданным - skipped.
//
// В depth-режиме вдоль прохода поддерживается лог-bottleneck minimum,
// начиная с глубины первого пройденного ребра (последнего ребра цикла
// в торговом порядке).
func (f *Finder) retrace(start string) (Result, bool) {
	if f.opts.UniquePaths {
		if f.seen[start] {
			return Result{}, true
		}
		f.seen[start] = true
	}

	walk := []string{start}
	pos := map[string]int{start: 0}

	minimum := math.Inf(1)
	first := true

	cur := start
	for {
		pe := f.predTo[cur]
		if pe == nil {
			// Оборванная цепочка предшественников: цикл через эту
			// вершину не восстановить
			return Result{}, true
		}

		if f.opts.Depth {
			if first {
				minimum = pe.Depth
				first = false
			} else {
				w, d := pe.Weight, pe.Depth
				switch {
				case w+d < minimum:
					// Bottleneck раньше по проходу; переносим его
					// через ребро и сравниваем с текущей глубиной
					minimum = math.Max(minimum-w, d)
				case w+d > minimum:
					// Это ребро - новый bottleneck
					minimum = d
				}
			}
		}

		prev := pe.From
		if i, ok := pos[prev]; ok {
			// prev уже в проходе: цикл = walk[i:] замкнутый на prev.
			// walk идёт назад по предшественникам, торговый порядок -
			// обратный
			cycle := make([]string, 0, len(walk)-i+1)
			cycle = append(cycle, prev)
			for j := len(walk) - 1; j >= i; j-- {
				cycle = append(cycle, walk[j])
			}

			volume := math.Inf(1)
			if f.opts.Depth {
				volume = math.Exp(-minimum)
			}
			return Result{Cycle: cycle, MaxVolume: volume}, false
		}

		if f.opts.UniquePaths {
			if f.seen[prev] {
				return Result{}, true
			}
			f.seen[prev] = true
		}

		pos[prev] = len(walk)
		walk = append(walk, prev)
		cur = prev
	}
}
