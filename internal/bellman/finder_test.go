package bellman

import (
	"errors"
	"math"
	"testing"

	"arbscan/internal/graph"
)

// triangle строит треугольник курсов с заданными rate/depth и комиссией
// Каждое ребро: weight = -ln(rate × (1 - fee)), depth = -ln(volume)
func triangle(t *testing.T, rates [3]float64, volumes [3]float64, fee float64) *graph.Digraph {
	t.Helper()
	g := graph.NewDigraph()
	nodes := [3][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}}
	for i, pair := range nodes {
		depth := graph.NoDepth()
		if volumes[i] > 0 {
			depth = -math.Log(volumes[i])
		}
		g.AddEdge(graph.Edge{
			From:       pair[0],
			To:         pair[1],
			Weight:     -math.Log(rates[i] * (1 - fee)),
			Depth:      depth,
			MarketName: pair[0] + "/" + pair[1],
			Venue:      "test",
			TradeType:  graph.Sell,
			Fee:        fee,
			NoFeeRate:  rates[i],
		})
	}
	return g
}

// cycleWeight суммирует веса рёбер цикла
func cycleWeight(t *testing.T, g *graph.Digraph, cycle []string) float64 {
	t.Helper()
	sum := 0.0
	for i := 0; i+1 < len(cycle); i++ {
		e, ok := g.EdgeBetween(cycle[i], cycle[i+1])
		if !ok {
			t.Fatalf("cycle %v has no edge %s->%s", cycle, cycle[i], cycle[i+1])
		}
		sum += e.Weight
	}
	return sum
}

// rotate переставляет цикл так чтобы он начинался с указанной вершины
func rotate(t *testing.T, cycle []string, start string) []string {
	t.Helper()
	body := cycle[:len(cycle)-1] // без замыкающего повтора
	for i, n := range body {
		if n == start {
			out := make([]string, 0, len(cycle))
			out = append(out, body[i:]...)
			out = append(out, body[:i]...)
			return append(out, start)
		}
	}
	t.Fatalf("node %s not in cycle %v", start, cycle)
	return nil
}

func TestSimpleTriangleWithProfit(t *testing.T) {
	// A→B 2, B→C 3, C→A 1/4, без комиссий: произведение 1.5
	g := triangle(t, [3]float64{2, 3, 0.25}, [3]float64{0, 0, 0}, 0)

	f, err := NewFinder(g, "A", Options{})
	if err != nil {
		t.Fatalf("NewFinder failed: %v", err)
	}

	res, ok := f.Next()
	if !ok {
		t.Fatal("expected a cycle")
	}

	// Цикл начинается и заканчивается одной вершиной
	if res.Cycle[0] != res.Cycle[len(res.Cycle)-1] {
		t.Errorf("cycle must close on itself: %v", res.Cycle)
	}
	// Промежуточные вершины различны
	seen := map[string]bool{}
	for _, n := range res.Cycle[:len(res.Cycle)-1] {
		if seen[n] {
			t.Errorf("intermediate nodes must be distinct: %v", res.Cycle)
		}
		seen[n] = true
	}

	if w := cycleWeight(t, g, res.Cycle); w >= 0 {
		t.Errorf("cycle weight = %v, must be strictly negative", w)
	}

	ratio, err := ProfitRatio(g, res.Cycle, false)
	if err != nil {
		t.Fatalf("ProfitRatio failed: %v", err)
	}
	if math.Abs(ratio-1.5) > 1e-9 {
		t.Errorf("profit ratio = %v, want 1.5", ratio)
	}
}

func TestUniquePathsYieldsOneTriangle(t *testing.T) {
	g := triangle(t, [3]float64{2, 3, 0.25}, [3]float64{0, 0, 0}, 0)

	for _, source := range []string{"A", "B", "C"} {
		f, err := NewFinder(g, source, Options{UniquePaths: true})
		if err != nil {
			t.Fatalf("NewFinder(%s) failed: %v", source, err)
		}
		results := f.All()
		if len(results) != 1 {
			t.Errorf("source %s: got %d cycles, want exactly 1", source, len(results))
		}
	}
}

// Все выданные циклы имеют строго отрицательную сумму весов
func TestEveryCycleIsNegative(t *testing.T) {
	g := triangle(t, [3]float64{2, 3, 0.25}, [3]float64{0, 0, 0}, 0)

	f, _ := NewFinder(g, "A", Options{})
	for _, res := range f.All() {
		if w := cycleWeight(t, g, res.Cycle); w >= 0 {
			t.Errorf("yielded cycle %v has non-negative weight %v", res.Cycle, w)
		}
	}
}

// В unique-path режиме выданные циклы не делят вершин
func TestUniquePathsDisjoint(t *testing.T) {
	g := graph.NewDigraph()
	add := func(from, to string, rate float64) {
		g.AddEdge(graph.Edge{From: from, To: to, Weight: -math.Log(rate), NoFeeRate: rate, Venue: "test"})
	}
	// Два непересекающихся прибыльных треугольника, связанных мостом
	add("A", "B", 2)
	add("B", "C", 3)
	add("C", "A", 0.25)
	add("X", "Y", 3)
	add("Y", "Z", 2)
	add("Z", "X", 0.3)
	add("A", "X", 1)
	add("X", "A", 0.9)

	f, err := NewFinder(g, "A", Options{UniquePaths: true})
	if err != nil {
		t.Fatalf("NewFinder failed: %v", err)
	}

	results := f.All()
	used := map[string]bool{}
	for _, res := range results {
		for _, n := range res.Cycle[:len(res.Cycle)-1] {
			if used[n] {
				t.Fatalf("node %s appears in two yielded cycles", n)
			}
			used[n] = true
		}
	}
}

func TestNoOpportunityWithFees(t *testing.T) {
	// Произведение сырых курсов 1.001; суммарная комиссия ~0.3% съедает его
	rates := [3]float64{2, 2, 0.25 * 1.001}

	withFees := triangle(t, rates, [3]float64{0, 0, 0}, 0.001)
	f, _ := NewFinder(withFees, "A", Options{})
	if _, ok := f.Next(); ok {
		t.Error("fees must eliminate the marginal opportunity")
	}

	noFees := triangle(t, rates, [3]float64{0, 0, 0}, 0)
	f, _ = NewFinder(noFees, "A", Options{})
	if _, ok := f.Next(); !ok {
		t.Error("without fees the marginal cycle must be found")
	}
}

func TestUnknownSource(t *testing.T) {
	g := triangle(t, [3]float64{2, 3, 0.25}, [3]float64{0, 0, 0}, 0)

	_, err := NewFinder(g, "DOGE", Options{})
	var unknown *ErrUnknownSource
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
	if unknown.Source != "DOGE" {
		t.Errorf("Source = %q", unknown.Source)
	}
}

func TestDepthBoundedOpportunity(t *testing.T) {
	// A→B rate 2 depth 3, B→C rate 3 depth 4, C→A rate 0.2 depth 14, fee 0.01
	g := triangle(t, [3]float64{2, 3, 0.2}, [3]float64{3, 4, 14}, 0.01)

	f, err := NewFinder(g, "A", Options{Depth: true, UniquePaths: true})
	if err != nil {
		t.Fatalf("NewFinder failed: %v", err)
	}

	res, ok := f.Next()
	if !ok {
		t.Fatal("expected a depth-bounded cycle")
	}
	if math.IsInf(res.MaxVolume, 1) || res.MaxVolume <= 0 {
		t.Fatalf("MaxVolume = %v, want finite positive", res.MaxVolume)
	}

	// Прямая симуляция от A: 3 × (2/3) = 2, ограничено ёмкостью B→C
	sv, err := StartingVolume(g, rotate(t, res.Cycle, "A"))
	if err != nil {
		t.Fatalf("StartingVolume failed: %v", err)
	}
	if math.Abs(sv-2) > 1e-9 {
		t.Errorf("StartingVolume = %v, want 2", sv)
	}
}

// StartingVolume не превышает exp(-depth) первого ребра пути
func TestStartingVolumeBounded(t *testing.T) {
	g := triangle(t, [3]float64{2, 3, 0.2}, [3]float64{3, 4, 14}, 0)

	for _, start := range []string{"A", "B", "C"} {
		path := rotate(t, []string{"A", "B", "C", "A"}, start)
		sv, err := StartingVolume(g, path)
		if err != nil {
			t.Fatalf("StartingVolume(%s) failed: %v", start, err)
		}

		first, _ := g.EdgeBetween(path[0], path[1])
		if sv > first.Volume()+1e-9 {
			t.Errorf("start %s: volume %v exceeds first edge capacity %v", start, sv, first.Volume())
		}
	}
}

func TestFinderNoCycleInFairMarket(t *testing.T) {
	// Курсы согласованы: произведение ровно 1, цикла нет
	g := triangle(t, [3]float64{2, 3, 1.0 / 6.0}, [3]float64{0, 0, 0}, 0)

	f, _ := NewFinder(g, "A", Options{})
	if _, ok := f.Next(); ok {
		t.Error("consistent rates must not produce a cycle")
	}
}

func TestMultigraphFinder(t *testing.T) {
	mg := graph.NewMultigraph()
	add := func(from, to, venue string, rate float64) {
		mg.AddEdge(graph.Edge{From: from, To: to, Venue: venue, Weight: -math.Log(rate), NoFeeRate: rate})
	}

	// Цикл прибылен только через лучшие курсы разных бирж:
	// v1 даёт A→B 2, v2 даёт B→C 3; худшие параллельные рёбра
	// сделали бы произведение < 1
	add("A", "B", "v1", 2)
	add("A", "B", "v2", 1.5)
	add("B", "C", "v1", 2)
	add("B", "C", "v2", 3)
	add("C", "A", "v1", 0.25)

	f, reduced, err := NewMultigraphFinder(mg, "A", Options{})
	if err != nil {
		t.Fatalf("NewMultigraphFinder failed: %v", err)
	}

	res, ok := f.Next()
	if !ok {
		t.Fatal("expected a cycle through the best parallel edges")
	}

	ratio, err := ProfitRatio(reduced, res.Cycle, false)
	if err != nil {
		t.Fatalf("ProfitRatio failed: %v", err)
	}
	if math.Abs(ratio-1.5) > 1e-9 {
		t.Errorf("profit ratio = %v, want 1.5 (2 × 3 × 0.25)", ratio)
	}

	// Редукция выбрала лучшие биржи
	ab, _ := reduced.EdgeBetween("A", "B")
	if ab.Venue != "v1" {
		t.Errorf("A->B venue = %s, want v1", ab.Venue)
	}
	bc, _ := reduced.EdgeBetween("B", "C")
	if bc.Venue != "v2" {
		t.Errorf("B->C venue = %s, want v2", bc.Venue)
	}
}

func TestMultigraphFinderUnknownSource(t *testing.T) {
	mg := graph.NewMultigraph()
	mg.AddEdge(graph.Edge{From: "A", To: "B", Weight: 1})

	_, _, err := NewMultigraphFinder(mg, "DOGE", Options{})
	var unknown *ErrUnknownSource
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
}
