// Package path finds routes across hex cells.
package path

import (
	"container/heap"
	"math"

	"github.com/gravitas-games/hexrts/internal/hex"
)

// AStar computes a shortest path using the A* algorithm.
//   - start, goal: axial coordinates
//   - h: admissible heuristic (e.g., HeuristicTo(goal) scaled by the cheapest step)
//   - neighbors: returns adjacent axial coordinates to explore
//   - cost: edge cost of entering b from a; non-positive or NaN costs are treated as 1
//
// Returns the path including start and goal and its total cost, or nil if no
// path exists.
func AStar(start, goal hex.Axial,
	h func(a hex.Axial) float64,
	neighbors func(a hex.Axial) []hex.Axial,
	cost func(a, b hex.Axial) float64,
) ([]hex.Axial, float64) {
	if start == goal {
		return []hex.Axial{start}, 0
	}
	open := &nodePQ{}
	heap.Init(open)
	push := func(a hex.Axial, f float64) { heap.Push(open, &pqNode{a: a, f: f}) }

	g := map[hex.Axial]float64{start: 0}
	came := map[hex.Axial]hex.Axial{}
	closed := map[hex.Axial]bool{}
	push(start, h(start))

	for open.Len() > 0 {
		cur := heap.Pop(open).(*pqNode).a
		if closed[cur] {
			continue
		}
		closed[cur] = true
		if cur == goal {
			return reconstruct(came, start, goal), g[goal]
		}
		for _, nb := range neighbors(cur) {
			if closed[nb] {
				continue
			}
			step := cost(cur, nb)
			if step <= 0 || math.IsNaN(step) {
				step = 1
			}
			tentative := g[cur] + step
			old, ok := g[nb]
			if !ok || tentative < old {
				g[nb] = tentative
				came[nb] = cur
				f := tentative + h(nb)
				// guard against NaN/Inf
				if math.IsNaN(f) || math.IsInf(f, 0) {
					f = tentative
				}
				push(nb, f)
			}
		}
	}
	return nil, 0
}

func reconstruct(came map[hex.Axial]hex.Axial, start, goal hex.Axial) []hex.Axial {
	path := []hex.Axial{goal}
	for k := goal; k != start; {
		k = came[k]
		path = append(path, k)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type pqNode struct {
	a hex.Axial
	f float64
}

type nodePQ []*pqNode

func (p nodePQ) Len() int           { return len(p) }
func (p nodePQ) Less(i, j int) bool { return p[i].f < p[j].f }
func (p nodePQ) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p *nodePQ) Push(x any)        { *p = append(*p, x.(*pqNode)) }
func (p *nodePQ) Pop() any {
	old := *p
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*p = old[:n-1]
	return x
}

// HeuristicTo returns hex distance to goal scaled by minStep, the cheapest
// possible step cost, which keeps the heuristic admissible.
func HeuristicTo(goal hex.Axial, minStep float64) func(a hex.Axial) float64 {
	return func(a hex.Axial) float64 { return float64(hex.DistanceAxial(a, goal)) * minStep }
}
