package gamemap

import (
	"github.com/gravitas-games/hexrts/internal/hex"
	"github.com/gravitas-games/hexrts/internal/hex/path"
)

// minMovementCost is the cheapest step any passable terrain charges.
const minMovementCost = 1.0

// FindPath returns the cheapest route from start to goal over passable
// tiles, weighted by the movement cost of each entered tile, and its cost.
// It returns nil when either end is missing or impassable or no route exists.
func FindPath(g *Grid, start, goal hex.Axial) ([]hex.Axial, float64) {
	for _, c := range []hex.Axial{start, goal} {
		t, ok := g.GetTile(c)
		if !ok || !t.Passable {
			return nil, 0
		}
	}
	neighbors := func(a hex.Axial) []hex.Axial {
		out := make([]hex.Axial, 0, 6)
		for _, n := range a.Neighbors() {
			if t, ok := g.GetTile(n); ok && t.Passable {
				out = append(out, n)
			}
		}
		return out
	}
	cost := func(_, b hex.Axial) float64 {
		t, ok := g.GetTile(b)
		if !ok {
			return 0
		}
		return max(t.MovementCost, minMovementCost)
	}
	return path.AStar(start, goal, path.HeuristicTo(goal, minMovementCost), neighbors, cost)
}
