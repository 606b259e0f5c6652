package path

import (
	"testing"

	"github.com/gravitas-games/hexrts/internal/hex"
)

func discNeighbors(r int, blocked map[hex.Axial]bool) func(a hex.Axial) []hex.Axial {
	return func(a hex.Axial) []hex.Axial {
		out := make([]hex.Axial, 0, 6)
		for _, n := range a.Neighbors() {
			if hex.DistanceAxial(hex.Axial{}, n) <= r && !blocked[n] {
				out = append(out, n)
			}
		}
		return out
	}
}

func TestAStarStraightLine(t *testing.T) {
	goal := hex.Axial{Q: 4, R: 0}
	p, total := AStar(hex.Axial{}, goal, HeuristicTo(goal, 1), discNeighbors(6, nil),
		func(a, b hex.Axial) float64 { return 1 })
	if len(p) != 5 {
		t.Fatalf("expected 5 cells, got %d: %v", len(p), p)
	}
	if total != 4 {
		t.Fatalf("expected cost 4, got %v", total)
	}
	if p[0] != (hex.Axial{}) || p[len(p)-1] != goal {
		t.Fatalf("path must include both endpoints: %v", p)
	}
}

func TestAStarAvoidsExpensiveCells(t *testing.T) {
	goal := hex.Axial{Q: 2, R: 0}
	swamp := hex.Axial{Q: 1, R: 0}
	cost := func(a, b hex.Axial) float64 {
		if b == swamp {
			return 10
		}
		return 1
	}
	p, total := AStar(hex.Axial{}, goal, HeuristicTo(goal, 1), discNeighbors(4, nil), cost)
	for _, a := range p {
		if a == swamp {
			t.Fatalf("path should route around the expensive cell: %v", p)
		}
	}
	if total != 3 {
		t.Fatalf("expected detour cost 3, got %v", total)
	}
}

func TestAStarNoPath(t *testing.T) {
	goal := hex.Axial{Q: 3, R: 0}
	blocked := map[hex.Axial]bool{}
	for _, a := range hex.Ring(goal, 1) {
		blocked[a] = true
	}
	p, _ := AStar(hex.Axial{}, goal, HeuristicTo(goal, 1), discNeighbors(6, blocked),
		func(a, b hex.Axial) float64 { return 1 })
	if p != nil {
		t.Fatalf("expected no path, got %v", p)
	}
}
