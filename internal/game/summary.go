package game

import (
	"cmp"
	"maps"
	"slices"

	"github.com/gravitas-games/hexrts/internal/gamemap"
)

// OwnerSummary is the territory and construction state of one owner.
type OwnerSummary struct {
	Owner       int     `json:"owner"`
	Tiles       int     `json:"tiles"`
	BorderTiles int     `json:"border_tiles"`
	BorderEdges int     `json:"border_edges"`
	Buildings   int     `json:"buildings"`
	Queued      int     `json:"queued"`
	Completed   uint64  `json:"completed"`
	Food        float64 `json:"food"`
	Wood        float64 `json:"wood"`
	Stone       float64 `json:"stone"`
}

// Summary returns one entry per owner, ordered by owner id.
func (w *World) Summary() []OwnerSummary {
	byOwner := make(map[int]*OwnerSummary)
	get := func(owner int) *OwnerSummary {
		s, ok := byOwner[owner]
		if !ok {
			s = &OwnerSummary{Owner: owner}
			byOwner[owner] = s
		}
		return s
	}

	for t := range w.Grid.Tiles() {
		if !t.IsOwned() {
			continue
		}
		s := get(t.Owner())
		s.Tiles++
		if b := t.OccupyingBuilding(); b != nil && b.Complete() {
			s.Buildings++
		}
		res := t.Resources()
		s.Food += res[gamemap.ResourceFood].Amount
		s.Wood += res[gamemap.ResourceWood].Amount
		s.Stone += res[gamemap.ResourceStone].Amount
	}
	if w.Borders != nil {
		for _, b := range w.Borders.Borders() {
			s := get(b.OwnerID)
			s.BorderTiles++
			s.BorderEdges += b.Mask.Count()
		}
	}
	for owner, q := range w.queues {
		s := get(owner)
		s.Queued = q.Len()
		s.Completed = q.Completed()
	}

	out := make([]OwnerSummary, 0, len(byOwner))
	for _, s := range byOwner {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b OwnerSummary) int { return cmp.Compare(a.Owner, b.Owner) })
	return out
}

func sortedKeys(m map[int]bool) []int {
	return slices.Sorted(maps.Keys(m))
}
